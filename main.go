// The securitytxt command fetches security.txt files at scale.
package main

import "github.com/JakeFAU/securitytxt-crawler/cmd"

func main() {
	cmd.Execute()
}
