package progress

import (
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
)

// NewBar builds the terminal bar: spinner, elapsed time, #>- fill, pos/len and ETA.
func NewBar(total uint64, w io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions64(
		int64(total), //nolint:gosec // domain lists are far below MaxInt64.
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("security.txt"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionFullWidth(),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "#",
			SaucerHead:    ">",
			SaucerPadding: "-",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			_, _ = fmt.Fprintln(w)
		}),
	)
}
