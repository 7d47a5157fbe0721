// Package crawler defines the types and interfaces shared by the
// security.txt fetch-and-persist pipeline: fetch results, typed failures,
// and the seams (Fetcher, BlobStore, Recorder, Clock) the worker depends on.
package crawler
