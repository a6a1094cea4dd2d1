// Package progress streams per-job crawl progress. Workers emit events into a
// non-blocking Hub, which batches them on a background goroutine and fans the
// batches out to sinks such as the job store or the log.
package progress
