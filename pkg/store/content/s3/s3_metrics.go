package s3

import (
	"io"
	"sync"
	"time"
)

// S3Metrics observes calls made against the bucket. Optional; a nil value
// in S3ContentStoreConfig disables it.
type S3Metrics interface {
	// ObserveOperation records one S3 API call. operation is one of "get",
	// "put", "head", "delete", "list" or "append_copy".
	ObserveOperation(operation string, duration time.Duration, err error)

	// RecordBytes adds to the bytes moved in direction "read" or "write".
	RecordBytes(operation string, bytes int64)
}

type noopMetrics struct{}

func (noopMetrics) ObserveOperation(string, time.Duration, error) {}
func (noopMetrics) RecordBytes(string, int64)                     {}

// countingBody reports the bytes streamed out of a GetObject body once the
// caller closes it.
type countingBody struct {
	io.ReadCloser
	metrics S3Metrics
	n       int64
	once    sync.Once
}

func newCountingBody(body io.ReadCloser, m S3Metrics) *countingBody {
	return &countingBody{ReadCloser: body, metrics: m}
}

func (b *countingBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	b.n += int64(n)
	return n, err
}

func (b *countingBody) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(func() {
		if b.n > 0 {
			b.metrics.RecordBytes("read", b.n)
		}
	})
	return err
}
