package storage

import "time"

// Metrics observes coordinator activity. Optional: a nil Metrics in Config
// disables collection.
type Metrics interface {
	// ObserveOperation records one coordinator operation ("put", "get",
	// "open", "list", "remove") and its outcome.
	ObserveOperation(op string, duration time.Duration, err error)

	// RecordBytes records payload bytes written by put.
	RecordBytes(op string, bytes int64)

	// RecordQuotaRejection counts admissions that were refused.
	RecordQuotaRejection()

	// RecordInconsistency counts entries into a consistency-gap window:
	// "orphaned_blob" or "stale_entry".
	RecordInconsistency(kind string)

	// SetUsage publishes the latest usage snapshot.
	SetUsage(used, limit uint64)
}

type noopMetrics struct{}

func (noopMetrics) ObserveOperation(string, time.Duration, error) {}
func (noopMetrics) RecordBytes(string, int64)                     {}
func (noopMetrics) RecordQuotaRejection()                         {}
func (noopMetrics) RecordInconsistency(string)                    {}
func (noopMetrics) SetUsage(uint64, uint64)                       {}
