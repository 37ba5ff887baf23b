package model

import "time"

type TargetStatus string

const (
	TargetStatusPending   TargetStatus = "pending"
	TargetStatusRunning   TargetStatus = "running"
	TargetStatusSucceeded TargetStatus = "succeeded"
	TargetStatusFailed    TargetStatus = "failed"
	TargetStatusSkipped   TargetStatus = "skipped"
)

// TargetResult records the outcome of building one target.
type TargetResult struct {
	Target      string
	CrossTarget CrossTarget
	Status      TargetStatus
	Duration    time.Duration
	Err         error
}

type Summary struct {
	TotalTargets int
	SuccessCount int
	FailureCount int
	SkippedCount int
	Duration     time.Duration
}

// Record counts one target outcome. Duration is the wall clock time of
// the whole run and is set by the caller.
func (s *Summary) Record(r *TargetResult) {
	s.TotalTargets++
	switch r.Status {
	case TargetStatusSucceeded:
		s.SuccessCount++
	case TargetStatusFailed:
		s.FailureCount++
	case TargetStatusSkipped:
		s.SkippedCount++
	}
}
