package logging

import (
	"math"
	"strings"
)

// ProgressSampler decides which worker progress updates are worth a log
// line: the first update of each stage, and the first update in each new
// percentage bucket. Not safe for concurrent use.
type ProgressSampler struct {
	bucketSize float64
	stage      string
	bucket     int
}

// NewProgressSampler returns a sampler with buckets of bucketSize percent.
// Non-positive sizes fall back to 10.
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 10
	}
	s := &ProgressSampler{bucketSize: bucketSize}
	s.Reset()
	return s
}

// ShouldLog reports whether an update at percent (0-100) for stage should be
// logged. A negative percent is unknown progress; only a stage change logs it.
// A nil sampler logs everything.
func (s *ProgressSampler) ShouldLog(percent float64, stage string) bool {
	if s == nil {
		return true
	}
	changed := false
	if stage = strings.TrimSpace(stage); stage != "" && stage != s.stage {
		s.stage = stage
		s.bucket = -1
		changed = true
	}
	if percent < 0 {
		return changed
	}
	bucket := int(math.Floor(min(percent, 100) / s.bucketSize))
	if bucket <= s.bucket {
		return changed
	}
	s.bucket = bucket
	return true
}

// Reset forgets the last stage and bucket, e.g. after a worker restart.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.stage = ""
	s.bucket = -1
}
