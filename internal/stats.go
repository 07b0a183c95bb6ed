package internal

import (
	"sync/atomic"
	"time"
)

// AppStats atomic counters for totals
type AppStats struct {
	start          time.Time
	SourcesFound   atomic.Int64
	SourcesScanned atomic.Int64
	Bytes          atomic.Int64
	Strings        atomic.Int64
	Patterns       atomic.Int64
	Errors         atomic.Int64
}

func (s *AppStats) Start() {
	s.start = time.Now()
}

func (s *AppStats) Elapsed() time.Duration {
	return time.Since(s.start)
}
