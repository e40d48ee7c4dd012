package database

import (
	"time"
)

type Run struct {
	ID               int64
	StartedAt        time.Time
	FinishedAt       time.Time
	Watermark        time.Time
	WatermarkFromEnv bool // false when the default window was used
	Sources          int
	FailedSources    int
	Items            int // items after the watermark filter
	Chunks           int
	Delivered        bool
	Error            string
}

type SourceReport struct {
	ID       int64
	RunID    int64
	Source   string
	Section  string
	Endpoint string
	Seen     int
	Dated    int
	Valid    int
	Kept     int
	Duration time.Duration
	Error    string
}
