package models

import "time"

// JobHistory records one run of a background job.
type JobHistory struct {
	ID         int        `db:"id" json:"id"`
	JobKey     string     `db:"job_key" json:"jobKey"`
	Failed     bool       `db:"failed" json:"failed"`
	StartedAt  time.Time  `db:"started_at" json:"startedAt"`
	FinishedAt *time.Time `db:"finished_at" json:"finishedAt,omitempty"`
}

// JobInfo describes a registered job.
type JobInfo struct {
	Key         string        `json:"key"`
	Description string        `json:"description"`
	Interval    time.Duration `json:"-"`
	IntervalStr string        `json:"interval"`
	Running     bool          `json:"running"`
	LastRun     *JobHistory   `json:"lastRun,omitempty"`
}
