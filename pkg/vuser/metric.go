package vuser

import "time"

// MetricRecord is one completed HTTP call, recorded by a Context after
// every request regardless of outcome.
type MetricRecord struct {
	Name     string
	Method   string
	Path     string
	Status   int
	Duration time.Duration
	Success  bool
	Error    string
	At       time.Time
}

// ScenarioError is recorded when a screen or Access hook returns an error.
// It does not stop the virtual user; the executor absorbs it and continues
// to the next step.
type ScenarioError struct {
	Screen string
	Err    error
	At     time.Time
}

func (e ScenarioError) Error() string {
	return e.Err.Error()
}
