package convert

import (
	"fmt"
	"time"
)

// State is a conversion job's lifecycle position.
type State int

const (
	Submitted State = iota
	Processing
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Submitted:
		return "submitted"
	case Processing:
		return "processing"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Remote status values with a defined meaning. Anything else means wait.
const (
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusProcessing = "processing"
	StatusPending    = "pending"
)

// Job tracks one upload on the conversion service. It only moves forward
// through Observe and Expire, and never leaves Completed or Failed.
type Job struct {
	ID             string
	State          State
	CreatedAt      time.Time
	ResultLocation string // Download path once Completed
	Reason         string // Why the job failed
	Polls          int
}

func newJob(id string) *Job {
	return &Job{ID: id, State: Submitted, CreatedAt: time.Now()}
}

// Terminal reports whether the job reached Completed or Failed.
func (j *Job) Terminal() bool {
	return j.State == Completed || j.State == Failed
}

// Observe applies one remote status report.
func (j *Job) Observe(status, reason string) {
	if j.Terminal() {
		return
	}
	switch status {
	case StatusCompleted:
		j.State = Completed
		j.ResultLocation = fmt.Sprintf("/download/%s", j.ID)
	case StatusFailed:
		j.State = Failed
		j.Reason = reason
		if j.Reason == "" {
			j.Reason = "unknown conversion error"
		}
	default:
		j.State = Processing
	}
}

// Expire fails the job locally after the poll budget ran out.
func (j *Job) Expire() {
	if j.Terminal() {
		return
	}
	j.State = Failed
	j.Reason = fmt.Sprintf("no result after %d polls", j.Polls)
}
