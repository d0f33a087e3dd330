package domain

import (
	"time"

	"github.com/pkg/errors"
)

type Status string

const (
	Submitted  Status = "submitted"
	InProgress Status = "in_progress"
	Complete   Status = "complete"
)

func (s Status) rank() int {
	switch s {
	case Submitted:
		return 0
	case InProgress:
		return 1
	case Complete:
		return 2
	}
	return -1
}

func (s Status) Valid() bool { return s.rank() >= 0 }

// Transition returns the status a record in state s holds after a request to
// move it to next. Requests at or below the current rank leave it unchanged,
// so a redelivered job never regresses.
func (s Status) Transition(next Status) (Status, error) {
	if !s.Valid() || !next.Valid() {
		return s, errors.Wrapf(ErrInvalidTransition, "%q -> %q", s, next)
	}
	switch {
	case next.rank() <= s.rank():
		return s, nil
	case next.rank() == s.rank()+1:
		return next, nil
	default:
		return s, errors.Wrapf(ErrInvalidTransition, "%q -> %q", s, next)
	}
}

type Job struct {
	ID         string    `json:"id"`
	Status     Status    `json:"status"`
	RangeStart string    `json:"range_start"`
	RangeEnd   string    `json:"range_end"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Range returns the parsed bounds of the job. Order is not rechecked here;
// a stored job with equal bounds covers exactly one gene.
func (j *Job) Range() (Range, error) {
	return ParseBounds(j.RangeStart, j.RangeEnd)
}
