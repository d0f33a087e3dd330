package domain

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

const NoValidDatesMessage = "no valid dates found in the specified range"

// Result is the summary a worker computes for one job.
type Result struct {
	TotalRecords    int         `json:"total_records"`
	EarliestDate    *string     `json:"earliest_date"`
	LatestDate      *string     `json:"latest_date"`
	YearlyBreakdown map[int]int `json:"yearly_breakdown"`
	Message         string      `json:"message,omitempty"`
}

func (r *Result) NoValidDates() bool { return r.TotalRecords == 0 }

// Marshal encodes the result deterministically; map keys come out sorted.
func (r *Result) Marshal() ([]byte, error) {
	b, err := json.Marshal(r)
	return b, errors.Wrap(err, "encode result")
}

func UnmarshalResult(b []byte) (*Result, error) {
	var r Result
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, errors.Wrap(err, "decode result")
	}
	if r.YearlyBreakdown == nil {
		r.YearlyBreakdown = map[int]int{}
	}
	return &r, nil
}

// Summary accumulates parsed approval dates into a Result.
type Summary struct {
	count    int
	earliest time.Time
	latest   time.Time
	years    map[int]int
}

func NewSummary() *Summary { return &Summary{years: map[int]int{}} }

func (s *Summary) Add(t time.Time) {
	if s.count == 0 || t.Before(s.earliest) {
		s.earliest = t
	}
	if s.count == 0 || t.After(s.latest) {
		s.latest = t
	}
	s.count++
	s.years[t.Year()]++
}

func (s *Summary) Result() *Result {
	r := &Result{TotalRecords: s.count, YearlyBreakdown: make(map[int]int, len(s.years))}
	for y, n := range s.years {
		r.YearlyBreakdown[y] = n
	}
	if s.count == 0 {
		r.Message = NoValidDatesMessage
		return r
	}
	earliest, latest := s.earliest.Format(DateLayout), s.latest.Format(DateLayout)
	r.EarliestDate, r.LatestDate = &earliest, &latest
	return r
}
