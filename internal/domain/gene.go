package domain

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	// GeneIDField and GeneDateField name the HGNC record attributes the
	// pipeline reads; everything else in a record is carried opaquely.
	GeneIDField   = "hgnc_id"
	GeneDateField = "date_approved_reserved"

	DateLayout = "1/2/2006"
	isoLayout  = "2006-01-02"
)

var geneIDPattern = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9_]*):(\d+)$`)

// GeneID is a parsed `<namespace>:<integer>` identifier.
type GeneID struct {
	Namespace string
	Number    int64
}

// IsGeneID reports whether s has the `<namespace>:<integer>` shape.
func IsGeneID(s string) bool { return geneIDPattern.MatchString(s) }

func ParseGeneID(s string) (GeneID, error) {
	m := geneIDPattern.FindStringSubmatch(s)
	if m == nil {
		return GeneID{}, errors.Errorf("malformed gene id %q", s)
	}
	n, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return GeneID{}, errors.Wrapf(err, "gene id %q", s)
	}
	return GeneID{Namespace: m[1], Number: n}, nil
}

// Range is an inclusive bound on the numeric suffix of gene ids in one namespace.
type Range struct {
	Namespace string
	Start     int64
	End       int64
}

// ParseBounds parses both bounds of a range and checks they share a
// namespace. Equal bounds are allowed and select a single gene.
func ParseBounds(start, end string) (Range, error) {
	s, err := ParseGeneID(start)
	if err != nil {
		return Range{}, &ValidationError{Field: "range_start", Reason: "must match <namespace>:<integer>"}
	}
	e, err := ParseGeneID(end)
	if err != nil {
		return Range{}, &ValidationError{Field: "range_end", Reason: "must match <namespace>:<integer>"}
	}
	if s.Namespace != e.Namespace {
		return Range{}, &ValidationError{Field: "range_end", Reason: "namespace must match range_start"}
	}
	return Range{Namespace: s.Namespace, Start: s.Number, End: e.Number}, nil
}

// ParseRange validates a range for submission. On top of ParseBounds the
// start must be strictly lower than the end.
func ParseRange(start, end string) (Range, error) {
	rng, err := ParseBounds(start, end)
	if err != nil {
		return Range{}, err
	}
	if rng.Start >= rng.End {
		return Range{}, &ValidationError{Field: "range_start", Reason: "must be lower than range_end"}
	}
	return rng, nil
}

// Contains reports whether id belongs to the range. Malformed ids never do.
func (r Range) Contains(id string) bool {
	g, err := ParseGeneID(id)
	if err != nil {
		return false
	}
	return g.Namespace == r.Namespace && g.Number >= r.Start && g.Number <= r.End
}

// Gene is a dataset record. Raw holds the full document as loaded.
type Gene struct {
	ID           string
	DateApproved string
	Raw          json.RawMessage
}

func DecodeGene(raw []byte) (*Gene, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, errors.Wrap(err, "decode gene")
	}
	g := &Gene{Raw: append(json.RawMessage(nil), raw...)}
	if v, ok := fields[GeneIDField]; ok {
		_ = json.Unmarshal(v, &g.ID)
	}
	if v, ok := fields[GeneDateField]; ok {
		// non-string dates are treated as missing
		_ = json.Unmarshal(v, &g.DateApproved)
	}
	return g, nil
}

// ParseDate accepts month/day/year first, then ISO year-month-day.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrEmptyDate
	}
	for _, layout := range []string{DateLayout, isoLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Errorf("cannot parse date %q", s)
}
