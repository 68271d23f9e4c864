package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the wire format of calendar dates (PostgREST date columns, query params).
const DateLayout = "2006-01-02"

// Date is a calendar date with no time component. The zero Date means "unset".
type Date struct {
	t time.Time
}

// NewDate returns the calendar date y-m-d.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// ParseDate parses YYYY-MM-DD. An empty string yields the zero Date.
// Timestamps are accepted too and truncated to their date.
func ParseDate(s string) (Date, error) {
	if s == "" {
		return Date{}, nil
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return DateOf(t), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return DateOf(t), nil
	}
	return Date{}, &ErrValidation{Field: "date", Message: fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", s)}
}

// IsZero reports whether d is unset.
func (d Date) IsZero() bool { return d.t.IsZero() }

// Time returns midnight UTC of d.
func (d Date) Time() time.Time { return d.t }

// Year, Month and Day expose the calendar fields.
func (d Date) Year() int { return d.t.Year() }

func (d Date) Month() time.Month { return d.t.Month() }

func (d Date) Day() int { return d.t.Day() }

func (d Date) Weekday() time.Weekday { return d.t.Weekday() }

// AddDays returns d shifted by n days.
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

// Before reports whether d is strictly before o.
func (d Date) Before(o Date) bool { return d.t.Before(o.t) }

// After reports whether d is strictly after o.
func (d Date) After(o Date) bool { return d.t.After(o.t) }

// Equal reports whether d and o are the same day.
func (d Date) Equal(o Date) bool { return d.t.Equal(o.t) }

// String renders YYYY-MM-DD, or "" for the zero Date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(DateLayout)
}

// ShortLabel renders dd/MM/yyyy, the export format.
func (d Date) ShortLabel() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format("02/01/2006")
}

var frenchMonths = [...]string{
	"janvier", "février", "mars", "avril", "mai", "juin",
	"juillet", "août", "septembre", "octobre", "novembre", "décembre",
}

// LongLabel renders "19 octobre 2026", the table format.
func (d Date) LongLabel() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%02d %s %d", d.Day(), frenchMonths[d.Month()-1], d.Year())
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ============================================================
// Date ranges
// ============================================================

// DateRange is an inclusive [Start, End] window. Either bound may be unset.
type DateRange struct {
	Start Date `json:"startDate"`
	End   Date `json:"endDate"`
}

// Complete reports whether both bounds are set.
func (r DateRange) Complete() bool {
	return !r.Start.IsZero() && !r.End.IsZero()
}

// Contains reports whether d falls inside r; unset bounds are open.
func (r DateRange) Contains(d Date) bool {
	if !r.Start.IsZero() && d.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && d.After(r.End) {
		return false
	}
	return true
}

// Bound selects one end of a DateRange.
type Bound string

const (
	BoundStart Bound = "start"
	BoundEnd   Bound = "end"
)

// ParseBound accepts "start"/"startDate" and "end"/"endDate".
func ParseBound(s string) (Bound, error) {
	switch s {
	case "start", "startDate":
		return BoundStart, nil
	case "end", "endDate":
		return BoundEnd, nil
	}
	return "", &ErrValidation{Field: "bound", Message: "must be start or end"}
}

// With returns r with the given bound replaced.
func (r DateRange) With(b Bound, value Date) DateRange {
	if b == BoundStart {
		r.Start = value
	} else {
		r.End = value
	}
	return r
}

// ============================================================
// Imported filter (tri-state)
// ============================================================

// ImportedFilter constrains the importe flag: unset, true or false.
type ImportedFilter int

const (
	ImportedAny ImportedFilter = iota
	ImportedOnly
	NotImportedOnly
)

// ImportedFilterOf converts an optional bool into a filter.
func ImportedFilterOf(v *bool) ImportedFilter {
	switch {
	case v == nil:
		return ImportedAny
	case *v:
		return ImportedOnly
	default:
		return NotImportedOnly
	}
}

// Value returns the flag to match and whether a constraint is set.
func (f ImportedFilter) Value() (imported bool, ok bool) {
	switch f {
	case ImportedOnly:
		return true, true
	case NotImportedOnly:
		return false, true
	}
	return false, false
}

// Matches reports whether a record with the given flag passes the filter.
func (f ImportedFilter) Matches(imported bool) bool {
	want, ok := f.Value()
	return !ok || want == imported
}

func (f ImportedFilter) MarshalJSON() ([]byte, error) {
	v, ok := f.Value()
	if !ok {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

func (f *ImportedFilter) UnmarshalJSON(b []byte) error {
	var v *bool
	if err := json.Unmarshal(b, &v); err != nil {
		return &ErrValidation{Field: "imported", Message: "must be true, false or null"}
	}
	*f = ImportedFilterOf(v)
	return nil
}
