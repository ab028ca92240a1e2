// Package core provides the record, row and date-range types shared by the
// gkgsynth generator, merge engine and validator.
package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the partition key layout (YYYYMMDD).
const DateLayout = "20060102"

// Column identifies a position in the fixed partition header.
type Column int

const (
	ColDate Column = iota
	ColNumArts
	ColCounts
	ColThemes
	ColLocations
	ColPersons
	ColOrganizations
	ColTone
	ColCameoEventIDs
	ColSources
	ColSourceURLs
)

// Columns is the fixed partition header, in file order.
var Columns = []string{
	"DATE",
	"NUMARTS",
	"COUNTS",
	"THEMES",
	"LOCATIONS",
	"PERSONS",
	"ORGANIZATIONS",
	"TONE",
	"CAMEOEVENTIDS",
	"SOURCES",
	"SOURCEURLS",
}

// NumColumns is len(Columns).
const NumColumns = 11

// String returns the header name of the column.
func (c Column) String() string {
	if c < 0 || int(c) >= NumColumns {
		return fmt.Sprintf("Column(%d)", int(c))
	}
	return Columns[c]
}

// Record is one knowledge-graph event.
type Record struct {
	// Date is the partition key, formatted with DateLayout.
	Date string `arrow:"DATE" json:"date"`

	// ArticleCount must be 1 for every record in the dataset.
	ArticleCount int64 `arrow:"NUMARTS" json:"article_count"`

	// CountsAnnotation is either empty or "ACTION#LOCATION;".
	CountsAnnotation string `arrow:"COUNTS" json:"counts_annotation"`

	Themes        string `arrow:"THEMES" json:"themes"`
	Locations     string `arrow:"LOCATIONS" json:"locations"`
	Persons       string `arrow:"PERSONS" json:"persons"`
	Organizations string `arrow:"ORGANIZATIONS" json:"organizations"`

	// Tone holds six comma-joined numbers.
	Tone string `arrow:"TONE" json:"tone"`

	// CameoEventIDs holds 3-8 comma-joined numeric ids.
	CameoEventIDs string `arrow:"CAMEOEVENTIDS" json:"cameo_event_ids"`

	SourceDomain string `arrow:"SOURCES" json:"source_domain"`
	SourceURL    string `arrow:"SOURCEURLS" json:"source_url"`
}

// Row is a record rendered as strings in canonical column order.
type Row []string

// Get returns the value at column c, or "" when the row is short.
func (r Row) Get(c Column) string {
	if int(c) >= len(r) {
		return ""
	}
	return r[c]
}

// Row renders the record in canonical column order.
func (r Record) Row() Row {
	return Row{
		r.Date,
		strconv.FormatInt(r.ArticleCount, 10),
		r.CountsAnnotation,
		r.Themes,
		r.Locations,
		r.Persons,
		r.Organizations,
		r.Tone,
		r.CameoEventIDs,
		r.SourceDomain,
		r.SourceURL,
	}
}

// RecordFromRow parses a canonical row back into a Record.
func RecordFromRow(row Row) (Record, error) {
	if len(row) != NumColumns {
		return Record{}, fmt.Errorf("%w: row has %d fields, expected %d", ErrMalformedInput, len(row), NumColumns)
	}
	numArts, err := ParseArticleCount(row[ColNumArts])
	if err != nil {
		return Record{}, err
	}
	return Record{
		Date:             row[ColDate],
		ArticleCount:     numArts,
		CountsAnnotation: row[ColCounts],
		Themes:           row[ColThemes],
		Locations:        row[ColLocations],
		Persons:          row[ColPersons],
		Organizations:    row[ColOrganizations],
		Tone:             row[ColTone],
		CameoEventIDs:    row[ColCameoEventIDs],
		SourceDomain:     row[ColSources],
		SourceURL:        row[ColSourceURLs],
	}, nil
}

// ParseArticleCount parses a NUMARTS cell. Integral float renderings such as
// "1.0" are accepted.
func ParseArticleCount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int64(f)) {
		return 0, fmt.Errorf("%w: NUMARTS value %q is not an integer", ErrMalformedInput, s)
	}
	return int64(f), nil
}

// ParseDate validates an 8-digit YYYYMMDD partition key.
func ParseDate(s string) (time.Time, error) {
	if len(s) != len(DateLayout) {
		return time.Time{}, fmt.Errorf("%w: date %q is not in YYYYMMDD form", ErrInvalidArgument, s)
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return time.Time{}, fmt.Errorf("%w: date %q is not in YYYYMMDD form", ErrInvalidArgument, s)
		}
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q is not a calendar date", ErrInvalidArgument, s)
	}
	return t, nil
}

// FormatDate renders t as a partition key.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// DateRange is an inclusive range of calendar days.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// ParseDateRange parses two partition keys into an inclusive range.
func ParseDateRange(start, end string) (DateRange, error) {
	s, err := ParseDate(start)
	if err != nil {
		return DateRange{}, err
	}
	e, err := ParseDate(end)
	if err != nil {
		return DateRange{}, err
	}
	dr := DateRange{Start: s, End: e}
	if err := dr.Validate(); err != nil {
		return DateRange{}, err
	}
	return dr, nil
}

// Validate rejects empty or inverted ranges.
func (dr DateRange) Validate() error {
	if dr.Start.IsZero() || dr.End.IsZero() {
		return fmt.Errorf("%w: date range is empty", ErrInvalidArgument)
	}
	if dr.End.Before(dr.Start) {
		return fmt.Errorf("%w: date range end %s is before start %s",
			ErrInvalidArgument, FormatDate(dr.End), FormatDate(dr.Start))
	}
	return nil
}

// Days returns the number of calendar days in the range.
func (dr DateRange) Days() int {
	if dr.Validate() != nil {
		return 0
	}
	return len(dr.Dates())
}

// Dates returns every day in the range as a partition key, ascending.
func (dr DateRange) Dates() []string {
	if dr.Validate() != nil {
		return nil
	}
	var dates []string
	for d := dr.Start; !d.After(dr.End); d = d.AddDate(0, 0, 1) {
		dates = append(dates, FormatDate(d))
	}
	return dates
}

// Contains reports whether the partition key falls inside the range.
func (dr DateRange) Contains(date string) bool {
	t, err := ParseDate(date)
	if err != nil {
		return false
	}
	return !t.Before(dr.Start) && !t.After(dr.End)
}

// String renders the range as "YYYYMMDD-YYYYMMDD".
func (dr DateRange) String() string {
	return FormatDate(dr.Start) + "-" + FormatDate(dr.End)
}
