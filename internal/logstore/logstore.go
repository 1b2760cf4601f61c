// Package logstore persists measurement records on an append-only medium.
// Every operation is best effort: the station keeps measuring when the
// medium is missing or a write fails.
package logstore

import (
	"errors"
	"fmt"
	"time"

	"github.com/relabs-tech/bat_weather/internal/snapshot"
)

// ErrUnavailable is returned when the medium is not present.
var ErrUnavailable = errors.New("log medium unavailable")

// Handle identifies an open log.
type Handle interface {
	Name() string
}

// Medium is an append-only store of text lines.
type Medium interface {
	Open(name string) (Handle, error)
	Append(h Handle, line string) error
	Close() error
}

// Header is the first line of every run log.
const Header = "Date,Time,Temp,Hum,Pres,WindAvg,Lat,Lon"

// FileName returns the run log name for a start time: /DDMMYY-HHMM.csv.
func FileName(t time.Time) string {
	return fmt.Sprintf("/%02d%02d%02d-%02d%02d.csv",
		t.Day(), int(t.Month()), t.Year()%100, t.Hour(), t.Minute())
}

// Record formats one CSV row for a snapshot. Rows without an environment
// reading carry empty readings so the column count stays fixed.
func Record(s snapshot.Snapshot) string {
	t := s.Taken
	stamp := fmt.Sprintf("%02d.%02d.%04d,%02d:%02d:%02d",
		t.Day(), int(t.Month()), t.Year(), t.Hour(), t.Minute(), t.Second())

	readings := ",,"
	if s.HasEnvironment {
		readings = fmt.Sprintf("%.2f,%.1f,%.1f",
			s.Environment.Temperature, s.Environment.Humidity, s.Environment.Pressure)
	}

	return fmt.Sprintf("%s,%s,%.2f,%.6f,%.6f",
		stamp, readings, s.Wind.Average, s.Location.Latitude, s.Location.Longitude)
}

// Run is the log of one measurement run.
type Run struct {
	medium Medium
	handle Handle

	appended uint64
	failed   uint64
}

// OpenRun opens the log for a run started at start and writes the header.
func OpenRun(m Medium, start time.Time) (*Run, error) {
	if m == nil {
		return nil, ErrUnavailable
	}
	h, err := m.Open(FileName(start))
	if err != nil {
		return nil, fmt.Errorf("open run log: %w", err)
	}
	if err := m.Append(h, Header); err != nil {
		return nil, fmt.Errorf("write run log header: %w", err)
	}
	return &Run{medium: m, handle: h}, nil
}

// Name returns the log name.
func (r *Run) Name() string { return r.handle.Name() }

// Append writes the record for s. The error is returned for accounting
// only; callers do not retry.
func (r *Run) Append(s snapshot.Snapshot) error {
	if err := r.medium.Append(r.handle, Record(s)); err != nil {
		r.failed++
		return err
	}
	r.appended++
	return nil
}

// Counts returns the number of appended and failed records.
func (r *Run) Counts() (appended, failed uint64) {
	return r.appended, r.failed
}
