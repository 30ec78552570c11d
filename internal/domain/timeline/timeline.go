// Package timeline maps calendar time onto timeline geometry and back.
package timeline

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/aeonplan/core/internal/domain/entities"
)

const day = 24 * time.Hour

var (
	ErrInvalidScale    = errors.New("timeline: invalid time scale")
	ErrInvalidWindow   = errors.New("timeline: window end is before start")
	ErrWindowTooLarge  = errors.New("timeline: window produces too many columns")
	ErrInvalidGeometry = errors.New("timeline: invalid geometry configuration")
)

// Config holds the design constants of the grid.
type Config struct {
	DayWidth    float64
	WeekWidth   float64
	MonthWidth  float64
	RowHeight   float64
	MinBarWidth float64
	Gutter      float64
	WeekStart   time.Weekday
	MaxColumns  int
}

func DefaultConfig() Config {
	return Config{
		DayWidth:    60,
		WeekWidth:   100,
		MonthWidth:  150,
		RowHeight:   56,
		MinBarWidth: 40,
		Gutter:      8,
		WeekStart:   time.Sunday,
		MaxColumns:  3660,
	}
}

// Projection converts between dates and pixels for a fixed Config.
type Projection struct {
	cfg Config
}

func New(cfg Config) (*Projection, error) {
	if cfg.DayWidth <= 0 || cfg.WeekWidth <= 0 || cfg.MonthWidth <= 0 || cfg.RowHeight <= 0 {
		return nil, fmt.Errorf("%w: bucket widths and row height must be positive", ErrInvalidGeometry)
	}
	if cfg.MinBarWidth < 0 || cfg.Gutter < 0 {
		return nil, fmt.Errorf("%w: min width and gutter must not be negative", ErrInvalidGeometry)
	}
	if cfg.MaxColumns <= 0 {
		cfg.MaxColumns = DefaultConfig().MaxColumns
	}
	return &Projection{cfg: cfg}, nil
}

func (p *Projection) Config() Config {
	return p.cfg
}

// BucketWidth is the pixel width of one column at the given scale.
func (p *Projection) BucketWidth(scale entities.TimeScale) float64 {
	switch scale {
	case entities.TimeScaleDay:
		return p.cfg.DayWidth
	case entities.TimeScaleWeek:
		return p.cfg.WeekWidth
	case entities.TimeScaleMonth:
		return p.cfg.MonthWidth
	}
	return 0
}

// DaysPerBucket approximates a bucket in days for drag conversion.
func DaysPerBucket(scale entities.TimeScale) int {
	switch scale {
	case entities.TimeScaleDay:
		return 1
	case entities.TimeScaleWeek:
		return 7
	case entities.TimeScaleMonth:
		return 30
	}
	return 0
}

// Window is the visible calendar range, inclusive on both ends.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (w Window) Validate() error {
	if w.End.Before(w.Start) {
		return ErrInvalidWindow
	}
	return nil
}

// Column is one bucket of the header.
type Column struct {
	Start    time.Time `json:"start"`
	Label    string    `json:"label"`
	SubLabel string    `json:"sub_label"`
	Offset   float64   `json:"offset"`
	Width    float64   `json:"width"`
}

// Columns lists the buckets covering the window.
func (p *Projection) Columns(scale entities.TimeScale, w Window) ([]Column, error) {
	if !scale.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidScale, scale)
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}

	width := p.BucketWidth(scale)
	last := civil(w.End)
	cur := p.bucketStart(scale, w.Start)

	var cols []Column
	for !cur.After(last) {
		if len(cols) == p.cfg.MaxColumns {
			return nil, fmt.Errorf("%w: more than %d", ErrWindowTooLarge, p.cfg.MaxColumns)
		}
		label, sub := columnLabels(scale, cur)
		cols = append(cols, Column{
			Start:    cur,
			Label:    label,
			SubLabel: sub,
			Offset:   float64(len(cols)) * width,
			Width:    width,
		})
		cur = nextBucket(scale, cur)
	}
	return cols, nil
}

// CanvasWidth is the full pixel width of the grid for the window.
func (p *Projection) CanvasWidth(scale entities.TimeScale, w Window) (float64, error) {
	cols, err := p.Columns(scale, w)
	if err != nil {
		return 0, err
	}
	return float64(len(cols)) * p.BucketWidth(scale), nil
}

// Geometry is a bar's placement in pixels.
type Geometry struct {
	Offset float64 `json:"offset"`
	Width  float64 `json:"width"`
	Top    float64 `json:"top"`
}

// Geometry places a bar spanning [start, end] on row rowIndex.
func (p *Projection) Geometry(scale entities.TimeScale, windowStart, start, end time.Time, rowIndex int) (Geometry, error) {
	if !scale.IsValid() {
		return Geometry{}, fmt.Errorf("%w: %q", ErrInvalidScale, scale)
	}
	width := p.BucketWidth(scale)

	var offset, span int
	switch scale {
	case entities.TimeScaleDay:
		offset = DaysBetween(windowStart, start)
		span = DaysBetween(start, end) + 1
	case entities.TimeScaleWeek:
		offset = floorDiv(DaysBetween(windowStart, start), 7)
		span = ceilDiv(DaysBetween(start, end), 7) + 1
	case entities.TimeScaleMonth:
		offset = MonthsBetween(windowStart, start)
		span = MonthsBetween(start, end) + 1
	}
	if span < 1 {
		span = 1
	}

	return Geometry{
		Offset: float64(offset) * width,
		Width:  math.Max(float64(span)*width-p.cfg.Gutter, p.cfg.MinBarWidth),
		Top:    float64(rowIndex) * p.cfg.RowHeight,
	}, nil
}

// DayDelta converts a horizontal drag distance into whole days. Halves round
// away from zero.
func (p *Projection) DayDelta(dx float64, scale entities.TimeScale) int {
	width := p.BucketWidth(scale)
	if width == 0 || dx == 0 {
		return 0
	}
	return int(math.Round(dx / width * float64(DaysPerBucket(scale))))
}

// RowAt maps a vertical pixel position to a row index, or -1 above the grid.
func (p *Projection) RowAt(y float64) int {
	if y < 0 {
		return -1
	}
	return int(y / p.cfg.RowHeight)
}

// Shift moves both ends by the same number of days so the duration is unchanged.
func Shift(start, end time.Time, days int) (time.Time, time.Time) {
	d := time.Duration(days) * day
	return start.Add(d), end.Add(d)
}

// DaysBetween is the calendar-day difference b - a, ignoring time of day.
func DaysBetween(a, b time.Time) int {
	return int(civil(b).Sub(civil(a)) / day)
}

// MonthsBetween counts full calendar months from a to b.
func MonthsBetween(a, b time.Time) int {
	months := (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
	switch {
	case months > 0 && b.Day() < a.Day():
		months--
	case months < 0 && b.Day() > a.Day():
		months++
	}
	return months
}

func (p *Projection) bucketStart(scale entities.TimeScale, t time.Time) time.Time {
	d := civil(t)
	switch scale {
	case entities.TimeScaleWeek:
		back := (int(d.Weekday()) - int(p.cfg.WeekStart) + 7) % 7
		return d.AddDate(0, 0, -back)
	case entities.TimeScaleMonth:
		return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return d
}

func nextBucket(scale entities.TimeScale, t time.Time) time.Time {
	switch scale {
	case entities.TimeScaleWeek:
		return t.AddDate(0, 0, 7)
	case entities.TimeScaleMonth:
		return t.AddDate(0, 1, 0)
	}
	return t.AddDate(0, 0, 1)
}

func columnLabels(scale entities.TimeScale, t time.Time) (string, string) {
	switch scale {
	case entities.TimeScaleWeek:
		_, week := t.ISOWeek()
		return t.Format("Jan 2"), fmt.Sprintf("Week %d", week)
	case entities.TimeScaleMonth:
		return t.Format("January"), t.Format("2006")
	}
	return t.Format("Mon 2"), t.Format("Jan")
}

// civil drops the clock and zone, keeping the calendar date of t in its own location.
func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func ceilDiv(a, b int) int {
	return -floorDiv(-a, b)
}
