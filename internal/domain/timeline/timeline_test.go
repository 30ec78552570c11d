package timeline

import (
	"errors"
	"testing"
	"time"

	"github.com/aeonplan/core/internal/domain/entities"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newProjection(t *testing.T) *Projection {
	t.Helper()
	p, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestWeekDragLeftAcrossYear(t *testing.T) {
	p := newProjection(t)
	windowStart := date(2024, time.January, 1) // a Monday
	start, end := date(2024, time.January, 8), date(2024, time.January, 12)

	g, err := p.Geometry(entities.TimeScaleWeek, windowStart, start, end, 0)
	if err != nil {
		t.Fatal(err)
	}
	if g.Offset != 100 {
		t.Fatalf("expected offset of one week bucket, got %v", g.Offset)
	}

	days := p.DayDelta(-150, entities.TimeScaleWeek)
	if days != -11 {
		t.Fatalf("expected -11 days, got %d", days)
	}
	newStart, newEnd := Shift(start, end, days)
	if !newStart.Equal(date(2023, time.December, 28)) {
		t.Fatalf("expected Dec 28, got %v", newStart)
	}
	if !newEnd.Equal(date(2024, time.January, 1)) {
		t.Fatalf("expected end shifted by 11 days, got %v", newEnd)
	}
}

func TestGeometry(t *testing.T) {
	p := newProjection(t)
	ws := date(2024, time.January, 1)

	tests := []struct {
		name       string
		scale      entities.TimeScale
		start, end time.Time
		row        int
		want       Geometry
	}{
		{
			name: "single day", scale: entities.TimeScaleDay,
			start: date(2024, time.January, 3), end: date(2024, time.January, 3), row: 0,
			want: Geometry{Offset: 120, Width: 52, Top: 0},
		},
		{
			name: "three days on third row", scale: entities.TimeScaleDay,
			start: date(2024, time.January, 2), end: date(2024, time.January, 4), row: 3,
			want: Geometry{Offset: 60, Width: 172, Top: 168},
		},
		{
			name: "two week span", scale: entities.TimeScaleWeek,
			start: date(2024, time.January, 15), end: date(2024, time.January, 24), row: 1,
			want: Geometry{Offset: 200, Width: 292, Top: 56},
		},
		{
			name: "partial week rounds up", scale: entities.TimeScaleWeek,
			start: date(2024, time.January, 8), end: date(2024, time.January, 11), row: 0,
			want: Geometry{Offset: 100, Width: 192, Top: 0},
		},
		{
			name: "exact week", scale: entities.TimeScaleWeek,
			start: date(2024, time.January, 8), end: date(2024, time.January, 15), row: 0,
			want: Geometry{Offset: 100, Width: 192, Top: 0},
		},
		{
			name: "single day on week scale", scale: entities.TimeScaleWeek,
			start: date(2024, time.January, 8), end: date(2024, time.January, 8), row: 0,
			want: Geometry{Offset: 100, Width: 92, Top: 0},
		},
		{
			name: "partial month", scale: entities.TimeScaleMonth,
			start: date(2024, time.March, 15), end: date(2024, time.April, 10), row: 0,
			want: Geometry{Offset: 300, Width: 142, Top: 0},
		},
		{
			name: "full months", scale: entities.TimeScaleMonth,
			start: date(2024, time.February, 1), end: date(2024, time.April, 1), row: 0,
			want: Geometry{Offset: 150, Width: 442, Top: 0},
		},
		{
			name: "before the window", scale: entities.TimeScaleDay,
			start: date(2023, time.December, 30), end: date(2023, time.December, 31), row: 0,
			want: Geometry{Offset: -120, Width: 112, Top: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Geometry(tt.scale, ws, tt.start, tt.end, tt.row)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Fatalf("Geometry() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestGeometryClampsToMinimumWidth(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DayWidth = 30
	p, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	d := date(2024, time.May, 5)
	g, err := p.Geometry(entities.TimeScaleDay, d, d, d, 0)
	if err != nil {
		t.Fatal(err)
	}
	if g.Width != cfg.MinBarWidth {
		t.Fatalf("expected min width %v, got %v", cfg.MinBarWidth, g.Width)
	}
}

func TestZeroDeltaRoundTrip(t *testing.T) {
	p := newProjection(t)
	start := time.Date(2024, time.June, 3, 9, 30, 0, 0, time.UTC)
	end := start.Add(50 * time.Hour)

	for _, scale := range []entities.TimeScale{entities.TimeScaleDay, entities.TimeScaleWeek, entities.TimeScaleMonth} {
		if _, err := p.Geometry(scale, date(2024, time.June, 1), start, end, 2); err != nil {
			t.Fatal(err)
		}
		days := p.DayDelta(0, scale)
		s, e := Shift(start, end, days)
		if !s.Equal(start) || !e.Equal(end) {
			t.Fatalf("%s: zero delta moved the task", scale)
		}
	}
}

func TestSubDayMotionIsNoop(t *testing.T) {
	p := newProjection(t)
	if d := p.DayDelta(29, entities.TimeScaleDay); d != 0 {
		t.Fatalf("expected 0, got %d", d)
	}
	if d := p.DayDelta(7, entities.TimeScaleWeek); d != 0 {
		t.Fatalf("expected 0, got %d", d)
	}
	if d := p.DayDelta(30, entities.TimeScaleDay); d != 1 {
		t.Fatalf("expected half a bucket to round up, got %d", d)
	}
}

func TestShiftPreservesDuration(t *testing.T) {
	start := time.Date(2024, time.February, 27, 13, 0, 0, 0, time.UTC)
	end := start.Add(73 * time.Hour)
	for _, d := range []int{-400, -31, -1, 1, 2, 29, 365} {
		s, e := Shift(start, end, d)
		if e.Sub(s) != end.Sub(start) {
			t.Fatalf("shift %d changed duration", d)
		}
		if DaysBetween(start, s) != d {
			t.Fatalf("shift %d moved start by %d days", d, DaysBetween(start, s))
		}
	}
}

func TestColumns(t *testing.T) {
	p := newProjection(t)
	w := Window{Start: date(2024, time.January, 1), End: date(2024, time.January, 31)}

	days, err := p.Columns(entities.TimeScaleDay, w)
	if err != nil {
		t.Fatal(err)
	}
	if len(days) != 31 {
		t.Fatalf("expected 31 day columns, got %d", len(days))
	}
	if days[0].Label != "Mon 1" || days[30].Offset != 30*60 {
		t.Fatalf("unexpected day columns: %+v ... %+v", days[0], days[30])
	}

	weeks, err := p.Columns(entities.TimeScaleWeek, w)
	if err != nil {
		t.Fatal(err)
	}
	if len(weeks) != 5 || !weeks[0].Start.Equal(date(2023, time.December, 31)) {
		t.Fatalf("unexpected week columns: %d starting %v", len(weeks), weeks[0].Start)
	}

	months, err := p.Columns(entities.TimeScaleMonth, Window{Start: date(2024, time.January, 15), End: date(2024, time.March, 3)})
	if err != nil {
		t.Fatal(err)
	}
	if len(months) != 3 || months[1].Label != "February" || months[1].SubLabel != "2024" {
		t.Fatalf("unexpected month columns: %+v", months)
	}

	width, err := p.CanvasWidth(entities.TimeScaleMonth, Window{Start: date(2024, time.January, 15), End: date(2024, time.March, 3)})
	if err != nil || width != 450 {
		t.Fatalf("CanvasWidth = %v, %v", width, err)
	}
}

func TestColumnsWithMondayWeeks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WeekStart = time.Monday
	p, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	cols, err := p.Columns(entities.TimeScaleWeek, Window{Start: date(2024, time.January, 3), End: date(2024, time.January, 14)})
	if err != nil {
		t.Fatal(err)
	}
	if len(cols) != 2 || !cols[0].Start.Equal(date(2024, time.January, 1)) || cols[0].SubLabel != "Week 1" {
		t.Fatalf("unexpected columns: %+v", cols)
	}
}

func TestColumnsErrors(t *testing.T) {
	p := newProjection(t)
	if _, err := p.Columns("year", Window{Start: date(2024, 1, 1), End: date(2024, 2, 1)}); !errors.Is(err, ErrInvalidScale) {
		t.Fatalf("expected ErrInvalidScale, got %v", err)
	}
	if _, err := p.Columns(entities.TimeScaleDay, Window{Start: date(2024, 2, 1), End: date(2024, 1, 1)}); !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow, got %v", err)
	}
	if _, err := p.Columns(entities.TimeScaleDay, Window{Start: date(2000, 1, 1), End: date(2030, 1, 1)}); !errors.Is(err, ErrWindowTooLarge) {
		t.Fatalf("expected ErrWindowTooLarge, got %v", err)
	}
}

func TestMonthsBetween(t *testing.T) {
	tests := []struct {
		a, b time.Time
		want int
	}{
		{date(2024, 1, 31), date(2024, 2, 29), 0},
		{date(2024, 1, 15), date(2024, 2, 15), 1},
		{date(2023, 11, 1), date(2024, 2, 1), 3},
		{date(2024, 3, 10), date(2024, 1, 20), -1},
	}
	for _, tt := range tests {
		if got := MonthsBetween(tt.a, tt.b); got != tt.want {
			t.Errorf("MonthsBetween(%v, %v) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
