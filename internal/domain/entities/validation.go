package entities

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validator exposes the shared instance so transports validate requests with the same rules.
func Validator() *validator.Validate {
	return validate
}

// ApplyDefaults fills the zero-valued enums the way a freshly created card looks.
func (t *BoardTask) ApplyDefaults() {
	if t.Status == "" {
		t.Status = TaskStatusTodo
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if t.Color == "" {
		t.Color = ColorPurple
	}
}

func (t *BoardTask) Validate() error {
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return ValidateOptionalRange(t.StartDate, t.EndDate)
}

func (t *TimelineTask) ApplyDefaults() {
	if t.Color == "" {
		t.Color = ColorPurple
	}
}

func (t *TimelineTask) Validate() error {
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if t.StartDate.IsZero() || t.EndDate.IsZero() {
		return ErrMissingDates
	}
	return ValidateRange(t.StartDate, t.EndDate)
}

func (r *Row) ApplyDefaults() {
	if r.Color == "" {
		r.Color = ColorPurple
	}
}

func (r *Row) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

func (c *ChecklistItem) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return ValidateOptionalRange(c.StartDate, c.EndDate)
}

// ValidateRange rejects an end that precedes its start. Equal instants are allowed.
func ValidateRange(start, end time.Time) error {
	if end.Before(start) {
		return ErrInvalidDateRange
	}
	return nil
}

// ValidateOptionalRange only checks the range when both ends are set.
func ValidateOptionalRange(start, end *time.Time) error {
	if start == nil || end == nil {
		return nil
	}
	return ValidateRange(*start, *end)
}
