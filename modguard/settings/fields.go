package settings

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Field names accepted by Manager.Set, as used by the command surface.
type Field string

const (
	FieldEnabled       Field = "enabled"
	FieldMessages      Field = "messages"
	FieldInterval      Field = "interval"
	FieldWarnings      Field = "warnings"
	FieldMuteDuration  Field = "muteDuration"
	FieldAction        Field = "action"
	FieldClearMessages Field = "clearMessages"
)

type bounds struct {
	min, max int
}

var fieldBounds = map[Field]bounds{
	FieldMessages:     {1, 50},
	FieldInterval:     {1, 300},
	FieldWarnings:     {1, 20},
	FieldMuteDuration: {1, 1440},
}

// ValidationError is returned for out-of-range or malformed input. State is never mutated when
// one is returned.
type ValidationError struct {
	Field  Field
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid value %q for %s: %s", e.Value, e.Field, e.Reason)
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func ParseField(raw string) (Field, error) {
	switch f := Field(raw); f {
	case FieldEnabled, FieldMessages, FieldInterval, FieldWarnings, FieldMuteDuration, FieldAction, FieldClearMessages:
		return f, nil
	}
	return "", &ValidationError{Field: Field(raw), Value: raw, Reason: "unknown setting"}
}

// apply validates raw and stores it in the matching field of o.
func (f Field) apply(o *Overrides, raw string) error {
	raw = strings.TrimSpace(raw)
	switch f {
	case FieldEnabled, FieldClearMessages:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return &ValidationError{Field: f, Value: raw, Reason: "expected true or false"}
		}
		if f == FieldEnabled {
			o.Enabled = &v
		} else {
			o.ClearMessagesOnMute = &v
		}
		return nil
	case FieldAction:
		a := Action(strings.ToLower(raw))
		if a != ActionMute && a != ActionWarn {
			return &ValidationError{Field: f, Value: raw, Reason: "expected mute or warn"}
		}
		o.Action = &a
		return nil
	}

	b, ok := fieldBounds[f]
	if !ok {
		return &ValidationError{Field: f, Value: raw, Reason: "unknown setting"}
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return &ValidationError{Field: f, Value: raw, Reason: "expected an integer"}
	}
	if v < b.min || v > b.max {
		return &ValidationError{Field: f, Value: raw, Reason: fmt.Sprintf("must be between %d and %d", b.min, b.max)}
	}
	switch f {
	case FieldMessages:
		o.MessagesPerInterval = &v
	case FieldInterval:
		o.IntervalSeconds = &v
	case FieldWarnings:
		o.WarningThreshold = &v
	case FieldMuteDuration:
		o.MuteDurationMinutes = &v
	}
	return nil
}

// PersistenceError wraps a failure to load or save the settings document. When returned from a
// mutating call, the in-memory change has already been applied and remains authoritative.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("settings %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
