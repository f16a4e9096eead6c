package optional

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Opt holds a value that may be missing. A missing measurement is not the
// same thing as a measured zero, and Opt keeps the two apart all the way to
// SQLite and JSON.
type Opt[T any] struct {
	value    T
	hasValue bool
}

func New[T any](value T) Opt[T] {
	return Opt[T]{
		value:    value,
		hasValue: true,
	}
}

func Empty[T any]() Opt[T] {
	return Opt[T]{}
}

func (o Opt[T]) Has() bool {
	return o.hasValue
}

func (o Opt[T]) Get() (T, bool) {
	return o.value, o.hasValue
}

func (o Opt[T]) Else(e T) T {
	if o.hasValue {
		return o.value
	}
	return e
}

// Implements the Scanner interface so a NULL column scans as Empty.
func (o *Opt[T]) Scan(src any) error {
	var v sql.Null[T]
	if err := v.Scan(src); err != nil {
		return err
	}

	if v.Valid {
		*o = New(v.V)
	} else {
		*o = Empty[T]()
	}
	return nil
}

// Implements the Valuer interface, writing Empty as NULL.
func (o Opt[T]) Value() (driver.Value, error) {
	if !o.hasValue {
		return nil, nil
	}
	return driver.DefaultParameterConverter.ConvertValue(o.value)
}

func (o Opt[T]) MarshalJSON() ([]byte, error) {
	if !o.hasValue {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

func (o *Opt[T]) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = Empty[T]()
		return nil
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = New(v)
	return nil
}

func (o Opt[T]) String() string {
	if !o.hasValue {
		return "unknown"
	}
	return fmt.Sprintf("%v", o.value)
}
