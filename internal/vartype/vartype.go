// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package vartype

import (
	"encoding/json"
	"fmt"
)

type (
	// VarFloat64 is a float64 reading that a weather backend may not report.
	VarFloat64 = Variable[float64]

	// VarInt is an int reading that a weather backend may not report.
	VarInt = Variable[int]
)

// Variable holds an optional value and remembers whether it was ever set.
type Variable[T any] struct {
	value T
	isset bool
}

// NewVariable returns a Variable set to value.
func NewVariable[T any](value T) Variable[T] {
	return Variable[T]{
		isset: true,
		value: value,
	}
}

// Reset clears the value and marks the Variable as unset.
func (v *Variable[T]) Reset() {
	var newVal T
	v.value = newVal
	v.isset = false
}

func (v Variable[T]) Value() T {
	return v.value
}

// Or returns the stored value, or fallback when the Variable is unset.
func (v Variable[T]) Or(fallback T) T {
	if !v.isset {
		return fallback
	}
	return v.value
}

func (v *Variable[T]) Set(val T) {
	v.value = val
	v.isset = true
}

func (v *Variable[T]) IsSet() bool {
	return v.isset
}

// String returns the value, or "n/a" when unset.
func (v Variable[T]) String() string {
	if !v.isset {
		return "n/a"
	}
	return fmt.Sprint(v.value)
}

// MarshalJSON encodes an unset Variable as null.
func (v Variable[T]) MarshalJSON() ([]byte, error) {
	if !v.isset {
		return []byte("null"), nil
	}
	return json.Marshal(v.value)
}

// UnmarshalJSON decodes null as unset.
func (v *Variable[T]) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		v.Reset()
		return nil
	}
	var val T
	if err := json.Unmarshal(data, &val); err != nil {
		return fmt.Errorf("failed to unmarshal variable: %w", err)
	}
	v.Set(val)
	return nil
}
