// SPDX-License-Identifier: MIT

// Package types provides the domain model and type-safe enumerations for chandir.
package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// WorkingState represents the connectivity status of a channel.
//
// It is an explicit tri-state value so an untested channel is never
// confused with a failing one.
type WorkingState string

// Working state constants define all possible channel test outcomes.
const (
	// StateUntested indicates the channel has never been probed.
	StateUntested WorkingState = "untested"

	// StateWorking indicates the last probe reached the stream.
	StateWorking WorkingState = "working"

	// StateNotWorking indicates the last probe failed.
	StateNotWorking WorkingState = "not_working"
)

// String returns the string representation of the working state.
func (s WorkingState) String() string {
	return string(s)
}

// IsValid checks whether the state is one of the defined constants.
func (s WorkingState) IsValid() bool {
	switch s {
	case StateUntested, StateWorking, StateNotWorking:
		return true
	default:
		return false
	}
}

// Tested reports whether the state carries a definitive probe outcome.
func (s WorkingState) Tested() bool {
	return s == StateWorking || s == StateNotWorking
}

// StateFromResult maps a probe outcome onto a working state.
func StateFromResult(working bool) WorkingState {
	if working {
		return StateWorking
	}
	return StateNotWorking
}

// MarshalJSON implements json.Marshaler for WorkingState.
// Untested serializes as null so API consumers see the same
// optional-boolean shape TV apps already expect.
func (s WorkingState) MarshalJSON() ([]byte, error) {
	switch s {
	case StateWorking:
		return json.Marshal(true)
	case StateNotWorking:
		return json.Marshal(false)
	default:
		return json.Marshal(nil)
	}
}

// UnmarshalJSON implements json.Unmarshaler for WorkingState.
func (s *WorkingState) UnmarshalJSON(data []byte) error {
	var b *bool
	if err := json.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("invalid working state: %s", data)
	}
	if b == nil {
		*s = StateUntested
	} else if *b {
		*s = StateWorking
	} else {
		*s = StateNotWorking
	}
	return nil
}

// Value implements driver.Valuer: untested maps to NULL.
func (s WorkingState) Value() (driver.Value, error) {
	switch s {
	case StateWorking:
		return int64(1), nil
	case StateNotWorking:
		return int64(0), nil
	default:
		return nil, nil
	}
}

// Scan implements sql.Scanner for NULL-able boolean columns.
func (s *WorkingState) Scan(src any) error {
	if src == nil {
		*s = StateUntested
		return nil
	}
	switch v := src.(type) {
	case int64:
		*s = StateFromResult(v != 0)
	case bool:
		*s = StateFromResult(v)
	default:
		return fmt.Errorf("cannot scan %T into WorkingState", src)
	}
	return nil
}
