package store

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("listing not found")

// WriteError is a failed store mutation or commit. The cycle logs it and
// carries on; the next cycle repairs the record.
type WriteError struct {
	Op  string
	Key string
	Err error
}

func (e *WriteError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("store %s %s: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
