package eightfold

import (
	"errors"
	"fmt"
)

var errEmptyPosition = errors.New("response carried no position")

// FetchError is a transient failure of a feed or detail request. The
// affected page or item is skipped for this cycle and retried on the next.
type FetchError struct {
	Op         string
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("eightfold %s %s: status %d: %v", e.Op, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("eightfold %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
