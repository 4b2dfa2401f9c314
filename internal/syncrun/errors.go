package syncrun

import "fmt"

// FetchError reports a page the source could not deliver after retries.
// Fatal is set for page 1, whose failure leaves the page count unknown and
// aborts the run.
type FetchError struct {
	Page  int
	Fatal bool
	Err   error
}

func (e *FetchError) Error() string {
	if e.Fatal {
		return fmt.Sprintf("sync aborted: page %d: %v", e.Page, e.Err)
	}
	return fmt.Sprintf("page %d failed: %v", e.Page, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
