package entity

import "fmt"

// StatusError is an upstream HTTP failure with its status code preserved so
// that rate-limit responses (429) can be told apart from other failures.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("upstream request to %s failed with status %d: %s", e.URL, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("upstream request to %s failed with status %d", e.URL, e.StatusCode)
}
