package census

import (
	"errors"
	"fmt"
)

// AuthError reports that the API rejected the configured key. It is
// fatal for the whole query since every sibling request carries the
// same credential.
type AuthError struct {
	StatusCode int
	Body       string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("census: authentication rejected with status %d: %s", e.StatusCode, e.Body)
}

// IsAuth reports whether err carries an AuthError.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// MalformedResponseError reports a response body the parser cannot
// interpret. It is never retried; the task's rows are dropped and the
// failure surfaces as a warning on the query result.
type MalformedResponseError struct {
	Reason string
}

func (e *MalformedResponseError) Error() string {
	return "census: malformed response: " + e.Reason
}

// IsMalformed reports whether err carries a MalformedResponseError.
func IsMalformed(err error) bool {
	var me *MalformedResponseError
	return errors.As(err, &me)
}
