package resilience

import (
	"errors"
	"net"
	"net/textproto"
	"strings"
	"syscall"
)

// TransientError marks a failure worth retrying: rate limiting, server
// errors, and the network faults that clear on their own. StatusCode
// carries the HTTP status when one was involved, 0 otherwise.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError marks err as retryable. statusCode may be 0 when
// the failure happened below the HTTP layer.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// StatusOf returns the HTTP status carried by a TransientError in the
// chain, or 0 when the failure was not an HTTP rejection.
func StatusOf(err error) int {
	var te *TransientError
	if errors.As(err, &te) {
		return te.StatusCode
	}
	return 0
}

// retryableMessages covers failures net/http surfaces only as text,
// already stringified by the transport internals.
var retryableMessages = []string{
	"connection reset by peer",
	"broken pipe",
	"temporary failure in name resolution",
	"no such host",
	"tls handshake timeout",
	"i/o timeout",
	"server closed idle connection",
	"transport connection broken",
}

// IsTransient reports whether err is worth another attempt: an
// explicit TransientError anywhere in the chain, a network timeout, a
// reset or refused connection, a 4yz FTP reply, or a failure text from
// retryableMessages.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// FTP reply codes in the 400s signal a temporary condition; the
	// archive mirror answers with them around maintenance windows.
	var ftpErr *textproto.Error
	if errors.As(err, &ftpErr) && ftpErr.Code >= 400 && ftpErr.Code < 500 {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, text := range retryableMessages {
		if strings.Contains(msg, text) {
			return true
		}
	}
	return false
}

// IsTransientHTTPStatus reports whether an HTTP status is a rejection
// the upstream expects clients to retry: 408, 429, and the 5xx family
// the Census hosts return under load.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	}
	return false
}
