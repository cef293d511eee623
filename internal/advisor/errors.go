package advisor

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

var (
	// ErrMissingCredential is returned before any network call when no API key is configured.
	ErrMissingCredential = errors.New("advisor: API key is missing, check your environment settings")
	// ErrCredentialInvalid is returned when the service answers not-found, which
	// in practice means the key is invalid or expired and must be reselected.
	ErrCredentialInvalid = errors.New("advisor: API key was rejected by the model service, reselect a key")
	// ErrMalformedReply marks a reply that is not the expected JSON object.
	ErrMalformedReply = errors.New("advisor: malformed model reply")
)

// statusCoder is implemented by transport errors that carry an HTTP status.
type statusCoder interface {
	StatusCode() int
}

// isCredentialRejected reports whether err is the service's not-found answer.
// A structured status wins; providers that only expose a message are matched
// on "not found" / "404". Deadlines and cancellations never qualify.
func isCredentialRejected(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode() == http.StatusNotFound
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "404")
}
