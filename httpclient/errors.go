package httpclient

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gaborage/finbricks/notify"
)

// Category is the failure class surfaced to the caller and the user.
type Category string

const (
	CategoryNetwork         Category = "NetworkError"
	CategoryUnauthorized    Category = "Unauthorized"
	CategoryForbidden       Category = "Forbidden"
	CategoryNotFound        Category = "NotFound"
	CategoryTransientServer Category = "TransientServer"
	CategoryUnknown         Category = "Unknown"
)

// User-facing messages, one per category
const (
	MessageNetwork         = "Network error. Please check your connection."
	MessageSessionExpired  = "Your session has expired. Please log in again."
	MessageForbidden       = "You do not have permission to perform this action."
	MessageNotFound        = "Resource not found."
	MessageTransientServer = "Service temporarily unavailable."
	MessageUnknown         = "An unexpected error occurred."
)

var (
	// ErrNoRefreshToken means a 401 arrived while no refresh token was stored.
	ErrNoRefreshToken = errors.New("httpclient: no refresh token stored")
	// ErrLoggedOut rejects requests waiting on a refresh that a logout cancelled.
	ErrLoggedOut = errors.New("httpclient: session logged out")
	// ErrEmptyAccessToken means the refresh endpoint answered without an access token.
	ErrEmptyAccessToken = errors.New("httpclient: refresh response carried no access token")
)

// RefreshError is the failure every request parked on a failed refresh receives.
type RefreshError struct {
	Cause error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("token refresh failed: %v", e.Cause)
}

func (e *RefreshError) Unwrap() error { return e.Cause }

// StatusError reports a non-success status from the refresh endpoint
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}

// ClassifiedError is the single terminal error a logical call returns.
type ClassifiedError struct {
	Category   Category
	Message    string
	Cause      error
	StatusCode int
	Body       []byte
	Method     string
	URL        string

	// notified is set once the failure reached the notification sink, so the
	// classifier does not push it a second time.
	notified bool
}

func (e *ClassifiedError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Category))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Method != "" {
		fmt.Fprintf(&b, " (%s %s", e.Method, e.URL)
		if e.StatusCode != 0 {
			fmt.Fprintf(&b, ", status %d", e.StatusCode)
		}
		b.WriteString(")")
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *ClassifiedError) Unwrap() error { return e.Cause }

// Severity is the notification severity for the category
func (e *ClassifiedError) Severity() notify.Severity {
	return severityOf(e.Category)
}

func severityOf(c Category) notify.Severity {
	switch c {
	case CategoryNetwork, CategoryUnknown:
		return notify.SeverityError
	default:
		return notify.SeverityWarning
	}
}

func messageOf(c Category) string {
	switch c {
	case CategoryNetwork:
		return MessageNetwork
	case CategoryUnauthorized:
		return MessageSessionExpired
	case CategoryForbidden:
		return MessageForbidden
	case CategoryNotFound:
		return MessageNotFound
	case CategoryTransientServer:
		return MessageTransientServer
	default:
		return MessageUnknown
	}
}

// CategoryOf returns the category of a classified error, or "" for any other error.
func CategoryOf(err error) Category {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Category
	}
	return ""
}

// IsCategory reports whether err is a ClassifiedError of category c
func IsCategory(err error, c Category) bool {
	return err != nil && CategoryOf(err) == c
}

// StatusCodeOf returns the HTTP status attached to a classified error, or 0.
func StatusCodeOf(err error) int {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.StatusCode
	}
	return 0
}
