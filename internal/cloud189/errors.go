package cloud189

import (
	"fmt"
	"net"
	"syscall"

	"github.com/pkg/errors"
)

// APIError is returned when the service answers with a non-success status
// or an error code in the body.
type APIError struct {
	Op      string
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("cloud189 %s: http %d: %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("cloud189 %s: %s %s", e.Op, e.Code, e.Message)
}

// ErrLogin marks a rejected credential submission.
var ErrLogin = errors.New("cloud189: login rejected")

// IsConnTimeout reports whether err is a connection-level timeout, i.e. the
// endpoint could not be reached at all. Request timeouts on an established
// connection do not count.
func IsConnTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ETIMEDOUT) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial" && opErr.Timeout()
	}
	return false
}
