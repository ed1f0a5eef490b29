package remote

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/autoledger/internal/netx"
)

// NetworkError is a transport or HTTP failure of one remote call.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// StatusCode returns the HTTP status of the failure, or 0 for transport errors.
func (e *NetworkError) StatusCode() int {
	var se *netx.StatusError
	if errors.As(e.Err, &se) {
		return se.StatusCode
	}
	return 0
}

// IsNotFound reports whether err is a 404 from the remote.
func IsNotFound(err error) bool {
	var se *netx.StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}
