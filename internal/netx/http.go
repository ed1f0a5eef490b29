// Package netx contains the small HTTP helpers used by the remote gateway.
package netx

import (
	"fmt"
	"io"
	"net/http"
)

// maxErrorBody caps how much of a failed response body is kept in an error.
const maxErrorBody = 4 << 10

// StatusError is returned for a response outside the 2xx range.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s; body: %s", e.Status, e.Body)
}

// Do sends req and returns the response body. A non-2xx response yields a
// *StatusError carrying the status line and (a prefix of) the body; transport
// failures are returned as they come from the client.
func Do(client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(b)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
