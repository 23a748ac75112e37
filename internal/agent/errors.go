package agent

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable matches transport failures, timeouts and non-2xx statuses.
	ErrUnavailable = errors.New("agent unavailable")

	// ErrMalformedResponse matches responses the client could not interpret.
	ErrMalformedResponse = errors.New("malformed agent response")

	// ErrEmptyReply is returned when the agent answered without any text.
	ErrEmptyReply = fmt.Errorf("%w: the agent did not send a reply", ErrMalformedResponse)
)

// HTTPError is returned when the agent responds with a non-2xx status.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("agent: http %d", e.Status)
	}
	return fmt.Sprintf("agent: http %d: %s", e.Status, e.Body)
}

// Is lets errors.Is(err, ErrUnavailable) match any HTTP failure.
func (e *HTTPError) Is(target error) bool {
	return target == ErrUnavailable
}

// RemoteError carries an error the agent reported inside a well-formed response.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return "agent error: " + e.Message
}
