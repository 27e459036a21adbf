package slots

import (
	"errors"
	"time"
)

// Arrival is one normalized slot event as seen by a source.
type Arrival struct {
	Key string
	// ReceivedAt is stamped right after the message is read off the wire.
	ReceivedAt time.Time
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying, e.g. a malformed endpoint url.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

var (
	// ErrSessionEnded is returned when the server closes a healthy stream.
	ErrSessionEnded = errors.New("stream closed by server")
	// ErrIdle is returned when an open stream delivers nothing for the idle
	// timeout.
	ErrIdle = errors.New("no message received")
)
