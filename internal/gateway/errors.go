package gateway

import (
	"errors"
	"fmt"
)

// RemoteError is an error returned across the message boundary.
type RemoteError struct {
	Kind       Kind
	Message    string
	NeedsSetup bool
}

func (e *RemoteError) Error() string {
	return e.Message
}

// NeedsSetup reports whether err asks the user to configure credentials.
func NeedsSetup(err error) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.NeedsSetup
}

// ErrUnknownKind is returned for messages outside the closed set.
type ErrUnknownKind struct {
	Kind Kind
}

func (e *ErrUnknownKind) Error() string {
	return fmt.Sprintf("unknown message kind %q", e.Kind)
}
