package illustrator

import (
	"errors"

	"github.com/fpang/storybook-illustrator/internal/auth"
)

// ErrNoCredential is returned by every call when no API key is configured.
var ErrNoCredential = errors.New("API key is not configured. Set " + auth.APIKeyEnv + ".")

// ErrNoImage is returned when the model answers without any image data.
var ErrNoImage = errors.New("the model returned no image")

// Error is a failed remote call. Message is safe to show to the user.
type Error struct {
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return e.Op + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Op + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Message returns the user-facing text for an error returned by Client.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Message
	}
	return err.Error()
}

func wrap(op string, err error) error {
	switch {
	case errors.Is(err, ErrNoCredential):
		return &Error{Op: op, Message: ErrNoCredential.Error(), Err: err}
	case errors.Is(err, ErrNoImage):
		return &Error{Op: op, Message: "Image generation failed: no image was returned.", Err: err}
	default:
		return &Error{Op: op, Message: auth.Describe(err), Err: err}
	}
}
