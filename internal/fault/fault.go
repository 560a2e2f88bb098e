package fault

import (
	"errors"
	"fmt"
)

type Kind string

const (
	InvalidCredential     Kind = "InvalidCredential"
	UnsupportedModel      Kind = "UnsupportedModel"
	UnsupportedSize       Kind = "UnsupportedSize"
	UnsupportedQuality    Kind = "UnsupportedQuality"
	UnsupportedFormat     Kind = "UnsupportedFormat"
	UnsupportedBackground Kind = "UnsupportedBackground"
	InvalidParameter      Kind = "InvalidParameter"
	InvalidPayload        Kind = "InvalidPayload"
	WriteFailed           Kind = "WriteFailed"
	DirectoryInaccessible Kind = "DirectoryInaccessible"
	ConfigSaveFailed      Kind = "ConfigSaveFailed"
	UpstreamFailure       Kind = "UpstreamFailure"
)

// Error is the only error type that crosses component boundaries. Message is
// safe to show to a user; Err may carry details that are not.
type Error struct {
	Kind    Kind
	Message string
	Detail  string
	Err     error
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// MessageOf returns the user-facing message of err.
func MessageOf(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Message
	}
	return err.Error()
}
