package message

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidUTF8   = errors.New("message: body is not valid utf-8")
	ErrInvalidJSON   = errors.New("message: body is not valid json")
	ErrEnvelopeShape = errors.New("message: envelope shape mismatch")
)

// NotSupportedError is returned for command names without an extractor,
// usually the relay started sending something new
type NotSupportedError struct {
	Cmd string
}

func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("message: command %q not supported", e.Cmd)
}

// DeserializeError is returned when a known command does not have the shape
// its extractor expects
type DeserializeError struct {
	Cmd string
	Err error
}

func (e *DeserializeError) Error() string {
	return fmt.Sprintf("message: failed to deserialize %s: %s", e.Cmd, e.Err.Error())
}

func (e *DeserializeError) Unwrap() error {
	return e.Err
}

// IsNotSupported reports whether err means an unknown command name
func IsNotSupported(err error) bool {
	var target *NotSupportedError
	return errors.As(err, &target)
}
