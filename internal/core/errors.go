package core

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyRegistered is returned when a connection id is registered twice.
	ErrAlreadyRegistered = errors.New("connection already registered")
	// ErrEmptyUsername is returned when a username is blank after trimming.
	ErrEmptyUsername = errors.New("username is empty")
	// ErrSendFailed matches every *SendError via errors.Is.
	ErrSendFailed = errors.New("send failed")
	// ErrNotRegistered is returned when a private send targets an unknown connection.
	ErrNotRegistered = errors.New("connection not registered")
)

// SendError reports a failed write to a single connection.
type SendError struct {
	ConnID   ConnID
	Username string
	Err      error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send to %s (%s): %v", e.Username, e.ConnID, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrSendFailed) true for any SendError.
func (e *SendError) Is(target error) bool {
	return target == ErrSendFailed
}
