package session

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrAlreadyPending         = errors.New("request already pending")
	ErrInvalidCapacity        = errors.New("invalid room capacity")
	ErrServiceUnavailable     = errors.New("service unavailable")
	ErrJoinRandomFailed       = errors.New("join random room failed")
	ErrRoomCreateFailed       = errors.New("room creation failed")
	ErrVersionMismatch        = errors.New("version mismatch")
	ErrInvalidVersion         = errors.New("invalid version tag")
	ErrNotInitialized         = errors.New("client not initialized")
)

// TransitionError reports a trigger that is not legal from the current state.
type TransitionError struct {
	From    State
	Trigger Trigger
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%v: %s not allowed while %s", ErrInvalidStateTransition, e.Trigger, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidStateTransition }

// ServiceError carries a failure reported by (or about) the relay service.
// Kind is one of ErrServiceUnavailable, ErrJoinRandomFailed or
// ErrRoomCreateFailed.
type ServiceError struct {
	Op      string
	Kind    error
	Code    int16
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Op, e.Kind)
	if e.Code != 0 {
		msg += fmt.Sprintf(" (code %d)", e.Code)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ServiceError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
