package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidName        = errors.New("invalid participant name")
	ErrNameTaken          = errors.New("participant name already taken")
	ErrUnknownParticipant = errors.New("unknown participant")
	ErrInvalidMessage     = errors.New("invalid message")
	ErrUnknownSender      = errors.New("sender is not a participant")
	ErrNotFound           = errors.New("message not found")
	ErrForbidden          = errors.New("message belongs to another participant")
	ErrStoreUnavailable   = errors.New("store unavailable")
)

// InvalidMessageError lists the message fields that failed validation.
type InvalidMessageError struct {
	Fields []string
}

func (e *InvalidMessageError) Error() string {
	return ErrInvalidMessage.Error() + ": " + strings.Join(e.Fields, ", ")
}

func (e *InvalidMessageError) Is(target error) bool {
	return target == ErrInvalidMessage
}

// StoreError marks err as an underlying storage failure.
func StoreError(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
