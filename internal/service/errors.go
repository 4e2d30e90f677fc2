package service

import (
	"errors"
	"fmt"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrBotNotFound     = errors.New("bot not found")
	ErrQuotaExceeded   = errors.New("generation quota exceeded")
	ErrInvalidArgument = errors.New("invalid argument")
)

// ProviderError wraps a failed LLM call.
type ProviderError struct {
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error: %v", e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// PackagingError wraps a failure to build, write or upload a bundle.
type PackagingError struct {
	BotID int64
	Err   error
}

func (e *PackagingError) Error() string {
	return fmt.Sprintf("package bot %d: %v", e.BotID, e.Err)
}

func (e *PackagingError) Unwrap() error {
	return e.Err
}

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
