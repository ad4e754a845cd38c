package domain

import "fmt"

type ErrorKind string

const (
	KindInvalidInput     ErrorKind = "INVALID_INPUT"
	KindInvalidTimeRange ErrorKind = "INVALID_TIME_RANGE"
	KindNotFound         ErrorKind = "NOT_FOUND"
	KindStorageFault     ErrorKind = "STORAGE_FAULT"
)

// Error is the only error type returned by the booking store.
type Error struct {
	Kind    ErrorKind `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

// Sentinels for errors.Is; they match any *Error of the same kind.
var (
	ErrInvalidInput     = &Error{Kind: KindInvalidInput}
	ErrInvalidTimeRange = &Error{Kind: KindInvalidTimeRange}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrStorageFault     = &Error{Kind: KindStorageFault}
)

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func InvalidInput(message string) *Error {
	return &Error{Kind: KindInvalidInput, Message: message}
}

func InvalidTimeRange(departure, arrival uint64) *Error {
	return &Error{
		Kind:    KindInvalidTimeRange,
		Message: fmt.Sprintf("departure_time %d must be before arrival_time %d", departure, arrival),
	}
}

func NotFound(id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("booking with id=%s not found", id)}
}

func StorageFault(op string, err error) *Error {
	return &Error{Kind: KindStorageFault, Message: fmt.Sprintf("storage failure during %s", op), Err: err}
}
