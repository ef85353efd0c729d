package gamedata

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means no registered set defines the key
	ErrNotFound = errors.New("gamedata key not found")
	// ErrNotRegistered means Unregister named an unknown set
	ErrNotRegistered = errors.New("gamedata set not registered")
	// ErrAlreadyRegistered means a set with the same name is loaded
	ErrAlreadyRegistered = errors.New("gamedata set already registered")
	// ErrNoScanner means an address was requested before a scanner was set
	ErrNoScanner = errors.New("no address scanner configured")
)

// NotFoundError names the missing key. It matches ErrNotFound.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found in any registered gamedata", e.Kind, e.Key)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// LoadError reports an invalid set. Sets are rejected whole.
type LoadError struct {
	Set string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("gamedata %s: %v", e.Set, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
