package data

import (
	"errors"
	"fmt"
	"sync"
)

// PathError records a failed path operation together with the path it was
// issued for, once the mount prefix has been resolved.
type PathError struct {
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// PathErr wraps err into a PathError. A nil err stays nil.
func PathErr(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &PathError{Op: op, Path: path, Err: err}
}

// ErrnoOf maps err to its error code. Errors that carry no Errno are reported
// as EIO, a nil error as 0.
func ErrnoOf(err error) Errno {
	if err == nil {
		return 0
	}

	var errno Errno
	if errors.As(err, &errno) {
		return errno
	}

	return EIO
}

// Errors collects failures of best-effort operations that keep going after
// an individual step failed.
type Errors struct {
	mu     sync.RWMutex
	errors []error
}

func (e *Errors) Add(err error) {
	if err == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.errors = append(e.errors, err)
}

func (e *Errors) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return len(e.errors)
}

func (e *Errors) Errors() error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(e.errors) == 0 {
		return nil
	}

	return errors.Join(e.errors...)
}
