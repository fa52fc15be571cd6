// Package loaderrors contains the error types produced while loading records into the shards.
//
// Per-record errors (ErrParse, ErrRouting, ErrStore) are always recovered where they happen: the record is
// counted as an error and dropped. ErrShutdown is structural and fails the current file; it is propagated to
// the top level.
package loaderrors

import (
	"fmt"
	"net"
	"strings"

	"github.com/pkg/errors"
)

// ErrParse is returned for a line that cannot be turned into a record.
type ErrParse struct {
	Line    string
	Message string
}

func (err *ErrParse) Error() string {
	return fmt.Sprintf("malformed line %q: %s", err.Line, err.Message)
}

// ErrRouting is returned when a record's category is not mapped to any shard.
type ErrRouting struct {
	Category string
}

func (err *ErrRouting) Error() string {
	return fmt.Sprintf("unknown device type %q", err.Category)
}

// ErrStore wraps a failed write to a shard.
type ErrStore struct {
	Addr string
	Key  string
	Err  error
}

func (err *ErrStore) Error() string {
	return fmt.Sprintf("cannot write %s to %s: %s", err.Key, err.Addr, err.Err)
}

func (err *ErrStore) Unwrap() error {
	return err.Err
}

// Cause lets errors.Cause see the underlying store error.
func (err *ErrStore) Cause() error {
	return err.Err
}

// ErrShutdown is returned when a file could not be brought to a clean completion, e.g. because every writer of a
// shard died, the run was interrupted, or the completion marker could not be written.
type ErrShutdown struct {
	File    string
	Message string
	Err     error
}

func (err *ErrShutdown) Error() (s string) {
	if err.File != "" {
		s = fmt.Sprintf("shutdown of %s failed: %s", err.File, err.Message)
	} else {
		s = fmt.Sprintf("shutdown failed: %s", err.Message)
	}
	if err.Err != nil {
		s = s + fmt.Sprintf("; %s", err.Err)
	}
	return
}

func (err *ErrShutdown) Unwrap() error {
	return err.Err
}

// IsShutdownError reports whether any error in the chain is an ErrShutdown.
func IsShutdownError(err error) bool {
	var e *ErrShutdown
	return errors.As(err, &e)
}

// IsNetworkError returns true if err is a network error, i.e. one that is likely to be transient.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// IsRetryable is largely taken from https://github.com/go-redis/redis/blob/master/error.go#L28
// and extended with the transient memcached server errors.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if IsNetworkError(err) {
		return true
	}
	s := errors.Cause(err).Error()
	if s == "ERR max number of clients reached" {
		return true
	}
	for _, prefix := range []string{"LOADING ", "READONLY ", "CLUSTERDOWN ", "TRYAGAIN ", "SERVER_ERROR "} {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}
