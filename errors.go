package reldb

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

// ErrorCode categorizes the ways the engine can fail, matching the
// taxonomy the buffer pool, lock manager, and operators all raise
// against: a logical storage fault, a lock wait that ran out the
// clock, a caller mistake, a missed hasNext check, a failed disk
// access, or an unlock from a transaction that never held the lock.
type ErrorCode int

const (
	DBError ErrorCode = iota
	TransactionAbortedError
	IllegalArgumentError
	NoSuchElementError
	IOError
	IllegalMonitorStateError
)

func (c ErrorCode) String() string {
	switch c {
	case DBError:
		return "db-error"
	case TransactionAbortedError:
		return "transaction-aborted"
	case IllegalArgumentError:
		return "illegal-argument"
	case NoSuchElementError:
		return "no-such-element"
	case IOError:
		return "io-error"
	case IllegalMonitorStateError:
		return "illegal-monitor-state"
	}
	return "unknown-error"
}

// EngineError is the single error type the core raises. Callers that
// need to branch on category should type-assert to EngineError and
// inspect Code rather than matching on the message text.
type EngineError struct {
	Code ErrorCode
	Msg  string
}

func (e EngineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func newError(code ErrorCode, format string, args ...any) EngineError {
	return EngineError{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// IsAborted reports whether err is (or wraps) a transaction-aborted
// EngineError, the one category the transaction manager is expected to
// recover from automatically.
func IsAborted(err error) bool {
	var ee EngineError
	return errors.As(err, &ee) && ee.Code == TransactionAbortedError
}

// appendErr accumulates possibly-nil errors from a sequence of
// best-effort operations (releasing every lock a transaction holds,
// flushing every dirty page at commit) into one multierr value, used
// wherever a single failure must not stop the rest from being
// attempted.
func appendErr(errs error, err error) error {
	return multierr.Append(errs, err)
}
