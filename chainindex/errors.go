package chainindex

import "fmt"

// ErrorCode is a stable, loggable identifier for a ChainIndexError: a short
// string constant callers can switch on or compare, independent of the
// wrapped message.
type ErrorCode string

const (
	// UtxoIndex errors, wrapped into InsertionFailed/RollbackFailed by the
	// control handler.
	ErrInsertUtxoNoTip  ErrorCode = "INSERT_UTXO_NO_TIP"
	ErrDuplicateBlock   ErrorCode = "DUPLICATE_BLOCK"
	ErrTipMismatch      ErrorCode = "TIP_MISMATCH"
	ErrOldPointNotFound ErrorCode = "OLD_POINT_NOT_FOUND"

	// Control/query surface errors.
	ErrInsertionFailed  ErrorCode = "INSERTION_FAILED"
	ErrRollbackFailed   ErrorCode = "ROLLBACK_FAILED"
	ErrQueryFailedNoTip ErrorCode = "QUERY_FAILED_NO_TIP"
)

// ChainIndexError is the one error type this module raises; it carries a
// stable Code plus an optional wrapped cause.
type ChainIndexError struct {
	Code ErrorCode
	Msg  string
	Err  error
}

func (e *ChainIndexError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	default:
		return string(e.Code)
	}
}

func (e *ChainIndexError) Unwrap() error { return e.Err }

func newErr(code ErrorCode, msg string) error {
	return &ChainIndexError{Code: code, Msg: msg}
}

func wrapErr(code ErrorCode, msg string, cause error) error {
	return &ChainIndexError{Code: code, Msg: msg, Err: cause}
}

// WrapInsertionFailed wraps cause as an InsertionFailed error: AppendBlock's
// failure kind, fatal to the current sync attempt.
func WrapInsertionFailed(cause error) error {
	return wrapErr(ErrInsertionFailed, "append block failed", cause)
}

// WrapRollbackFailed wraps cause as a RollbackFailed error: Rollback's
// failure kind, fatal to the current sync attempt.
func WrapRollbackFailed(cause error) error {
	return wrapErr(ErrRollbackFailed, "rollback failed", cause)
}

// ErrQueryNoTip constructs the QueryFailedNoTip error UtxoSetMembership
// raises when asked to answer liveness before any block has been applied;
// surfaced to the client verbatim, not wrapped further.
func ErrQueryNoTip() error {
	return newErr(ErrQueryFailedNoTip, "no tip: index is at Genesis")
}

// CodeOf extracts the ErrorCode from err, if it (or something it wraps) is
// a *ChainIndexError.
func CodeOf(err error) (ErrorCode, bool) {
	var cie *ChainIndexError
	for err != nil {
		if c, ok := err.(*ChainIndexError); ok {
			cie = c
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if cie == nil {
		return "", false
	}
	return cie.Code, true
}
