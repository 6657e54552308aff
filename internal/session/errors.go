package session

import (
	"errors"
	"fmt"
)

// Kind classifies session failures. Everything here is recoverable by
// operator action (retry, retake, skip, close); nothing is fatal to the
// process.
type Kind int

const (
	// KindAcquisition means both camera tiers failed. Non-fatal: the
	// session degrades to file-import mode.
	KindAcquisition Kind = iota
	// KindCapture means a single capture attempt failed; the operator may
	// simply try again. No state change.
	KindCapture
	// KindValidation means the request was rejected before reaching any
	// collaborator (finish with zero pages, bad import payload).
	KindValidation
	// KindUpload means the upload collaborator reported failure; the
	// buffer is preserved and finish may be retried without recapturing.
	KindUpload
)

// String returns the failure kind name
func (k Kind) String() string {
	switch k {
	case KindAcquisition:
		return "acquisition"
	case KindCapture:
		return "capture"
	case KindValidation:
		return "validation"
	case KindUpload:
		return "upload"
	default:
		return "unknown"
	}
}

// Failure is a classified session error. The wrapped error, when present,
// carries the collaborator's reason verbatim.
type Failure struct {
	Kind Kind
	Msg  string
	Err  error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("session: %s failure: %s: %v", f.Kind, f.Msg, f.Err)
	}
	return fmt.Sprintf("session: %s failure: %s", f.Kind, f.Msg)
}

func (f *Failure) Unwrap() error { return f.Err }

func failure(kind Kind, msg string) *Failure {
	return &Failure{Kind: kind, Msg: msg}
}

func failureWrap(kind Kind, msg string, err error) *Failure {
	return &Failure{Kind: kind, Msg: msg, Err: err}
}

// IsKind reports whether err is a session Failure of the given kind
func IsKind(err error, kind Kind) bool {
	var f *Failure
	return errors.As(err, &f) && f.Kind == kind
}
