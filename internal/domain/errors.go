package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a failure at the point where it happened. The HTTP layer
// maps kinds to status codes.
type Kind string

const (
	KindUnknown           Kind = "unknown"
	KindBadInput          Kind = "bad_input"
	KindUnsupportedType   Kind = "unsupported_type"
	KindUnauthorized      Kind = "unauthorized"
	KindUploadFailed      Kind = "upload_failed"
	KindStatusUnavailable Kind = "status_unavailable"
	KindProcessingFailed  Kind = "processing_failed"
	KindTimeout           Kind = "timeout"
	KindGenerationFailed  Kind = "generation_failed"
	KindModelUnavailable  Kind = "model_unavailable"
	KindEmptyResult       Kind = "empty_result"
	KindMalformedResponse Kind = "malformed_response"
	KindPersistFailed     Kind = "persist_failed"
	KindSaveFailed        Kind = "save_failed"
)

// Error carries a Kind, the operation that failed and a user-facing message.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

// E builds an *Error.
func E(kind Kind, op, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Msg != "":
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

// Message returns the user-facing text for err.
func Message(err error) string {
	var de *Error
	if !errors.As(err, &de) {
		return err.Error()
	}
	if de.Err == nil {
		return de.Msg
	}
	if de.Msg == "" {
		return de.Err.Error()
	}
	return fmt.Sprintf("%s: %v", de.Msg, de.Err)
}
