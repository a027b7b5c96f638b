package natsstore

import (
	stderrors "errors"
	"fmt"
	"time"

	"github.com/mitjajez/nodewatcher/datastream"
	"github.com/mitjajez/nodewatcher/errors"
	"github.com/mitjajez/nodewatcher/pkg/timestamp"
)

// Subject suffixes under the configured prefix.
const (
	subjectEnsure = "ensure"
	subjectAppend = "append"
	subjectDelete = "delete"
)

// DefaultPrefix is the default subject prefix of the stream store service.
const DefaultPrefix = "nodewatcher.datastream"

// Wire error codes. Codes, not messages, carry the error identity across
// the transport.
const (
	codeInconsistent   = "inconsistent_stream_configuration"
	codeStreamNotFound = "stream_not_found"
	codeAppendDerived  = "append_to_derived"
	codeInvalidRequest = "invalid_request"
	codeInternal       = "internal"
)

type ensureRequest struct {
	QueryTags datastream.Tags          `json:"query_tags"`
	Tags      datastream.Tags          `json:"tags,omitempty"`
	Options   datastream.EnsureOptions `json:"options"`
}

type ensureResponse struct {
	StreamID datastream.StreamID `json:"stream_id,omitempty"`
	Error    *wireError          `json:"error,omitempty"`
}

type appendRequest struct {
	StreamID datastream.StreamID `json:"stream_id"`
	Value    any                 `json:"value"`
	// Timestamp is unix milliseconds; zero means the store's "now".
	Timestamp int64 `json:"timestamp,omitempty"`
}

type appendResponse struct {
	Error *wireError `json:"error,omitempty"`
}

type deleteRequest struct {
	QueryTags datastream.Tags `json:"query_tags"`
}

type deleteResponse struct {
	Error *wireError `json:"error,omitempty"`
}

type wireError struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// toWireError maps a store error onto the wire. Unrecognized errors travel
// as internal, keeping their message but not their type.
func toWireError(err error) *wireError {
	if err == nil {
		return nil
	}
	code := codeInternal
	switch {
	case stderrors.Is(err, datastream.ErrInconsistentStreamConfiguration):
		code = codeInconsistent
	case stderrors.Is(err, datastream.ErrStreamNotFound):
		code = codeStreamNotFound
	case stderrors.Is(err, datastream.ErrAppendToDerived):
		code = codeAppendDerived
	case errors.IsInvalid(err):
		code = codeInvalidRequest
	}
	return &wireError{Code: code, Message: err.Error()}
}

// fromWireError maps a wire error back to the matching sentinel so caller
// code can errors.Is against the datastream package regardless of the
// backend being local or remote.
func fromWireError(w *wireError) error {
	if w == nil {
		return nil
	}
	switch w.Code {
	case codeInconsistent:
		return fmt.Errorf("%s: %w", w.Message, datastream.ErrInconsistentStreamConfiguration)
	case codeStreamNotFound:
		return fmt.Errorf("%s: %w", w.Message, datastream.ErrStreamNotFound)
	case codeAppendDerived:
		return fmt.Errorf("%s: %w", w.Message, datastream.ErrAppendToDerived)
	case codeInvalidRequest:
		return errors.WrapInvalid(stderrors.New(w.Message), "natsstore", "request", "remote store rejected request")
	default:
		return errors.WrapTransient(stderrors.New(w.Message), "natsstore", "request", "remote store failed")
	}
}

func wireTimestamp(at time.Time) int64 {
	if at.IsZero() {
		return 0
	}
	return timestamp.ToUnixMs(at)
}

func fromWireTimestamp(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return timestamp.FromUnixMs(ms)
}
