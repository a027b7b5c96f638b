// Package errors provides classified error handling for nodewatcher
// components.
//
// Errors fall into three classes: Transient (temporary, retryable), Invalid
// (bad input or configuration, non-retryable) and Fatal (unrecoverable, stop
// processing). Classification lets callers decide between retry, rejection
// and escalation without matching on error strings.
//
// Return the standard variables for known conditions:
//
//	if !connected {
//	    return errors.ErrNoConnection
//	}
//
// Wrap errors with component context as they cross package boundaries:
//
//	if err := store.Append(ctx, id, value, at); err != nil {
//	    return errors.Wrap(err, "fields", "ToStream", "append datapoint")
//	}
//
// Wrap produces "component.method: action failed: %w" and preserves the
// original classification; WrapTransient, WrapInvalid and WrapFatal set it.
// Classification survives wrapping chains and works with the standard
// errors.Is and errors.As. Context cancellation errors classify as
// Transient, so retry loops handle deadline expiry and network flakes the
// same way:
//
//	if err := operation(ctx); err != nil {
//	    if errors.IsTransient(err) {
//	        // retry with backoff, see pkg/retry
//	    }
//	}
package errors
