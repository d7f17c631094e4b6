package guidedcontent

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrUnknownKind indicates the content kind is not in the registry
	ErrUnknownKind = errors.New("unknown content kind")

	// ErrPayloadRejected indicates a MIME, size or count constraint was violated
	ErrPayloadRejected = errors.New("payload rejected")

	// ErrTooManyAttachments indicates the final attachment count exceeds the kind's limit
	ErrTooManyAttachments = fmt.Errorf("%w: too many attachments", ErrPayloadRejected)

	// ErrNotFound indicates the targeted document does not exist
	ErrNotFound = errors.New("not found")

	// ErrStoreUnavailable indicates a document or blob store call failed
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrPartialCleanup indicates a best-effort blob deletion failed
	ErrPartialCleanup = errors.New("partial cleanup failure")

	// ErrForeignURL indicates a blob URL does not belong to the blob store asked to delete it
	ErrForeignURL = errors.New("url does not belong to this blob store")
)

// ErrorKind is the stable, client-visible classification of an error.
type ErrorKind string

const (
	KindUnknownKind           ErrorKind = "unknown_kind"
	KindPayloadRejected       ErrorKind = "payload_rejected"
	KindNotFound              ErrorKind = "not_found"
	KindStoreUnavailable      ErrorKind = "store_unavailable"
	KindPartialCleanupFailure ErrorKind = "partial_cleanup_failure"
	KindInternal              ErrorKind = "internal"
)

// KindOf classifies err into one of the stable error kinds.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnknownKind):
		return KindUnknownKind
	case errors.Is(err, ErrPayloadRejected):
		return KindPayloadRejected
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrStoreUnavailable):
		return KindStoreUnavailable
	case errors.Is(err, ErrPartialCleanup):
		return KindPartialCleanupFailure
	default:
		return KindInternal
	}
}

// PayloadError carries the human-readable reason a request was rejected.
type PayloadError struct {
	Reason string
	Err    error
}

func (e *PayloadError) Error() string {
	return e.Reason
}

func (e *PayloadError) Unwrap() error {
	if e.Err == nil {
		return ErrPayloadRejected
	}
	return e.Err
}

func rejectf(format string, args ...any) error {
	return &PayloadError{Reason: fmt.Sprintf(format, args...)}
}

// ContentError represents an error related to content operations
type ContentError struct {
	ContentID string
	Op        string
	Err       error
}

func (e *ContentError) Error() string {
	return fmt.Sprintf("content operation %s failed for content %s: %v", e.Op, e.ContentID, e.Err)
}

func (e *ContentError) Unwrap() error {
	return e.Err
}

// StorageError represents a failed call to a document or blob store. It
// matches ErrStoreUnavailable as well as the underlying cause.
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() []error {
	return []error{ErrStoreUnavailable, e.Err}
}

// storeErr wraps err as a StorageError unless it already reports not-found.
func storeErr(backend, key, op string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return err
	}
	return &StorageError{Backend: backend, Key: key, Op: op, Err: err}
}
