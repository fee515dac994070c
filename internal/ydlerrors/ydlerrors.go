// Package ydlerrors defines the typed error taxonomy the archiver uses to
// decide how to react to a failure: abort the run, skip one item, sleep on
// one item, or retry the operation. Callers should use errors.As/errors.Is
// against the values and types here rather than matching on message text.
package ydlerrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions with no associated item.
var (
	// ErrStorageUnavailable means the catalog database could not be opened
	// or a write failed in a way that leaves its state unknown. Callers
	// should abort rather than continue operating on a possibly-corrupt
	// catalog.
	ErrStorageUnavailable = errors.New("ydlerrors: catalog storage unavailable")

	// ErrExtractorEmpty means the external metadata extractor produced no
	// usable output for an item that should have had some.
	ErrExtractorEmpty = errors.New("ydlerrors: extractor returned no data")

	// ErrEmptyList means a full-listing enumeration came back with zero
	// entries for a source that is not expected to be empty.
	ErrEmptyList = errors.New("ydlerrors: list enumeration returned no entries")

	// ErrInvalidName means a preferred-name value failed validation before
	// being accepted into the catalog.
	ErrInvalidName = errors.New("ydlerrors: invalid name")

	// ErrUserInterrupt means the operator interrupted a run (SIGINT/SIGTERM)
	// and in-progress work was abandoned cleanly.
	ErrUserInterrupt = errors.New("ydlerrors: interrupted by user")
)

// NetworkTransient wraps an error known to be transient (connection reset,
// temporary DNS failure, timeout) so retry logic can recognize it with
// errors.As instead of string-matching on the underlying error.
type NetworkTransient struct {
	Op  string
	Err error
}

func (e NetworkTransient) Error() string {
	return fmt.Sprintf("ydlerrors: network transient during %s: %v", e.Op, e.Err)
}

func (e NetworkTransient) Unwrap() error { return e.Err }

// PaymentRequired means the site returned an HTTP 402 (or equivalent) for
// an item, indicating the content requires a paid purchase the archiver
// cannot satisfy.
type PaymentRequired struct{ ItemID string }

func (e PaymentRequired) Error() string {
	return "ydlerrors: payment required for item " + e.ItemID
}

// VideoUnavailableReason enumerates why a particular item cannot currently
// be fetched, without the archiver needing to parse site error strings.
type VideoUnavailableReason int

const (
	ReasonUnknown VideoUnavailableReason = iota
	ReasonMembersOnly
	ReasonAgeGated
	ReasonPrivate
	ReasonDeleted
)

func (r VideoUnavailableReason) String() string {
	switch r {
	case ReasonMembersOnly:
		return "members-only"
	case ReasonAgeGated:
		return "age-gated"
	case ReasonPrivate:
		return "private"
	case ReasonDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// VideoUnavailable means an item exists in the catalog but the site
// currently refuses to serve it for a reason recorded in Reason.
type VideoUnavailable struct {
	ItemID string
	Reason VideoUnavailableReason
}

func (e VideoUnavailable) Error() string {
	return fmt.Sprintf("ydlerrors: item %s unavailable (%s)", e.ItemID, e.Reason)
}

// LiveOrUpcoming means the item is a live broadcast or scheduled premiere
// rather than a finished upload; the caller should sleep until the
// recorded wake time instead of treating this as a failure.
type LiveOrUpcoming struct {
	ItemID   string
	WakeUnix int64
}

func (e LiveOrUpcoming) Error() string {
	return "ydlerrors: item " + e.ItemID + " is live or upcoming"
}

// InvalidAlias means a user-supplied alias failed AliasCoerce validation.
type InvalidAlias struct {
	Alias string
	Cause error
}

func (e InvalidAlias) Error() string {
	return fmt.Sprintf("ydlerrors: invalid alias %q: %v", e.Alias, e.Cause)
}

func (e InvalidAlias) Unwrap() error { return e.Cause }
