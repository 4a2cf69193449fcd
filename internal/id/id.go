// Package id encodes the status flags carried in the high bits of a
// registry identifier.
//
// The registry hands out numeric identifiers that fit into 30 bits. The
// three bits above them are reserved for the local submission state of an
// entity whose registration is not final yet. At most one status flag may
// be set on a stored identifier; callers own that invariant.
package id

import "fmt"

// ID names a remote registry entity. Zero means unknown.
type ID uint32

// The high bit stays untouched so an ID survives a round trip through a
// signed 32-bit representation.
const (
	// PendingSubmission marks an entity whose registration request has
	// been built but not yet submitted.
	PendingSubmission ID = 1 << 30
	// PendingProcessing marks an entity whose registration request was
	// accepted and is awaiting approval on the server.
	PendingProcessing ID = 1 << 29
	// Rejected marks an entity whose registration request was declined.
	Rejected ID = 1 << 28

	statusMask = PendingSubmission | PendingProcessing | Rejected
)

// Strip returns the numeric identifier with all status flags cleared.
func (v ID) Strip() ID {
	return v &^ statusMask
}

// Usable reports whether v is a fully resolved registry identifier.
func (v ID) Usable() bool {
	return v != 0 && v&statusMask == 0
}

// Pending reports whether any status flag is set on v.
func (v ID) Pending() bool {
	return v&statusMask != 0
}

// String renders the identifier with its submission state for reports.
func (v ID) String() string {
	switch {
	case v == 0:
		return "unset"
	case v&PendingSubmission != 0:
		return fmt.Sprintf("request %d (submitted)", uint32(v.Strip()))
	case v&PendingProcessing != 0:
		return fmt.Sprintf("request %d (processing)", uint32(v.Strip()))
	case v&Rejected != 0:
		return fmt.Sprintf("%d (rejected)", uint32(v.Strip()))
	default:
		return fmt.Sprintf("%d", uint32(v))
	}
}
