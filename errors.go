package idcompressor

import (
	"errors"
	"strconv"
)

// Input-shape errors. Reported synchronously; the compressor's state is
// left unchanged.
var (
	ErrInvalidUUIDString      = errors.New("idcompressor: not a valid hyphenated UUID string")
	ErrInvalidVersionOrVariant = errors.New("idcompressor: UUID is not version 4 / variant 1")
	ErrInvalidClusterCapacity = errors.New("idcompressor: cluster capacity must be >= 1")
	ErrInvalidRange           = errors.New("idcompressor: range count must be >= 1")
	ErrUnknownVersion         = errors.New("idcompressor: unknown serialization version")
	ErrMalformedInput         = errors.New("idcompressor: malformed serialized input")
)

// Protocol-ordering errors. The caller violated the finalization contract;
// state is unchanged and the caller must reconcile with its transport.
var (
	ErrRangeFinalizedOutOfOrder = errors.New("idcompressor: range finalized out of order")
	ErrClusterCollision         = errors.New("idcompressor: new cluster would collide with a foreign cluster")
	ErrInvalidResumedSession    = errors.New("idcompressor: resumed session ID collides with an embedded session")
)

// Lookup failures. These distinguish *why* a mapping query can't be
// answered, so callers can attribute the cause precisely.
var (
	ErrUnallocatedFinalID      = errors.New("idcompressor: final ID has not been allocated by any cluster")
	ErrUnfinalizedID           = errors.New("idcompressor: ID has been allocated but not yet finalized")
	ErrUngeneratedFinalID      = errors.New("idcompressor: final ID's aligned local has not yet been generated")
	ErrUnobtainableID          = errors.New("idcompressor: ID was handed out as an eager final, not a local")
	ErrNoAlignedLocal          = errors.New("idcompressor: final ID has no aligned local in its cluster")
	ErrUnallocatedStableID     = errors.New("idcompressor: stable ID is not owned by any cluster or the local session")
	ErrUngeneratedStableID     = errors.New("idcompressor: stable ID maps to a local ID not yet generated")
	ErrUnfinalizedForeignID    = errors.New("idcompressor: foreign stable ID has not yet been finalized")
	ErrNoAllocatedFinal        = errors.New("idcompressor: local ID falls outside its cluster's allocated capacity")
	ErrUnknownSessionSpaceID   = errors.New("idcompressor: session-space ID was never issued by this session")
	ErrUnknownSessionID        = errors.New("idcompressor: session ID has never been observed")
	ErrUnknownSessionToken     = errors.New("idcompressor: session token is not valid for this compressor")
	ErrUngeneratedID           = errors.New("idcompressor: ID has not yet been generated by its owning session")
	ErrUnfinalizedForeignLocal = errors.New("idcompressor: foreign local ID has not been finalized by its owning session")
	ErrUnFinalizedForeignFinal = errors.New("idcompressor: final ID exceeds every cluster finalized so far")
	ErrUnallocatedLocal        = errors.New("idcompressor: local ID exceeds the locally generated count")
	ErrNoTokenForSession       = errors.New("idcompressor: no IDs have ever been finalized by the supplied session")
)

// ParseError is returned when a UUID string cannot be parsed into a StableID.
//
// Use errors.As to recover the offending input:
//
//	var perr *ParseError
//	if errors.As(err, &perr) {
//	    fmt.Println(perr.Input)
//	}
type ParseError struct {
	Input string // the string that failed to parse
	Msg   string // description of the problem
}

func (e *ParseError) Error() string {
	return "idcompressor: parsing " + strconv.Quote(e.Input) + ": " + e.Msg
}
