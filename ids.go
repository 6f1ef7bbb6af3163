package idcompressor

import "strconv"

// LocalID is a session-local identifier: always negative, with
// generation count = -id. The first ID a session generates is -1, the
// second -2, and so on; this lets a session hand out IDs before any
// round trip to a finalizing authority.
type LocalID int64

// FinalID is a globally unique identifier assigned during finalization.
// Always non-negative.
type FinalID uint64

// GenerationCount returns the 1-based order in which this local ID was
// generated by its session (the first local ID generated has generation
// count 1).
func (l LocalID) GenerationCount() uint64 {
	return uint64(-l)
}

// LocalIDFromGenerationCount converts a 1-based generation count back into
// the LocalID a session would have produced at that point.
func LocalIDFromGenerationCount(count uint64) LocalID {
	return LocalID(-int64(count))
}

// SessionSpaceID is a compressed ID expressed relative to the session
// that is currently interpreting it: negative values are still-local
// LocalIDs, non-negative values are finalized FinalIDs. This is the form
// application code consumes.
type SessionSpaceID int64

// OpSpaceID is a compressed ID as transmitted on the wire between peers:
// same sign convention as SessionSpaceID, but a negative value is only
// meaningful together with the originating session, since different
// sessions' local ID sequences are independent.
type OpSpaceID int64

// CompressedIDKind distinguishes the two cases of the CompressedID tagged
// union, in lieu of an inheritance hierarchy between ID types.
type CompressedIDKind int

const (
	// CompressedIDLocal marks a CompressedID that holds a LocalID.
	CompressedIDLocal CompressedIDKind = iota
	// CompressedIDFinal marks a CompressedID that holds a FinalID.
	CompressedIDFinal
)

// CompressedID is a tagged union of LocalID and FinalID, the space a
// SessionSpaceID or OpSpaceID value decomposes into. Callers switch on
// Kind rather than relying on dynamic dispatch across an ID hierarchy.
type CompressedID struct {
	Kind  CompressedIDKind
	Local LocalID
	Final FinalID
}

// toSpaceSessionSpace decomposes a SessionSpaceID into its tagged union.
func toSpaceSessionSpace(id SessionSpaceID) CompressedID {
	if id < 0 {
		return CompressedID{Kind: CompressedIDLocal, Local: LocalID(id)}
	}
	return CompressedID{Kind: CompressedIDFinal, Final: FinalID(id)}
}

// toSpaceOpSpace decomposes an OpSpaceID into its tagged union.
func toSpaceOpSpace(id OpSpaceID) CompressedID {
	if id < 0 {
		return CompressedID{Kind: CompressedIDLocal, Local: LocalID(id)}
	}
	return CompressedID{Kind: CompressedIDFinal, Final: FinalID(id)}
}

// IsLocal reports whether c holds a LocalID.
func (c CompressedID) IsLocal() bool { return c.Kind == CompressedIDLocal }

// IsFinal reports whether c holds a FinalID.
func (c CompressedID) IsFinal() bool { return c.Kind == CompressedIDFinal }

// SessionSpaceID reinterprets a LocalID in session space (trivial: the
// bit pattern of local and session-space IDs agree by construction).
func (l LocalID) SessionSpaceID() SessionSpaceID { return SessionSpaceID(l) }

// OpSpaceID reinterprets a LocalID in op space.
func (l LocalID) OpSpaceID() OpSpaceID { return OpSpaceID(l) }

// SessionSpaceID reinterprets a FinalID in session space.
func (f FinalID) SessionSpaceID() SessionSpaceID { return SessionSpaceID(f) }

// OpSpaceID reinterprets a FinalID in op space.
func (f FinalID) OpSpaceID() OpSpaceID { return OpSpaceID(f) }

func (l LocalID) String() string { return strconv.FormatInt(int64(l), 10) }
func (f FinalID) String() string { return strconv.FormatUint(uint64(f), 10) }
