/*
Package idcompressor implements a distributed compressed-identifier
allocator: a single session's view of an ID space shared with any number
of peers, none of which need to coordinate in real time.

# Overview

Three ID forms coexist for the same logical identifier:

  - A SessionSpaceID, the form application code deals with. Negative
    values are locals (generated by "this" session, not yet known to
    anyone else); non-negative values are finals (globally unique,
    agreed on by everyone).
  - An OpSpaceID, the wire form sent between peers.
  - A StableID, a compressed 128-bit value (a version-4/variant-1 UUID
    with its reserved bits squeezed out) that every ID is reducible to —
    the one representation that means the same thing to every peer
    without a round trip.

A session generates IDs immediately and optimistically, as locals. Some
time later — possibly much later, possibly never for a given ID — those
locals are finalized into globally unique final IDs, in batches, via an
ordered-delivery channel this package doesn't implement (it only
consumes the order that channel guarantees).

# Quick Start

	import "github.com/arcweave/idcompressor"

	compressor, _ := idcompressor.New(rand.Reader)

	id := compressor.GenerateNextID()
	opSpaceID, _ := compressor.NormalizeToOpSpace(id)
	// send opSpaceID to peers alongside compressor.SessionID()

	// ... some time later, a finalization channel delivers a range back:
	compressor.FinalizeRange(idcompressor.IDRange{
		SessionID:           compressor.SessionID(),
		BaseGenerationCount: 1,
		Count:               1,
	})

	stable, _ := compressor.Decompress(id)
	fmt.Println(stable) // a stable, globally meaningful UUID

# Cluster-Based Allocation

Finalizing one ID at a time would mean one round trip per ID. Instead,
FinalizeRange reserves a whole contiguous block of final IDs — a
cluster — for the session at once, sized by SetClusterCapacity (default
512). Once a session has a cluster with spare reserved capacity,
GenerateNextID can resolve new locals to an eager final immediately,
without waiting for another round of finalization at all:

	compressor.SetClusterCapacity(1000)
	// after the first FinalizeRange, the next 1000 GenerateNextID calls
	// resolve directly to final IDs — no local ever exists for them.

# The Four-Table Model

Internally, a Compressor holds four structures, the same division of
labor as the algorithm it implements:

  - Sessions: the single owner of every session's cluster chain. Every
    other structure refers to a cluster or session by an integer index
    (ClusterRef, SessionSpaceRef) rather than a pointer, so cyclic
    references between sessions, clusters, and the global spaces never
    need reference counting or unsafe aliasing.
  - finalSpace: every finalized cluster across every session, ordered
    by its base final ID, searched by binary search for decompression.
  - uuidSpace: every cluster's reserved stable-ID span, ordered for
    floor-lookup during recompression and collision detection.
  - sessionSpaceNormalizer: which of this session's own locals were
    handed out as locals (as opposed to eager finals) — so that once
    finalized, they still report as locals to stay consistent with
    whatever a peer already received.

# Error Handling

Every documented failure mode is a distinct exported sentinel error,
checked with errors.Is. FinalizeRange never mutates state on failure:
either the whole range commits, or none of it does.

# Concurrency

A Compressor holds no internal locks. It is built for single-threaded,
non-suspending use — callers needing concurrent access should serialize
their own calls, the same way the algorithm itself assumes no
concurrent mutation of its tables.
*/
package idcompressor
