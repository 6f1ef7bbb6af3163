package idcompressor

import (
	"context"
	"io"
	"log/slog"
)

// DefaultClusterCapacity is the number of IDs reserved per cluster when a
// compressor creates one without an explicit override — large enough
// that most sessions finalize well within a single cluster, small enough
// that an idle session doesn't hoard a large final-ID span no one else
// can ever claim.
const DefaultClusterCapacity = 512

// IDRange describes a contiguous block of a session's locally generated
// IDs: the block TakeNextRange hands the caller to forward to whatever
// ordered-delivery channel finalizes ranges across peers, and the block
// FinalizeRange consumes once that channel delivers it back in order.
type IDRange struct {
	SessionID           SessionID
	BaseGenerationCount uint64
	Count               uint64
}

// TelemetryStats are the counters the allocation algorithm itself needs
// to reason about its own behavior — how much it is relying on eager
// finalization, how often clusters expand versus get created fresh. Not
// arbitrary instrumentation: each counter corresponds to a branch the
// finalization/generation algorithm itself takes.
type TelemetryStats struct {
	EagerFinalCount      uint64
	LocalIDCount         uint64
	ExpansionCount       uint64
	ClusterCreationCount uint64
}

// Compressor is a single session's view of the distributed compressed-ID
// space: it generates this session's own IDs, finalizes ranges (its own
// and others'), and translates between the three coexisting ID spaces
// (session, op, stable). It holds no locks and expects single-threaded,
// non-reentrant use — the same way the algorithm it implements assumes
// no concurrent mutation.
type Compressor struct {
	sessions   *Sessions
	finalSpace *finalSpace
	uuidSpace  *uuidSpace
	normalizer sessionSpaceNormalizer
	cache      *idCache

	localSessionID    SessionID
	localSessionRef   SessionSpaceRef
	localGenCount     uint64
	lastTakenGenCount uint64

	clusterCapacity uint64
	stats           TelemetryStats
	logger          *slog.Logger
}

// New returns a Compressor for a freshly chosen session, using the
// supplied entropy source to generate its SessionID.
func New(rng io.Reader) (*Compressor, error) {
	sessionID, err := NewSessionIDFrom(rng)
	if err != nil {
		return nil, err
	}
	return NewWithSessionID(sessionID), nil
}

// NewWithSessionID returns a Compressor for the given session identity —
// useful for tests that need deterministic session IDs, or for resuming
// a session whose ID is already known.
func NewWithSessionID(sessionID SessionID) *Compressor {
	sessions := newSessions()
	ref := sessions.getOrCreate(sessionID)
	cache, _ := newIDCache(defaultCacheSize) // size > 0 constant, never errors
	return &Compressor{
		sessions:        sessions,
		finalSpace:      newFinalSpace(sessions),
		uuidSpace:       newUUIDSpace(sessions),
		cache:           cache,
		localSessionID:  sessionID,
		localSessionRef: ref,
		clusterCapacity: DefaultClusterCapacity,
		logger:          slog.New(discardHandler{}),
	}
}

// SetLogger installs a structured logger for diagnostic events emitted
// during FinalizeRange (collisions, out-of-order ranges, expand-vs-spill
// decisions). Passing nil restores the no-op default. Purely diagnostic:
// it never changes FinalizeRange's outcome.
func (c *Compressor) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.New(discardHandler{})
	}
	c.logger = logger
}

// SetClusterCapacity changes how many IDs a newly created cluster
// reserves. Must be at least 1; does not affect clusters already created.
func (c *Compressor) SetClusterCapacity(capacity uint64) error {
	if capacity < 1 {
		return ErrInvalidClusterCapacity
	}
	c.clusterCapacity = capacity
	return nil
}

// SessionID returns this compressor's own session identity.
func (c *Compressor) SessionID() SessionID { return c.localSessionID }

// SessionToken returns the opaque, fast-comparison handle for a known
// session, for use with the *WithToken normalization overloads. The
// second result is false if the session has never been observed.
func (c *Compressor) SessionToken(sessionID SessionID) (SessionSpaceRef, bool) {
	return c.sessions.get(sessionID)
}

// SessionIDOf resolves a session token back to its SessionID.
func (c *Compressor) SessionIDOf(token SessionSpaceRef) SessionID {
	return c.sessions.sessionIDOf(token)
}

// Stats returns a snapshot of the algorithm-intrinsic telemetry counters.
func (c *Compressor) Stats() TelemetryStats { return c.stats }

// GenerateNextID returns the next SessionSpaceID in this session's own
// stream. If a previously finalized cluster still has spare reserved
// capacity, the new ID resolves immediately to its eager final ID
// instead of a local one.
func (c *Compressor) GenerateNextID() SessionSpaceID {
	c.localGenCount++
	local := LocalIDFromGenerationCount(c.localGenCount)

	sp := c.sessions.derefSessionSpace(c.localSessionRef)
	if _, tail, ok := sp.getTailCluster(); ok {
		if final, ok := tail.reservedFinalFor(local); ok {
			c.stats.EagerFinalCount++
			return final.SessionSpaceID()
		}
	}

	c.stats.LocalIDCount++
	c.normalizer.addLocalRange(local, 1)
	return local.SessionSpaceID()
}

// TakeNextRange returns every locally generated ID since the last call to
// TakeNextRange, packaged for delivery to whatever ordered-delivery
// channel is responsible for finalizing it (locally or for peers).
func (c *Compressor) TakeNextRange() IDRange {
	base := c.lastTakenGenCount + 1
	count := c.localGenCount - c.lastTakenGenCount
	c.lastTakenGenCount = c.localGenCount
	return IDRange{SessionID: c.localSessionID, BaseGenerationCount: base, Count: count}
}

// FinalizeRange commits a previously taken range of IDs (this session's
// own, or one forwarded from a peer) to the global final-ID space. Ranges
// for a given session must be finalized in the exact order they were
// generated; finalizing the same range twice, out of order, or one that
// would collide with another session's reserved span is rejected without
// mutating any state.
func (c *Compressor) FinalizeRange(r IDRange) error {
	if r.Count == 0 {
		return nil
	}

	rangeBaseLocal := LocalIDFromGenerationCount(r.BaseGenerationCount)
	rangeBaseStable := r.SessionID.StableID().Add(rangeBaseLocal.GenerationCount() - 1)

	// The collision check runs before the session is interned or any
	// state touched: a rejected range must leave nothing behind, not even
	// a never-seen session's empty space. The bound is deliberately
	// generous — it covers the largest span a brand-new cluster could
	// ever claim for this range, not whatever capacity the branch below
	// ends up choosing.
	collisionRef := SessionSpaceRef{index: -1}
	if ref, known := c.sessions.get(r.SessionID); known {
		collisionRef = ref
	}
	collisionHi := rangeBaseStable.Add(r.Count + c.clusterCapacity)
	if c.uuidSpace.rangeCollides(collisionRef, rangeBaseStable, collisionHi) {
		c.logger.Warn("new cluster would collide with a foreign session's reserved span",
			slog.String("session", r.SessionID.String()))
		return ErrClusterCollision
	}

	// A never-seen session can only start at generation count 1; reject
	// anything else before interning it, for the same reason as above.
	if _, known := c.sessions.get(r.SessionID); !known && rangeBaseLocal != -1 {
		c.logger.Warn("range finalized out of order",
			slog.String("session", r.SessionID.String()),
			slog.Uint64("base_generation_count", r.BaseGenerationCount))
		return ErrRangeFinalizedOutOfOrder
	}

	sessionRef := c.sessions.getOrCreate(r.SessionID)
	sp := c.sessions.derefSessionSpace(sessionRef)

	tailRef, tail, hasTail := sp.getTailCluster()
	switch {
	case !hasTail:
		if rangeBaseLocal != -1 {
			c.logger.Warn("range finalized out of order",
				slog.String("session", r.SessionID.String()),
				slog.Uint64("base_generation_count", r.BaseGenerationCount))
			return ErrRangeFinalizedOutOfOrder
		}
		tailRef, tail = c.addEmptyCluster(sessionRef, rangeBaseLocal, c.clusterCapacity+r.Count)
		c.stats.ClusterCreationCount++
	case tail.baseLocalID-LocalID(tail.count) != rangeBaseLocal:
		c.logger.Warn("range finalized out of order",
			slog.String("session", r.SessionID.String()),
			slog.Uint64("base_generation_count", r.BaseGenerationCount))
		return ErrRangeFinalizedOutOfOrder
	}

	// The range fits, expands the tail in place, or spills into a new
	// cluster — exactly one of these, and a freshly created tail always
	// falls into the first case since its capacity already accounts for
	// this whole range.
	remaining := tail.capacity - tail.count
	switch {
	case remaining >= r.Count:
		tail.count += r.Count
		c.logger.Debug("range finalized into the tail cluster's spare capacity",
			slog.String("session", r.SessionID.String()),
			slog.Uint64("count", r.Count))
	case c.finalSpace.isLastCluster(tailRef):
		overflow := r.Count - remaining
		tail.capacity += overflow + c.clusterCapacity
		tail.count += r.Count
		c.stats.ExpansionCount++
		c.logger.Debug("range finalized by expanding the tail cluster's capacity",
			slog.String("session", r.SessionID.String()),
			slog.Uint64("count", r.Count))
	default:
		overflow := r.Count - remaining
		tail.count = tail.capacity
		_, spilled := c.addEmptyCluster(sessionRef, rangeBaseLocal-LocalID(remaining), overflow+c.clusterCapacity)
		spilled.count = overflow
		c.stats.ClusterCreationCount++
		c.logger.Debug("range finalized by spilling past another session's cluster",
			slog.String("session", r.SessionID.String()),
			slog.Uint64("count", r.Count))
	}
	return nil
}

// addEmptyCluster creates a fresh, zero-count cluster for sessionRef at
// baseLocal with the given capacity, and registers it with FinalSpace and
// UuidSpace. Every cluster is born this way — its full reserved capacity
// is claimed in both final-ID and stable-ID space the moment it exists,
// before a single ID in it has actually been finalized.
func (c *Compressor) addEmptyCluster(sessionRef SessionSpaceRef, baseLocal LocalID, capacity uint64) (ClusterRef, *idCluster) {
	var baseFinal FinalID
	if lastRef, ok := c.finalSpace.getTailCluster(); ok {
		last := c.sessions.derefCluster(lastRef)
		baseFinal = last.baseFinalID + FinalID(last.capacity)
	}
	sp := c.sessions.derefSessionSpace(sessionRef)
	ref := sp.addCluster(idCluster{
		baseFinalID: baseFinal,
		baseLocalID: baseLocal,
		capacity:    capacity,
	})
	c.finalSpace.addCluster(ref)
	c.uuidSpace.addCluster(ref)
	return ref, c.sessions.derefCluster(ref)
}

// NormalizeToOpSpace converts one of this session's own SessionSpaceIDs
// into the form transmitted on the wire: final IDs pass through
// unchanged, and locals resolve to their eager final if one was reserved,
// unless this local was explicitly generated without one (already
// recorded as "kept local" the moment it was generated).
func (c *Compressor) NormalizeToOpSpace(id SessionSpaceID) (OpSpaceID, error) {
	comp := toSpaceSessionSpace(id)
	if comp.IsFinal() {
		return OpSpaceID(comp.Final), nil
	}
	local := comp.Local
	if local.GenerationCount() == 0 || local.GenerationCount() > c.localGenCount {
		return 0, ErrUngeneratedID
	}
	if c.normalizer.contains(local) {
		return OpSpaceID(local), nil
	}
	sp := c.sessions.derefSessionSpace(c.localSessionRef)
	if final, ok := sp.tryConvertToFinal(local, true); ok {
		return OpSpaceID(final), nil
	}
	return 0, ErrUnobtainableID
}

// NormalizeToSessionSpace converts an OpSpaceID received from originID
// into this compressor's own SessionSpaceID. Prefer
// NormalizeToSessionSpaceWithToken on hot paths: it skips the session ID
// lookup.
func (c *Compressor) NormalizeToSessionSpace(id OpSpaceID, originID SessionID) (SessionSpaceID, error) {
	ref, ok := c.sessions.get(originID)
	if !ok {
		return 0, ErrUnknownSessionID
	}
	return c.normalizeToSessionSpaceWithRef(id, ref)
}

// NormalizeToSessionSpaceWithToken is NormalizeToSessionSpace using an
// already-resolved session token, avoiding repeated UUID hashing on hot
// paths.
func (c *Compressor) NormalizeToSessionSpaceWithToken(id OpSpaceID, token SessionSpaceRef) (SessionSpaceID, error) {
	return c.normalizeToSessionSpaceWithRef(id, token)
}

func (c *Compressor) normalizeToSessionSpaceWithRef(id OpSpaceID, originRef SessionSpaceRef) (SessionSpaceID, error) {
	comp := toSpaceOpSpace(id)
	if comp.IsLocal() {
		if originRef == c.localSessionRef {
			return SessionSpaceID(comp.Local), nil
		}
		sp := c.sessions.derefSessionSpace(originRef)
		final, ok := sp.tryConvertToFinal(comp.Local, false)
		if !ok {
			return 0, ErrUnfinalizedForeignLocal
		}
		return SessionSpaceID(final), nil
	}

	if originRef == c.localSessionRef {
		sp := c.sessions.derefSessionSpace(c.localSessionRef)
		if _, cluster, ok := sp.getClusterByAllocatedFinal(comp.Final); ok {
			local, _ := cluster.getAlignedLocal(comp.Final)
			if c.normalizer.contains(local) {
				return SessionSpaceID(local), nil
			}
			if local.GenerationCount() <= c.localGenCount {
				return SessionSpaceID(comp.Final), nil
			}
			return 0, ErrUngeneratedID
		}
	}
	return SessionSpaceID(comp.Final), nil
}

// Decompress converts a SessionSpaceID into its globally stable UUID
// form, valid for as long as the compressor exists regardless of
// finalization order across peers.
func (c *Compressor) Decompress(id SessionSpaceID) (StableID, error) {
	comp := toSpaceSessionSpace(id)
	if comp.IsLocal() {
		local := comp.Local
		if local.GenerationCount() == 0 || local.GenerationCount() > c.localGenCount {
			return StableID{}, ErrUngeneratedID
		}
		return c.localSessionID.StableID().Add(local.GenerationCount() - 1), nil
	}

	final := comp.Final
	if cached, ok := c.cache.getDecompressed(final); ok {
		return cached, nil
	}
	ref, ok := c.finalSpace.search(final)
	if !ok {
		return StableID{}, ErrUnallocatedFinalID
	}
	cluster := c.sessions.derefCluster(ref)
	stable := clusterBaseStable(c.sessions, ref).Add(uint64(final - cluster.baseFinalID))
	c.cache.putDecompressed(final, stable)
	return stable, nil
}

// Recompress converts a globally stable UUID back into this session's own
// SessionSpaceID.
func (c *Compressor) Recompress(stable StableID) (SessionSpaceID, error) {
	if cached, ok := c.cache.getRecompressed(stable); ok {
		return cached, nil
	}
	result, err := c.recompressUncached(stable)
	if err != nil {
		return 0, err
	}
	c.cache.putRecompressed(stable, result)
	return result, nil
}

func (c *Compressor) recompressUncached(stable StableID) (SessionSpaceID, error) {
	if ref, originatorLocal, ok := c.uuidSpace.search(stable); ok {
		cluster := c.sessions.derefCluster(ref)
		if ref.session == c.localSessionRef && c.normalizer.contains(originatorLocal) {
			return SessionSpaceID(originatorLocal), nil
		}
		final, ok := cluster.reservedFinalFor(originatorLocal)
		if !ok {
			return 0, ErrUnallocatedStableID
		}
		return SessionSpaceID(final), nil
	}

	// Self-session fallback: a stable ID for one of our own locals that
	// hasn't joined any cluster yet (nothing has been finalized for this
	// session so far) still decompresses deterministically, since its
	// stable ID is defined purely as an offset from our own session ID.
	// Arithmetic here operates on the compressed StableID representation
	// precisely so it can never drift into the reserved version/variant
	// bits — see TestStableIDIncrementSpillover.
	ownStable := c.localSessionID.StableID()
	if !stable.Less(ownStable) {
		offset := stable.Diff(ownStable)
		if offset < c.localGenCount {
			return SessionSpaceID(LocalIDFromGenerationCount(offset + 1)), nil
		}
	}
	return 0, ErrUnallocatedStableID
}

// discardHandler is a slog.Handler that drops every record, the default
// installed until SetLogger supplies a real one.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (h discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h discardHandler) WithGroup(string) slog.Handler           { return h }
