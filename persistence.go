package idcompressor

import (
	"encoding/binary"
	"log/slog"
)

// persistenceVersion is the only serialization format this module
// understands. Bumping it is a breaking wire-format change.
const persistenceVersion = 1

// Serialize encodes the compressor's state as a versioned binary blob.
// When includeLocalState is true, the blob also captures this session's
// own generation/take bookkeeping and normalizer runs, letting
// Deserialize resume this exact session later; when false, the blob only
// captures the finalized, shareable state (suitable for seeding a fresh
// session that was never this one).
func (c *Compressor) Serialize(includeLocalState bool) []byte {
	var buf []byte
	buf = append(buf, persistenceVersion)
	if includeLocalState {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = appendUUIDBytes(buf, c.localSessionID.StableID())
	buf = appendU64(buf, c.clusterCapacity)

	if includeLocalState {
		buf = appendU64(buf, c.localGenCount)
		buf = appendU64(buf, c.lastTakenGenCount)
		buf = appendU32(buf, uint32(len(c.normalizer.runs)))
		for _, run := range c.normalizer.runs {
			buf = appendI64(buf, int64(run.base))
			buf = appendU64(buf, run.count)
		}
	}

	refs := c.sessions.allRefs()
	buf = appendU32(buf, uint32(len(refs)))
	// A session's position in refs is always its SessionSpaceRef's index
	// (allRefs preserves registration order), so the cluster order below
	// writes ref.session.index directly as the session position.
	for _, ref := range refs {
		sp := c.sessions.derefSessionSpace(ref)
		buf = appendUUIDBytes(buf, sp.sessionID.StableID())
		buf = appendU32(buf, uint32(len(sp.clusterChain)))
		for i := range sp.clusterChain {
			cl := &sp.clusterChain[i]
			buf = appendU64(buf, cl.capacity)
			buf = appendU64(buf, cl.count)
		}
	}

	order := c.finalSpace.clusterRefs()
	buf = appendU32(buf, uint32(len(order)))
	for _, ref := range order {
		buf = appendU32(buf, uint32(ref.session.index))
		buf = appendU32(buf, uint32(ref.index))
	}

	return buf
}

// Deserialize reconstructs a Compressor from a blob produced by Serialize.
//
// If the blob carries local state, resumeAsSessionID is ignored: the
// compressor resumes exactly as the embedded session. If it does not,
// resumeAsSessionID becomes this compressor's fresh session identity; it
// is an error for that identity to already appear among the blob's
// embedded sessions, since that would silently merge two distinct
// sessions' ID streams.
func Deserialize(data []byte, resumeAsSessionID SessionID) (*Compressor, error) {
	d := &deserializer{data: data}

	version, ok := d.takeByte()
	if !ok {
		return nil, ErrMalformedInput
	}
	if version != persistenceVersion {
		return nil, ErrUnknownVersion
	}
	hasLocalStateByte, ok := d.takeByte()
	if !ok {
		return nil, ErrMalformedInput
	}
	hasLocalState := hasLocalStateByte != 0

	embeddedSessionHi, embeddedSessionLo, ok := d.takeUUIDBytes()
	if !ok {
		return nil, ErrMalformedInput
	}
	embeddedSessionID := SessionID{id: fromUUID128(embeddedSessionHi, embeddedSessionLo)}

	clusterCapacity, ok := d.takeU64()
	if !ok {
		return nil, ErrMalformedInput
	}

	var localGenCount, lastTakenGenCount uint64
	var normalizerRuns []normalizerRun
	if hasLocalState {
		if localGenCount, ok = d.takeU64(); !ok {
			return nil, ErrMalformedInput
		}
		if lastTakenGenCount, ok = d.takeU64(); !ok {
			return nil, ErrMalformedInput
		}
		runCount, ok := d.takeU32()
		if !ok {
			return nil, ErrMalformedInput
		}
		normalizerRuns = make([]normalizerRun, 0, runCount)
		for i := uint32(0); i < runCount; i++ {
			base, ok := d.takeI64()
			if !ok {
				return nil, ErrMalformedInput
			}
			count, ok := d.takeU64()
			if !ok {
				return nil, ErrMalformedInput
			}
			normalizerRuns = append(normalizerRuns, normalizerRun{base: LocalID(base), count: count})
		}
	}

	sessionCount, ok := d.takeU32()
	if !ok {
		return nil, ErrMalformedInput
	}

	sessions := newSessions()
	type pendingCluster struct {
		capacity, count uint64
	}
	pending := make([][]pendingCluster, sessionCount)
	sessionRefs := make([]SessionSpaceRef, sessionCount)

	for i := uint32(0); i < sessionCount; i++ {
		hi, lo, ok := d.takeUUIDBytes()
		if !ok {
			return nil, ErrMalformedInput
		}
		sessionID := SessionID{id: fromUUID128(hi, lo)}
		if !hasLocalState && sessionID == resumeAsSessionID {
			return nil, ErrInvalidResumedSession
		}
		ref := sessions.getOrCreate(sessionID)
		sessionRefs[i] = ref

		clusterCount, ok := d.takeU32()
		if !ok {
			return nil, ErrMalformedInput
		}
		cls := make([]pendingCluster, 0, clusterCount)
		for j := uint32(0); j < clusterCount; j++ {
			capacity, ok := d.takeU64()
			if !ok {
				return nil, ErrMalformedInput
			}
			count, ok := d.takeU64()
			if !ok {
				return nil, ErrMalformedInput
			}
			cls = append(cls, pendingCluster{capacity: capacity, count: count})
		}
		pending[i] = cls
	}

	// Reconstruct baseLocalID per session by accumulating backward from
	// -1 down through each session's own chain.
	for i, cls := range pending {
		sp := sessions.derefSessionSpace(sessionRefs[i])
		base := LocalID(-1)
		for _, pc := range cls {
			sp.clusterChain = append(sp.clusterChain, idCluster{
				sessionCreator: sessionRefs[i],
				baseLocalID:    base,
				capacity:       pc.capacity,
				count:          pc.count,
			})
			base = base - LocalID(pc.capacity)
		}
	}

	globalCount, ok := d.takeU32()
	if !ok {
		return nil, ErrMalformedInput
	}
	finSpace := newFinalSpace(sessions)
	uSpace := newUUIDSpace(sessions)
	var nextFinal FinalID
	for i := uint32(0); i < globalCount; i++ {
		sessionIdx, ok := d.takeU32()
		if !ok {
			return nil, ErrMalformedInput
		}
		clusterIdx, ok := d.takeU32()
		if !ok {
			return nil, ErrMalformedInput
		}
		if int(sessionIdx) >= len(sessionRefs) {
			return nil, ErrMalformedInput
		}
		ref := ClusterRef{session: sessionRefs[sessionIdx], index: int(clusterIdx)}
		sp := sessions.derefSessionSpace(ref.session)
		if ref.index < 0 || ref.index >= len(sp.clusterChain) {
			return nil, ErrMalformedInput
		}
		cl := &sp.clusterChain[ref.index]
		cl.baseFinalID = nextFinal
		nextFinal += FinalID(cl.capacity)

		finSpace.addCluster(ref)
		uSpace.addCluster(ref)
	}

	localSessionID := embeddedSessionID
	localRef, ok := sessions.get(embeddedSessionID)
	if !hasLocalState {
		localSessionID = resumeAsSessionID
		localRef = sessions.getOrCreate(localSessionID)
	} else if !ok {
		localRef = sessions.getOrCreate(embeddedSessionID)
	}

	cache, err := newIDCache(defaultCacheSize)
	if err != nil {
		return nil, err
	}

	comp := &Compressor{
		sessions:          sessions,
		finalSpace:        finSpace,
		uuidSpace:         uSpace,
		cache:             cache,
		localSessionID:    localSessionID,
		localSessionRef:   localRef,
		clusterCapacity:   clusterCapacity,
		logger:            slog.New(discardHandler{}),
	}
	if hasLocalState {
		comp.localGenCount = localGenCount
		comp.lastTakenGenCount = lastTakenGenCount
		comp.normalizer.runs = normalizerRuns
	}
	return comp, nil
}

// deserializer reads fixed-width fields off the front of a byte slice,
// tracking position and flagging malformed (truncated) input instead of
// panicking — the same shape as the reference implementation's
// accumulating-cursor reader.
type deserializer struct {
	data []byte
	pos  int
}

func (d *deserializer) takeByte() (byte, bool) {
	if d.pos+1 > len(d.data) {
		return 0, false
	}
	b := d.data[d.pos]
	d.pos++
	return b, true
}

func (d *deserializer) takeU32() (uint32, bool) {
	if d.pos+4 > len(d.data) {
		return 0, false
	}
	v := binary.LittleEndian.Uint32(d.data[d.pos:])
	d.pos += 4
	return v, true
}

func (d *deserializer) takeU64() (uint64, bool) {
	if d.pos+8 > len(d.data) {
		return 0, false
	}
	v := binary.LittleEndian.Uint64(d.data[d.pos:])
	d.pos += 8
	return v, true
}

func (d *deserializer) takeI64() (int64, bool) {
	v, ok := d.takeU64()
	return int64(v), ok
}

func (d *deserializer) takeUUIDBytes() (hi, lo uint64, ok bool) {
	hi, ok = d.takeU64()
	if !ok {
		return 0, 0, false
	}
	lo, ok = d.takeU64()
	if !ok {
		return 0, 0, false
	}
	return hi, lo, true
}

func appendU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendU64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendI64(buf []byte, v int64) []byte {
	return appendU64(buf, uint64(v))
}

// appendUUIDBytes writes a StableID's reconstituted UUID form (hi, lo) so
// the wire format carries real UUIDs, not the compressed representation
// (keeping the persistence format stable even if the compressed layout
// ever changed).
func appendUUIDBytes(buf []byte, id StableID) []byte {
	hi, lo := id.toUUID128()
	buf = appendU64(buf, hi)
	buf = appendU64(buf, lo)
	return buf
}
