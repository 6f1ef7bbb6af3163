package idcompressor

// equalForTest reports whether a and b hold the same compressed-ID state:
// the same sessions, in the same order, each with the same cluster chain,
// the same final-space and uuid-space cluster ordering, and the same
// normalizer runs. It ignores the decompression/recompression cache
// (pure memoization, never load-bearing) and the logger. Ported from the
// reference implementation's debug-only equals_test_only comparators, to
// validate round-trip serialization without exposing an `==`-like API on
// production types that hold back-references.
func equalForTest(a, b *Compressor) bool {
	if a.localSessionID != b.localSessionID {
		return false
	}
	if a.clusterCapacity != b.clusterCapacity {
		return false
	}
	if !normalizerEqualForTest(a.normalizer, b.normalizer) {
		return false
	}
	if !sessionsEqualForTest(a.sessions, b.sessions) {
		return false
	}
	if !finalSpaceEqualForTest(a.finalSpace, b.finalSpace) {
		return false
	}
	if !uuidSpaceEqualForTest(a.uuidSpace, b.uuidSpace) {
		return false
	}
	return true
}

func sessionsEqualForTest(a, b *Sessions) bool {
	if len(a.spaces) != len(b.spaces) {
		return false
	}
	for i := range a.spaces {
		as, bs := &a.spaces[i], &b.spaces[i]
		if as.sessionID != bs.sessionID {
			return false
		}
		if len(as.clusterChain) != len(bs.clusterChain) {
			return false
		}
		for j := range as.clusterChain {
			ac, bc := as.clusterChain[j], bs.clusterChain[j]
			if ac.baseFinalID != bc.baseFinalID || ac.baseLocalID != bc.baseLocalID ||
				ac.capacity != bc.capacity || ac.count != bc.count {
				return false
			}
		}
	}
	return true
}

func finalSpaceEqualForTest(a, b *finalSpace) bool {
	if len(a.clusters) != len(b.clusters) {
		return false
	}
	for i := range a.clusters {
		if a.clusters[i] != b.clusters[i] {
			return false
		}
	}
	return true
}

func uuidSpaceEqualForTest(a, b *uuidSpace) bool {
	if len(a.entries) != len(b.entries) {
		return false
	}
	for i := range a.entries {
		ae, be := a.entries[i], b.entries[i]
		if ae.base != be.base || ae.cluster != be.cluster {
			return false
		}
	}
	return true
}

func normalizerEqualForTest(a, b sessionSpaceNormalizer) bool {
	if len(a.runs) != len(b.runs) {
		return false
	}
	for i := range a.runs {
		if a.runs[i] != b.runs[i] {
			return false
		}
	}
	return true
}
