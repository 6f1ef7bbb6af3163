package idcompressor

import "sort"

// normalizerRun is a contiguous block of local IDs, [base, base-count+1],
// that were externalized to peers as locals rather than as eager finals.
type normalizerRun struct {
	base  LocalID
	count uint64
}

// sessionSpaceNormalizer tracks which of a session's own local IDs were
// handed out by GenerateNextID as locals (no reserved final ID existed
// for them yet), as opposed to ones resolved to an eager
// final immediately. Only locals ever added here come back out of
// `normalize_to_session_space` as locals even after finalization — every
// other previously-local ID is now reported in its finalized form. Stored
// as a run-length-encoded list of local-ID ranges (chronological, so
// bases strictly decrease run to run), the idiomatic substitute for the
// reference implementation's matching Vec<(LocalId, u64)>.
type sessionSpaceNormalizer struct {
	runs []normalizerRun
}

// addLocalRange records that count consecutive local IDs starting at
// baseLocal (and counting down) were externalized as locals. Coalesces
// with the previous run when the new range picks up exactly where it
// left off, keeping the run list compact.
func (n *sessionSpaceNormalizer) addLocalRange(baseLocal LocalID, count uint64) {
	if len(n.runs) > 0 {
		last := &n.runs[len(n.runs)-1]
		if last.base-LocalID(last.count) == baseLocal {
			last.count += count
			return
		}
	}
	n.runs = append(n.runs, normalizerRun{base: baseLocal, count: count})
}

// contains reports whether local was externalized as a local ID (as
// opposed to resolving to an eager final from the moment it was
// generated).
func (n *sessionSpaceNormalizer) contains(local LocalID) bool {
	// Runs are stored in strictly decreasing base order; binary search for
	// the last run whose base is >= local, then range-check it.
	i := sort.Search(len(n.runs), func(i int) bool {
		return n.runs[i].base < local
	})
	if i == 0 {
		return false
	}
	run := n.runs[i-1]
	return local <= run.base && local > run.base-LocalID(run.count)
}
