package idcompressor

import "sort"

// SessionSpaceRef indexes a session's space by position in the owning
// Sessions container, in lieu of holding a pointer: Sessions is the one
// place session state lives, every other reference is an index into it.
type SessionSpaceRef struct {
	index int
}

// sessionSpace holds everything one session's compressor has allocated:
// the ordered chain of clusters it created, each packed immediately after
// the last (no gaps in local ID space across the chain).
type sessionSpace struct {
	sessionID    SessionID
	selfRef      SessionSpaceRef
	clusterChain []idCluster
}

// Sessions is the single owner of every session's allocation state. It is
// the only container that holds idCluster values directly; every other
// structure that refers to clusters (FinalSpace, UuidSpace) does so by
// ClusterRef/SessionSpaceRef index.
type Sessions struct {
	byID   map[SessionID]SessionSpaceRef
	spaces []sessionSpace
}

// newSessions returns an empty Sessions container.
func newSessions() *Sessions {
	return &Sessions{byID: make(map[SessionID]SessionSpaceRef)}
}

// getOrCreate returns the existing space for sessionID, or creates and
// registers an empty one.
func (s *Sessions) getOrCreate(sessionID SessionID) SessionSpaceRef {
	if ref, ok := s.byID[sessionID]; ok {
		return ref
	}
	ref := SessionSpaceRef{index: len(s.spaces)}
	s.spaces = append(s.spaces, sessionSpace{sessionID: sessionID, selfRef: ref})
	s.byID[sessionID] = ref
	return ref
}

// get looks up a session's ref without creating one.
func (s *Sessions) get(sessionID SessionID) (SessionSpaceRef, bool) {
	ref, ok := s.byID[sessionID]
	return ref, ok
}

// derefSessionSpace returns the session space ref points to.
func (s *Sessions) derefSessionSpace(ref SessionSpaceRef) *sessionSpace {
	return &s.spaces[ref.index]
}

// derefCluster returns the cluster ref points to.
func (s *Sessions) derefCluster(ref ClusterRef) *idCluster {
	return &s.spaces[ref.session.index].clusterChain[ref.index]
}

// sessionIDOf returns the SessionID owning ref.
func (s *Sessions) sessionIDOf(ref SessionSpaceRef) SessionID {
	return s.spaces[ref.index].sessionID
}

// allRefs returns every registered session's ref, in registration order
// (used by serialization, which needs a stable iteration order).
func (s *Sessions) allRefs() []SessionSpaceRef {
	refs := make([]SessionSpaceRef, len(s.spaces))
	for i := range s.spaces {
		refs[i] = s.spaces[i].selfRef
	}
	return refs
}

// getTailCluster returns the last cluster in the session's chain, if any.
func (sp *sessionSpace) getTailCluster() (ClusterRef, *idCluster, bool) {
	if len(sp.clusterChain) == 0 {
		return ClusterRef{}, nil, false
	}
	idx := len(sp.clusterChain) - 1
	return ClusterRef{session: sp.selfRef, index: idx}, &sp.clusterChain[idx], true
}

// addCluster appends a fully-specified cluster to the chain and returns
// its ref. The caller is responsible for baseLocalID/baseFinalID
// continuity with any prior tail cluster.
func (sp *sessionSpace) addCluster(c idCluster) ClusterRef {
	c.sessionCreator = sp.selfRef
	sp.clusterChain = append(sp.clusterChain, c)
	return ClusterRef{session: sp.selfRef, index: len(sp.clusterChain) - 1}
}

// tryConvertToFinal looks up the cluster owning local and returns the
// corresponding final ID. If includeAllocated is true, a local that has
// been reserved capacity but not yet finalized (an "eager final" gap)
// still resolves via the cluster's full capacity span; otherwise only
// locals that have actually been finalized (within count) resolve.
func (sp *sessionSpace) tryConvertToFinal(local LocalID, includeAllocated bool) (FinalID, bool) {
	chain := sp.clusterChain
	// Locals are allocated most-recent-last, so the chain is ordered by
	// strictly decreasing baseLocalID; binary search on that order for the
	// last cluster whose baseLocalID is still >= local.
	i := sort.Search(len(chain), func(i int) bool {
		return chain[i].baseLocalID < local
	})
	if i == 0 {
		return 0, false
	}
	c := &chain[i-1]
	if includeAllocated {
		return c.reservedFinalFor(local)
	}
	return c.getAllocatedFinal(local)
}

// getClusterByAllocatedFinal returns the cluster in this session's chain
// whose reserved capacity contains final, via binary search over the
// chain's (necessarily increasing) base final IDs. The bound is
// capacity-based, not count-based, so it also finds a cluster for one of
// this session's own eager finals that hasn't actually been finalized
// yet; the caller distinguishes that case by comparing the aligned local's
// generation count with its own generated count.
func (sp *sessionSpace) getClusterByAllocatedFinal(final FinalID) (ClusterRef, *idCluster, bool) {
	chain := sp.clusterChain
	i := sort.Search(len(chain), func(i int) bool {
		return chain[i].baseFinalID > final
	})
	if i == 0 {
		return ClusterRef{}, nil, false
	}
	c := &chain[i-1]
	if final > c.maxFinal() {
		return ClusterRef{}, nil, false
	}
	return ClusterRef{session: sp.selfRef, index: i - 1}, c, true
}
