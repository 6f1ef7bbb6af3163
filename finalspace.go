package idcompressor

import "sort"

// finalSpace orders every finalized cluster, across every session, by
// its base final ID. Because clusters are only ever appended to the end
// (finalization assigns the next contiguous block of final IDs) the list
// never has gaps and is always kept sorted.
type finalSpace struct {
	clusters []ClusterRef
	sessions *Sessions
}

func newFinalSpace(sessions *Sessions) *finalSpace {
	return &finalSpace{sessions: sessions}
}

// addCluster appends ref to the tail of final space. The caller must
// ensure ref's cluster's base final ID is >= every existing cluster's,
// maintaining finalSpace's sort invariant.
func (fs *finalSpace) addCluster(ref ClusterRef) {
	fs.clusters = append(fs.clusters, ref)
}

// isLastCluster reports whether ref is the cluster at the tail of final
// space — the one eligible for in-place expansion during finalization.
func (fs *finalSpace) isLastCluster(ref ClusterRef) bool {
	if len(fs.clusters) == 0 {
		return false
	}
	tail := fs.clusters[len(fs.clusters)-1]
	return tail.session == ref.session && tail.index == ref.index
}

// getTailCluster returns the cluster at the tail of final space, if any.
func (fs *finalSpace) getTailCluster() (ClusterRef, bool) {
	if len(fs.clusters) == 0 {
		return ClusterRef{}, false
	}
	return fs.clusters[len(fs.clusters)-1], true
}

// search returns the cluster whose reserved final-ID capacity contains
// final, via binary search over the base-final-ID-sorted cluster list.
// The bound is capacity-based, not count-based: a final can resolve here
// the instant its cluster exists, even if the range that will actually
// finalize it hasn't arrived yet (an eager final). Callers that care about
// the difference still have count available on the returned cluster.
func (fs *finalSpace) search(final FinalID) (ClusterRef, bool) {
	i := sort.Search(len(fs.clusters), func(i int) bool {
		return fs.sessions.derefCluster(fs.clusters[i]).baseFinalID > final
	})
	if i == 0 {
		return ClusterRef{}, false
	}
	ref := fs.clusters[i-1]
	c := fs.sessions.derefCluster(ref)
	if final > c.maxFinal() {
		return ClusterRef{}, false
	}
	return ref, true
}

// clusterRefs returns every cluster ref in final space, in order.
func (fs *finalSpace) clusterRefs() []ClusterRef {
	return fs.clusters
}
