package idcompressor

import "sort"

// uuidEntry is one row of uuidSpace: the stable ID a cluster's first
// reserved local ID decompresses to, and the cluster that owns it.
type uuidEntry struct {
	base    StableID
	cluster ClusterRef
}

// uuidSpace orders every cluster's reserved stable-ID span (across every
// session) by its base stable ID, so that decompressing an arbitrary
// stable ID — or checking whether a newly reserved span would overlap an
// existing one — is a floor lookup. Go has no ordered-map type comparable
// to Rust's BTreeMap, so this is a slice kept sorted by base, searched
// with sort.Search (binary search), the idiomatic substitute.
type uuidSpace struct {
	entries  []uuidEntry
	sessions *Sessions
}

func newUUIDSpace(sessions *Sessions) *uuidSpace {
	return &uuidSpace{sessions: sessions}
}

// clusterBaseStable returns the stable ID that cluster's first reserved
// local ID (baseLocalID) decompresses to: the owning session's own
// stable ID, offset by the generation count of that local minus one.
func clusterBaseStable(sessions *Sessions, ref ClusterRef) StableID {
	c := sessions.derefCluster(ref)
	sessionStable := sessions.sessionIDOf(ref.session).StableID()
	return sessionStable.Add(c.baseLocalID.GenerationCount() - 1)
}

// clusterMaxStable returns the last stable ID within cluster's full
// reserved (not just finalized) capacity span.
func clusterMaxStable(sessions *Sessions, ref ClusterRef) StableID {
	c := sessions.derefCluster(ref)
	return clusterBaseStable(sessions, ref).Add(c.capacity - 1)
}

// addCluster registers ref's reserved stable-ID span, inserting at the
// position that keeps entries sorted by base stable ID.
func (u *uuidSpace) addCluster(ref ClusterRef) {
	base := clusterBaseStable(u.sessions, ref)
	i := sort.Search(len(u.entries), func(i int) bool {
		return !u.entries[i].base.Less(base)
	})
	u.entries = append(u.entries, uuidEntry{})
	copy(u.entries[i+1:], u.entries[i:])
	u.entries[i] = uuidEntry{base: base, cluster: ref}
}

// floor returns the index of the entry with the greatest base <= query,
// or -1 if query is smaller than every entry's base.
func (u *uuidSpace) floor(query StableID) int {
	i := sort.Search(len(u.entries), func(i int) bool {
		return query.Less(u.entries[i].base)
	})
	return i - 1
}

// search decompresses query into the cluster that reserved it and the
// local ID it corresponds to within that cluster's session, provided
// query falls within some cluster's reserved capacity span.
func (u *uuidSpace) search(query StableID) (ClusterRef, LocalID, bool) {
	i := u.floor(query)
	if i < 0 {
		return ClusterRef{}, 0, false
	}
	entry := u.entries[i]
	offset := query.Diff(entry.base)
	c := u.sessions.derefCluster(entry.cluster)
	if offset >= c.capacity {
		return ClusterRef{}, 0, false
	}
	originatorLocal := LocalID(-(int64(offset) + 1))
	return entry.cluster, originatorLocal, true
}

// rangeCollides reports whether reserving [lo, hi] (inclusive, the span a
// newly created cluster for originator would claim) would overlap a span
// already reserved by a different session. It is the same floor lookup as
// search, but the only question asked is whether the predecessor's
// reserved span (regardless of owner) reaches into [lo, hi] while
// belonging to someone other than originator.
func (u *uuidSpace) rangeCollides(originator SessionSpaceRef, lo, hi StableID) bool {
	i := u.floor(hi)
	if i < 0 {
		return false
	}
	entry := u.entries[i]
	if entry.cluster.session == originator {
		return false
	}
	maxStable := clusterMaxStable(u.sessions, entry.cluster)
	return !maxStable.Less(lo)
}
