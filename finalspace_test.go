package idcompressor

import "testing"

func TestFinalSpaceSearchAndIsLastCluster(t *testing.T) {
	sessions := newSessions()
	ref := sessions.getOrCreate(mustSessionID(t, "00000000-0000-4000-8000-000000000000"))
	sp := sessions.derefSessionSpace(ref)

	c1 := sp.addCluster(idCluster{baseFinalID: 0, baseLocalID: -1, capacity: 5, count: 5})
	c2 := sp.addCluster(idCluster{baseFinalID: 5, baseLocalID: -6, capacity: 5, count: 2})

	fs := newFinalSpace(sessions)
	fs.addCluster(c1)

	if !fs.isLastCluster(c1) {
		t.Errorf("isLastCluster(c1) = false, want true")
	}

	fs.addCluster(c2)
	if fs.isLastCluster(c1) {
		t.Errorf("isLastCluster(c1) = true after c2 was appended, want false")
	}
	if !fs.isLastCluster(c2) {
		t.Errorf("isLastCluster(c2) = false, want true")
	}

	if got, ok := fs.search(3); !ok || got != c1 {
		t.Errorf("search(3) = (%+v, %v), want (%+v, true)", got, ok, c1)
	}
	if got, ok := fs.search(6); !ok || got != c2 {
		t.Errorf("search(6) = (%+v, %v), want (%+v, true)", got, ok, c2)
	}
	// c2 has only finalized 2 of its 5 reserved IDs, but the bound is
	// capacity-based: final 8 still resolves, as an eager final would.
	if got, ok := fs.search(8); !ok || got != c2 {
		t.Errorf("search(8) = (%+v, %v), want (%+v, true): capacity-based search should find reserved-but-unfinalized finals", got, ok, c2)
	}
	if _, ok := fs.search(100); ok {
		t.Errorf("search(100) should fail: no cluster covers it")
	}

	tail, ok := fs.getTailCluster()
	if !ok || tail != c2 {
		t.Errorf("getTailCluster() = (%+v, %v), want (%+v, true)", tail, ok, c2)
	}
}

func TestFinalSpaceEmpty(t *testing.T) {
	sessions := newSessions()
	fs := newFinalSpace(sessions)
	if _, ok := fs.getTailCluster(); ok {
		t.Errorf("getTailCluster on an empty finalSpace should report not found")
	}
	if _, ok := fs.search(0); ok {
		t.Errorf("search on an empty finalSpace should report not found")
	}
}
