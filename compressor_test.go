package idcompressor

import "testing"

func mustSessionID(t *testing.T, s string) SessionID {
	t.Helper()
	id, err := ParseSessionID(s)
	if err != nil {
		t.Fatalf("ParseSessionID(%q): %v", s, err)
	}
	return id
}

func TestGenerateFinalizeDecompressBasic(t *testing.T) {
	sid := mustSessionID(t, "00000000-0000-4000-8000-000000000000")
	c := NewWithSessionID(sid)

	id := c.GenerateNextID()
	if id >= 0 {
		t.Fatalf("expected a local (negative) SessionSpaceID, got %d", id)
	}

	beforeStable, err := c.Decompress(id)
	if err != nil {
		t.Fatalf("Decompress before finalize: %v", err)
	}

	r := c.TakeNextRange()
	if r.Count != 1 || r.BaseGenerationCount != 1 {
		t.Fatalf("unexpected range %+v", r)
	}
	if err := c.FinalizeRange(r); err != nil {
		t.Fatalf("FinalizeRange: %v", err)
	}

	afterStable, err := c.Decompress(id)
	if err != nil {
		t.Fatalf("Decompress after finalize: %v", err)
	}
	if beforeStable != afterStable {
		t.Errorf("decompression changed across finalization: %+v vs %+v", beforeStable, afterStable)
	}

	// This local was generated before any cluster existed, so it was
	// necessarily handed out as a local and must keep reporting that way
	// on the wire even after finalizing, to stay consistent with
	// whatever a peer already received.
	op, err := c.NormalizeToOpSpace(id)
	if err != nil {
		t.Fatalf("NormalizeToOpSpace: %v", err)
	}
	if op >= 0 {
		t.Errorf("expected op-space id to remain local, got %d", op)
	}
}

func TestGenerateNextIDEagerFinal(t *testing.T) {
	sid := mustSessionID(t, "00000000-0000-4000-8000-000000000000")
	c := NewWithSessionID(sid)
	if err := c.SetClusterCapacity(10); err != nil {
		t.Fatalf("SetClusterCapacity: %v", err)
	}

	id1 := c.GenerateNextID()
	if err := c.FinalizeRange(c.TakeNextRange()); err != nil {
		t.Fatalf("FinalizeRange: %v", err)
	}

	id2 := c.GenerateNextID()
	if id2 < 0 {
		t.Fatalf("expected id2 to resolve as an eager final, got local %d", id2)
	}
	if c.Stats().EagerFinalCount != 1 {
		t.Errorf("expected EagerFinalCount 1, got %d", c.Stats().EagerFinalCount)
	}

	op, err := c.NormalizeToOpSpace(id2)
	if err != nil {
		t.Fatalf("NormalizeToOpSpace(id2): %v", err)
	}
	if op < 0 {
		t.Errorf("expected op-space form of an eager final to be a final, got %d", op)
	}

	d1, err := c.Decompress(id1)
	if err != nil {
		t.Fatalf("Decompress(id1): %v", err)
	}
	d2, err := c.Decompress(id2)
	if err != nil {
		t.Fatalf("Decompress(id2): %v", err)
	}
	if d2 != d1.Add(1) {
		t.Errorf("expected id2's stable id to be id1's + 1, got %+v vs %+v", d2, d1)
	}
}

func TestFinalizeRangeOutOfOrder(t *testing.T) {
	sid := mustSessionID(t, "00000000-0000-4000-8000-000000000000")
	c := NewWithSessionID(sid)
	c.GenerateNextID()
	c.GenerateNextID()

	bad := IDRange{SessionID: sid, BaseGenerationCount: 5, Count: 1}
	if err := c.FinalizeRange(bad); err != ErrRangeFinalizedOutOfOrder {
		t.Fatalf("FinalizeRange(out of order) = %v, want ErrRangeFinalizedOutOfOrder", err)
	}

	// The correct range still finalizes fine afterward: the rejected
	// attempt must not have mutated any state.
	good := c.TakeNextRange()
	if err := c.FinalizeRange(good); err != nil {
		t.Fatalf("FinalizeRange(good) after a rejected attempt: %v", err)
	}
}

func TestFinalizeRangeCollision(t *testing.T) {
	aStable, err := ParseStableID("00000000-0000-4000-8000-000000000000")
	if err != nil {
		t.Fatalf("ParseStableID: %v", err)
	}
	bStable := aStable.Add(5)

	sidA := mustSessionID(t, aStable.String())
	sidB := mustSessionID(t, bStable.String())

	cA := NewWithSessionID(sidA)
	cA.SetClusterCapacity(10)
	cA.GenerateNextID()
	rA := cA.TakeNextRange()
	if err := cA.FinalizeRange(rA); err != nil {
		t.Fatalf("FinalizeRange(A): %v", err)
	}

	cB := NewWithSessionID(sidB)
	cB.SetClusterCapacity(10)
	// cB learns about A's cluster the same way any peer would: by
	// observing the finalized range.
	if err := cB.FinalizeRange(rA); err != nil {
		t.Fatalf("cB learning about rA: %v", err)
	}

	cB.GenerateNextID()
	rB := cB.TakeNextRange()
	if err := cB.FinalizeRange(rB); err != ErrClusterCollision {
		t.Fatalf("FinalizeRange(B) = %v, want ErrClusterCollision", err)
	}
}

func TestNormalizeToSessionSpaceForeignID(t *testing.T) {
	sidA := mustSessionID(t, "00000000-0000-4000-8000-000000000000")
	sidB := mustSessionID(t, "11111111-1111-4111-8111-111111111111")

	cA := NewWithSessionID(sidA)
	cA.GenerateNextID()
	rA := cA.TakeNextRange()
	if err := cA.FinalizeRange(rA); err != nil {
		t.Fatalf("FinalizeRange: %v", err)
	}

	cB := NewWithSessionID(sidB)
	if err := cB.FinalizeRange(rA); err != nil {
		t.Fatalf("cB learning about rA: %v", err)
	}

	// cB recompresses A's stable id, purely from the finalized cluster it
	// just learned about.
	stableA, err := cA.Decompress(SessionSpaceID(-1))
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	sessionSpaceOnB, err := cB.Recompress(stableA)
	if err != nil {
		t.Fatalf("Recompress on cB: %v", err)
	}
	if sessionSpaceOnB < 0 {
		t.Errorf("expected a foreign id to resolve to a final on cB, got local %d", sessionSpaceOnB)
	}

	roundTripped, err := cB.Decompress(sessionSpaceOnB)
	if err != nil {
		t.Fatalf("Decompress on cB: %v", err)
	}
	if roundTripped != stableA {
		t.Errorf("round trip mismatch: got %+v, want %+v", roundTripped, stableA)
	}

	// Normalizing the op-space (still-local) form of A's id directly,
	// via the originating session's id.
	viaOpSpace, err := cB.NormalizeToSessionSpace(OpSpaceID(-1), sidA)
	if err != nil {
		t.Fatalf("NormalizeToSessionSpace: %v", err)
	}
	if viaOpSpace != sessionSpaceOnB {
		t.Errorf("normalize-to-session-space mismatch: got %d, want %d", viaOpSpace, sessionSpaceOnB)
	}
}

func TestFinalizeRangeExpandsTailCapacityInPlace(t *testing.T) {
	sid := mustSessionID(t, "00000000-0000-4000-8000-000000000000")
	c := NewWithSessionID(sid)
	if err := c.SetClusterCapacity(3); err != nil {
		t.Fatalf("SetClusterCapacity: %v", err)
	}

	var ids []SessionSpaceID
	ids = append(ids, c.GenerateNextID(), c.GenerateNextID())
	if err := c.FinalizeRange(c.TakeNextRange()); err != nil {
		t.Fatalf("FinalizeRange(first): %v", err)
	}
	// The cluster's capacity is now cluster_capacity(3) + count(2) = 5,
	// with 2 finalized — 3 spare reserved slots (locals -3, -4, -5).

	for i := 0; i < 4; i++ {
		ids = append(ids, c.GenerateNextID())
	}
	// This range of 4 overflows the 3 spare slots by 1. Since this
	// session's cluster is still final space's only (hence last)
	// cluster, it must grow in place rather than spill into a new one.
	if err := c.FinalizeRange(c.TakeNextRange()); err != nil {
		t.Fatalf("FinalizeRange(second): %v", err)
	}
	if c.Stats().ExpansionCount != 1 {
		t.Errorf("expected ExpansionCount 1, got %d", c.Stats().ExpansionCount)
	}
	if c.Stats().ClusterCreationCount != 1 {
		t.Errorf("expected ClusterCreationCount 1 (grown in place, not recreated), got %d", c.Stats().ClusterCreationCount)
	}

	// Every generated id, including the ones beyond the original
	// capacity, still decompresses to a contiguous stable-id sequence.
	base, err := c.Decompress(ids[0])
	if err != nil {
		t.Fatalf("Decompress(ids[0]): %v", err)
	}
	for i, id := range ids {
		got, err := c.Decompress(id)
		if err != nil {
			t.Fatalf("Decompress(ids[%d]): %v", i, err)
		}
		if want := base.Add(uint64(i)); got != want {
			t.Errorf("Decompress(ids[%d]) = %+v, want %+v", i, got, want)
		}
	}
}

func TestFinalizeRangeSpillsWhenNotFinalSpaceTail(t *testing.T) {
	sidA := mustSessionID(t, "00000000-0000-4000-8000-000000000000")
	sidB := mustSessionID(t, "11111111-1111-4111-8111-111111111111")

	cA := NewWithSessionID(sidA)
	if err := cA.SetClusterCapacity(3); err != nil {
		t.Fatalf("SetClusterCapacity: %v", err)
	}

	var idsA []SessionSpaceID
	idsA = append(idsA, cA.GenerateNextID(), cA.GenerateNextID())
	if err := cA.FinalizeRange(cA.TakeNextRange()); err != nil {
		t.Fatalf("FinalizeRange(A first): %v", err)
	}
	// A's cluster has capacity 5 (3+2), 2 finalized, 3 spare slots, and
	// is still the only (hence last) cluster A's own view knows about.

	cB := NewWithSessionID(sidB)
	cB.GenerateNextID()
	rB := cB.TakeNextRange()
	// A learns about B's range exactly as it would from a peer: this
	// pushes B's cluster to the tail of A's own final space, so A's
	// cluster is no longer eligible for in-place expansion.
	if err := cA.FinalizeRange(rB); err != nil {
		t.Fatalf("A learning about B's range: %v", err)
	}

	for i := 0; i < 4; i++ {
		idsA = append(idsA, cA.GenerateNextID())
	}
	if err := cA.FinalizeRange(cA.TakeNextRange()); err != nil {
		t.Fatalf("FinalizeRange(A second): %v", err)
	}
	if cA.Stats().ExpansionCount != 0 {
		t.Errorf("expected ExpansionCount 0 (A's cluster wasn't final space's tail), got %d", cA.Stats().ExpansionCount)
	}
	if cA.Stats().ClusterCreationCount != 3 {
		t.Errorf("expected ClusterCreationCount 3 (A's first cluster, B's cluster, A's spill), got %d", cA.Stats().ClusterCreationCount)
	}

	base, err := cA.Decompress(idsA[0])
	if err != nil {
		t.Fatalf("Decompress(idsA[0]): %v", err)
	}
	for i, id := range idsA {
		got, err := cA.Decompress(id)
		if err != nil {
			t.Fatalf("Decompress(idsA[%d]): %v", i, err)
		}
		if want := base.Add(uint64(i)); got != want {
			t.Errorf("Decompress(idsA[%d]) = %+v, want %+v", i, got, want)
		}
	}
}

func TestNormalizeToSessionSpaceSelfFinalUngenerated(t *testing.T) {
	sid := mustSessionID(t, "00000000-0000-4000-8000-000000000000")
	c := NewWithSessionID(sid)
	if err := c.SetClusterCapacity(5); err != nil {
		t.Fatalf("SetClusterCapacity: %v", err)
	}
	c.GenerateNextID()
	if err := c.FinalizeRange(c.TakeNextRange()); err != nil {
		t.Fatalf("FinalizeRange: %v", err)
	}
	// The cluster now reserves capacity 6 (5+1), baseFinal 0, of which
	// only 1 id has actually been generated so far.
	id2 := c.GenerateNextID()
	if id2 < 0 {
		t.Fatalf("expected id2 to resolve as an eager final, got local %d", id2)
	}

	token, ok := c.SessionToken(sid)
	if !ok {
		t.Fatalf("SessionToken: session not found")
	}

	// id2's op-space form (final 1) was actually generated and never
	// externalized as a local, so it normalizes back to itself.
	got, err := c.NormalizeToSessionSpaceWithToken(OpSpaceID(id2), token)
	if err != nil {
		t.Fatalf("NormalizeToSessionSpaceWithToken(id2): %v", err)
	}
	if got != SessionSpaceID(id2) {
		t.Errorf("NormalizeToSessionSpaceWithToken(id2) = %d, want %d", got, id2)
	}

	// Final 3 falls within the cluster's reserved capacity but its
	// aligned local (generation count 4) hasn't been generated yet.
	if _, err := c.NormalizeToSessionSpaceWithToken(OpSpaceID(3), token); err != ErrUngeneratedID {
		t.Fatalf("NormalizeToSessionSpaceWithToken(3) = %v, want ErrUngeneratedID", err)
	}
}

func TestFinalizeRangeEmptyIsNoOp(t *testing.T) {
	sid := mustSessionID(t, "00000000-0000-4000-8000-000000000000")
	c := NewWithSessionID(sid)
	if err := c.FinalizeRange(IDRange{SessionID: sid, Count: 0}); err != nil {
		t.Fatalf("FinalizeRange(empty): %v", err)
	}
}

func TestSetClusterCapacityRejectsZero(t *testing.T) {
	c := NewWithSessionID(mustSessionID(t, "00000000-0000-4000-8000-000000000000"))
	if err := c.SetClusterCapacity(0); err != ErrInvalidClusterCapacity {
		t.Fatalf("SetClusterCapacity(0) = %v, want ErrInvalidClusterCapacity", err)
	}
}
