package rooms

import (
	"errors"
	"testing"
)

func TestCreateRejectsDuplicateName(t *testing.T) {
	store := NewStore()
	if err := store.Create("lobby", "pw", "conn-a"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create("lobby", "other", "conn-b"); !errors.Is(err, ErrRoomExists) {
		t.Fatalf("expected ErrRoomExists, got %v", err)
	}
}

func TestCreatorIsFirstMember(t *testing.T) {
	store := NewStore()
	if err := store.Create("lobby", "pw", "conn-a"); err != nil {
		t.Fatalf("create: %v", err)
	}
	members, err := store.Members("lobby")
	if err != nil {
		t.Fatalf("members: %v", err)
	}
	if len(members) != 1 || members[0] != "conn-a" {
		t.Fatalf("expected creator as sole member, got %v", members)
	}
}

func TestJoinPasswordGate(t *testing.T) {
	store := NewStore()
	if err := store.Create("lobby", "pw", "conn-a"); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := store.Join("missing", "pw", "conn-b"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
	if _, err := store.Join("lobby", "wrong", "conn-b"); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("expected ErrWrongPassword, got %v", err)
	}
	members, _ := store.Members("lobby")
	if len(members) != 1 {
		t.Fatalf("failed join must not add a member, got %v", members)
	}

	history, err := store.Join("lobby", "pw", "conn-b")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected empty replay for fresh room, got %d entries", len(history))
	}
	members, _ = store.Members("lobby")
	if len(members) != 2 {
		t.Fatalf("expected two members, got %v", members)
	}
}

func TestJoinIsIdempotent(t *testing.T) {
	store := NewStore()
	if err := store.Create("lobby", "pw", "conn-a"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.Join("lobby", "pw", "conn-a"); err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	members, _ := store.Members("lobby")
	if len(members) != 1 {
		t.Fatalf("rejoin must not duplicate membership, got %v", members)
	}
}

func TestLeaveDestroysEmptiedRoom(t *testing.T) {
	store := NewStore()
	if err := store.Create("lobby", "pw", "conn-a"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.AppendFile("lobby", "conn-a", "a.txt", "/uploads/x", "ref-x"); err != nil {
		t.Fatalf("append file: %v", err)
	}

	departures := store.Leave("conn-a")
	if len(departures) != 1 {
		t.Fatalf("expected one departure, got %v", departures)
	}
	dep := departures[0]
	if dep.Room != "lobby" || !dep.Emptied {
		t.Fatalf("expected lobby to empty, got %+v", dep)
	}
	if len(dep.StorageRefs) != 1 || dep.StorageRefs[0] != "ref-x" {
		t.Fatalf("expected backing ref for cleanup, got %v", dep.StorageRefs)
	}
	if _, err := store.Members("lobby"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("emptied room must be gone, got %v", err)
	}

	// Name is immediately free again.
	if err := store.Create("lobby", "pw2", "conn-b"); err != nil {
		t.Fatalf("recreate after empty: %v", err)
	}
}

func TestLeaveKeepsRoomWithRemainingMembers(t *testing.T) {
	store := NewStore()
	if err := store.Create("lobby", "pw", "conn-a"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.Join("lobby", "pw", "conn-b"); err != nil {
		t.Fatalf("join: %v", err)
	}

	departures := store.Leave("conn-a")
	if len(departures) != 1 || departures[0].Emptied {
		t.Fatalf("room with a remaining member must survive, got %v", departures)
	}
	members, err := store.Members("lobby")
	if err != nil {
		t.Fatalf("members: %v", err)
	}
	if len(members) != 1 || members[0] != "conn-b" {
		t.Fatalf("expected conn-b to remain, got %v", members)
	}
}

func TestLeaveUnknownConnectionIsNoop(t *testing.T) {
	store := NewStore()
	if err := store.Create("lobby", "pw", "conn-a"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if departures := store.Leave("conn-z"); len(departures) != 0 {
		t.Fatalf("expected no departures, got %v", departures)
	}
}

func TestEndRequiresCreator(t *testing.T) {
	store := NewStore()
	if err := store.Create("lobby", "pw", "conn-a"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.Join("lobby", "pw", "conn-b"); err != nil {
		t.Fatalf("join: %v", err)
	}

	if _, _, err := store.End("lobby", "conn-b"); !errors.Is(err, ErrNotCreator) {
		t.Fatalf("expected ErrNotCreator, got %v", err)
	}
	if _, err := store.Members("lobby"); err != nil {
		t.Fatalf("failed end must not remove the room: %v", err)
	}

	members, refs, err := store.End("lobby", "conn-a")
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected both members in termination set, got %v", members)
	}
	if len(refs) != 0 {
		t.Fatalf("expected no backing refs, got %v", refs)
	}
	if _, _, err := store.End("lobby", "conn-a"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound after end, got %v", err)
	}
	if err := store.Create("lobby", "pw", "conn-c"); err != nil {
		t.Fatalf("name must be free after end: %v", err)
	}
}

func TestDestroyedRoomRefusesLateOperations(t *testing.T) {
	store := NewStore()
	if err := store.Create("lobby", "pw", "conn-a"); err != nil {
		t.Fatalf("create: %v", err)
	}
	stale, ok := store.get("lobby")
	if !ok {
		t.Fatalf("expected lobby in index")
	}

	if _, _, err := store.End("lobby", "conn-a"); err != nil {
		t.Fatalf("end: %v", err)
	}

	// A caller whose lookup happened just before the teardown holds a
	// pointer to the dropped room; the removed mark must be visible
	// once it acquires the room mutex.
	stale.mu.Lock()
	removed := stale.removed
	stale.mu.Unlock()
	if !removed {
		t.Fatalf("ended room must be marked removed")
	}
	if _, ok := store.lockRoom("lobby"); ok {
		t.Fatalf("lockRoom must refuse an ended room")
	}

	// Recreating under the same name must leave the dropped room
	// untouched: appends land on the new room only.
	if err := store.Create("lobby", "pw2", "conn-b"); err != nil {
		t.Fatalf("recreate: %v", err)
	}
	if _, err := store.AppendText("lobby", "conn-b", "hi"); err != nil {
		t.Fatalf("append to recreated room: %v", err)
	}
	stale.mu.Lock()
	staleEntries := len(stale.history)
	stale.mu.Unlock()
	if staleEntries != 0 {
		t.Fatalf("append leaked into the dropped room, got %d entries", staleEntries)
	}

	history, err := store.Join("lobby", "pw2", "conn-c")
	if err != nil {
		t.Fatalf("join recreated room: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected one entry in the recreated room, got %d", len(history))
	}
}

func TestEmptiedRoomIsMarkedRemoved(t *testing.T) {
	store := NewStore()
	if err := store.Create("lobby", "pw", "conn-a"); err != nil {
		t.Fatalf("create: %v", err)
	}
	stale, ok := store.get("lobby")
	if !ok {
		t.Fatalf("expected lobby in index")
	}

	store.Leave("conn-a")

	stale.mu.Lock()
	removed := stale.removed
	stale.mu.Unlock()
	if !removed {
		t.Fatalf("emptied room must be marked removed")
	}
	if _, ok := store.lockRoom("lobby"); ok {
		t.Fatalf("lockRoom must refuse an emptied room")
	}
}

func TestSnapshotCarriesNoPasswordMaterial(t *testing.T) {
	store := NewStore()
	if err := store.Create("lobby", "hunter2", "conn-a"); err != nil {
		t.Fatalf("create: %v", err)
	}
	listing := store.Snapshot()
	summary, ok := listing["lobby"]
	if !ok {
		t.Fatalf("expected lobby in snapshot, got %v", listing)
	}
	if !summary.Protected {
		t.Fatalf("expected protected flag set")
	}
}

func TestCount(t *testing.T) {
	store := NewStore()
	if got := store.Count(); got != 0 {
		t.Fatalf("expected 0 rooms, got %d", got)
	}
	if err := store.Create("a", "pw", "conn-a"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create("b", "pw", "conn-a"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := store.Count(); got != 2 {
		t.Fatalf("expected 2 rooms, got %d", got)
	}
}
