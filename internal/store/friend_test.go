package store

import "testing"

func TestAddFriendshipIsMutual(t *testing.T) {
	db := testDB(t)
	s := NewFriendStore(db)
	alice := seedUser(t, db, "alice@example.com")
	bob := seedUser(t, db, "bob@example.com")

	if _, err := s.Add(bob, alice); err != nil {
		t.Fatalf("add friendship: %v", err)
	}

	for _, pair := range [][2]int64{{alice, bob}, {bob, alice}} {
		ok, err := s.AreFriends(pair[0], pair[1])
		if err != nil {
			t.Fatalf("are friends: %v", err)
		}
		if !ok {
			t.Errorf("AreFriends(%d, %d) = false, want true", pair[0], pair[1])
		}
	}
}

func TestAddFriendshipIdempotent(t *testing.T) {
	db := testDB(t)
	s := NewFriendStore(db)
	alice := seedUser(t, db, "alice@example.com")
	bob := seedUser(t, db, "bob@example.com")

	f1, err := s.Add(alice, bob)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	// Reversed order resolves to the same stored pair.
	f2, err := s.Add(bob, alice)
	if err != nil {
		t.Fatalf("re-add: %v", err)
	}
	if f1.ID != f2.ID {
		t.Errorf("got two rows (%d, %d) for one pair", f1.ID, f2.ID)
	}
}

func TestAddSelfFriendship(t *testing.T) {
	db := testDB(t)
	s := NewFriendStore(db)
	alice := seedUser(t, db, "alice@example.com")

	if _, err := s.Add(alice, alice); err == nil {
		t.Error("self-friendship should fail")
	}
}

func TestRemoveFriendship(t *testing.T) {
	db := testDB(t)
	s := NewFriendStore(db)
	alice := seedUser(t, db, "alice@example.com")
	bob := seedUser(t, db, "bob@example.com")

	s.Add(alice, bob)
	if err := s.Remove(bob, alice); err != nil {
		t.Fatalf("remove: %v", err)
	}
	ok, err := s.AreFriends(alice, bob)
	if err != nil {
		t.Fatalf("are friends: %v", err)
	}
	if ok {
		t.Error("friendship survived removal")
	}
}

func TestFriendIDsBothDirections(t *testing.T) {
	db := testDB(t)
	s := NewFriendStore(db)
	alice := seedUser(t, db, "alice@example.com")
	bob := seedUser(t, db, "bob@example.com")
	carol := seedUser(t, db, "carol@example.com")
	seedUser(t, db, "stranger@example.com")

	// bob stored as user_id in one row, friend_id in the other
	s.Add(alice, bob)
	s.Add(bob, carol)

	ids, err := s.FriendIDs(bob)
	if err != nil {
		t.Fatalf("friend ids: %v", err)
	}
	if len(ids) != 2 || ids[0] != alice || ids[1] != carol {
		t.Errorf("ids = %v, want [%d %d]", ids, alice, carol)
	}
}
