package store

import "testing"

func TestCreateUserNormalizesEmail(t *testing.T) {
	db := testDB(t)
	s := NewUserStore(db)

	u, err := s.Create("  Alice@Example.COM ", "Alice")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.Email != "alice@example.com" {
		t.Errorf("email = %q, want normalized lowercase", u.Email)
	}

	got, err := s.GetByEmail("ALICE@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if got == nil || got.ID != u.ID {
		t.Errorf("lookup with different casing failed: %+v", got)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	db := testDB(t)
	s := NewUserStore(db)

	if _, err := s.Create("alice@example.com", "Alice"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Create("alice@example.com", "Imposter"); err == nil {
		t.Error("duplicate email should fail")
	}
}

func TestGetUserNotFound(t *testing.T) {
	db := testDB(t)
	s := NewUserStore(db)

	u, err := s.GetByID(999)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if u != nil {
		t.Error("expected nil for nonexistent user")
	}

	u, err = s.GetByEmail("nobody@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if u != nil {
		t.Error("expected nil for unknown email")
	}
}

func TestUpdateAndDeleteUser(t *testing.T) {
	db := testDB(t)
	s := NewUserStore(db)

	u, err := s.Create("alice@example.com", "Alice")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := s.Update(u.ID, "alice@new.example.com", "Alice B")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Email != "alice@new.example.com" || updated.Name != "Alice B" {
		t.Errorf("got %+v", updated)
	}

	if err := s.Delete(u.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := s.GetByID(u.ID)
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}
}
