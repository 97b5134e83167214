package store

import (
	"testing"

	"github.com/dperrin/gather/internal/model"
)

func TestCreateGroupEnrollsCreator(t *testing.T) {
	db := testDB(t)
	s := NewGroupStore(db)
	creator := seedUser(t, db, "creator@example.com")

	g, err := s.Create("Hikers", "Weekend walks", model.GroupPublic, creator)
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	if g.Name != "Hikers" || g.CreatorID != creator {
		t.Errorf("got %+v", g)
	}

	m, err := s.GetMember(g.ID, creator)
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	if m == nil || m.Role != model.RoleAdmin {
		t.Errorf("creator membership = %+v, want admin", m)
	}
}

func TestGetGroupNotFound(t *testing.T) {
	db := testDB(t)
	s := NewGroupStore(db)

	g, err := s.GetByID(999)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if g != nil {
		t.Error("expected nil for nonexistent group")
	}
}

func TestListExcludesHidden(t *testing.T) {
	db := testDB(t)
	s := NewGroupStore(db)
	creator := seedUser(t, db, "creator@example.com")

	s.Create("Open", "", model.GroupPublic, creator)
	s.Create("Closed", "", model.GroupPrivate, creator)
	s.Create("Secret", "", model.GroupHidden, creator)

	groups, err := s.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	for _, g := range groups {
		if g.Visibility == model.GroupHidden {
			t.Errorf("hidden group %q in directory listing", g.Name)
		}
	}
}

func TestAddMemberUpgradesRole(t *testing.T) {
	db := testDB(t)
	s := NewGroupStore(db)
	creator := seedUser(t, db, "creator@example.com")
	member := seedUser(t, db, "member@example.com")

	g, _ := s.Create("Hikers", "", model.GroupPublic, creator)

	m, err := s.AddMember(g.ID, member, "")
	if err != nil {
		t.Fatalf("add member: %v", err)
	}
	if m.Role != model.RoleMember {
		t.Errorf("role = %q, want default %q", m.Role, model.RoleMember)
	}

	m, err = s.AddMember(g.ID, member, model.RoleAdmin)
	if err != nil {
		t.Fatalf("re-add member: %v", err)
	}
	if m.Role != model.RoleAdmin {
		t.Errorf("role = %q after upgrade, want %q", m.Role, model.RoleAdmin)
	}

	members, err := s.ListMembers(g.ID)
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 2 {
		t.Errorf("got %d members, want 2 (no duplicate row)", len(members))
	}
}

func TestRemoveMember(t *testing.T) {
	db := testDB(t)
	s := NewGroupStore(db)
	creator := seedUser(t, db, "creator@example.com")
	member := seedUser(t, db, "member@example.com")

	g, _ := s.Create("Hikers", "", model.GroupPublic, creator)
	s.AddMember(g.ID, member, "")

	if err := s.RemoveMember(g.ID, member); err != nil {
		t.Fatalf("remove member: %v", err)
	}
	m, err := s.GetMember(g.ID, member)
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	if m != nil {
		t.Error("membership survived removal")
	}
}

func TestGroupIDsForUser(t *testing.T) {
	db := testDB(t)
	s := NewGroupStore(db)
	creator := seedUser(t, db, "creator@example.com")
	member := seedUser(t, db, "member@example.com")

	g1, _ := s.Create("Hikers", "", model.GroupPublic, creator)
	g2, _ := s.Create("Readers", "", model.GroupPublic, creator)
	s.Create("Uninvolved", "", model.GroupPublic, creator)

	s.AddMember(g1.ID, member, "")
	s.AddMember(g2.ID, member, "")

	ids, err := s.GroupIDsForUser(member)
	if err != nil {
		t.Fatalf("group ids: %v", err)
	}
	if len(ids) != 2 || ids[0] != g1.ID || ids[1] != g2.ID {
		t.Errorf("ids = %v, want [%d %d]", ids, g1.ID, g2.ID)
	}

	groups, err := s.ListGroupsForUser(member)
	if err != nil {
		t.Fatalf("list groups for user: %v", err)
	}
	if len(groups) != 2 {
		t.Errorf("got %d groups, want 2", len(groups))
	}
}
