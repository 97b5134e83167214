package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dperrin/gather/internal/model"
)

type GroupStore struct {
	db *sql.DB
}

func NewGroupStore(db *sql.DB) *GroupStore {
	return &GroupStore{db: db}
}

func scanGroup(scanner interface{ Scan(...any) error }) (*model.Group, error) {
	var g model.Group
	err := scanner.Scan(&g.ID, &g.Name, &g.Description, &g.Visibility, &g.CreatorID, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func scanGroupMember(scanner interface{ Scan(...any) error }) (*model.GroupMember, error) {
	var m model.GroupMember
	err := scanner.Scan(&m.ID, &m.GroupID, &m.UserID, &m.Role, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

const groupCols = `id, name, description, visibility, creator_id, created_at, updated_at`
const groupMemberCols = `id, group_id, user_id, role, created_at, updated_at`

// Create inserts a group and enrolls the creator as its admin.
func (s *GroupStore) Create(name, description, visibility string, creatorID int64) (*model.Group, error) {
	if visibility == "" {
		visibility = model.GroupPublic
	}
	result, err := s.db.Exec(
		`INSERT INTO groups (name, description, visibility, creator_id) VALUES (?, ?, ?, ?)`,
		name, description, visibility, creatorID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert group: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	if _, err := s.AddMember(id, creatorID, model.RoleAdmin); err != nil {
		return nil, err
	}
	return s.GetByID(id)
}

func (s *GroupStore) GetByID(id int64) (*model.Group, error) {
	row := s.db.QueryRow(`SELECT `+groupCols+` FROM groups WHERE id = ?`, id)
	g, err := scanGroup(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	return g, nil
}

func (s *GroupStore) Update(id int64, name, description, visibility string) (*model.Group, error) {
	_, err := s.db.Exec(
		`UPDATE groups SET name = ?, description = ?, visibility = ?, updated_at = ? WHERE id = ?`,
		name, description, visibility, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update group: %w", err)
	}
	return s.GetByID(id)
}

func (s *GroupStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM groups WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	return nil
}

// List returns groups visible in a public directory (hidden groups excluded).
func (s *GroupStore) List() ([]model.Group, error) {
	rows, err := s.db.Query(
		`SELECT `+groupCols+` FROM groups WHERE visibility != ? ORDER BY name ASC`,
		model.GroupHidden,
	)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()
	return collectGroups(rows)
}

func (s *GroupStore) AddMember(groupID, userID int64, role string) (*model.GroupMember, error) {
	if role == "" {
		role = model.RoleMember
	}
	result, err := s.db.Exec(
		`INSERT INTO group_members (group_id, user_id, role) VALUES (?, ?, ?)
		 ON CONFLICT(group_id, user_id) DO UPDATE SET role = excluded.role, updated_at = CURRENT_TIMESTAMP`,
		groupID, userID, role,
	)
	if err != nil {
		return nil, fmt.Errorf("add member: %w", err)
	}
	id, _ := result.LastInsertId()
	if id == 0 {
		return s.GetMember(groupID, userID)
	}
	row := s.db.QueryRow(`SELECT `+groupMemberCols+` FROM group_members WHERE id = ?`, id)
	return scanGroupMember(row)
}

func (s *GroupStore) RemoveMember(groupID, userID int64) error {
	_, err := s.db.Exec(
		`DELETE FROM group_members WHERE group_id = ? AND user_id = ?`,
		groupID, userID,
	)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	return nil
}

func (s *GroupStore) GetMember(groupID, userID int64) (*model.GroupMember, error) {
	row := s.db.QueryRow(
		`SELECT `+groupMemberCols+` FROM group_members WHERE group_id = ? AND user_id = ?`,
		groupID, userID,
	)
	m, err := scanGroupMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

func (s *GroupStore) ListMembers(groupID int64) ([]model.GroupMember, error) {
	rows, err := s.db.Query(
		`SELECT `+groupMemberCols+` FROM group_members WHERE group_id = ? ORDER BY created_at ASC`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []model.GroupMember
	for rows.Next() {
		m, err := scanGroupMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

// MemberUserIDs returns the user IDs of all members of a group.
func (s *GroupStore) MemberUserIDs(groupID int64) ([]int64, error) {
	rows, err := s.db.Query(
		`SELECT user_id FROM group_members WHERE group_id = ? ORDER BY user_id ASC`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("member user ids: %w", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

func (s *GroupStore) ListGroupsForUser(userID int64) ([]model.Group, error) {
	rows, err := s.db.Query(
		`SELECT `+prefixCols("g", groupCols)+`
		 FROM groups g
		 JOIN group_members gm ON g.id = gm.group_id
		 WHERE gm.user_id = ?
		 ORDER BY g.name ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list groups for user: %w", err)
	}
	defer rows.Close()
	return collectGroups(rows)
}

// GroupIDsForUser returns the IDs of every group the user belongs to.
func (s *GroupStore) GroupIDsForUser(userID int64) ([]int64, error) {
	rows, err := s.db.Query(
		`SELECT group_id FROM group_members WHERE user_id = ? ORDER BY group_id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("group ids for user: %w", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

func collectGroups(rows *sql.Rows) ([]model.Group, error) {
	var groups []model.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, *g)
	}
	return groups, rows.Err()
}
