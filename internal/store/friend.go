package store

import (
	"database/sql"
	"fmt"

	"github.com/dperrin/gather/internal/model"
)

// FriendStore manages mutual friendships. Each pair is stored once with the
// lower user ID in user_id.
type FriendStore struct {
	db *sql.DB
}

func NewFriendStore(db *sql.DB) *FriendStore {
	return &FriendStore{db: db}
}

func orderPair(a, b int64) (int64, int64) {
	if a > b {
		return b, a
	}
	return a, b
}

// Add links two users as friends. Adding an existing pair is a no-op.
func (s *FriendStore) Add(userID, friendID int64) (*model.Friendship, error) {
	if userID == friendID {
		return nil, fmt.Errorf("cannot befriend self")
	}
	lo, hi := orderPair(userID, friendID)
	_, err := s.db.Exec(
		`INSERT INTO friendships (user_id, friend_id) VALUES (?, ?)
		 ON CONFLICT(user_id, friend_id) DO NOTHING`,
		lo, hi,
	)
	if err != nil {
		return nil, fmt.Errorf("add friendship: %w", err)
	}

	var f model.Friendship
	err = s.db.QueryRow(
		`SELECT id, user_id, friend_id, created_at FROM friendships WHERE user_id = ? AND friend_id = ?`,
		lo, hi,
	).Scan(&f.ID, &f.UserID, &f.FriendID, &f.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get friendship: %w", err)
	}
	return &f, nil
}

func (s *FriendStore) Remove(userID, friendID int64) error {
	lo, hi := orderPair(userID, friendID)
	_, err := s.db.Exec(
		`DELETE FROM friendships WHERE user_id = ? AND friend_id = ?`, lo, hi,
	)
	if err != nil {
		return fmt.Errorf("remove friendship: %w", err)
	}
	return nil
}

func (s *FriendStore) AreFriends(userID, friendID int64) (bool, error) {
	lo, hi := orderPair(userID, friendID)
	var one int
	err := s.db.QueryRow(
		`SELECT 1 FROM friendships WHERE user_id = ? AND friend_id = ?`, lo, hi,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check friendship: %w", err)
	}
	return true, nil
}

// FriendIDs returns the IDs of every friend of the user.
func (s *FriendStore) FriendIDs(userID int64) ([]int64, error) {
	rows, err := s.db.Query(
		`SELECT CASE WHEN user_id = ? THEN friend_id ELSE user_id END
		 FROM friendships WHERE user_id = ? OR friend_id = ?
		 ORDER BY 1 ASC`,
		userID, userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("friend ids: %w", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}
