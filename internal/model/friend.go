package model

import "time"

// Friendship links two users. Rows are stored once per pair with
// user_id < friend_id; the store hides that normalization.
type Friendship struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	FriendID  int64     `json:"friend_id"`
	CreatedAt time.Time `json:"created_at"`
}
