package users

import "time"

// UserResponse is the public projection of a stored user.
type UserResponse struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ListResponse wraps the user collection for GET /v1/users.
type ListResponse struct {
	Users []UserResponse `json:"users"`
	Count int            `json:"count"`
}
