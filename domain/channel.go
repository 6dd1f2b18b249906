package domain

import "time"

// Channel is a named group with an admin and a member set.
// The delivery core only reads channels; creation and membership changes
// belong to the directory collaborators.
type Channel struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	AdminID   string    `json:"admin_id"`
	Members   []string  `json:"members"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
