package models

// User is kept minimal: authentication lives outside this service, the core
// only needs identity, group membership and a mail address for notifications.
type User struct {
	ID      int64  `json:"id"`
	GroupID int64  `json:"group_id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
}
