package domain

import "time"

// User is a field staff member who reports or resolves issues.
type User struct {
	ID          string
	Name        string
	BadgeNumber string
	Role        Role
	IsAdmin     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Identity returns the acting identity for this user.
func (u *User) Identity() Identity {
	return Identity{ID: u.ID, Name: u.Name, Role: u.Role, IsAdmin: u.IsAdmin}
}
