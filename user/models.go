package user

import "time"

// User is an agency staff member who can be assigned cases and inspections.
// It mirrors the users table and carries no JSON annotations so presentation
// layers can shape it themselves.
type User struct {
	ID        string
	AgencyID  string
	Email     string
	FullName  string
	IsActive  bool
	CreatedAt time.Time
}
