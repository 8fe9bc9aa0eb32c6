package auth

import "time"

// User represents a staff account. Role is one of "admin" or "staff";
// branch and department bind the account to its ordering scope.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Role         string
	BranchID     int64
	DepartmentID int64
	IsActive     bool
	CreatedAt    time.Time
}
