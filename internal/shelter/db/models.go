package db

import "time"

// Shelter はシェルター（保護団体）を表す。
type Shelter struct {
	ID          string
	OwnerID     string
	Name        string
	City        string
	Address     string
	Phone       string
	Email       string
	Website     string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
