package db

import "time"

// FoundReport は保護されていない動物を見つけたユーザーからの報告を表す。
type FoundReport struct {
	ID             string
	ReporterID     string
	ShelterID      string
	ShelterOwnerID string
	Species        string
	Description    string
	Location       string
	ContactPhone   string
	PhotoKey       string
	Status         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
