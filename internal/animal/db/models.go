package db

import "time"

// Animal はシェルターが登録した動物を表す。
type Animal struct {
	ID          string
	ShelterID   string
	OwnerID     string
	Name        string
	Species     string
	Breed       string
	Sex         string
	AgeMonths   int64
	Status      string
	City        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Photo は動物の写真を表す。ファイル本体はストレージに保存される。
type Photo struct {
	ID           string
	AnimalID     string
	Key          string
	ThumbnailKey string
	Position     int64
	CreatedAt    time.Time
}
