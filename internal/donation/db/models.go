package db

import "time"

// Donation はシェルターへの寄付の申し出を表す。
type Donation struct {
	ID             string
	ShelterID      string
	ShelterOwnerID string
	DonorID        string
	AmountCents    int64
	Currency       string
	Message        string
	Anonymous      bool
	CreatedAt      time.Time
}

// CurrencyTotal は通貨ごとの寄付の合計。
type CurrencyTotal struct {
	Currency    string
	AmountCents int64
	Count       int64
}
