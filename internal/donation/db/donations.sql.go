package db

import (
	"context"
	"time"
)

const donationColumns = `id, shelter_id, shelter_owner_id, donor_id, amount_cents, currency, message, anonymous, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDonation(row rowScanner) (Donation, error) {
	var i Donation
	err := row.Scan(
		&i.ID,
		&i.ShelterID,
		&i.ShelterOwnerID,
		&i.DonorID,
		&i.AmountCents,
		&i.Currency,
		&i.Message,
		&i.Anonymous,
		&i.CreatedAt,
	)
	return i, err
}

func (q *Queries) queryDonations(ctx context.Context, query string, args ...any) ([]Donation, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Donation
	for rows.Next() {
		i, err := scanDonation(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createDonation = `
INSERT INTO donations (id, shelter_id, shelter_owner_id, donor_id, amount_cents, currency, message, anonymous, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// CreateDonationParams はCreateDonationの引数。
type CreateDonationParams struct {
	ID             string
	ShelterID      string
	ShelterOwnerID string
	DonorID        string
	AmountCents    int64
	Currency       string
	Message        string
	Anonymous      bool
}

// CreateDonation は寄付を記録する。
func (q *Queries) CreateDonation(ctx context.Context, arg CreateDonationParams) error {
	// anonymousはSQLiteとPostgreSQLで共通に扱えるよう0/1で保存する。
	anonymous := 0
	if arg.Anonymous {
		anonymous = 1
	}
	_, err := q.db.ExecContext(ctx, createDonation,
		arg.ID,
		arg.ShelterID,
		arg.ShelterOwnerID,
		arg.DonorID,
		arg.AmountCents,
		arg.Currency,
		arg.Message,
		anonymous,
		time.Now().UTC(),
	)
	return err
}

const getDonationByID = `SELECT ` + donationColumns + ` FROM donations WHERE id = ?`

// GetDonationByID はIDで寄付を取得する。
func (q *Queries) GetDonationByID(ctx context.Context, id string) (Donation, error) {
	return scanDonation(q.db.QueryRowContext(ctx, getDonationByID, id))
}

const listDonationsByDonor = `SELECT ` + donationColumns + ` FROM donations WHERE donor_id = ? ORDER BY created_at DESC, id`

// ListDonationsByDonor はユーザーの寄付を新しい順に取得する。
func (q *Queries) ListDonationsByDonor(ctx context.Context, donorID string) ([]Donation, error) {
	return q.queryDonations(ctx, listDonationsByDonor, donorID)
}

const listDonationsByShelter = `SELECT ` + donationColumns + ` FROM donations WHERE shelter_id = ? ORDER BY created_at DESC, id`

// ListDonationsByShelter はシェルターへの寄付を新しい順に取得する。
func (q *Queries) ListDonationsByShelter(ctx context.Context, shelterID string) ([]Donation, error) {
	return q.queryDonations(ctx, listDonationsByShelter, shelterID)
}

const sumDonationsByShelter = `
SELECT currency, SUM(amount_cents), COUNT(*)
FROM donations
WHERE shelter_id = ?
GROUP BY currency
ORDER BY currency
`

// SumDonationsByShelter はシェルターへの寄付を通貨ごとに集計する。
func (q *Queries) SumDonationsByShelter(ctx context.Context, shelterID string) ([]CurrencyTotal, error) {
	rows, err := q.db.QueryContext(ctx, sumDonationsByShelter, shelterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []CurrencyTotal
	for rows.Next() {
		var i CurrencyTotal
		if err := rows.Scan(&i.Currency, &i.AmountCents, &i.Count); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
