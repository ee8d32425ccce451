package db

import (
	"context"
	"strings"
	"time"
)

const shelterColumns = `id, owner_id, name, city, address, phone, email, website, description, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShelter(row rowScanner) (Shelter, error) {
	var i Shelter
	err := row.Scan(
		&i.ID,
		&i.OwnerID,
		&i.Name,
		&i.City,
		&i.Address,
		&i.Phone,
		&i.Email,
		&i.Website,
		&i.Description,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createShelter = `
INSERT INTO shelters (id, owner_id, name, city, address, phone, email, website, description, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// CreateShelterParams はCreateShelterの引数。
type CreateShelterParams struct {
	ID          string
	OwnerID     string
	Name        string
	City        string
	Address     string
	Phone       string
	Email       string
	Website     string
	Description string
}

// CreateShelter はシェルターを登録する。
func (q *Queries) CreateShelter(ctx context.Context, arg CreateShelterParams) error {
	now := time.Now().UTC()
	_, err := q.db.ExecContext(ctx, createShelter,
		arg.ID,
		arg.OwnerID,
		arg.Name,
		arg.City,
		arg.Address,
		arg.Phone,
		arg.Email,
		arg.Website,
		arg.Description,
		now,
		now,
	)
	return err
}

const getShelterByID = `SELECT ` + shelterColumns + ` FROM shelters WHERE id = ?`

// GetShelterByID はIDでシェルターを取得する。
func (q *Queries) GetShelterByID(ctx context.Context, id string) (Shelter, error) {
	return scanShelter(q.db.QueryRowContext(ctx, getShelterByID, id))
}

const getShelterByOwnerID = `SELECT ` + shelterColumns + ` FROM shelters WHERE owner_id = ?`

// GetShelterByOwnerID は所有者のユーザーIDでシェルターを取得する。
func (q *Queries) GetShelterByOwnerID(ctx context.Context, ownerID string) (Shelter, error) {
	return scanShelter(q.db.QueryRowContext(ctx, getShelterByOwnerID, ownerID))
}

// ListSheltersParams はListSheltersの検索条件。空文字列の条件は無視する。
type ListSheltersParams struct {
	City   string
	Query  string
	Limit  int64
	Offset int64
}

// ListShelters は条件に一致するシェルターを名前順に取得する。
func (q *Queries) ListShelters(ctx context.Context, arg ListSheltersParams) ([]Shelter, error) {
	var (
		where []string
		args  []any
	)
	if arg.City != "" {
		where = append(where, "city = ?")
		args = append(args, arg.City)
	}
	if arg.Query != "" {
		pattern := "%" + strings.ToLower(arg.Query) + "%"
		where = append(where, "(LOWER(name) LIKE ? OR LOWER(description) LIKE ?)")
		args = append(args, pattern, pattern)
	}

	query := `SELECT ` + shelterColumns + ` FROM shelters`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY name, id LIMIT ? OFFSET ?`
	args = append(args, arg.Limit, arg.Offset)

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Shelter
	for rows.Next() {
		i, err := scanShelter(rows)
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

const updateShelter = `
UPDATE shelters
SET name = ?, city = ?, address = ?, phone = ?, email = ?, website = ?, description = ?, updated_at = ?
WHERE id = ?
`

// UpdateShelterParams はUpdateShelterの引数。
type UpdateShelterParams struct {
	Name        string
	City        string
	Address     string
	Phone       string
	Email       string
	Website     string
	Description string
	ID          string
}

// UpdateShelter はシェルターの情報を更新する。
func (q *Queries) UpdateShelter(ctx context.Context, arg UpdateShelterParams) error {
	_, err := q.db.ExecContext(ctx, updateShelter,
		arg.Name,
		arg.City,
		arg.Address,
		arg.Phone,
		arg.Email,
		arg.Website,
		arg.Description,
		time.Now().UTC(),
		arg.ID,
	)
	return err
}

const deleteShelter = `DELETE FROM shelters WHERE id = ?`

// DeleteShelter はシェルターを削除する。
func (q *Queries) DeleteShelter(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, deleteShelter, id)
	return err
}
