package db

import (
	"context"
	"strings"
	"time"
)

const animalColumns = `id, shelter_id, owner_id, name, species, breed, sex, age_months, status, city, description, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnimal(row rowScanner) (Animal, error) {
	var i Animal
	err := row.Scan(
		&i.ID,
		&i.ShelterID,
		&i.OwnerID,
		&i.Name,
		&i.Species,
		&i.Breed,
		&i.Sex,
		&i.AgeMonths,
		&i.Status,
		&i.City,
		&i.Description,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func (q *Queries) queryAnimals(ctx context.Context, query string, args ...any) ([]Animal, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Animal
	for rows.Next() {
		i, err := scanAnimal(rows)
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

const createAnimal = `
INSERT INTO animals (id, shelter_id, owner_id, name, species, breed, sex, age_months, status, city, description, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// CreateAnimalParams はCreateAnimalの引数。
type CreateAnimalParams struct {
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
}

// CreateAnimal は動物を登録する。
func (q *Queries) CreateAnimal(ctx context.Context, arg CreateAnimalParams) error {
	now := time.Now().UTC()
	_, err := q.db.ExecContext(ctx, createAnimal,
		arg.ID,
		arg.ShelterID,
		arg.OwnerID,
		arg.Name,
		arg.Species,
		arg.Breed,
		arg.Sex,
		arg.AgeMonths,
		arg.Status,
		arg.City,
		arg.Description,
		now,
		now,
	)
	return err
}

const getAnimalByID = `SELECT ` + animalColumns + ` FROM animals WHERE id = ?`

// GetAnimalByID はIDで動物を取得する。
func (q *Queries) GetAnimalByID(ctx context.Context, id string) (Animal, error) {
	return scanAnimal(q.db.QueryRowContext(ctx, getAnimalByID, id))
}

// ListAnimalsParams はListAnimalsの検索条件。空文字列の条件は無視する。
type ListAnimalsParams struct {
	Species   string
	Status    string
	City      string
	ShelterID string
	Query     string
	Limit     int64
	Offset    int64
}

// ListAnimals は条件に一致する動物を新しい順に取得する。
func (q *Queries) ListAnimals(ctx context.Context, arg ListAnimalsParams) ([]Animal, error) {
	var (
		where []string
		args  []any
	)
	for _, cond := range []struct {
		column string
		value  string
	}{
		{"species", arg.Species},
		{"status", arg.Status},
		{"city", arg.City},
		{"shelter_id", arg.ShelterID},
	} {
		if cond.value != "" {
			where = append(where, cond.column+" = ?")
			args = append(args, cond.value)
		}
	}
	if arg.Query != "" {
		pattern := "%" + strings.ToLower(arg.Query) + "%"
		where = append(where, "(LOWER(name) LIKE ? OR LOWER(breed) LIKE ? OR LOWER(description) LIKE ?)")
		args = append(args, pattern, pattern, pattern)
	}

	query := `SELECT ` + animalColumns + ` FROM animals`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`
	args = append(args, arg.Limit, arg.Offset)

	return q.queryAnimals(ctx, query, args...)
}

const listAnimalsByShelter = `SELECT ` + animalColumns + ` FROM animals WHERE shelter_id = ? ORDER BY created_at DESC, id`

// ListAnimalsByShelter はシェルターに所属する全ての動物を取得する。
func (q *Queries) ListAnimalsByShelter(ctx context.Context, shelterID string) ([]Animal, error) {
	return q.queryAnimals(ctx, listAnimalsByShelter, shelterID)
}

const updateAnimal = `
UPDATE animals
SET name = ?, species = ?, breed = ?, sex = ?, age_months = ?, status = ?, city = ?, description = ?, updated_at = ?
WHERE id = ?
`

// UpdateAnimalParams はUpdateAnimalの引数。
type UpdateAnimalParams struct {
	Name        string
	Species     string
	Breed       string
	Sex         string
	AgeMonths   int64
	Status      string
	City        string
	Description string
	ID          string
}

// UpdateAnimal は動物の情報を更新する。
func (q *Queries) UpdateAnimal(ctx context.Context, arg UpdateAnimalParams) error {
	_, err := q.db.ExecContext(ctx, updateAnimal,
		arg.Name,
		arg.Species,
		arg.Breed,
		arg.Sex,
		arg.AgeMonths,
		arg.Status,
		arg.City,
		arg.Description,
		time.Now().UTC(),
		arg.ID,
	)
	return err
}

const deleteAnimal = `DELETE FROM animals WHERE id = ?`

// DeleteAnimal は動物を削除する。写真とお気に入りはカスケード削除される。
func (q *Queries) DeleteAnimal(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, deleteAnimal, id)
	return err
}
