package db

import (
	"context"
	"strings"
	"time"
)

const photoColumns = `id, animal_id, storage_key, thumbnail_key, sort_order, created_at`

func scanPhoto(row rowScanner) (Photo, error) {
	var i Photo
	err := row.Scan(
		&i.ID,
		&i.AnimalID,
		&i.Key,
		&i.ThumbnailKey,
		&i.Position,
		&i.CreatedAt,
	)
	return i, err
}

const createPhoto = `
INSERT INTO animal_photos (id, animal_id, storage_key, thumbnail_key, sort_order, created_at)
VALUES (?, ?, ?, ?, ?, ?)
`

// CreatePhotoParams はCreatePhotoの引数。
type CreatePhotoParams struct {
	ID           string
	AnimalID     string
	Key          string
	ThumbnailKey string
	Position     int64
}

// CreatePhoto は写真を登録する。
func (q *Queries) CreatePhoto(ctx context.Context, arg CreatePhotoParams) error {
	_, err := q.db.ExecContext(ctx, createPhoto,
		arg.ID,
		arg.AnimalID,
		arg.Key,
		arg.ThumbnailKey,
		arg.Position,
		time.Now().UTC(),
	)
	return err
}

const countPhotos = `SELECT COUNT(*), COALESCE(MAX(sort_order), -1) FROM animal_photos WHERE animal_id = ?`

// CountPhotos は動物の写真枚数と最大の表示順を返す。写真がない場合の最大表示順は-1。
func (q *Queries) CountPhotos(ctx context.Context, animalID string) (count, maxPosition int64, err error) {
	err = q.db.QueryRowContext(ctx, countPhotos, animalID).Scan(&count, &maxPosition)
	return count, maxPosition, err
}

const getPhoto = `SELECT ` + photoColumns + ` FROM animal_photos WHERE id = ? AND animal_id = ?`

// GetPhoto は動物に属する写真を取得する。
func (q *Queries) GetPhoto(ctx context.Context, animalID, photoID string) (Photo, error) {
	return scanPhoto(q.db.QueryRowContext(ctx, getPhoto, photoID, animalID))
}

// ListPhotosByAnimalIDs は複数の動物の写真を表示順に取得する。
func (q *Queries) ListPhotosByAnimalIDs(ctx context.Context, animalIDs []string) ([]Photo, error) {
	if len(animalIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(animalIDs)), ",")
	query := `SELECT ` + photoColumns + ` FROM animal_photos WHERE animal_id IN (` + placeholders + `) ORDER BY animal_id, sort_order`
	args := make([]any, len(animalIDs))
	for i, id := range animalIDs {
		args[i] = id
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Photo
	for rows.Next() {
		i, err := scanPhoto(rows)
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

const deletePhoto = `DELETE FROM animal_photos WHERE id = ?`

// DeletePhoto は写真を削除する。
func (q *Queries) DeletePhoto(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, deletePhoto, id)
	return err
}
