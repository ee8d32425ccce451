package db

import (
	"context"
	"time"
)

const addFavorite = `
INSERT INTO favorites (user_id, animal_id, created_at)
VALUES (?, ?, ?)
ON CONFLICT (user_id, animal_id) DO NOTHING
`

// AddFavorite は動物をお気に入りに追加する。既に追加済みの場合は何もしない。
func (q *Queries) AddFavorite(ctx context.Context, userID, animalID string) error {
	_, err := q.db.ExecContext(ctx, addFavorite, userID, animalID, time.Now().UTC())
	return err
}

const removeFavorite = `DELETE FROM favorites WHERE user_id = ? AND animal_id = ?`

// RemoveFavorite はお気に入りから動物を外す。
func (q *Queries) RemoveFavorite(ctx context.Context, userID, animalID string) error {
	_, err := q.db.ExecContext(ctx, removeFavorite, userID, animalID)
	return err
}

const listFavoriteAnimals = `
SELECT a.id, a.shelter_id, a.owner_id, a.name, a.species, a.breed, a.sex, a.age_months, a.status, a.city, a.description, a.created_at, a.updated_at
FROM favorites f
JOIN animals a ON a.id = f.animal_id
WHERE f.user_id = ?
ORDER BY f.created_at DESC, a.id
`

// ListFavoriteAnimals はユーザーがお気に入りにした動物を追加が新しい順に取得する。
func (q *Queries) ListFavoriteAnimals(ctx context.Context, userID string) ([]Animal, error) {
	return q.queryAnimals(ctx, listFavoriteAnimals, userID)
}
