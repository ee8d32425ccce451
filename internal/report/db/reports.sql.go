package db

import (
	"context"
	"time"
)

const reportColumns = `id, reporter_id, shelter_id, shelter_owner_id, species, description, location, contact_phone, photo_key, status, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (FoundReport, error) {
	var i FoundReport
	err := row.Scan(
		&i.ID,
		&i.ReporterID,
		&i.ShelterID,
		&i.ShelterOwnerID,
		&i.Species,
		&i.Description,
		&i.Location,
		&i.ContactPhone,
		&i.PhotoKey,
		&i.Status,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func (q *Queries) queryReports(ctx context.Context, query string, args ...any) ([]FoundReport, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []FoundReport
	for rows.Next() {
		i, err := scanReport(rows)
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

const createReport = `
INSERT INTO found_reports (id, reporter_id, shelter_id, shelter_owner_id, species, description, location, contact_phone, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'open', ?, ?)
`

// CreateReportParams はCreateReportの引数。
type CreateReportParams struct {
	ID             string
	ReporterID     string
	ShelterID      string
	ShelterOwnerID string
	Species        string
	Description    string
	Location       string
	ContactPhone   string
}

// CreateReport は発見報告を登録する。状態はopenになる。
func (q *Queries) CreateReport(ctx context.Context, arg CreateReportParams) error {
	now := time.Now().UTC()
	_, err := q.db.ExecContext(ctx, createReport,
		arg.ID,
		arg.ReporterID,
		arg.ShelterID,
		arg.ShelterOwnerID,
		arg.Species,
		arg.Description,
		arg.Location,
		arg.ContactPhone,
		now,
		now,
	)
	return err
}

const getReportByID = `SELECT ` + reportColumns + ` FROM found_reports WHERE id = ?`

// GetReportByID はIDで発見報告を取得する。
func (q *Queries) GetReportByID(ctx context.Context, id string) (FoundReport, error) {
	return scanReport(q.db.QueryRowContext(ctx, getReportByID, id))
}

const listOpenReports = `
SELECT ` + reportColumns + ` FROM found_reports
WHERE status = 'open'
ORDER BY created_at DESC, id
LIMIT ? OFFSET ?
`

// ListOpenReports は未解決の発見報告を新しい順に取得する。
func (q *Queries) ListOpenReports(ctx context.Context, limit, offset int64) ([]FoundReport, error) {
	return q.queryReports(ctx, listOpenReports, limit, offset)
}

const listReportsByReporter = `SELECT ` + reportColumns + ` FROM found_reports WHERE reporter_id = ? ORDER BY created_at DESC, id`

// ListReportsByReporter はユーザーが送信した発見報告を新しい順に取得する。
func (q *Queries) ListReportsByReporter(ctx context.Context, reporterID string) ([]FoundReport, error) {
	return q.queryReports(ctx, listReportsByReporter, reporterID)
}

const listReportsByShelter = `SELECT ` + reportColumns + ` FROM found_reports WHERE shelter_id = ? ORDER BY created_at DESC, id`

// ListReportsByShelter はシェルター宛ての発見報告を新しい順に取得する。
func (q *Queries) ListReportsByShelter(ctx context.Context, shelterID string) ([]FoundReport, error) {
	return q.queryReports(ctx, listReportsByShelter, shelterID)
}

const updateReportStatus = `UPDATE found_reports SET status = ?, updated_at = ? WHERE id = ?`

// UpdateReportStatus は発見報告の状態を更新する。
func (q *Queries) UpdateReportStatus(ctx context.Context, id, status string) error {
	_, err := q.db.ExecContext(ctx, updateReportStatus, status, time.Now().UTC(), id)
	return err
}

const updateReportPhoto = `UPDATE found_reports SET photo_key = ?, updated_at = ? WHERE id = ?`

// UpdateReportPhoto は発見報告の写真キーを更新する。
func (q *Queries) UpdateReportPhoto(ctx context.Context, id, photoKey string) error {
	_, err := q.db.ExecContext(ctx, updateReportPhoto, photoKey, time.Now().UTC(), id)
	return err
}
