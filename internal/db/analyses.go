package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/climbmate/fallcheck/internal/fall/height"
	"github.com/climbmate/fallcheck/internal/fall/report"
)

// ErrNotFound is returned for an unknown analysis ID.
var ErrNotFound = errors.New("analysis not found")

// Analysis is one stored report as listed, without the full document.
type Analysis struct {
	ID          string
	CreatedAt   time.Time
	FPS         float64
	Drop        int
	Touch       int
	HeightM     float64
	SigmaM      float64
	Gate        height.Decision
	LandingType string // empty for low_ok falls
	OverallPass *bool  // nil for low_ok falls
}

// SaveReport stores r, replacing any report with the same ID.
func (db *DB) SaveReport(r *report.Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode report %s: %w", r.ID, err)
	}

	var landingType sql.NullString
	var overallPass sql.NullBool
	if r.Overview.LandingType != nil {
		landingType = sql.NullString{String: r.Overview.LandingType.String(), Valid: true}
	}
	if r.Overview.OverallPass != nil {
		overallPass = sql.NullBool{Bool: *r.Overview.OverallPass, Valid: true}
	}

	_, err = db.Exec(`
		INSERT OR REPLACE INTO analyses (
			id, created_at, fps, t_drop, t_touch, height_m, sigma_m,
			gate, landing_type, overall_pass, report_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID,
		r.GeneratedAt.UnixNano(),
		r.Meta.FPS,
		r.Meta.Events.Drop,
		r.Meta.Events.Touch,
		r.Overview.HeightM,
		r.Overview.SigmaM,
		string(r.Overview.Gate),
		landingType,
		overallPass,
		string(data),
	)
	if err != nil {
		return fmt.Errorf("failed to save report %s: %w", r.ID, err)
	}
	return nil
}

// GetReport loads the full report stored under id.
func (db *DB) GetReport(id string) (*report.Report, error) {
	var data string
	err := db.QueryRow(`SELECT report_json FROM analyses WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load report %s: %w", id, err)
	}
	return report.Decode([]byte(data))
}

// ListReports returns up to limit analyses, newest first. A non-positive
// limit lists everything.
func (db *DB) ListReports(limit int) ([]Analysis, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(`
		SELECT id, created_at, fps, t_drop, t_touch, height_m, sigma_m,
		       gate, landing_type, overall_pass
		FROM analyses
		ORDER BY created_at DESC, id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var out []Analysis
	for rows.Next() {
		var (
			a           Analysis
			createdAt   int64
			gate        string
			landingType sql.NullString
			overallPass sql.NullBool
		)
		if err := rows.Scan(&a.ID, &createdAt, &a.FPS, &a.Drop, &a.Touch,
			&a.HeightM, &a.SigmaM, &gate, &landingType, &overallPass); err != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}
		a.CreatedAt = time.Unix(0, createdAt).UTC()
		a.Gate = height.Decision(gate)
		a.LandingType = landingType.String
		if overallPass.Valid {
			pass := overallPass.Bool
			a.OverallPass = &pass
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reports: %w", err)
	}
	return out, nil
}

// DeleteReport removes the analysis stored under id.
func (db *DB) DeleteReport(id string) error {
	res, err := db.Exec(`DELETE FROM analyses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete report %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete report %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
