// Package store handles the SQLite race catalog.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/verte-zerg/ultrasplit/internal/model"
	"github.com/verte-zerg/ultrasplit/internal/race"

	_ "modernc.org/sqlite" // SQLite driver.
)

// ErrNotFound is returned for an unknown race id.
var ErrNotFound = errors.New("race not found")

// Store wraps SQLite access for imported races.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS races (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			source TEXT NOT NULL,
			participants INTEGER NOT NULL,
			results INTEGER NOT NULL,
			payload BLOB NOT NULL,
			imported_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS race_checkpoints (
			race_id TEXT NOT NULL,
			rank INTEGER NOT NULL,
			label TEXT NOT NULL,
			PRIMARY KEY (race_id, rank)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_races_imported_at ON races(imported_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// ValidateID rejects ids that cannot be used as query parameters or
// command line arguments.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("race id is empty")
	}
	for _, r := range id {
		ok := r == '-' || r == '_' || r == '.' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		if !ok {
			return fmt.Errorf("race id %q may only contain letters, digits, '-', '_' and '.'", id)
		}
	}
	return nil
}

// Import stores a race under id, replacing any race with the same id.
func (s *Store) Import(ctx context.Context, id, name, source string, data race.Data) (model.RaceInfo, error) {
	if err := ValidateID(id); err != nil {
		return model.RaceInfo{}, err
	}
	if strings.TrimSpace(name) == "" {
		name = id
	}
	payload, err := race.EncodeJSON(data)
	if err != nil {
		return model.RaceInfo{}, err
	}
	info := model.RaceInfo{
		ID:           id,
		Name:         name,
		Source:       source,
		Participants: len(data.Roster),
		Results:      len(data.Results),
		Checkpoints:  len(data.Checkpoints),
		ImportedAt:   time.Now().UTC(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.RaceInfo{}, err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO races (id, name, source, participants, results, payload, imported_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			source = excluded.source,
			participants = excluded.participants,
			results = excluded.results,
			payload = excluded.payload,
			imported_at = excluded.imported_at`,
		info.ID,
		info.Name,
		info.Source,
		info.Participants,
		info.Results,
		payload,
		info.ImportedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return model.RaceInfo{}, err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM race_checkpoints WHERE race_id = ?`, id); err != nil {
		return model.RaceInfo{}, err
	}

	if len(data.Checkpoints) > 0 {
		var stmt *sql.Stmt
		stmt, err = tx.PrepareContext(ctx,
			`INSERT OR REPLACE INTO race_checkpoints (race_id, rank, label) VALUES (?, ?, ?)`)
		if err != nil {
			return model.RaceInfo{}, err
		}
		defer func() {
			if cerr := stmt.Close(); cerr != nil {
				// Best-effort statement close.
				_ = cerr
			}
		}()
		for _, cp := range data.Checkpoints {
			if _, err = stmt.ExecContext(ctx, id, cp.Rank, cp.Label); err != nil {
				return model.RaceInfo{}, err
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return model.RaceInfo{}, err
	}
	return info, nil
}

// List returns every race ordered by id.
func (s *Store) List(ctx context.Context) ([]model.RaceInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT r.id, r.name, r.source, r.participants, r.results, r.imported_at,
			(SELECT COUNT(*) FROM race_checkpoints c WHERE c.race_id = r.id)
		FROM races r
		ORDER BY r.id ASC`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var races []model.RaceInfo
	for rows.Next() {
		info, err := scanInfo(rows)
		if err != nil {
			return nil, err
		}
		races = append(races, info)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return races, nil
}

// Get returns the catalog entry for id.
func (s *Store) Get(ctx context.Context, id string) (model.RaceInfo, error) {
	row := s.db.QueryRowContext(ctx, `SELECT r.id, r.name, r.source, r.participants, r.results, r.imported_at,
			(SELECT COUNT(*) FROM race_checkpoints c WHERE c.race_id = r.id)
		FROM races r
		WHERE r.id = ?`, id)
	info, err := scanInfo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RaceInfo{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return info, err
}

// Load decodes the stored race document for id.
func (s *Store) Load(ctx context.Context, id string) (race.Data, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM races WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return race.Data{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return race.Data{}, err
	}
	data, err := race.Decode(payload, race.FormatJSON)
	if err != nil {
		return race.Data{}, fmt.Errorf("failed to decode stored race %s: %w", id, err)
	}
	return data, nil
}

// Checkpoints returns the checkpoint list of id ordered by rank.
func (s *Store) Checkpoints(ctx context.Context, id string) ([]model.Checkpoint, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT rank, label FROM race_checkpoints WHERE race_id = ? ORDER BY rank ASC`, id)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	checkpoints := []model.Checkpoint{}
	for rows.Next() {
		var cp model.Checkpoint
		if err := rows.Scan(&cp.Rank, &cp.Label); err != nil {
			return nil, err
		}
		checkpoints = append(checkpoints, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return checkpoints, nil
}

// Delete removes a race and its checkpoints.
func (s *Store) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	var res sql.Result
	res, err = tx.ExecContext(ctx, `DELETE FROM races WHERE id = ?`, id)
	if err != nil {
		return err
	}
	var n int64
	n, err = res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		err = fmt.Errorf("%w: %s", ErrNotFound, id)
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM race_checkpoints WHERE race_id = ?`, id); err != nil {
		return err
	}
	err = tx.Commit()
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInfo(row scanner) (model.RaceInfo, error) {
	var info model.RaceInfo
	var importedAt string
	if err := row.Scan(&info.ID, &info.Name, &info.Source, &info.Participants, &info.Results, &importedAt, &info.Checkpoints); err != nil {
		return model.RaceInfo{}, err
	}
	parsed, err := time.Parse(time.RFC3339Nano, importedAt)
	if err != nil {
		return model.RaceInfo{}, err
	}
	info.ImportedAt = parsed
	return info, nil
}
