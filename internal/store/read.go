package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/preproc/internal/ir"
)

// ErrRunNotFound is returned when a run id does not exist.
var ErrRunNotFound = errors.New("run not found")

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// ReadRun returns one run by id.
func (s *Store) ReadRun(ctx context.Context, id string) (ir.Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, seq, config_hash, release, engine_version, config_version
		FROM runs
		WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// LatestRun returns the run with the highest seq.
func (s *Store) LatestRun(ctx context.Context) (ir.Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, seq, config_hash, release, engine_version, config_version
		FROM runs
		ORDER BY seq DESC
		LIMIT 1
	`)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Run{}, ErrRunNotFound
	}
	return run, err
}

// ListRuns returns every run ordered by seq.
// Returns an empty slice (not nil) if there are none.
func (s *Store) ListRuns(ctx context.Context) ([]ir.Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, config_hash, release, engine_version, config_version
		FROM runs
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []ir.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadArtifacts returns a run's artifacts in processing order.
// Returns an empty slice (not nil) if there are none.
func (s *Store) ReadArtifacts(ctx context.Context, runID string) ([]ir.ArtifactRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, artifact_id, stage, changed, edit_count, edits, output_hash, error
		FROM artifacts
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query artifacts: %w", err)
	}
	defer rows.Close()
	return collectArtifacts(rows)
}

// ArtifactHistory returns every record of one artifact across runs,
// oldest run first.
func (s *Store) ArtifactHistory(ctx context.Context, artifactID string) ([]ir.ArtifactRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.run_id, a.seq, a.artifact_id, a.stage, a.changed, a.edit_count, a.edits, a.output_hash, a.error
		FROM artifacts a
		JOIN runs r ON a.run_id = r.id
		WHERE a.artifact_id = ?
		ORDER BY r.seq ASC, a.seq ASC
	`, artifactID)
	if err != nil {
		return nil, fmt.Errorf("query artifact history: %w", err)
	}
	defer rows.Close()
	return collectArtifacts(rows)
}

// ReadConditions returns a run's condition definitions ordered by the seq
// that defined them, then by name.
func (s *Store) ReadConditions(ctx context.Context, runID string) ([]ir.ConditionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, name, seq, source, artifact_id
		FROM conditions
		WHERE run_id = ?
		ORDER BY seq ASC, name COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query conditions: %w", err)
	}
	defer rows.Close()

	recs := []ir.ConditionRecord{}
	for rows.Next() {
		var rec ir.ConditionRecord
		if err := rows.Scan(&rec.RunID, &rec.Name, &rec.Seq, &rec.Source, &rec.ArtifactID); err != nil {
			return nil, fmt.Errorf("scan condition: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conditions: %w", err)
	}
	return recs, nil
}

func scanRun(row scanner) (ir.Run, error) {
	var run ir.Run
	var release int
	err := row.Scan(&run.ID, &run.Seq, &run.ConfigHash, &release, &run.EngineVersion, &run.ConfigVersion)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ir.Run{}, err
		}
		return ir.Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.Release = release != 0
	return run, nil
}

func collectArtifacts(rows *sql.Rows) ([]ir.ArtifactRecord, error) {
	recs := []ir.ArtifactRecord{}
	for rows.Next() {
		var rec ir.ArtifactRecord
		var changed int
		var editsJSON string
		err := rows.Scan(&rec.RunID, &rec.Seq, &rec.ArtifactID, &rec.Stage, &changed,
			&rec.EditCount, &editsJSON, &rec.OutputHash, &rec.Error)
		if err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		rec.Changed = changed != 0
		if rec.Edits, err = unmarshalSpans(editsJSON); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate artifacts: %w", err)
	}
	return recs, nil
}
