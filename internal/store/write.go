package store

import (
	"context"
	"fmt"

	"github.com/roach88/preproc/internal/ir"
)

// BeginRun inserts a run and returns it with its seq assigned.
// Uses ON CONFLICT(id) DO NOTHING; beginning the same run twice returns
// the stored row.
func (s *Store) BeginRun(ctx context.Context, run ir.Run) (ir.Run, error) {
	if run.ID == "" {
		return ir.Run{}, fmt.Errorf("begin run: empty run id")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, seq, config_hash, release, engine_version, config_version)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM runs), ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.ConfigHash,
		boolToInt(run.Release),
		run.EngineVersion,
		run.ConfigVersion,
	)
	if err != nil {
		return ir.Run{}, fmt.Errorf("begin run: %w", err)
	}

	stored, err := s.ReadRun(ctx, run.ID)
	if err != nil {
		return ir.Run{}, fmt.Errorf("begin run: %w", err)
	}
	return stored, nil
}

// WriteArtifact records one processed artifact.
// Uses ON CONFLICT DO NOTHING for idempotency.
//
// Note: The run referenced by RunID must exist (foreign key constraint).
func (s *Store) WriteArtifact(ctx context.Context, rec ir.ArtifactRecord) error {
	editsJSON, err := marshalSpans(rec.Edits)
	if err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO artifacts
		(run_id, seq, artifact_id, stage, changed, edit_count, edits, output_hash, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		rec.RunID,
		rec.Seq,
		rec.ArtifactID,
		rec.Stage,
		boolToInt(rec.Changed),
		rec.EditCount,
		editsJSON,
		rec.OutputHash,
		rec.Error,
	)
	if err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	return nil
}

// WriteConditions records condition definitions in one transaction.
// A name already recorded for the run keeps its first definition.
func (s *Store) WriteConditions(ctx context.Context, recs []ir.ConditionRecord) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write conditions: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, rec := range recs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO conditions
			(run_id, name, seq, source, artifact_id)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(run_id, name) DO NOTHING
		`,
			rec.RunID,
			rec.Name,
			rec.Seq,
			rec.Source,
			rec.ArtifactID,
		)
		if err != nil {
			return fmt.Errorf("write conditions: %q: %w", rec.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write conditions: commit: %w", err)
	}
	return nil
}
