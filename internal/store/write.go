package store

import (
	"context"
	"database/sql"
	"fmt"
)

// WriteDispatch inserts a dispatch record.
// Uses ON CONFLICT(id) DO NOTHING: the ID is a content hash, so a duplicate
// write carries identical content and is silently ignored.
func (s *Store) WriteDispatch(ctx context.Context, d Dispatch) error {
	payload, err := marshalPayload(d.Action.Payload)
	if err != nil {
		return fmt.Errorf("write dispatch: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO dispatches
		(id, token, parent_id, depth, action_type, payload, seq, program_hash, engine_version, ir_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		d.ID,
		d.Token,
		nullString(d.ParentID),
		d.Depth,
		d.Action.Type,
		payload,
		d.Seq,
		d.ProgramHash,
		d.EngineVersion,
		d.IRVersion,
	)
	if err != nil {
		return fmt.Errorf("write dispatch: %w", err)
	}
	return nil
}

// WriteFirings records, in one transaction, the rules chained for a
// dispatch. ruleTypes is in chain order; position 0 is the outermost
// reaction. Rewriting the same positions is a no-op.
//
// Note: the dispatch must exist (foreign key constraint).
func (s *Store) WriteFirings(ctx context.Context, dispatchID string, ruleTypes []string, seq Sequencer) error {
	if len(ruleTypes) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write firings: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for pos, ruleType := range ruleTypes {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO rule_firings
			(dispatch_id, rule_type, position, seq)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(dispatch_id, position) DO NOTHING
		`,
			dispatchID,
			ruleType,
			pos,
			seq.Next(),
		)
		if err != nil {
			return fmt.Errorf("write firings: rule %q: %w", ruleType, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write firings: commit: %w", err)
	}
	return nil
}

// WriteCompletion records that a dispatch returned normally.
// Each dispatch has at most ONE completion; later writes are ignored.
func (s *Store) WriteCompletion(ctx context.Context, c Completion) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO completions
		(dispatch_id, state_hash, seq)
		VALUES (?, ?, ?)
		ON CONFLICT(dispatch_id) DO NOTHING
	`,
		c.DispatchID,
		c.StateHash,
		c.Seq,
	)
	if err != nil {
		return fmt.Errorf("write completion: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
