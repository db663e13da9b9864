package store

import (
	"context"
	"database/sql"
	"fmt"
)

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const dispatchColumns = `id, token, parent_id, depth, action_type, payload, seq, program_hash, engine_version, ir_version`

// ReadTrace returns every dispatch, firing and completion for a token.
// Each slice is ordered deterministically: ORDER BY seq ASC, id ASC COLLATE BINARY.
//
// Returns empty slices (not nil) if the token has no records.
func (s *Store) ReadTrace(ctx context.Context, token string) (Trace, error) {
	trace := Trace{Token: token}

	dispatches, err := s.readTokenDispatches(ctx, token)
	if err != nil {
		return trace, fmt.Errorf("read trace: %w", err)
	}
	trace.Dispatches = dispatches

	firings, err := s.readTokenFirings(ctx, token)
	if err != nil {
		return trace, fmt.Errorf("read trace: %w", err)
	}
	trace.Firings = firings

	completions, err := s.readTokenCompletions(ctx, token)
	if err != nil {
		return trace, fmt.Errorf("read trace: %w", err)
	}
	trace.Completions = completions

	return trace, nil
}

func (s *Store) readTokenDispatches(ctx context.Context, token string) ([]Dispatch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+dispatchColumns+`
		FROM dispatches
		WHERE token = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, token)
	if err != nil {
		return nil, fmt.Errorf("query dispatches: %w", err)
	}
	defer rows.Close()

	dispatches := []Dispatch{}
	for rows.Next() {
		d, err := scanDispatch(rows)
		if err != nil {
			return nil, err
		}
		dispatches = append(dispatches, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dispatches: %w", err)
	}
	return dispatches, nil
}

func (s *Store) readTokenFirings(ctx context.Context, token string) ([]Firing, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.id, f.dispatch_id, f.rule_type, f.position, f.seq
		FROM rule_firings f
		JOIN dispatches d ON f.dispatch_id = d.id
		WHERE d.token = ?
		ORDER BY f.seq ASC, f.id ASC
	`, token)
	if err != nil {
		return nil, fmt.Errorf("query firings: %w", err)
	}
	defer rows.Close()

	return scanFirings(rows)
}

func (s *Store) readTokenCompletions(ctx context.Context, token string) ([]Completion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.dispatch_id, c.state_hash, c.seq
		FROM completions c
		JOIN dispatches d ON c.dispatch_id = d.id
		WHERE d.token = ?
		ORDER BY c.seq ASC, c.dispatch_id COLLATE BINARY ASC
	`, token)
	if err != nil {
		return nil, fmt.Errorf("query completions: %w", err)
	}
	defer rows.Close()

	completions := []Completion{}
	for rows.Next() {
		var c Completion
		if err := rows.Scan(&c.DispatchID, &c.StateHash, &c.Seq); err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		completions = append(completions, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate completions: %w", err)
	}
	return completions, nil
}

// ReadDispatch retrieves a single dispatch by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadDispatch(ctx context.Context, id string) (Dispatch, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+dispatchColumns+`
		FROM dispatches
		WHERE id = ?
	`, id)
	return scanDispatch(row)
}

// ReadFiringsForDispatch returns the rules chained for one dispatch in
// chain position order.
func (s *Store) ReadFiringsForDispatch(ctx context.Context, dispatchID string) ([]Firing, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, dispatch_id, rule_type, position, seq
		FROM rule_firings
		WHERE dispatch_id = ?
		ORDER BY position ASC
	`, dispatchID)
	if err != nil {
		return nil, fmt.Errorf("query firings for dispatch: %w", err)
	}
	defer rows.Close()

	return scanFirings(rows)
}

// ReadChildren returns the dispatches issued while dispatchID was in flight.
func (s *Store) ReadChildren(ctx context.Context, dispatchID string) ([]Dispatch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+dispatchColumns+`
		FROM dispatches
		WHERE parent_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, dispatchID)
	if err != nil {
		return nil, fmt.Errorf("query children: %w", err)
	}
	defer rows.Close()

	children := []Dispatch{}
	for rows.Next() {
		d, err := scanDispatch(rows)
		if err != nil {
			return nil, err
		}
		children = append(children, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate children: %w", err)
	}
	return children, nil
}

// ListTokens summarizes every token in the journal, ordered by the seq of
// its first dispatch.
func (s *Store) ListTokens(ctx context.Context) ([]TokenSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			d.token,
			(SELECT r.action_type FROM dispatches r
			 WHERE r.token = d.token AND r.depth = 0
			 ORDER BY r.seq ASC LIMIT 1),
			COUNT(*),
			(SELECT COUNT(*) FROM rule_firings f
			 JOIN dispatches fd ON f.dispatch_id = fd.id
			 WHERE fd.token = d.token),
			MIN(d.seq),
			MAX(d.seq)
		FROM dispatches d
		GROUP BY d.token
		ORDER BY MIN(d.seq) ASC, d.token COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query tokens: %w", err)
	}
	defer rows.Close()

	tokens := []TokenSummary{}
	for rows.Next() {
		var ts TokenSummary
		var rootType sql.NullString
		if err := rows.Scan(&ts.Token, &rootType, &ts.Dispatches, &ts.Firings, &ts.FirstSeq, &ts.LastSeq); err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		ts.RootType = rootType.String
		tokens = append(tokens, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tokens: %w", err)
	}
	return tokens, nil
}

// FiringCounts returns how many times each rule type fired across the
// whole journal.
func (s *Store) FiringCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT rule_type, COUNT(*)
		FROM rule_firings
		GROUP BY rule_type
	`)
	if err != nil {
		return nil, fmt.Errorf("query firing counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var rule string
		var n int
		if err := rows.Scan(&rule, &n); err != nil {
			return nil, fmt.Errorf("scan firing count: %w", err)
		}
		counts[rule] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate firing counts: %w", err)
	}
	return counts, nil
}

// LastSeq returns the highest seq in the journal, or 0 when empty. Used to
// resume a Clock when appending to an existing journal.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM (
			SELECT seq FROM dispatches
			UNION ALL SELECT seq FROM rule_firings
			UNION ALL SELECT seq FROM completions
		)
	`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq, nil
}

func scanDispatch(row scanner) (Dispatch, error) {
	var d Dispatch
	var parentID sql.NullString
	var payload string
	err := row.Scan(
		&d.ID,
		&d.Token,
		&parentID,
		&d.Depth,
		&d.Action.Type,
		&payload,
		&d.Seq,
		&d.ProgramHash,
		&d.EngineVersion,
		&d.IRVersion,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return Dispatch{}, err
		}
		return Dispatch{}, fmt.Errorf("scan dispatch: %w", err)
	}
	d.ParentID = parentID.String

	d.Action.Payload, err = unmarshalPayload(payload)
	if err != nil {
		return Dispatch{}, fmt.Errorf("scan dispatch %s: %w", d.ID, err)
	}
	return d, nil
}

func scanFirings(rows *sql.Rows) ([]Firing, error) {
	firings := []Firing{}
	for rows.Next() {
		var f Firing
		if err := rows.Scan(&f.ID, &f.DispatchID, &f.RuleType, &f.Position, &f.Seq); err != nil {
			return nil, fmt.Errorf("scan firing: %w", err)
		}
		firings = append(firings, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate firings: %w", err)
	}
	return firings, nil
}
