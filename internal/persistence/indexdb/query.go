package indexdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

func (s *SQLiteIndex) LookupRun(ctx context.Context, runID string) (RunRow, error) {
	var (
		r           RunRow
		finished    sql.NullString
		finalDigest sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id,started_at,finished_at,seed,config_digest,status,items,delivered,steps,frames,final_digest FROM runs WHERE run_id=?`,
		runID,
	).Scan(&r.RunID, &r.StartedAt, &finished, &r.Seed, &r.ConfigDigest, &r.Status, &r.Items, &r.Delivered, &r.Steps, &r.Frames, &finalDigest)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRow{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return RunRow{}, err
	}
	r.FinishedAt = finished.String
	r.FinalDigest = finalDigest.String
	return r, nil
}

// FrameDigest returns the digest indexed for one frame.
func (s *SQLiteIndex) FrameDigest(ctx context.Context, runID string, seq uint64) (string, error) {
	var d string
	err := s.db.QueryRowContext(ctx, `SELECT digest FROM frames WHERE run_id=? AND seq=?`, runID, int64(seq)).Scan(&d)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s frame %d", ErrRunNotFound, runID, seq)
	}
	return d, err
}

// DeliveryCounts returns delivered items per category for one run.
func (s *SQLiteIndex) DeliveryCounts(ctx context.Context, runID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT category, COUNT(*) FROM deliveries WHERE run_id=? GROUP BY category`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var (
			cat string
			n   int
		)
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, err
		}
		out[cat] = n
	}
	return out, rows.Err()
}
