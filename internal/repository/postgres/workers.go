package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// WorkerInfo is one registered send worker, for the ops dashboard.
type WorkerInfo struct {
	ID            string    `json:"id"`
	Hostname      string    `json:"hostname"`
	StartedAt     time.Time `json:"started_at"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
}

// WorkerRegistry tracks live worker processes through heartbeats.
type WorkerRegistry struct{ db *sql.DB }

// NewWorkerRegistry creates a Postgres-backed worker registry.
func NewWorkerRegistry(db *sql.DB) *WorkerRegistry { return &WorkerRegistry{db: db} }

func (r *WorkerRegistry) Register(ctx context.Context, id, hostname string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notify_workers (id, hostname, started_at, last_heartbeat)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET hostname = $2, started_at = NOW(), last_heartbeat = NOW()
	`, id, hostname)
	if err != nil {
		return fmt.Errorf("register worker: %w", err)
	}
	return nil
}

func (r *WorkerRegistry) Heartbeat(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE notify_workers SET last_heartbeat = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("worker heartbeat: %w", err)
	}
	return nil
}

func (r *WorkerRegistry) Deregister(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM notify_workers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deregister worker: %w", err)
	}
	return nil
}

// List returns registered workers, most recent heartbeat first.
func (r *WorkerRegistry) List(ctx context.Context) ([]WorkerInfo, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, hostname, started_at, last_heartbeat
		FROM notify_workers
		ORDER BY last_heartbeat DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list workers: %w", err)
	}
	defer rows.Close()

	var out []WorkerInfo
	for rows.Next() {
		var w WorkerInfo
		if err := rows.Scan(&w.ID, &w.Hostname, &w.StartedAt, &w.LastHeartbeat); err != nil {
			return nil, fmt.Errorf("scan worker: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
