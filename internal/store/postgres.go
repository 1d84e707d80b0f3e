package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/kapu/chess-insight/internal/analysis"
)

type postgresRepository struct {
	db *sql.DB
}

// NewPostgres opens and pings the database, then ensures the reports
// table exists.
func NewPostgres(databaseURL string) (Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("database url is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	repo := &postgresRepository{db: db}
	if err := repo.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *postgresRepository) migrate(ctx context.Context) error {
	q := `CREATE TABLE IF NOT EXISTS game_reports (
		id         text PRIMARY KEY,
		base_fen   text NOT NULL,
		moves      jsonb NOT NULL,
		depth      integer NOT NULL,
		records    jsonb NOT NULL,
		white      jsonb NOT NULL,
		black      jsonb NOT NULL,
		created_at timestamptz NOT NULL
	)`
	_, err := r.db.ExecContext(ctx, q)
	return err
}

func (r *postgresRepository) SaveReport(ctx context.Context, report *analysis.GameReport) error {
	if report == nil {
		return fmt.Errorf("nil game report payload")
	}
	moves, err := json.Marshal(report.Moves)
	if err != nil {
		return fmt.Errorf("marshal moves: %w", err)
	}
	records, err := json.Marshal(report.Records)
	if err != nil {
		return fmt.Errorf("marshal records: %w", err)
	}
	white, err := json.Marshal(report.White)
	if err != nil {
		return fmt.Errorf("marshal white summary: %w", err)
	}
	black, err := json.Marshal(report.Black)
	if err != nil {
		return fmt.Errorf("marshal black summary: %w", err)
	}

	q := `INSERT INTO game_reports (
		id, base_fen, moves, depth, records, white, black, created_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	ON CONFLICT (id) DO UPDATE SET
		base_fen=EXCLUDED.base_fen,
		moves=EXCLUDED.moves,
		depth=EXCLUDED.depth,
		records=EXCLUDED.records,
		white=EXCLUDED.white,
		black=EXCLUDED.black,
		created_at=EXCLUDED.created_at`
	_, err = r.db.ExecContext(ctx, q,
		report.ID, report.BaseFEN, string(moves), report.Depth,
		string(records), string(white), string(black), report.CreatedAt)
	return err
}

func (r *postgresRepository) GetReport(ctx context.Context, id string) (*analysis.GameReport, error) {
	q := `SELECT id, base_fen, moves, depth, records, white, black, created_at
		FROM game_reports WHERE id = $1`
	return scanReport(r.db.QueryRowContext(ctx, q, id))
}

func (r *postgresRepository) ListRecent(ctx context.Context, limit int) ([]*analysis.GameReport, error) {
	if limit <= 0 {
		limit = 10
	}
	q := `SELECT id, base_fen, moves, depth, records, white, black, created_at
		FROM game_reports ORDER BY created_at DESC LIMIT $1`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*analysis.GameReport
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, report)
	}
	return out, rows.Err()
}

func (r *postgresRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*analysis.GameReport, error) {
	var (
		report  analysis.GameReport
		moves   []byte
		records []byte
		white   []byte
		black   []byte
	)
	err := row.Scan(&report.ID, &report.BaseFEN, &moves, &report.Depth,
		&records, &white, &black, &report.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(moves, &report.Moves); err != nil {
		return nil, fmt.Errorf("unmarshal moves: %w", err)
	}
	if err := json.Unmarshal(records, &report.Records); err != nil {
		return nil, fmt.Errorf("unmarshal records: %w", err)
	}
	if err := json.Unmarshal(white, &report.White); err != nil {
		return nil, fmt.Errorf("unmarshal white summary: %w", err)
	}
	if err := json.Unmarshal(black, &report.Black); err != nil {
		return nil, fmt.Errorf("unmarshal black summary: %w", err)
	}
	return &report, nil
}
