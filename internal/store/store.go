// Package store persists finished game analyses. The postgres-backed
// repository is used when DATABASE_URL is configured; the in-memory one
// covers development and tests.
package store

import (
	"context"
	"errors"

	"github.com/kapu/chess-insight/internal/analysis"
)

// ErrNotFound is returned when no report exists for the requested id.
var ErrNotFound = errors.New("game report not found")

// Repository stores and retrieves whole-game analysis reports.
type Repository interface {
	SaveReport(ctx context.Context, report *analysis.GameReport) error
	GetReport(ctx context.Context, id string) (*analysis.GameReport, error)
	ListRecent(ctx context.Context, limit int) ([]*analysis.GameReport, error)
	Close() error
}
