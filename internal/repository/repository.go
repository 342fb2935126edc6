// Package repository provides prediction audit persistence.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/opensource-finance/churnguard/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// MaxListLimit caps ListPredictions.
const MaxListLimit = 1000

// SQLRepository implements domain.Repository using database/sql.
// Works with SQLite (modernc), PostgreSQL via lib/pq, and PostgreSQL via pgx.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres", "pgx":
		db, err = openPostgres(cfg.Driver, cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SavePrediction stores a served prediction.
func (r *SQLRepository) SavePrediction(ctx context.Context, p *domain.Prediction) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("%w: prediction id is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO predictions (
			id, trace_id,
			tenure_months, contract_type, monthly_charges, payment_method,
			support_ticket_count, avg_call_minutes, avg_data_usage_gb,
			probability, risk_tier, action, decision, threshold,
			model_name, model_version, cached, latency_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	cached := 0
	if p.Cached {
		cached = 1
	}

	req, res := p.Request, p.Result
	_, err := r.db.ExecContext(ctx, r.rebind(query),
		p.ID, p.TraceID,
		req.TenureMonths, req.ContractType, req.MonthlyCharges, req.PaymentMethod,
		req.SupportTicketCount, req.AvgCallMinutes, req.AvgDataUsageGB,
		res.Probability, string(res.Tier), res.Action, res.Decision, res.Threshold,
		res.ModelName, res.ModelVersion, cached, p.LatencyMs, p.CreatedAt.UTC(),
	)
	return err
}

const selectPrediction = `
	SELECT id, trace_id,
		   tenure_months, contract_type, monthly_charges, payment_method,
		   support_ticket_count, avg_call_minutes, avg_data_usage_gb,
		   probability, risk_tier, action, decision, threshold,
		   model_name, model_version, cached, latency_ms, created_at
	FROM predictions
`

type scanner interface {
	Scan(dest ...any) error
}

func scanPrediction(s scanner) (*domain.Prediction, error) {
	var p domain.Prediction
	var traceID sql.NullString
	var tier string
	var cached int

	err := s.Scan(
		&p.ID, &traceID,
		&p.Request.TenureMonths, &p.Request.ContractType, &p.Request.MonthlyCharges, &p.Request.PaymentMethod,
		&p.Request.SupportTicketCount, &p.Request.AvgCallMinutes, &p.Request.AvgDataUsageGB,
		&p.Result.Probability, &tier, &p.Result.Action, &p.Result.Decision, &p.Result.Threshold,
		&p.Result.ModelName, &p.Result.ModelVersion, &cached, &p.LatencyMs, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.TraceID = traceID.String
	p.Result.Tier = domain.RiskTier(tier)
	p.Cached = cached == 1
	return &p, nil
}

// GetPrediction retrieves a prediction by ID.
func (r *SQLRepository) GetPrediction(ctx context.Context, id string) (*domain.Prediction, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: prediction id is required", ErrInvalidInput)
	}

	row := r.db.QueryRowContext(ctx, r.rebind(selectPrediction+` WHERE id = ?`), id)
	p, err := scanPrediction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListPredictions returns predictions created at or after since, newest first.
func (r *SQLRepository) ListPredictions(ctx context.Context, since time.Time, limit int) ([]*domain.Prediction, error) {
	if limit <= 0 || limit > MaxListLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidInput, MaxListLimit)
	}

	query := selectPrediction + `
		WHERE created_at >= ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), since.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var predictions []*domain.Prediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, err
		}
		predictions = append(predictions, p)
	}

	return predictions, rows.Err()
}

// CountByTier counts predictions per risk tier created at or after since.
func (r *SQLRepository) CountByTier(ctx context.Context, since time.Time) (map[domain.RiskTier]int64, error) {
	query := `
		SELECT risk_tier, COUNT(*)
		FROM predictions
		WHERE created_at >= ?
		GROUP BY risk_tier
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.RiskTier]int64)
	for rows.Next() {
		var tier string
		var n int64
		if err := rows.Scan(&tier, &n); err != nil {
			return nil, err
		}
		counts[domain.RiskTier(tier)] = n
	}

	return counts, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL drivers.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" && r.driver != "pgx" {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			n++
		} else {
			b.WriteByte(query[i])
		}
	}
	return b.String()
}
