package sqldb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // registers the "postgres" driver
)

const (
	// DefaultConnectTimeout bounds a single connection attempt
	DefaultConnectTimeout = 15 * time.Second
	// DefaultPort is used when the server address carries no port
	DefaultPort = 5432
)

// DefaultDrivers is the order in which driver variants are tried.
var DefaultDrivers = []string{"postgres", "pgx"}

// ErrNoDrivers is returned when the provider has no driver variants configured
var ErrNoDrivers = errors.New("no database drivers configured")

// Config holds connection provider configuration
type Config struct {
	Drivers        []string
	DefaultPort    int
	ConnectTimeout time.Duration
}

// OpenFunc opens and verifies a database handle for one driver variant.
type OpenFunc func(ctx context.Context, driver, dsn string) (*sqlx.DB, error)

// Provider opens database sessions and memoizes them by their exact credentials.
// Each memoized handle is limited to a single open connection.
type Provider struct {
	mu     sync.Mutex
	config *Config
	logger *slog.Logger
	open   OpenFunc
	conns  map[Credentials]*sqlx.DB
}

// NewProvider creates a new connection provider
func NewProvider(config *Config, logger *slog.Logger) *Provider {
	cfg := *config
	if len(cfg.Drivers) == 0 {
		cfg.Drivers = DefaultDrivers
	}
	if cfg.DefaultPort == 0 {
		cfg.DefaultPort = DefaultPort
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}

	return &Provider{
		config: &cfg,
		logger: logger,
		open:   sqlx.ConnectContext,
		conns:  make(map[Credentials]*sqlx.DB),
	}
}

// Acquire returns the session for creds, connecting on first use.
// Driver variants are tried in order; when all fail the last failure is returned
// inside a *ConnectionError.
// The lock is not held while connecting, so a slow login never delays
// sessions whose handle is already memoized.
func (p *Provider) Acquire(ctx context.Context, creds Credentials) (*sqlx.DB, error) {
	p.mu.Lock()
	db, ok := p.conns[creds]
	p.mu.Unlock()
	if ok {
		return db, nil
	}

	db, err := p.connect(ctx, creds)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Another request for the same credentials won the race
	if existing, ok := p.conns[creds]; ok {
		if err := db.Close(); err != nil {
			p.logger.Warn("Failed to close duplicate database session", slog.Any("error", err))
		}
		return existing, nil
	}

	p.conns[creds] = db
	return db, nil
}

func (p *Provider) connect(ctx context.Context, creds Credentials) (*sqlx.DB, error) {
	dsn, err := BuildDSN(creds, p.config.DefaultPort, p.config.ConnectTimeout)
	if err != nil {
		return nil, &ConnectionError{Err: err}
	}

	var lastErr error = ErrNoDrivers
	for attempt, driver := range p.config.Drivers {
		p.logger.Info("Connecting to database",
			slog.String("driver", driver),
			slog.Int("attempt", attempt+1),
			slog.Int("max_attempts", len(p.config.Drivers)),
			slog.Any("credentials", creds),
		)

		attemptCtx, cancel := context.WithTimeout(ctx, p.config.ConnectTimeout)
		db, err := p.open(attemptCtx, driver, dsn)
		cancel()

		if err == nil {
			db.SetMaxOpenConns(1)
			db.SetMaxIdleConns(1)

			p.logger.Info("Successfully connected to database",
				slog.String("driver", driver),
				slog.String("database", creds.Database),
			)
			return db, nil
		}

		p.logger.Warn("Failed to connect to database",
			slog.String("driver", driver),
			slog.Any("error", err),
		)
		lastErr = err
	}

	return nil, &ConnectionError{Drivers: p.config.Drivers, Err: lastErr}
}

// Release closes and forgets the session for creds, if any.
func (p *Provider) Release(creds Credentials) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	db, ok := p.conns[creds]
	if !ok {
		return nil
	}
	delete(p.conns, creds)

	if err := db.Close(); err != nil {
		p.logger.Error("Failed to close database session",
			slog.Any("error", err),
		)
		return fmt.Errorf("failed to close database session: %w", err)
	}

	p.logger.Info("Database session closed", slog.String("database", creds.Database))
	return nil
}

// Close closes every memoized session.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for creds, db := range p.conns {
		if err := db.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(p.conns, creds)
	}

	if len(errs) > 0 {
		return fmt.Errorf("failed to close %d database sessions: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

// Drivers returns the configured driver variants in attempt order.
func (p *Provider) Drivers() []string {
	return append([]string(nil), p.config.Drivers...)
}

// ConnectionError is returned when every driver variant failed.
type ConnectionError struct {
	Drivers []string
	Err     error
}

func (e *ConnectionError) Error() string {
	if len(e.Drivers) == 0 {
		return fmt.Sprintf("connection failed: %v", e.Err)
	}
	return fmt.Sprintf("connection failed (tried %s): %v", strings.Join(e.Drivers, ", "), e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}
