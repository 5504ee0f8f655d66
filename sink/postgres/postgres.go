// Package postgres provides a PostgreSQL event store sink. Forwarded events
// are appended to a single events table that other tools can query.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/drblury/cdpflow/internal/runtime/jsoncodec"
	"github.com/drblury/cdpflow/internal/runtime/metadata"
	"github.com/drblury/cdpflow/sink"
)

// SinkName is the name used to register this sink.
const SinkName = "postgres"

// DefaultSchemaName is the schema holding the events table.
const DefaultSchemaName = "cdpflow"

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("postgres sink is closed")

var schemaNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg Config, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return New(cfg, logger)
}

func init() {
	Register()
}

// Register registers the PostgreSQL sink with the default registry.
func Register() {
	sink.RegisterWithCapabilities(SinkName, Build, sink.PostgresCapabilities)
	sink.RegisterWithCapabilities("postgresql", Build, sink.PostgresCapabilities) // Alias
}

// Build connects to the configured database and prepares the events table.
func Build(ctx context.Context, cfg sink.Config, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return PublisherFactory(Config{ConnectionString: cfg.GetPostgresURL()}, logger)
}

// Capabilities returns the capabilities of this sink.
func Capabilities() sink.Capabilities {
	return sink.PostgresCapabilities
}

// Config holds PostgreSQL-specific configuration.
type Config struct {
	// ConnectionString is the PostgreSQL connection string.
	ConnectionString string
	// SchemaName is the schema to use for the events table. Defaults to "cdpflow".
	SchemaName string
	// MaxOpenConns sets the maximum number of open connections to the database.
	MaxOpenConns int
	// MaxIdleConns sets the maximum number of idle connections.
	MaxIdleConns int
}

func (c Config) withDefaults() Config {
	if c.SchemaName == "" {
		c.SchemaName = DefaultSchemaName
	}
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 10
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = 5
	}
	return c
}

func (c Config) validate() error {
	if c.ConnectionString == "" {
		return errors.New("postgres connection string is required")
	}
	if !schemaNamePattern.MatchString(c.SchemaName) {
		return fmt.Errorf("invalid postgres schema name %q", c.SchemaName)
	}
	return nil
}

// Publisher stores forwarded events in PostgreSQL.
type Publisher struct {
	db     *sql.DB
	config Config
	logger watermill.LoggerAdapter
	insert string

	mu     sync.RWMutex
	closed bool
}

// New opens the database and creates the events table when missing.
func New(cfg Config, logger watermill.LoggerAdapter) (*Publisher, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	db, err := sql.Open("postgres", cfg.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	p := &Publisher{
		db:     db,
		config: cfg,
		logger: logger,
		insert: insertStatement(cfg.SchemaName),
	}
	if err := p.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Debug("Opened postgres event store", watermill.LogFields{"schema": cfg.SchemaName})
	return p, nil
}

func schemaStatements(schemaName string) []string {
	return []string{
		fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, schemaName),
		fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %[1]s.events (
		id BIGSERIAL PRIMARY KEY,
		uuid TEXT NOT NULL UNIQUE,
		topic TEXT NOT NULL,
		method TEXT NOT NULL DEFAULT '',
		payload BYTEA NOT NULL,
		metadata JSONB DEFAULT '{}',
		created_at TIMESTAMPTZ DEFAULT NOW()
	)`, schemaName),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_events_topic_created ON %s.events(topic, created_at)`, schemaName),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_events_method ON %s.events(method)`, schemaName),
	}
}

func insertStatement(schemaName string) string {
	return fmt.Sprintf(`
		INSERT INTO %s.events (uuid, topic, method, payload, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (uuid) DO NOTHING
	`, schemaName)
}

func (p *Publisher) initSchema() error {
	// #nosec G201 - schema name is validated in Config.validate
	for _, stmt := range schemaStatements(p.config.SchemaName) {
		if _, err := p.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Publish inserts messages in one transaction. Redelivered uuids are ignored.
func (p *Publisher) Publish(topic string, messages ...*message.Message) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	tx, err := p.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			p.logger.Error("failed to rollback transaction", err, nil)
		}
	}()

	stmt, err := tx.Prepare(p.insert)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, msg := range messages {
		meta, err := jsoncodec.Marshal(msg.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		payload := msg.Payload
		if payload == nil {
			payload = []byte{}
		}
		_, err = stmt.ExecContext(msg.Context(), msg.UUID, topic, msg.Metadata.Get(metadata.KeyMethod), payload, string(meta), time.Now().UTC())
		if err != nil {
			return fmt.Errorf("failed to insert event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close closes the database. Safe to call more than once.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.db.Close()
}

// Capabilities reports the sink capabilities.
func (p *Publisher) Capabilities() sink.Capabilities {
	return sink.PostgresCapabilities
}

// DB returns the underlying database connection for queries over stored events.
func (p *Publisher) DB() *sql.DB {
	return p.db
}
