// Package sqlite provides a SQLite event store sink. Forwarded events are
// appended to an events table in a local database file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/drblury/cdpflow/internal/runtime/jsoncodec"
	"github.com/drblury/cdpflow/internal/runtime/metadata"
	"github.com/drblury/cdpflow/sink"
)

// SinkName is the name used to register this sink.
const SinkName = "sqlite"

// DefaultFilePath is the database file used when none is configured.
const DefaultFilePath = "cdp-events.db"

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("sqlite sink is closed")

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg Config, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return New(cfg, logger)
}

func init() {
	Register()
}

// Register registers the SQLite sink with the default registry.
func Register() {
	sink.RegisterWithCapabilities(SinkName, Build, sink.SQLiteCapabilities)
}

// Build opens the configured database file.
func Build(ctx context.Context, cfg sink.Config, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return PublisherFactory(Config{FilePath: cfg.GetSQLiteFile()}, logger)
}

// Capabilities returns the capabilities of this sink.
func Capabilities() sink.Capabilities {
	return sink.SQLiteCapabilities
}

// Config holds SQLite-specific configuration.
type Config struct {
	// FilePath is the path to the SQLite database file.
	FilePath string
}

func (c Config) withDefaults() Config {
	if c.FilePath == "" {
		c.FilePath = DefaultFilePath
	}
	return c
}

// StoredEvent is one row of the events table.
type StoredEvent struct {
	ID        int64
	UUID      string
	Topic     string
	Method    string
	Payload   []byte
	Metadata  map[string]string
	CreatedAt time.Time
}

// Publisher stores forwarded events in SQLite.
type Publisher struct {
	db     *sql.DB
	logger watermill.LoggerAdapter

	mu     sync.Mutex
	closed bool
}

// New opens the database file and creates the events table when missing.
func New(cfg Config, logger watermill.LoggerAdapter) (*Publisher, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	db, err := sql.Open("sqlite3", cfg.FilePath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	p := &Publisher{db: db, logger: logger}
	if err := p.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Debug("Opened sqlite event store", watermill.LogFields{"path": cfg.FilePath})
	return p, nil
}

func (p *Publisher) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		uuid TEXT NOT NULL UNIQUE,
		topic TEXT NOT NULL,
		method TEXT NOT NULL DEFAULT '',
		payload BLOB NOT NULL,
		metadata TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_events_topic_created ON events(topic, created_at);
	CREATE INDEX IF NOT EXISTS idx_events_method ON events(method);
	`
	_, err := p.db.Exec(schema)
	return err
}

// Publish inserts messages in one transaction. Redelivered uuids are ignored.
func (p *Publisher) Publish(topic string, messages ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
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

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO events (uuid, topic, method, payload, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
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

// Events returns up to limit stored events of topic, oldest first.
func (p *Publisher) Events(ctx context.Context, topic string, limit int) ([]StoredEvent, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, uuid, topic, method, payload, metadata, created_at
		FROM events
		WHERE topic = ?
		ORDER BY id ASC
		LIMIT ?
	`, topic, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []StoredEvent
	for rows.Next() {
		var evt StoredEvent
		var meta sql.NullString
		if err := rows.Scan(&evt.ID, &evt.UUID, &evt.Topic, &evt.Method, &evt.Payload, &meta, &evt.CreatedAt); err != nil {
			return nil, err
		}
		if meta.Valid && meta.String != "" {
			if err := jsoncodec.Unmarshal([]byte(meta.String), &evt.Metadata); err != nil {
				p.logger.Error("failed to unmarshal metadata", err, nil)
			}
		}
		out = append(out, evt)
	}
	return out, rows.Err()
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
	return sink.SQLiteCapabilities
}
