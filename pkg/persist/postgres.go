package persist

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"contract-editor/pkg/document"

	_ "github.com/lib/pq"
)

// documentKey is the row id of the single legacy document.
const documentKey = "primary"

// PostgresStore persists the document as a single JSONB row.
type PostgresStore struct {
	db    *sql.DB
	queue *saveQueue
}

// NewPostgresStore connects, verifies the connection and creates the state
// table if it doesn't exist.
func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.createTable(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	s.queue = newSaveQueue(s.upsert)
	return s, nil
}

func (s *PostgresStore) createTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS contract_documents (
		id VARCHAR(36) PRIMARY KEY,
		data JSONB NOT NULL,
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL
	);
	`
	_, err := s.db.Exec(query)
	return err
}

// Load reads the persisted document. A missing or structurally invalid row
// loads as absent.
func (s *PostgresStore) Load() (*document.Document, error) {
	var raw []byte
	err := s.db.QueryRow(`SELECT data FROM contract_documents WHERE id = $1`, documentKey).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	doc, err := document.Parse(raw)
	if err != nil {
		log.Printf("persist: ignoring invalid document row: %v", err)
		return nil, nil
	}
	return doc, nil
}

// Save enqueues an asynchronous write of the snapshot.
func (s *PostgresStore) Save(snapshot []byte) {
	s.queue.enqueue(snapshot)
}

func (s *PostgresStore) upsert(data []byte) error {
	query := `
		INSERT INTO contract_documents (id, data, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at
	`
	if _, err := s.db.Exec(query, documentKey, data, time.Now()); err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}
	return nil
}

// Close flushes pending writes and closes the database connection.
func (s *PostgresStore) Close() error {
	s.queue.close()
	return s.db.Close()
}

var _ Gateway = (*PostgresStore)(nil)
