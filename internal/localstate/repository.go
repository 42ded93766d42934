// Package localstate persists the user's holdings and settings as a single document.
package localstate

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cht-holly/chtholly-vault/internal/domain"
	"github.com/rs/zerolog"
)

// DocumentKey is the row key of the persisted document.
const DocumentKey = "crypto-portfolio-store"

const documentVersion = 1

// Document is everything that survives a restart. Prices and analytics are
// recomputed and never stored.
type Document struct {
	Holdings *domain.HoldingsPortfolio `json:"holdings,omitempty"`
	Settings *domain.Settings          `json:"settings,omitempty"`
}

// Repository reads and writes the persisted document.
// Every save rewrites the whole document synchronously.
type Repository struct {
	db     *sql.DB
	mu     sync.Mutex
	doc    Document
	loaded bool
	log    zerolog.Logger
}

// NewRepository creates a new local state repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "local_state").Logger(),
	}
}

// Load returns the persisted document. Sections that were never saved are nil.
func (r *Repository) Load() (Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.load(); err != nil {
		return Document{}, err
	}
	return r.doc, nil
}

// SaveHoldings replaces the holdings section and writes the document.
func (r *Repository) SaveHoldings(portfolio domain.HoldingsPortfolio) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.load(); err != nil {
		return err
	}
	r.doc.Holdings = &portfolio
	return r.write()
}

// SaveSettings replaces the settings section and writes the document.
func (r *Repository) SaveSettings(settings domain.Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.load(); err != nil {
		return err
	}
	r.doc.Settings = &settings
	return r.write()
}

// Clear removes the persisted document.
func (r *Repository) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.db.Exec("DELETE FROM local_state WHERE key = ?", DocumentKey); err != nil {
		return fmt.Errorf("failed to clear local state: %w", err)
	}
	r.doc = Document{}
	r.loaded = true
	return nil
}

// load reads the document once; later calls use the in-memory copy
func (r *Repository) load() error {
	if r.loaded {
		return nil
	}

	var data string
	err := r.db.QueryRow("SELECT data FROM local_state WHERE key = ?", DocumentKey).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		r.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read local state: %w", err)
	}

	var doc Document
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		// A corrupt document must not block startup; the next save overwrites it
		r.log.Error().Err(err).Msg("Failed to decode local state, starting fresh")
		doc = Document{}
	}

	r.doc = doc
	r.loaded = true
	return nil
}

func (r *Repository) write() error {
	data, err := json.Marshal(r.doc)
	if err != nil {
		return fmt.Errorf("failed to encode local state: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO local_state (key, data, version, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			data = excluded.data,
			version = excluded.version,
			updated_at = excluded.updated_at
	`, DocumentKey, string(data), documentVersion, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to write local state: %w", err)
	}

	r.log.Debug().Int("bytes", len(data)).Msg("Local state saved")
	return nil
}
