// Package draft is the local draft persistence layer: a small key-value
// store that mirrors the plan mode state machine's state so a draft survives
// an application restart. It is a side-channel mirror, not a source of truth
// while the process is live; it is only authoritative immediately after
// startup, before the in-memory state is rehydrated.
package draft

import (
	"database/sql"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/rrirrirr/training-json/internal/domain"
)

// Keys for the state machine's mirror. Per-plan view state uses the
// viewStatePrefix plus the plan id.
const (
	keyMode           = "mode"
	keyDraftPlan      = "draftPlan"
	keyOriginalID     = "originalPlanId"
	keyLastViewedPlan = "lastViewedPlanId"
	keyHiddenPlans    = "hiddenPlanIds"
	viewStatePrefix   = "viewstate:"
)

const schema = `
CREATE TABLE IF NOT EXISTS draft_state (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Snapshot is everything the state machine mirrors, read back in one call.
// Unreadable or corrupt values come back as their zero value.
type Snapshot struct {
	Mode       string
	DraftPlan  *domain.TrainingPlanDocument
	OriginalID string
}

// ViewState is the per-plan presentation state viewers store opportunistically
// (selected week, selected month block, table/card view). The core state
// machine never reads it.
type ViewState struct {
	SelectedWeek  int    `json:"selectedWeek,omitempty"`
	SelectedBlock int    `json:"selectedBlock,omitempty"`
	ViewMode      string `json:"viewMode,omitempty"`
}

// Store is the single read/write surface for locally persisted draft state.
// Writes that fail are logged and abandoned for that call (no retries);
// reads that fail behave as if nothing was persisted. Errors never cross
// this boundary.
type Store interface {
	SetMode(mode string)
	SetDraftPlan(doc *domain.TrainingPlanDocument)
	SetOriginalID(id string)
	ClearAll()
	ReadAll() Snapshot

	SetLastViewedPlanID(id string)
	LastViewedPlanID() string

	SetHiddenPlanIDs(ids []string)
	HiddenPlanIDs() []string

	SetViewState(planID string, state *ViewState)
	GetViewState(planID string) *ViewState

	Close() error
}

// Open returns a SQLite-backed store at path. If the file cannot be opened
// or initialized (unwritable directory, corrupt database), it logs and
// degrades to an in-memory store for this session rather than failing.
func Open(path string) Store {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.Printf("draft: cannot create state directory, using in-memory store: %v", err)
		return NewMemory()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		log.Printf("draft: cannot open %s, using in-memory store: %v", path, err)
		return NewMemory()
	}
	if _, err := db.Exec(schema); err != nil {
		log.Printf("draft: cannot initialize %s, using in-memory store: %v", path, err)
		_ = db.Close()
		return NewMemory()
	}
	return &sqliteStore{db: db}
}

// sqliteStore persists keys in a single draft_state table.
type sqliteStore struct {
	db *sql.DB
}

func (s *sqliteStore) set(key, value string) {
	_, err := s.db.Exec(
		`INSERT INTO draft_state (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		log.Printf("draft: write %q failed, abandoned: %v", key, err)
	}
}

func (s *sqliteStore) remove(key string) {
	if _, err := s.db.Exec(`DELETE FROM draft_state WHERE key = ?`, key); err != nil {
		log.Printf("draft: remove %q failed, abandoned: %v", key, err)
	}
}

func (s *sqliteStore) get(key string) (string, bool) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM draft_state WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Printf("draft: read %q failed, treating as unset: %v", key, err)
		}
		return "", false
	}
	return value, true
}

func (s *sqliteStore) SetMode(mode string) {
	if mode == "" {
		s.remove(keyMode)
		return
	}
	s.set(keyMode, mode)
}

func (s *sqliteStore) SetDraftPlan(doc *domain.TrainingPlanDocument) {
	if doc == nil {
		s.remove(keyDraftPlan)
		return
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		log.Printf("draft: cannot serialize draft plan, abandoned: %v", err)
		return
	}
	s.set(keyDraftPlan, string(raw))
}

func (s *sqliteStore) SetOriginalID(id string) {
	if id == "" {
		s.remove(keyOriginalID)
		return
	}
	s.set(keyOriginalID, id)
}

func (s *sqliteStore) ClearAll() {
	s.remove(keyMode)
	s.remove(keyDraftPlan)
	s.remove(keyOriginalID)
}

func (s *sqliteStore) ReadAll() Snapshot {
	var snap Snapshot
	snap.Mode, _ = s.get(keyMode)
	snap.OriginalID, _ = s.get(keyOriginalID)
	if raw, ok := s.get(keyDraftPlan); ok {
		var doc domain.TrainingPlanDocument
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			// Corrupt JSON behaves as "nothing persisted".
			log.Printf("draft: stored draft plan is corrupt, ignoring: %v", err)
		} else {
			snap.DraftPlan = &doc
		}
	}
	return snap
}

func (s *sqliteStore) SetLastViewedPlanID(id string) {
	if id == "" {
		s.remove(keyLastViewedPlan)
		return
	}
	s.set(keyLastViewedPlan, id)
}

func (s *sqliteStore) LastViewedPlanID() string {
	id, _ := s.get(keyLastViewedPlan)
	return id
}

func (s *sqliteStore) SetHiddenPlanIDs(ids []string) {
	if len(ids) == 0 {
		s.remove(keyHiddenPlans)
		return
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		log.Printf("draft: cannot serialize hidden plan ids, abandoned: %v", err)
		return
	}
	s.set(keyHiddenPlans, string(raw))
}

func (s *sqliteStore) HiddenPlanIDs() []string {
	raw, ok := s.get(keyHiddenPlans)
	if !ok {
		return nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		log.Printf("draft: stored hidden plan ids are corrupt, ignoring: %v", err)
		return nil
	}
	return ids
}

func (s *sqliteStore) SetViewState(planID string, state *ViewState) {
	key := viewStatePrefix + planID
	if state == nil {
		s.remove(key)
		return
	}
	raw, err := json.Marshal(state)
	if err != nil {
		log.Printf("draft: cannot serialize view state, abandoned: %v", err)
		return
	}
	s.set(key, string(raw))
}

func (s *sqliteStore) GetViewState(planID string) *ViewState {
	raw, ok := s.get(viewStatePrefix + planID)
	if !ok {
		return nil
	}
	var state ViewState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		log.Printf("draft: stored view state for %s is corrupt, ignoring: %v", planID, err)
		return nil
	}
	return &state
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// memoryStore is the degraded, session-only fallback when the SQLite file is
// unusable. Same contract, nothing survives the process.
type memoryStore struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemory returns a store that keeps everything in process memory. Used as
// the storage-unavailable fallback and by tests.
func NewMemory() Store {
	return &memoryStore{values: make(map[string]string)}
}

func (m *memoryStore) set(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}

func (m *memoryStore) remove(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
}

func (m *memoryStore) get(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.values[key]
	return value, ok
}

func (m *memoryStore) SetMode(mode string) {
	if mode == "" {
		m.remove(keyMode)
		return
	}
	m.set(keyMode, mode)
}

func (m *memoryStore) SetDraftPlan(doc *domain.TrainingPlanDocument) {
	if doc == nil {
		m.remove(keyDraftPlan)
		return
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		log.Printf("draft: cannot serialize draft plan, abandoned: %v", err)
		return
	}
	m.set(keyDraftPlan, string(raw))
}

func (m *memoryStore) SetOriginalID(id string) {
	if id == "" {
		m.remove(keyOriginalID)
		return
	}
	m.set(keyOriginalID, id)
}

func (m *memoryStore) ClearAll() {
	m.remove(keyMode)
	m.remove(keyDraftPlan)
	m.remove(keyOriginalID)
}

func (m *memoryStore) ReadAll() Snapshot {
	var snap Snapshot
	snap.Mode, _ = m.get(keyMode)
	snap.OriginalID, _ = m.get(keyOriginalID)
	if raw, ok := m.get(keyDraftPlan); ok {
		var doc domain.TrainingPlanDocument
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			log.Printf("draft: stored draft plan is corrupt, ignoring: %v", err)
		} else {
			snap.DraftPlan = &doc
		}
	}
	return snap
}

func (m *memoryStore) SetLastViewedPlanID(id string) {
	if id == "" {
		m.remove(keyLastViewedPlan)
		return
	}
	m.set(keyLastViewedPlan, id)
}

func (m *memoryStore) LastViewedPlanID() string {
	id, _ := m.get(keyLastViewedPlan)
	return id
}

func (m *memoryStore) SetHiddenPlanIDs(ids []string) {
	if len(ids) == 0 {
		m.remove(keyHiddenPlans)
		return
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		log.Printf("draft: cannot serialize hidden plan ids, abandoned: %v", err)
		return
	}
	m.set(keyHiddenPlans, string(raw))
}

func (m *memoryStore) HiddenPlanIDs() []string {
	raw, ok := m.get(keyHiddenPlans)
	if !ok {
		return nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil
	}
	return ids
}

func (m *memoryStore) SetViewState(planID string, state *ViewState) {
	key := viewStatePrefix + planID
	if state == nil {
		m.remove(key)
		return
	}
	raw, err := json.Marshal(state)
	if err != nil {
		log.Printf("draft: cannot serialize view state, abandoned: %v", err)
		return
	}
	m.set(key, string(raw))
}

func (m *memoryStore) GetViewState(planID string) *ViewState {
	raw, ok := m.get(viewStatePrefix + planID)
	if !ok {
		return nil
	}
	var state ViewState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil
	}
	return &state
}

func (m *memoryStore) Close() error { return nil }
