// Queue operations for pending journal entries.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/wayfound/trailbook/internal/errors"
	"github.com/wayfound/trailbook/internal/logging"
	"github.com/wayfound/trailbook/internal/models"
	"github.com/wayfound/trailbook/internal/uuid"
)

// QueueStore provides the durable queue of entries awaiting delivery.
//
// A queued entry is visible to callers from the instant Put commits until a
// successful drain deletes it. Delivered entries are removed, never marked;
// absence from the queue is the synced signal.
type QueueStore struct {
	db *sql.DB

	// Prepared statement cache for frequently used queries.
	stmtCache sync.Map // map[string]*sql.Stmt
}

// Patch is a partial update applied to a single queued entry. Nil fields are
// left unchanged. Only the sync orchestrator mutates status, error and retry
// bookkeeping; the capture path never does.
type Patch struct {
	Status       *models.EntryStatus
	ErrorMessage *string
	RetryCount   *int
}

// NewQueueStore creates a QueueStore and recovers interrupted deliveries.
//
// Any entry found in "syncing" was in flight when the previous process died.
// A crash mid-delivery is indistinguishable from a failure, so the entry is
// reset to "pending" and retried; delivery is at-least-once, not
// exactly-once.
func NewQueueStore(db *sql.DB) (*QueueStore, error) {
	s := &QueueStore{db: db}

	result, err := db.Exec(`UPDATE pending_entries SET status = ? WHERE status = ?`,
		models.StatusPending, models.StatusSyncing)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to recover interrupted entries", err)
	}
	if recovered, _ := result.RowsAffected(); recovered > 0 {
		logging.Info("Recovered interrupted deliveries",
			map[string]interface{}{"count": recovered})
	}

	return s, nil
}

// prepareStmt gets or creates a prepared statement from the cache.
func (s *QueueStore) prepareStmt(query string) (*sql.Stmt, error) {
	if stmt, ok := s.stmtCache.Load(query); ok {
		return stmt.(*sql.Stmt), nil
	}

	stmt, err := s.db.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}

	actual, loaded := s.stmtCache.LoadOrStore(query, stmt)
	if loaded {
		// Another goroutine already prepared this, close our duplicate
		stmt.Close()
		return actual.(*sql.Stmt), nil
	}

	return stmt, nil
}

// Close closes all cached prepared statements.
func (s *QueueStore) Close() error {
	var firstErr error
	s.stmtCache.Range(func(key, value interface{}) bool {
		stmt := value.(*sql.Stmt)
		if err := stmt.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		return true
	})
	return firstErr
}

// Put persists a captured entry with all of its media in one transaction:
// either the whole entry commits or none of it does.
//
// Failures surface synchronously as STORAGE_UNAVAILABLE; an offline save
// that silently fails is a correctness bug, so callers must report this to
// the user.
func (s *QueueStore) Put(entry *models.PendingEntry) (*models.PendingEntry, error) {
	if entry.ID == "" {
		entry.ID = models.UUID(uuid.New())
	}
	if entry.CreatedAt == 0 {
		entry.CreatedAt = time.Now().Unix()
	}
	if entry.Status == "" {
		entry.Status = models.StatusPending
	}
	for i := range entry.Media {
		if entry.Media[i].ID == "" {
			entry.Media[i].ID = models.UUID(uuid.New())
		}
	}

	if err := entry.ValidateMediaOrders(); err != nil {
		return nil, errors.Wrap(errors.ErrValidation, "media order values must be unique", err)
	}

	// json.Marshal base64-encodes media bytes, making the stored row a
	// self-contained text-safe record.
	payloadJSON, err := json.Marshal(entry.Payload)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInternal, "failed to encode payload", err)
	}
	mediaJSON, err := json.Marshal(entry.Media)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInternal, "failed to encode media", err)
	}

	query := `
	INSERT INTO pending_entries (id, created_at, payload, media, status, error_message, retry_count)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.Exec(query, entry.ID, entry.CreatedAt, string(payloadJSON),
		string(mediaJSON), entry.Status, entry.ErrorMessage, entry.RetryCount)
	if err != nil {
		return nil, errors.Wrap(errors.ErrStorageUnavailable, "failed to persist entry", err)
	}

	return entry, nil
}

// ListAll returns every queued entry, newest first, for display.
func (s *QueueStore) ListAll() ([]*models.PendingEntry, error) {
	return s.list(`
	SELECT id, created_at, payload, media, status, error_message, retry_count
	FROM pending_entries ORDER BY created_at DESC, id DESC
	`)
}

// ListDrainable returns entries awaiting delivery (pending or error),
// oldest first. FIFO drain order preserves the user's authored chronology
// on the remote store.
func (s *QueueStore) ListDrainable() ([]*models.PendingEntry, error) {
	return s.list(fmt.Sprintf(`
	SELECT id, created_at, payload, media, status, error_message, retry_count
	FROM pending_entries WHERE status IN ('%s', '%s')
	ORDER BY created_at ASC, id ASC
	`, models.StatusPending, models.StatusError))
}

// list runs a full-row query and scans the results.
func (s *QueueStore) list(query string) ([]*models.PendingEntry, error) {
	stmt, err := s.prepareStmt(query)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to prepare list query", err)
	}

	rows, err := stmt.Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to list entries", err)
	}
	defer rows.Close()

	var entries []*models.PendingEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to iterate entries", err)
	}
	return entries, nil
}

// Get returns a single queued entry by ID.
func (s *QueueStore) Get(id models.UUID) (*models.PendingEntry, error) {
	stmt, err := s.prepareStmt(`
	SELECT id, created_at, payload, media, status, error_message, retry_count
	FROM pending_entries WHERE id = ?
	`)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to prepare get query", err)
	}

	row := stmt.QueryRow(id)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.ErrEntryNotFound, fmt.Sprintf("entry not found: %s", id))
	}
	return entry, err
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanEntry decodes one pending_entries row.
func scanEntry(row rowScanner) (*models.PendingEntry, error) {
	var entry models.PendingEntry
	var payloadJSON, mediaJSON string

	err := row.Scan(&entry.ID, &entry.CreatedAt, &payloadJSON, &mediaJSON,
		&entry.Status, &entry.ErrorMessage, &entry.RetryCount)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to scan entry", err)
	}

	if err := json.Unmarshal([]byte(payloadJSON), &entry.Payload); err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to decode payload", err)
	}
	if err := json.Unmarshal([]byte(mediaJSON), &entry.Media); err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to decode media", err)
	}

	return &entry, nil
}

// Count returns the number of entries in the given status.
func (s *QueueStore) Count(status models.EntryStatus) (int, error) {
	stmt, err := s.prepareStmt(`SELECT COUNT(*) FROM pending_entries WHERE status = ?`)
	if err != nil {
		return 0, errors.Wrap(errors.ErrDatabase, "failed to prepare count query", err)
	}

	var count int
	if err := stmt.QueryRow(status).Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrDatabase, "failed to count entries", err)
	}
	return count, nil
}

// CountBacklog returns the total undelivered backlog (all statuses).
// Entries mid-delivery still count: they are not synced until deleted.
func (s *QueueStore) CountBacklog() (int, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM pending_entries`).Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrDatabase, "failed to count backlog", err)
	}
	return count, nil
}

// ApplyPatch applies a partial update to a single entry atomically.
// Returns ENTRY_NOT_FOUND if the entry was deleted concurrently.
func (s *QueueStore) ApplyPatch(id models.UUID, patch Patch) error {
	set := ""
	var args []interface{}

	if patch.Status != nil {
		set += "status = ?"
		args = append(args, *patch.Status)
	}
	if patch.ErrorMessage != nil {
		if set != "" {
			set += ", "
		}
		set += "error_message = ?"
		args = append(args, *patch.ErrorMessage)
	}
	if patch.RetryCount != nil {
		if set != "" {
			set += ", "
		}
		set += "retry_count = ?"
		args = append(args, *patch.RetryCount)
	}
	if set == "" {
		return nil
	}
	args = append(args, id)

	result, err := s.db.Exec("UPDATE pending_entries SET "+set+" WHERE id = ?", args...)
	if err != nil {
		return errors.Wrap(errors.ErrStorageUnavailable, "failed to patch entry", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return errors.New(errors.ErrEntryNotFound, fmt.Sprintf("entry not found: %s", id))
	}
	return nil
}

// Remove deletes a queued entry, either after successful delivery or on
// explicit user request.
func (s *QueueStore) Remove(id models.UUID) error {
	result, err := s.db.Exec(`DELETE FROM pending_entries WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(errors.ErrStorageUnavailable, "failed to remove entry", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return errors.New(errors.ErrEntryNotFound, fmt.Sprintf("entry not found: %s", id))
	}
	return nil
}

// Clear removes all queued entries.
func (s *QueueStore) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM pending_entries`); err != nil {
		return errors.Wrap(errors.ErrStorageUnavailable, "failed to clear queue", err)
	}
	return nil
}
