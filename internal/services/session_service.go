package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	apperrors "textcleaner_go_backend/internal/errors"
	"textcleaner_go_backend/internal/models"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionRegistry owns every active session and its single pending
// transaction. It is an explicit handle passed into the pipeline and the
// payment coordinator; nothing reaches session state except through it.
// Entries are scoped per session, so the registry lock is only a map
// barrier, never held across I/O.
type SessionRegistry struct {
	mu          sync.RWMutex
	sessions    map[string]*models.Session
	idleTimeout time.Duration
}

func NewSessionRegistry(idleTimeout time.Duration) *SessionRegistry {
	return &SessionRegistry{
		sessions:    make(map[string]*models.Session),
		idleTimeout: idleTimeout,
	}
}

// Create registers a new session and returns a snapshot of it.
func (r *SessionRegistry) Create() models.Session {
	now := time.Now()
	sess := &models.Session{
		ID:         uuid.NewString(),
		CreatedAt:  now,
		LastActive: now,
	}

	r.mu.Lock()
	r.sessions[sess.ID] = sess
	r.mu.Unlock()

	return *sess
}

// Get returns a snapshot of the session and marks it active.
func (r *SessionRegistry) Get(id string) (models.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[id]
	if !ok {
		return models.Session{}, false
	}
	sess.LastActive = time.Now()
	return *sess, true
}

// SetLanguage records the user's explicit language choice.
func (r *SessionRegistry) SetLanguage(id, language string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	sess.Language = language
	return nil
}

// PutTransaction writes or replaces the session's pending transaction.
// Replace-wins: a superseded offer is discarded whole, which is safe
// because nothing was paid on it yet.
func (r *SessionRegistry) PutTransaction(id string, tx models.PendingTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	if sess.Pending != nil {
		log.Info().Str("session", id).Msg("pending transaction superseded by new submission")
	}
	sess.Pending = &tx
	sess.LastActive = time.Now()
	return nil
}

// Transaction returns a copy of the session's pending transaction.
func (r *SessionRegistry) Transaction(id string) (models.PendingTransaction, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[id]
	if !ok || sess.Pending == nil {
		return models.PendingTransaction{}, false
	}
	return *sess.Pending, true
}

// WithTransaction runs fn against the pending transaction under the
// registry lock, giving payment transitions their read-modify-write
// barrier. A missing session or transaction yields ErrNoPendingTransaction.
func (r *SessionRegistry) WithTransaction(id string, fn func(tx *models.PendingTransaction) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[id]
	if !ok || sess.Pending == nil {
		return apperrors.ErrNoPendingTransaction
	}
	sess.LastActive = time.Now()
	return fn(sess.Pending)
}

// ClearTransaction removes and returns the pending transaction, if any.
func (r *SessionRegistry) ClearTransaction(id string) (models.PendingTransaction, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[id]
	if !ok || sess.Pending == nil {
		return models.PendingTransaction{}, false
	}
	tx := *sess.Pending
	sess.Pending = nil
	return tx, true
}

// StartReaper terminates idle sessions on a ticker until ctx is cancelled.
func (r *SessionRegistry) StartReaper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.CleanupIdleSessions()
			}
		}
	}()
}

// CleanupIdleSessions drops sessions idle past the timeout, discarding any
// unpaid pending transaction with them.
func (r *SessionRegistry) CleanupIdleSessions() {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, sess := range r.sessions {
		if now.Sub(sess.LastActive) > r.idleTimeout {
			if sess.Pending != nil {
				log.Info().Str("session", id).Msg("discarding unpaid offer of idle session")
			}
			delete(r.sessions, id)
			log.Info().Str("session", id).Msg("session expired")
		}
	}
}
