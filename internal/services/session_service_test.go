package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "textcleaner_go_backend/internal/errors"
	"textcleaner_go_backend/internal/models"
)

func TestSessionRegistry_CreateAndGet(t *testing.T) {
	reg := NewSessionRegistry(time.Hour)

	sess := reg.Create()
	assert.NotEmpty(t, sess.ID)

	got, ok := reg.Get(sess.ID)
	require.True(t, ok)
	assert.Equal(t, sess.ID, got.ID)

	_, ok = reg.Get("unknown")
	assert.False(t, ok)
}

func TestSessionRegistry_SetLanguage(t *testing.T) {
	reg := NewSessionRegistry(time.Hour)
	sess := reg.Create()

	require.NoError(t, reg.SetLanguage(sess.ID, "en"))
	got, _ := reg.Get(sess.ID)
	assert.Equal(t, "en", got.Language)

	assert.ErrorIs(t, reg.SetLanguage("unknown", "ru"), ErrSessionNotFound)
}

func TestSessionRegistry_TransactionReplaceWins(t *testing.T) {
	reg := NewSessionRegistry(time.Hour)
	sess := reg.Create()

	_, ok := reg.Transaction(sess.ID)
	assert.False(t, ok)

	first := models.PendingTransaction{OriginalText: "first", Price: 10, State: models.StateOffered}
	require.NoError(t, reg.PutTransaction(sess.ID, first))

	// A second submission replaces the offer entirely.
	second := models.PendingTransaction{OriginalText: "second", Price: 25, State: models.StateOffered}
	require.NoError(t, reg.PutTransaction(sess.ID, second))

	got, ok := reg.Transaction(sess.ID)
	require.True(t, ok)
	assert.Equal(t, "second", got.OriginalText)
	assert.Equal(t, int64(25), got.Price)
}

func TestSessionRegistry_WithTransaction(t *testing.T) {
	reg := NewSessionRegistry(time.Hour)
	sess := reg.Create()

	err := reg.WithTransaction(sess.ID, func(tx *models.PendingTransaction) error { return nil })
	assert.ErrorIs(t, err, apperrors.ErrNoPendingTransaction)

	require.NoError(t, reg.PutTransaction(sess.ID, models.PendingTransaction{State: models.StateOffered}))
	err = reg.WithTransaction(sess.ID, func(tx *models.PendingTransaction) error {
		tx.State = models.StateInvoiceIssued
		return nil
	})
	require.NoError(t, err)

	got, _ := reg.Transaction(sess.ID)
	assert.Equal(t, models.StateInvoiceIssued, got.State)
}

func TestSessionRegistry_ClearTransaction(t *testing.T) {
	reg := NewSessionRegistry(time.Hour)
	sess := reg.Create()

	_, ok := reg.ClearTransaction(sess.ID)
	assert.False(t, ok)

	require.NoError(t, reg.PutTransaction(sess.ID, models.PendingTransaction{OriginalText: "text"}))
	tx, ok := reg.ClearTransaction(sess.ID)
	require.True(t, ok)
	assert.Equal(t, "text", tx.OriginalText)

	_, ok = reg.Transaction(sess.ID)
	assert.False(t, ok)
}

func TestSessionRegistry_CleanupIdleSessions(t *testing.T) {
	reg := NewSessionRegistry(10 * time.Millisecond)
	sess := reg.Create()
	require.NoError(t, reg.PutTransaction(sess.ID, models.PendingTransaction{}))

	time.Sleep(20 * time.Millisecond)
	reg.CleanupIdleSessions()

	_, ok := reg.Get(sess.ID)
	assert.False(t, ok)
}
