// ABOUTME: Tests for credential store operations
// ABOUTME: Covers scoped lookup, listing, and sign count + last-used updates

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_GetUserCredential(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	user := testUser("alice")
	cred := testCredential(user.ID, []byte("cred-alice-1"))
	cred.SignCount = 7
	cred.BackupEligible = true
	cred.BackupState = true
	require.NoError(t, store.CreateUserWithCredential(ctx, user, cred))

	retrieved, err := store.GetUserCredential(ctx, user.ID, []byte("cred-alice-1"))
	require.NoError(t, err)
	assert.Equal(t, cred.ID, retrieved.ID)
	assert.Equal(t, user.ID, retrieved.UserID)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, retrieved.PublicKey)
	assert.Equal(t, "none", retrieved.AttestationType)
	assert.Equal(t, `["internal"]`, retrieved.Transports)
	assert.Equal(t, uint32(7), retrieved.SignCount)
	assert.True(t, retrieved.BackupEligible)
	assert.True(t, retrieved.BackupState)
	assert.Nil(t, retrieved.LastUsedAt)
}

func TestStore_GetUserCredential_NotFound(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	user := testUser("alice")
	require.NoError(t, store.CreateUserWithCredential(ctx, user, testCredential(user.ID, []byte("cred-1"))))

	_, err := store.GetUserCredential(ctx, user.ID, []byte("other-cred"))
	assert.ErrorIs(t, err, ErrCredentialNotFound)
}

func TestStore_GetUserCredential_ScopedToUser(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	alice := testUser("alice")
	require.NoError(t, store.CreateUserWithCredential(ctx, alice, testCredential(alice.ID, []byte("cred-alice"))))

	bob := testUser("bob")
	require.NoError(t, store.CreateUserWithCredential(ctx, bob, testCredential(bob.ID, []byte("cred-bob"))))

	// Bob's credential must not resolve under Alice's scope
	_, err := store.GetUserCredential(ctx, alice.ID, []byte("cred-bob"))
	assert.ErrorIs(t, err, ErrCredentialNotFound)
}

func TestStore_GetCredentialsByUser_Empty(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	creds, err := store.GetCredentialsByUser(ctx, "no-such-user")
	require.NoError(t, err)
	assert.Empty(t, creds)
}

func TestStore_UpdateCredentialUsage(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	user := testUser("alice")
	cred := testCredential(user.ID, []byte("cred-1"))
	require.NoError(t, store.CreateUserWithCredential(ctx, user, cred))

	usedAt := time.Now().UTC().Truncate(time.Second)
	err := store.UpdateCredentialUsage(ctx, cred.ID, 42, usedAt)
	require.NoError(t, err)

	retrieved, err := store.GetUserCredential(ctx, user.ID, []byte("cred-1"))
	require.NoError(t, err)
	assert.Equal(t, uint32(42), retrieved.SignCount)
	require.NotNil(t, retrieved.LastUsedAt)
	assert.Equal(t, usedAt, *retrieved.LastUsedAt)
}

func TestStore_UpdateCredentialUsage_NotFound(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.UpdateCredentialUsage(ctx, "nonexistent", 1, time.Now().UTC())
	assert.ErrorIs(t, err, ErrCredentialNotFound)
}
