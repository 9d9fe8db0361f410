// ABOUTME: Tests for the in-memory challenge store
// ABOUTME: Covers single-use redemption, replacement, expiry, and username isolation

package challenge

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMemoryStore(t *testing.T, ttl time.Duration) *MemoryStore {
	t.Helper()
	s := NewMemoryStore(ttl)
	t.Cleanup(s.Close)
	return s
}

func TestMemoryStore_IssueRedeem(t *testing.T) {
	s := setupMemoryStore(t, time.Minute)
	ctx := context.Background()

	issued, err := s.Issue(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, issued, Size)

	redeemed, err := s.Redeem(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, issued, redeemed)
}

func TestMemoryStore_RedeemIsDestructive(t *testing.T) {
	s := setupMemoryStore(t, time.Minute)
	ctx := context.Background()

	_, err := s.Issue(ctx, "alice")
	require.NoError(t, err)

	_, err = s.Redeem(ctx, "alice")
	require.NoError(t, err)

	// Second redeem must fail: the challenge was consumed
	_, err = s.Redeem(ctx, "alice")
	assert.ErrorIs(t, err, ErrNoChallenge)
}

func TestMemoryStore_RedeemWithoutIssue(t *testing.T) {
	s := setupMemoryStore(t, time.Minute)

	_, err := s.Redeem(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNoChallenge)
}

func TestMemoryStore_ReissueReplaces(t *testing.T) {
	s := setupMemoryStore(t, time.Minute)
	ctx := context.Background()

	first, err := s.Issue(ctx, "alice")
	require.NoError(t, err)

	second, err := s.Issue(ctx, "alice")
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	// Only the most recent challenge is outstanding
	redeemed, err := s.Redeem(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, second, redeemed)

	_, err = s.Redeem(ctx, "alice")
	assert.ErrorIs(t, err, ErrNoChallenge)
}

func TestMemoryStore_Expiry(t *testing.T) {
	s := setupMemoryStore(t, 10*time.Millisecond)
	ctx := context.Background()

	_, err := s.Issue(ctx, "alice")
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)

	_, err = s.Redeem(ctx, "alice")
	assert.ErrorIs(t, err, ErrNoChallenge)
}

func TestMemoryStore_UsernamesIndependent(t *testing.T) {
	s := setupMemoryStore(t, time.Minute)
	ctx := context.Background()

	aliceChal, err := s.Issue(ctx, "alice")
	require.NoError(t, err)
	bobChal, err := s.Issue(ctx, "bob")
	require.NoError(t, err)

	// Redeeming bob's challenge leaves alice's outstanding
	redeemed, err := s.Redeem(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, bobChal, redeemed)

	redeemed, err = s.Redeem(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, aliceChal, redeemed)
}

func TestMemoryStore_ConcurrentUsernames(t *testing.T) {
	s := setupMemoryStore(t, time.Minute)
	ctx := context.Background()

	const n = 32
	var wg sync.WaitGroup
	errs := make(chan error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			username := fmt.Sprintf("user-%d", i)

			issued, err := s.Issue(ctx, username)
			if err != nil {
				errs <- err
				return
			}
			redeemed, err := s.Redeem(ctx, username)
			if err != nil {
				errs <- err
				return
			}
			if string(issued) != string(redeemed) {
				errs <- fmt.Errorf("challenge mismatch for %s", username)
			}
		}(i)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent ceremony failed: %v", err)
	}
}

func TestMemoryStore_CloseIsIdempotent(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	s.Close()
	s.Close()
}
