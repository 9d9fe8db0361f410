// ABOUTME: Challenge store interface for WebAuthn ceremony state
// ABOUTME: One outstanding challenge per username, destructively redeemed on completion

package challenge

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
)

// Size is the length in bytes of issued challenges.
const Size = 32

// ErrNoChallenge is returned by Redeem when no outstanding challenge exists
// for the username, either because none was issued, it expired, or it was
// already redeemed.
var ErrNoChallenge = errors.New("no ceremony in progress")

// Store issues and redeems WebAuthn ceremony challenges. A username has at
// most one outstanding challenge: Issue replaces any previous one, and
// Redeem removes the challenge before returning it, so a challenge can never
// be redeemed twice. Challenges for different usernames are independent.
type Store interface {
	// Issue creates a fresh random challenge for the username, replacing
	// any outstanding one, and returns its bytes.
	Issue(ctx context.Context, username string) ([]byte, error)

	// Redeem removes and returns the outstanding challenge for the
	// username. Returns ErrNoChallenge when there is none or it expired.
	Redeem(ctx context.Context, username string) ([]byte, error)
}

// newChallenge returns Size bytes from the system CSPRNG.
func newChallenge() ([]byte, error) {
	buf := make([]byte, Size)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generating challenge: %w", err)
	}
	return buf, nil
}
