// ABOUTME: Login ceremony - begin issues a challenge, finish verifies the assertion
// ABOUTME: Sign count must advance strictly or the login is rejected as a possible clone

package passkey

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/2389/attache/internal/store"
)

// BeginLogin starts a login ceremony for an existing user. Returns
// ErrUserNotFound for unknown usernames and ErrNoCredentials when the user
// has no passkeys to assert with. The returned request options carry a fresh
// challenge and the user's credential IDs as the allow list.
func (s *Service) BeginLogin(ctx context.Context, username string) (*protocol.CredentialAssertion, error) {
	username, err := normalizeUsername(username)
	if err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	creds, err := s.store.GetCredentialsByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}
	if len(creds) == 0 {
		return nil, ErrNoCredentials
	}

	chal, err := s.challenges.Issue(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("issuing challenge: %w", err)
	}

	options, _, err := s.webauthn.BeginLogin(loginUser(user, creds),
		webauthn.WithUserVerification(protocol.VerificationPreferred),
	)
	if err != nil {
		return nil, fmt.Errorf("beginning login: %w", err)
	}
	options.Response.Challenge = protocol.URLEncodedBase64(chal)

	s.logger.Debug("login ceremony started", "username", username, "credentials", len(creds))
	return options, nil
}

// FinishLogin completes a login ceremony. The outstanding challenge is
// redeemed exactly once regardless of outcome. The asserted credential must
// belong to the user, the assertion must verify, and the sign count must
// advance strictly past the stored one (unless both are zero, as with
// authenticators that do not implement counters). Sign count and last-used
// time are persisted together only after every check passes.
func (s *Service) FinishLogin(ctx context.Context, username string, response *protocol.ParsedCredentialAssertionData) (*store.User, error) {
	username, err := normalizeUsername(username)
	if err != nil {
		return nil, err
	}

	chal, err := s.challenges.Redeem(ctx, username)
	if err != nil {
		return nil, ErrNoCeremony
	}

	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	cred, err := s.store.GetUserCredential(ctx, user.ID, response.RawID)
	if err != nil {
		if errors.Is(err, store.ErrCredentialNotFound) {
			return nil, ErrCredentialNotFound
		}
		return nil, fmt.Errorf("resolving credential: %w", err)
	}

	creds, err := s.store.GetCredentialsByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}

	waUser := loginUser(user, creds)
	allowedIDs := make([][]byte, len(creds))
	for i, c := range creds {
		allowedIDs[i] = c.CredentialID
	}
	session := webauthn.SessionData{
		Challenge:            sessionChallenge(chal),
		UserID:               waUser.WebAuthnID(),
		AllowedCredentialIDs: allowedIDs,
	}

	validated, err := s.webauthn.ValidateLogin(waUser, session, response)
	if err != nil {
		s.logger.Debug("assertion rejected", "username", username, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrAssertionInvalid, err)
	}

	if validated.Authenticator.CloneWarning {
		s.logger.Warn("possible cloned authenticator",
			"username", username,
			"credential_id", cred.ID,
			"stored_count", cred.SignCount,
			"asserted_count", response.Response.AuthenticatorData.Counter,
		)
		return nil, ErrCloneDetected
	}

	if err := s.store.UpdateCredentialUsage(ctx, cred.ID, validated.Authenticator.SignCount, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("recording credential usage: %w", err)
	}

	s.logger.Info("passkey login",
		"username", username,
		"user_id", user.ID,
		"credential_id", cred.ID,
	)
	return user, nil
}
