// ABOUTME: Registration ceremony - begin issues a challenge, finish verifies attestation
// ABOUTME: User and first credential are created atomically on successful verification

package passkey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/protocol/webauthncose"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"

	"github.com/2389/attache/internal/store"
)

// BeginRegistration starts a registration ceremony for a new username.
// Returns ErrUsernameTaken if the username exists. The returned creation
// options carry a challenge from the challenge store; issuing it replaces any
// outstanding challenge for the same username.
func (s *Service) BeginRegistration(ctx context.Context, username, displayName string) (*protocol.CredentialCreation, error) {
	username, err := normalizeUsername(username)
	if err != nil {
		return nil, err
	}
	displayName, err = normalizeDisplayName(displayName, username)
	if err != nil {
		return nil, err
	}

	taken, err := s.store.UsernameExists(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("checking username: %w", err)
	}
	if taken {
		return nil, ErrUsernameTaken
	}

	chal, err := s.challenges.Issue(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("issuing challenge: %w", err)
	}

	user := registrationUser(username, displayName)

	// The library session is discarded: the challenge store is the only
	// ceremony state, so any process sharing it can serve the completion.
	options, _, err := s.webauthn.BeginRegistration(user,
		webauthn.WithCredentialParameters([]protocol.CredentialParameter{
			{Type: protocol.PublicKeyCredentialType, Algorithm: webauthncose.AlgES256},
			{Type: protocol.PublicKeyCredentialType, Algorithm: webauthncose.AlgRS256},
		}),
		webauthn.WithAuthenticatorSelection(protocol.AuthenticatorSelection{
			UserVerification: protocol.VerificationPreferred,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("beginning registration: %w", err)
	}
	options.Response.Challenge = protocol.URLEncodedBase64(chal)

	s.logger.Debug("registration ceremony started", "username", username)
	return options, nil
}

// FinishRegistration completes a registration ceremony. The outstanding
// challenge is redeemed exactly once regardless of outcome, so a failed
// completion cannot be retried against the same challenge. On success the
// user and their first credential are created in one transaction.
func (s *Service) FinishRegistration(ctx context.Context, username, displayName string, email *string, response *protocol.ParsedCredentialCreationData) (*store.User, error) {
	username, err := normalizeUsername(username)
	if err != nil {
		return nil, err
	}
	displayName, err = normalizeDisplayName(displayName, username)
	if err != nil {
		return nil, err
	}
	email, err = normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	chal, err := s.challenges.Redeem(ctx, username)
	if err != nil {
		return nil, ErrNoCeremony
	}

	user := registrationUser(username, displayName)
	session := webauthn.SessionData{
		Challenge: sessionChallenge(chal),
		UserID:    user.WebAuthnID(),
	}

	credential, err := s.webauthn.CreateCredential(user, session, response)
	if err != nil {
		s.logger.Debug("attestation rejected", "username", username, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrAttestationInvalid, err)
	}

	transports := credential.Transport
	if transports == nil {
		transports = []protocol.AuthenticatorTransport{}
	}
	transportsJSON, err := json.Marshal(transports)
	if err != nil {
		return nil, fmt.Errorf("encoding transports: %w", err)
	}

	now := time.Now().UTC()
	newUser := &store.User{
		ID:          uuid.New().String(),
		Username:    username,
		DisplayName: displayName,
		Email:       email,
		CreatedAt:   now,
	}
	newCred := &store.Credential{
		ID:              uuid.New().String(),
		UserID:          newUser.ID,
		CredentialID:    credential.ID,
		PublicKey:       credential.PublicKey,
		AttestationType: credential.AttestationType,
		Transports:      string(transportsJSON),
		SignCount:       credential.Authenticator.SignCount,
		BackupEligible:  credential.Flags.BackupEligible,
		BackupState:     credential.Flags.BackupState,
		CreatedAt:       now,
	}

	if err := s.store.CreateUserWithCredential(ctx, newUser, newCred); err != nil {
		// A racing registration can win the username between begin and
		// finish; surface that as the domain error.
		if errors.Is(err, store.ErrUsernameExists) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}

	s.logger.Info("registered new passkey user",
		"username", username,
		"user_id", newUser.ID,
		"credential_id", newCred.ID,
	)
	return newUser, nil
}
