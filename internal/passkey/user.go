// ABOUTME: Adapter exposing store users and credentials through the webauthn.User interface
// ABOUTME: The WebAuthn user handle is the username bytes, stable for the account's lifetime

package passkey

import (
	"encoding/json"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/2389/attache/internal/store"
)

// ceremonyUser implements webauthn.User for both registration and login.
// During registration no user row exists yet, so the adapter is built from
// the requested username and display name with no credentials. During login
// it carries the stored credentials so the library can resolve assertions.
type ceremonyUser struct {
	username    string
	displayName string
	creds       []*store.Credential
}

// WebAuthnID returns the user handle. Usernames are immutable here, so the
// handle is the username bytes; it must match across registration and login
// because authenticators echo it back in assertions.
func (u *ceremonyUser) WebAuthnID() []byte {
	return []byte(u.username)
}

func (u *ceremonyUser) WebAuthnName() string {
	return u.username
}

func (u *ceremonyUser) WebAuthnDisplayName() string {
	if u.displayName != "" {
		return u.displayName
	}
	return u.username
}

func (u *ceremonyUser) WebAuthnCredentials() []webauthn.Credential {
	creds := make([]webauthn.Credential, len(u.creds))
	for i, c := range u.creds {
		creds[i] = webauthn.Credential{
			ID:              c.CredentialID,
			PublicKey:       c.PublicKey,
			AttestationType: c.AttestationType,
			Flags: webauthn.CredentialFlags{
				BackupEligible: c.BackupEligible,
				BackupState:    c.BackupState,
			},
			Authenticator: webauthn.Authenticator{
				SignCount: c.SignCount,
			},
		}
		// Parse transports if available
		if c.Transports != "" {
			var transports []protocol.AuthenticatorTransport
			_ = json.Unmarshal([]byte(c.Transports), &transports)
			creds[i].Transport = transports
		}
	}
	return creds
}

// registrationUser builds the adapter for a user that does not exist yet.
func registrationUser(username, displayName string) *ceremonyUser {
	return &ceremonyUser{username: username, displayName: displayName}
}

// loginUser builds the adapter for a stored user and their credentials.
func loginUser(user *store.User, creds []*store.Credential) *ceremonyUser {
	return &ceremonyUser{
		username:    user.Username,
		displayName: user.DisplayName,
		creds:       creds,
	}
}
