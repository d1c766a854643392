package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
	"golang.org/x/oauth2"
)

const serviceName = "nimbus"

// ErrNoToken is returned when an account has no stored token, which
// means it was never signed in on this device.
var ErrNoToken = errors.New("no token stored for account")

// KeyringTokenStore keeps one OAuth2 token per account email in the OS
// keyring. Tokens never touch the durable store or the local cache.
type KeyringTokenStore struct {
	service string
}

// NewKeyringTokenStore returns a token store under the default service name.
func NewKeyringTokenStore() *KeyringTokenStore {
	return &KeyringTokenStore{service: serviceName}
}

// SaveToken stores token under the account email.
func (k *KeyringTokenStore) SaveToken(accountID string, token *oauth2.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}
	if err := keyring.Set(k.service, accountID, string(data)); err != nil {
		return fmt.Errorf("failed to save token to keyring: %w", err)
	}
	return nil
}

// LoadToken returns the token stored for the account email.
func (k *KeyringTokenStore) LoadToken(accountID string) (*oauth2.Token, error) {
	data, err := keyring.Get(k.service, accountID)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", accountID, ErrNoToken)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load token from keyring: %w", err)
	}
	var token oauth2.Token
	if err := json.Unmarshal([]byte(data), &token); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token: %w", err)
	}
	return &token, nil
}

// DeleteToken forgets the account's token. Missing tokens are not an error.
func (k *KeyringTokenStore) DeleteToken(accountID string) error {
	err := keyring.Delete(k.service, accountID)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete token from keyring: %w", err)
	}
	return nil
}
