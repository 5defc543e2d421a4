package credential

import (
	"errors"
	"fmt"
	"os"

	"github.com/99designs/keyring"
)

const (
	serviceName = "shoplist"

	idTokenKey  = "id_token"
	usernameKey = "username"
)

// ErrNotLoggedIn is returned when no session is stored.
var ErrNotLoggedIn = errors.New("not logged in")

// ringConfig is the keyring configuration; tests point it at a file backend.
var ringConfig = keyring.Config{
	ServiceName: serviceName,
	AllowedBackends: []keyring.BackendType{
		keyring.KeychainBackend,
		keyring.SecretServiceBackend,
		keyring.WinCredBackend,
		keyring.PassBackend,
		keyring.FileBackend,
	},
	FileDir:                  "~/.config/shoplist/credentials",
	FilePasswordFunc:         keyring.FixedStringPrompt("shoplist-file-key"),
	KeychainTrustApplication: true,
}

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(ringConfig)
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Get retrieves a credential value by key from the system keyring.
func Get(key string) (string, error) {
	ring, err := openKeyring()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores a credential value by key in the system keyring.
func Set(key string, value string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:  key,
		Data: []byte(value),
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key from the system keyring.
func Delete(key string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Remove(key)
	if err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}

// SaveSession stores the signed-in user's id token and username.
func SaveSession(username, idToken string) error {
	if err := Set(idTokenKey, idToken); err != nil {
		return err
	}
	return Set(usernameKey, username)
}

// LoadSession returns the stored username and id token.
func LoadSession() (username, idToken string, err error) {
	idToken, err = Get(idTokenKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", "", ErrNotLoggedIn
	}
	if err != nil {
		return "", "", err
	}
	username, err = Get(usernameKey)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return "", "", err
	}
	return username, idToken, nil
}

// ClearSession removes the stored session. Clearing twice is not an error.
func ClearSession() error {
	for _, key := range []string{idTokenKey, usernameKey} {
		if err := Delete(key); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}
