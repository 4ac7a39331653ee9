// Package vault keeps the backend URL/key pair in the OS keyring between runs.
package vault

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"visubase/internal/baas"
)

const (
	Service = "visubase"
	account = "backend-credentials"
)

var ErrNoCredentials = errors.New("no backend credentials stored")

// Save stores creds, replacing what was there.
func Save(creds baas.Credentials) error {
	if !creds.Complete() {
		return errors.New("both url and key are required")
	}
	b, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	if err := keyring.Set(Service, account, string(b)); err != nil {
		return fmt.Errorf("failed to store credentials in keyring: %w", err)
	}
	return nil
}

func Load() (baas.Credentials, error) {
	s, err := keyring.Get(Service, account)
	if errors.Is(err, keyring.ErrNotFound) {
		return baas.Credentials{}, ErrNoCredentials
	}
	if err != nil {
		return baas.Credentials{}, fmt.Errorf("failed to retrieve credentials from keyring: %w", err)
	}
	var creds baas.Credentials
	if err := json.Unmarshal([]byte(s), &creds); err != nil {
		return baas.Credentials{}, fmt.Errorf("stored credentials are corrupt: %w", err)
	}
	return creds, nil
}

// Clear removes the stored pair. Clearing an empty keyring is not an error.
func Clear() error {
	err := keyring.Delete(Service, account)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete credentials from keyring: %w", err)
	}
	return nil
}

// Resolve picks explicit credentials when complete, otherwise the stored ones.
func Resolve(explicit baas.Credentials) (baas.Credentials, error) {
	if explicit.Complete() {
		return explicit, nil
	}
	stored, err := Load()
	if err != nil {
		return explicit, err
	}
	if explicit.URL != "" {
		stored.URL = explicit.URL
	}
	if explicit.Key != "" {
		stored.Key = explicit.Key
	}
	return stored, nil
}
