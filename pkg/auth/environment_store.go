package auth

import (
	"os"
	"time"
)

// EnvironmentStore reads credentials from OSUFETCH_* environment variables.
// It is read-only.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(creds *Credentials) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment credentials under the requested profile
func (e *EnvironmentStore) Retrieve(profile string) (*Credentials, error) {
	apiKey := os.Getenv("OSUFETCH_API_KEY")
	clientID := os.Getenv("OSUFETCH_CLIENT_ID")
	clientSecret := os.Getenv("OSUFETCH_CLIENT_SECRET")

	if apiKey == "" && clientSecret == "" {
		return nil, ErrCredentialsNotFound
	}
	if profile == "" {
		profile = DefaultProfile
	}

	return &Credentials{
		Profile:      profile,
		APIKey:       apiKey,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		LastModified: time.Now(),
	}, nil
}

// List returns a single entry if environment credentials are set
func (e *EnvironmentStore) List() ([]*Credentials, error) {
	creds, err := e.Retrieve("")
	if err != nil {
		return []*Credentials{}, nil
	}
	return []*Credentials{creds}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(profile string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist
func (e *EnvironmentStore) Exists(profile string) bool {
	return os.Getenv("OSUFETCH_API_KEY") != "" || os.Getenv("OSUFETCH_CLIENT_SECRET") != ""
}
