package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/gophchat/internal/client/repositories/metadata"
)

// CredentialsKey is the metadata key holding the signed-in identity.
const CredentialsKey = "auth_credentials"

// CredentialStore persists Credentials in the client metadata store, playing
// the role of a browser cookie jar.
type CredentialStore struct {
	repo metadata.Repository
}

func NewCredentialStore(repo metadata.Repository) *CredentialStore {
	return &CredentialStore{repo: repo}
}

// Load returns the stored credentials; a zero value means nobody is signed in.
func (s *CredentialStore) Load(ctx context.Context) (Credentials, error) {
	data, err := s.repo.Get(ctx, CredentialsKey)
	if err != nil {
		return Credentials{}, err
	}
	if data == nil {
		return Credentials{}, nil
	}
	var c Credentials
	if err := json.Unmarshal(data, &c); err != nil {
		return Credentials{}, fmt.Errorf("decode credentials: %w", err)
	}
	return c, nil
}

func (s *CredentialStore) Save(ctx context.Context, c Credentials) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return s.repo.Set(ctx, CredentialsKey, data)
}

func (s *CredentialStore) Clear(ctx context.Context) error {
	return s.repo.Delete(ctx, CredentialsKey)
}
