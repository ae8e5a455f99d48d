package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spec-kit/trader-console/internal/domain"
)

type fileCredentialRepository struct {
	path string
	key  string
}

// NewFileCredentialRepository stores the credential as {"<key>": "<credential>"} in path.
func NewFileCredentialRepository(path, key string) CredentialRepository {
	return &fileCredentialRepository{path: path, key: key}
}

func (r *fileCredentialRepository) Get(_ context.Context) (domain.Credential, error) {
	content, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read credential file: %w", err)
	}

	var slots map[string]string
	if err := json.Unmarshal(content, &slots); err != nil {
		return "", fmt.Errorf("parse credential file: %w", err)
	}
	return domain.Credential(slots[r.key]), nil
}

func (r *fileCredentialRepository) Set(_ context.Context, credential domain.Credential) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o700); err != nil {
		return fmt.Errorf("create credential dir: %w", err)
	}
	content, err := json.Marshal(map[string]string{r.key: string(credential)})
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".credential-*")
	if err != nil {
		return fmt.Errorf("create temp credential file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write credential file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), r.path)
}

func (r *fileCredentialRepository) Clear(_ context.Context) error {
	err := os.Remove(r.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove credential file: %w", err)
	}
	return nil
}
