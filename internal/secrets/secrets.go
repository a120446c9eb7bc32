package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/rs/zerolog"
)

// Prefix marks a configuration value that names a Secret Manager secret.
const Prefix = "sm://"

// Accessor reads the latest payload of a named secret.
type Accessor interface {
	Access(ctx context.Context, name string) (string, error)
}

type SecretManagerAccessor struct {
	client    *secretmanager.Client
	projectID string
}

// NewSecretManagerAccessor creates an Accessor backed by Google Secret Manager.
func NewSecretManagerAccessor(ctx context.Context, projectID string) (*SecretManagerAccessor, error) {
	if projectID == "" {
		return nil, errors.New("GCP Project ID is not set")
	}
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Secret Manager client: %w", err)
	}
	return &SecretManagerAccessor{client: client, projectID: projectID}, nil
}

func (s *SecretManagerAccessor) Access(ctx context.Context, name string) (string, error) {
	resourceName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", s.projectID, name)
	result, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: resourceName})
	if err != nil {
		return "", fmt.Errorf("failed to access secret version %s: %w", name, err)
	}
	return string(result.Payload.Data), nil
}

func (s *SecretManagerAccessor) Close() error {
	return s.client.Close()
}

// HasReferences reports whether any value carries the sm:// prefix.
func HasReferences(fields map[string]*string) bool {
	for _, v := range fields {
		if strings.HasPrefix(*v, Prefix) {
			return true
		}
	}
	return false
}

// Resolve replaces every sm://name value in fields with the secret payload.
func Resolve(ctx context.Context, acc Accessor, fields map[string]*string, logger zerolog.Logger) error {
	for key, v := range fields {
		if !strings.HasPrefix(*v, Prefix) {
			continue
		}
		name := strings.TrimPrefix(*v, Prefix)
		if name == "" {
			return fmt.Errorf("%s: empty secret reference", key)
		}
		value, err := acc.Access(ctx, name)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*v = strings.TrimSpace(value)
		logger.Info().Str("field", key).Str("secret", name).Msg("Resolved secret from Secret Manager")
	}
	return nil
}

// ResolveFromProject resolves fields against the project's Secret Manager.
// It is a no-op when no project is set or no field holds a reference.
func ResolveFromProject(ctx context.Context, projectID string, fields map[string]*string, logger zerolog.Logger) error {
	if projectID == "" || !HasReferences(fields) {
		return nil
	}
	acc, err := NewSecretManagerAccessor(ctx, projectID)
	if err != nil {
		return err
	}
	defer acc.Close()
	return Resolve(ctx, acc, fields, logger)
}
