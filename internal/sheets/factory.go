package sheets

import (
	"context"
	"fmt"

	"club-registration/internal/config"
)

const (
	BackendGoogle = "google"
	BackendMemory = "memory"
)

func NewStore(ctx context.Context, cfg config.Config) (Store, error) {
	switch cfg.StoreBackend {
	case BackendGoogle:
		return New(ctx, Credentials{
			Email:           cfg.Google.ServiceAccountEmail,
			PrivateKey:      cfg.Google.PrivateKey,
			CredentialsFile: cfg.Google.CredentialsFile,
		})
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.StoreBackend)
	}
}
