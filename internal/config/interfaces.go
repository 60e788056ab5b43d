package config

import "context"

// SecretProvider resolves indirect secret references (`FOO_SECRET_REF=<key>`)
// into plaintext values before envconfig runs.
type SecretProvider interface {
	// GetParametersBatch returns key -> plaintext for every key it could
	// resolve. Missing keys are omitted rather than reported as errors.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
