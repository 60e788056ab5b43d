package config

import (
	"context"
	"os"
	"strings"
)

// EnvVarProvider resolves secret references from the process environment.
// A reference is looked up verbatim first, then as its env-style form, so
// GEMINI_API_KEY_SECRET_REF=prod/gemini can be served by PROD_GEMINI.
type EnvVarProvider struct{}

func NewEnvVarProvider() *EnvVarProvider {
	return &EnvVarProvider{}
}

// GetParametersBatch returns the values it could find. Unset keys are
// omitted; the loader reports them.
func (p *EnvVarProvider) GetParametersBatch(_ context.Context, keys []string) (map[string]string, error) {
	result := make(map[string]string, len(keys))
	for _, key := range keys {
		if val, ok := os.LookupEnv(key); ok {
			result[key] = val
			continue
		}
		if val, ok := os.LookupEnv(envName(key)); ok {
			result[key] = val
		}
	}
	return result, nil
}

var envNameReplacer = strings.NewReplacer("/", "_", "-", "_", ".", "_")

// envName maps "prod/gemini-key" to "PROD_GEMINI_KEY".
func envName(ref string) string {
	return strings.ToUpper(envNameReplacer.Replace(strings.Trim(ref, "/")))
}
