package config

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError is returned by LoadConfig to aid debugging.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// secretRefSuffix marks an environment variable whose value names a secret to
// be fetched from the SecretProvider. TRIGGER_SECRET_HASH_SECRET_REF=x fills
// TRIGGER_SECRET_HASH with the provider's value for x.
const secretRefSuffix = "_SECRET_REF"

// loaderDeps holds the injectable environment accessors.
type loaderDeps struct {
	lookupEnv func(key string) (string, bool)
	setEnv    func(key, value string) error
	environ   func() []string
}

func defaultDeps() loaderDeps {
	return loaderDeps{
		lookupEnv: os.LookupEnv,
		setEnv:    os.Setenv,
		environ:   os.Environ,
	}
}

// LoadConfig loads and validates the configuration.
//
// Steps: force UTC as the process zone, load .env if present, resolve
// *_SECRET_REF indirections through provider, populate the struct with
// envconfig, attach build info and validate. provider may be nil when no
// references are present.
func LoadConfig(provider SecretProvider) (*Config, error) {
	return loadConfigWithDeps(provider, defaultDeps())
}

func loadConfigWithDeps(provider SecretProvider, deps loaderDeps) (*Config, error) {
	// Schedules carry their own zone; everything else is UTC.
	time.Local = time.UTC

	// Does not override variables already set.
	_ = godotenv.Load()

	if err := resolveSecretRefs(provider, deps); err != nil {
		return nil, err
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	cfg.Build = NewBuildInfo()

	if err := validator.New().Struct(cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}

	return &cfg, nil
}

// resolveSecretRefs injects provider-resolved values for every *_SECRET_REF
// variable whose target is not already set.
func resolveSecretRefs(provider SecretProvider, deps loaderDeps) error {
	refToTarget := make(map[string]string)
	for _, entry := range deps.environ() {
		key, ref, ok := strings.Cut(entry, "=")
		if !ok || !strings.HasSuffix(key, secretRefSuffix) || ref == "" {
			continue
		}
		target := strings.TrimSuffix(key, secretRefSuffix)
		if _, exists := deps.lookupEnv(target); exists {
			continue
		}
		refToTarget[ref] = target
	}

	if len(refToTarget) == 0 {
		return nil
	}

	refs := make([]string, 0, len(refToTarget))
	for ref := range refToTarget {
		refs = append(refs, ref)
	}
	sort.Strings(refs)

	if provider == nil {
		return &ConfigError{
			Type:    ErrSecretResolution,
			Message: fmt.Sprintf("SecretProvider is required to resolve %d secret references", len(refs)),
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resolved, err := provider.GetParametersBatch(ctx, refs)
	if err != nil {
		return &ConfigError{
			Type:    ErrSecretResolution,
			Message: fmt.Sprintf("failed to resolve %d secret references", len(refs)),
			Err:     err,
		}
	}

	var missing []string
	for _, ref := range refs {
		target := refToTarget[ref]
		value, ok := resolved[ref]
		if !ok {
			missing = append(missing, target)
			continue
		}
		if err := deps.setEnv(target, value); err != nil {
			return &ConfigError{
				Type:    ErrSecretResolution,
				Message: fmt.Sprintf("failed to set resolved value for %s", target),
				Err:     err,
			}
		}
	}
	if len(missing) > 0 {
		return &ConfigError{
			Type:    ErrMissingEnv,
			Message: fmt.Sprintf("secret references not found for: %s", strings.Join(missing, ", ")),
		}
	}

	return nil
}
