package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/entrhq/portalkeeper/pkg/portal"
)

// Environment variables holding the portal account.
const (
	EnvIdentifier = "APP_NAME"
	EnvSecret     = "APP_PASSWORD"
)

// DefaultEnvFile is read from the working directory when present.
const DefaultEnvFile = ".env"

// ErrMissingCredentials is returned when either account variable is unset.
var ErrMissingCredentials = errors.New("missing credentials")

// LoadCredentials reads the portal account from the environment. envFile is
// loaded first if it exists; variables already set in the process win over
// the file. An explicitly named envFile that does not exist is an error.
func LoadCredentials(envFile string) (portal.Credentials, error) {
	path := envFile
	if path == "" {
		path = DefaultEnvFile
	}

	if err := godotenv.Load(path); err != nil {
		if envFile != "" || !errors.Is(err, os.ErrNotExist) {
			return portal.Credentials{}, fmt.Errorf("failed to load env file %s: %w", path, err)
		}
	}

	creds := portal.Credentials{
		Identifier: os.Getenv(EnvIdentifier),
		Secret:     os.Getenv(EnvSecret),
	}

	var missing []string
	if creds.Identifier == "" {
		missing = append(missing, EnvIdentifier)
	}
	if creds.Secret == "" {
		missing = append(missing, EnvSecret)
	}
	if len(missing) > 0 {
		return portal.Credentials{}, fmt.Errorf("%w: set %v", ErrMissingCredentials, missing)
	}

	return creds, nil
}
