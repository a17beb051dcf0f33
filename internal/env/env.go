// Package env resolves the runtime environment the process is running in.
package env

import (
	"os"
	"strings"

	"github.com/ekisa-team/anubad/internal/envvar"
)

// Environment is the deployment environment of the process.
type Environment string

const (
	// Development enables human friendly colored logs.
	Development Environment = "development"

	// Production switches logs to JSON.
	Production Environment = "production"

	// Test is used by the test suites.
	Test Environment = "test"
)

// FromEnv reads the environment from ANUBAD_ENV, defaulting to Development.
func FromEnv() Environment {
	return Parse(os.Getenv(envvar.AnubadEnv))
}

// Parse converts a raw string into an Environment.
// Unknown values fall back to Development.
func Parse(raw string) Environment {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "prod", "production":
		return Production
	case "test":
		return Test
	default:
		return Development
	}
}

// IsProduction reports whether e is the production environment.
func (e Environment) IsProduction() bool {
	return e == Production
}

func (e Environment) String() string {
	return string(e)
}
