package config

import (
	"os"
	"strings"
)

// EnvCredential reads an API key from the process environment on every call,
// so a key rotated at runtime is picked up by the next request.
type EnvCredential struct {
	Name string
}

func (e EnvCredential) CurrentCredential() (string, bool) {
	val := strings.TrimSpace(os.Getenv(e.Name))
	return val, val != ""
}

// Credential returns the provider for the configured variable.
func (c *Config) Credential() EnvCredential {
	return EnvCredential{Name: c.CredentialEnv}
}
