package config

import (
	"os"
	"strings"
)

// secretFileSuffix names the companion variable holding a mounted secret's path
const secretFileSuffix = "_FILE"

// GetSecret resolves a credential such as SMTP_PASS or DATABASE_URL.
// The variable itself wins. Otherwise SMTP_PASS_FILE may point at a mounted
// secret (Docker or Kubernetes), whose contents are trimmed. An unreadable or
// blank file falls through to defaultValue.
func GetSecret(envVar, defaultValue string) string {
	if value := os.Getenv(envVar); value != "" {
		return value
	}
	if value, ok := readSecretFile(os.Getenv(envVar + secretFileSuffix)); ok {
		return value
	}
	return defaultValue
}

func readSecretFile(path string) (string, bool) {
	if path == "" {
		return "", false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	secret := strings.TrimSpace(string(data))
	return secret, secret != ""
}
