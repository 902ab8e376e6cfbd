package llm

import (
	"fmt"
	"strings"
)

const (
	// APIKeyPath is where the provider key is normally configured.
	APIKeyPath = "llm.api-key"
	// LegacyAPIKeyPath is read when APIKeyPath is empty.
	LegacyAPIKeyPath = "openrouter-api-key"
)

// KeySource is a key-value configuration reader. *viper.Viper satisfies it.
type KeySource interface {
	GetString(key string) string
}

// ResolveAPIKey returns the provider API key from the primary path, falling
// back to the legacy path.
func ResolveAPIKey(src KeySource) (string, error) {
	for _, path := range []string{APIKeyPath, LegacyAPIKeyPath} {
		if key := strings.TrimSpace(src.GetString(path)); key != "" {
			return key, nil
		}
	}
	return "", fmt.Errorf("%w: set %s or %s", ErrMissingAPIKey, APIKeyPath, LegacyAPIKeyPath)
}
