package state

import (
	"strings"
)

var sensitiveKeyPatterns = []string{
	"PASSWORD",
	"SECRET",
	"TOKEN",
	"KEY",
	"CREDENTIAL",
	"AUTH",
	"PRIVATE",
	"PASSPHRASE",
}

const redactedValue = "[REDACTED]"

// SanitizeEnv keeps only the variables worth persisting for a launched
// process and redacts values whose names look sensitive. Keys listed in keep
// are always retained; everything else is dropped.
func SanitizeEnv(env map[string]string, keep []string) map[string]string {
	if env == nil {
		return nil
	}
	result := make(map[string]string, len(keep))
	for _, k := range keep {
		v, ok := env[k]
		if !ok {
			continue
		}
		if isSensitiveKey(k) {
			v = redactedValue
		}
		result[k] = v
	}
	return result
}

func isSensitiveKey(key string) bool {
	upper := strings.ToUpper(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(upper, pattern) {
			return true
		}
	}
	return false
}
