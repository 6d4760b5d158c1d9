// Package masking redacts payment references before they reach the audit
// trail. Receipt numbers and transfer ids stay recognisable by their last
// four characters.
package masking

import "strings"

const maskToken = "****"

// MaskReference keeps any "TYPE-" prefix and the last four characters.
func MaskReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}

	prefix, remainder := splitPrefix(trimmed)
	if len(remainder) <= 4 {
		return prefix + maskToken
	}

	return prefix + maskToken + remainder[len(remainder)-4:]
}

// MaskMetadata returns a copy with the named keys masked.
func MaskMetadata(input map[string]any, keys ...string) map[string]any {
	if len(input) == 0 {
		return nil
	}

	sensitive := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		sensitive[key] = struct{}{}
	}

	masked := make(map[string]any, len(input))
	for key, value := range input {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			continue
		}
		if _, ok := sensitive[trimmedKey]; ok {
			if s, isString := value.(string); isString {
				masked[trimmedKey] = MaskReference(s)
				continue
			}
		}
		masked[trimmedKey] = value
	}
	return masked
}

func splitPrefix(value string) (string, string) {
	idx := strings.LastIndex(value, "-")
	if idx == -1 || idx == len(value)-1 {
		return "", value
	}
	return value[:idx+1], value[idx+1:]
}
