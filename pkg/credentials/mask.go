package credentials

import (
	"strings"

	"github.com/samber/lo"
)

// Key name fragments that mark a value as secret material.
var sensitiveKeyHints = []string{"key", "secret", "password", "token", "credential"}

// MaskValue hides all but the last four characters. Values too short to
// mask meaningfully come back fully starred.
func MaskValue(value string) string {
	if len(value) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(value)-4) + value[len(value)-4:]
}

// MaskData returns a display-safe copy of a payload. Values under keys that
// look secret-bearing are masked, as is any value long enough to plausibly
// be key material.
func MaskData(data Data) Data {
	masked := make(Data, len(data))
	for key, value := range data {
		lowered := strings.ToLower(key)
		sensitive := lo.SomeBy(sensitiveKeyHints, func(hint string) bool {
			return strings.Contains(lowered, hint)
		})
		if sensitive || len(value) > 20 {
			masked[key] = MaskValue(value)
		} else {
			masked[key] = value
		}
	}
	return masked
}
