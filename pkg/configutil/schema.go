package configutil

import (
	"fmt"
	"sort"
	"strings"
)

// Schema names the keys a vendor settings map may carry. Required keys
// must be present and non-blank; keys outside the schema are reported
// so a typo in config fails at boot instead of silently decoding to a
// zero value.
type Schema struct {
	Required []string
	Optional []string
}

// ValidateSettings checks a settings map against a schema. Key matching
// is case/underscore/hyphen insensitive, same as DecodeSettings.
func ValidateSettings(input map[string]any, schema Schema) error {
	known := make(map[string]struct{}, len(schema.Required)+len(schema.Optional))
	for _, k := range schema.Required {
		known[normalizeKey(k)] = struct{}{}
	}
	for _, k := range schema.Optional {
		known[normalizeKey(k)] = struct{}{}
	}

	present := make(map[string]any, len(input))
	var unknown []string
	for k, v := range input {
		nk := normalizeKey(k)
		present[nk] = v
		if _, ok := known[nk]; !ok {
			unknown = append(unknown, k)
		}
	}

	var missing []string
	for _, k := range schema.Required {
		v, ok := present[normalizeKey(k)]
		if !ok || isBlank(v) {
			missing = append(missing, k)
		}
	}

	if len(missing) == 0 && len(unknown) == 0 {
		return nil
	}
	sort.Strings(missing)
	sort.Strings(unknown)
	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing keys: "+strings.Join(missing, ", "))
	}
	if len(unknown) > 0 {
		parts = append(parts, "unknown keys: "+strings.Join(unknown, ", "))
	}
	return fmt.Errorf("invalid settings: %s", strings.Join(parts, "; "))
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}
