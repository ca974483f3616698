package types

import (
	"fmt"
	"strconv"
	"strings"
)

// ProviderOptions is the opaque per-provider configuration passed to factories.
// Values usually come from JSON, so numbers arrive as float64 and booleans may
// arrive as strings; the accessors normalize both.
type ProviderOptions map[string]any

// String returns the trimmed string value for key, or "" when absent
func (o ProviderOptions) String(key string) string {
	v, ok := o[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}

// StringOr returns the value for key or fallback when it is empty
func (o ProviderOptions) StringOr(key, fallback string) string {
	if v := o.String(key); v != "" {
		return v
	}
	return fallback
}

// Bool returns the boolean value for key, or fallback when absent or unparsable
func (o ProviderOptions) Bool(key string, fallback bool) bool {
	v, ok := o[key]
	if !ok || v == nil {
		return fallback
	}
	switch val := v.(type) {
	case bool:
		return val
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(val))
		if err != nil {
			return fallback
		}
		return b
	default:
		return fallback
	}
}

// Int returns the integer value for key, or fallback when absent or unparsable
func (o ProviderOptions) Int(key string, fallback int) int {
	v, ok := o[key]
	if !ok || v == nil {
		return fallback
	}
	switch val := v.(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		return int(val)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return fallback
		}
		return n
	default:
		return fallback
	}
}

// Require returns an error naming every key whose string value is empty
func (o ProviderOptions) Require(keys ...string) error {
	var missing []string
	for _, k := range keys {
		if o.String(k) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required option(s): %s", strings.Join(missing, ", "))
	}
	return nil
}

// Clone returns a shallow copy of the options map
func (o ProviderOptions) Clone() ProviderOptions {
	if o == nil {
		return nil
	}
	out := make(ProviderOptions, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}
