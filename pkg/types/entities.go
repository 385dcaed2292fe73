package types //nolint:revive // package name is intentional

import (
	"sort"
	"strings"
)

// Slot names used by the scheduling task.
const (
	SlotName         = "name"
	SlotEmail        = "email"
	SlotPhone        = "phone"
	SlotServiceType  = "service_type"
	SlotDate         = "date"
	SlotTime         = "time"
	SlotRequirements = "requirements"
)

// slotAliases normalizes the key variants oracles tend to produce.
var slotAliases = map[string]string{
	"full_name":        SlotName,
	"customer_name":    SlotName,
	"email_address":    SlotEmail,
	"mail":             SlotEmail,
	"phone_number":     SlotPhone,
	"telephone":        SlotPhone,
	"mobile":           SlotPhone,
	"service":          SlotServiceType,
	"servicetype":      SlotServiceType,
	"appointment_type": SlotServiceType,
	"preferred_date":   SlotDate,
	"day":              SlotDate,
	"preferred_time":   SlotTime,
	"requirement":      SlotRequirements,
	"notes":            SlotRequirements,
}

// Entities is a key to value map of extracted slot values.
// An empty value is equivalent to an absent key.
type Entities map[string]string

// NormalizeSlotKey lowercases a key, folds separators and resolves known aliases.
func NormalizeSlotKey(key string) string {
	k := strings.ToLower(strings.TrimSpace(key))
	k = strings.ReplaceAll(k, "-", "_")
	k = strings.ReplaceAll(k, " ", "_")
	if alias, ok := slotAliases[k]; ok {
		return alias
	}
	return k
}

// Get returns the trimmed value for key, or "" when absent.
func (e Entities) Get(key string) string {
	if e == nil {
		return ""
	}
	return strings.TrimSpace(e[key])
}

// Has reports whether key holds a non-empty value.
func (e Entities) Has(key string) bool {
	return e.Get(key) != ""
}

// Merge copies every non-empty value of newer into e, overwriting older values
// for the same key. Empty or absent values in newer never erase a value in e.
// It returns the keys that changed.
func (e Entities) Merge(newer Entities) []string {
	var changed []string
	for key, value := range newer {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		key = NormalizeSlotKey(key)
		if key == "" {
			continue
		}
		if e[key] != value {
			e[key] = value
			changed = append(changed, key)
		}
	}
	sort.Strings(changed)
	return changed
}

// Clone returns a copy that shares no storage with e.
func (e Entities) Clone() Entities {
	if e == nil {
		return nil
	}
	out := make(Entities, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Normalized returns a copy with normalized keys and empty values dropped.
func (e Entities) Normalized() Entities {
	out := make(Entities, len(e))
	out.Merge(e)
	return out
}

// Keys returns the populated keys in sorted order.
func (e Entities) Keys() []string {
	keys := make([]string, 0, len(e))
	for k, v := range e {
		if strings.TrimSpace(v) != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
