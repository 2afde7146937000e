package balance

import "strings"

// Catalog is the deployment's set of leave types and the entitlement each
// user starts with.
type Catalog struct {
	Types              []string
	DefaultEntitlement int
}

func NewCatalog(types []string, defaultEntitlement int) Catalog {
	normalized := make([]string, 0, len(types))
	seen := make(map[string]struct{}, len(types))
	for _, t := range types {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		normalized = append(normalized, t)
	}
	return Catalog{Types: normalized, DefaultEntitlement: defaultEntitlement}
}

// Normalize returns the canonical spelling of leaveType, or false when the
// type is not offered.
func (c Catalog) Normalize(leaveType string) (string, bool) {
	want := strings.ToUpper(strings.TrimSpace(leaveType))
	for _, t := range c.Types {
		if t == want {
			return t, true
		}
	}
	return "", false
}

func (c Catalog) Contains(leaveType string) bool {
	_, ok := c.Normalize(leaveType)
	return ok
}
