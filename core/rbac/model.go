package rbac

import (
	"sort"
	"strings"
)

type Permission = string

type Role struct {
	Name        string
	Permissions []Permission
}

// RolesFromConfig converts the static role section of the app config into
// role definitions, lowercasing names and dropping empties.
func RolesFromConfig(raw map[string][]string) []Role {
	out := make([]Role, 0, len(raw))
	for name, perms := range raw {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		role := Role{Name: name}
		seen := map[string]struct{}{}
		for _, p := range perms {
			p = strings.ToLower(strings.TrimSpace(p))
			if p == "" {
				continue
			}
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			role.Permissions = append(role.Permissions, p)
		}
		sort.Strings(role.Permissions)
		out = append(out, role)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
