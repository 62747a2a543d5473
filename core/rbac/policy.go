package rbac

import (
	"sort"
	"sync"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

const policyModel = `
[request_definition]
r = sub, perm

[policy_definition]
p = sub, perm

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && r.perm == p.perm
`

// Policy resolves role names to permissions through a casbin enforcer.
// Replace swaps the whole enforcer, so concurrent readers always see a
// consistent policy set.
type Policy struct {
	mu        sync.RWMutex
	enforcer  *casbin.Enforcer
	rolePerms map[string][]Permission
}

func NewPolicy(roles []Role) (*Policy, error) {
	p := &Policy{}
	if err := p.Replace(roles); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Policy) Replace(roles []Role) error {
	m, err := model.NewModelFromString(policyModel)
	if err != nil {
		return err
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return err
	}
	rolePerms := make(map[string][]Permission, len(roles))
	for _, r := range roles {
		perms := make([]Permission, 0, len(r.Permissions))
		for _, perm := range r.Permissions {
			if _, err := e.AddPolicy(r.Name, string(perm)); err != nil {
				return err
			}
			perms = append(perms, perm)
		}
		rolePerms[r.Name] = perms
	}
	p.mu.Lock()
	p.enforcer = e
	p.rolePerms = rolePerms
	p.mu.Unlock()
	return nil
}

func (p *Policy) Allowed(userRoles []string, perm Permission) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.enforcer == nil {
		return false
	}
	for _, r := range userRoles {
		ok, err := p.enforcer.Enforce(r, string(perm))
		if err == nil && ok {
			return true
		}
	}
	return false
}

// PermissionsForRoles returns the union of permissions for the given roles.
func (p *Policy) PermissionsForRoles(roles []string) []Permission {
	p.mu.RLock()
	defer p.mu.RUnlock()
	set := map[Permission]struct{}{}
	for _, r := range roles {
		for _, perm := range p.rolePerms[r] {
			set[perm] = struct{}{}
		}
	}
	out := make([]Permission, 0, len(set))
	for perm := range set {
		out = append(out, perm)
	}
	return out
}

// Roles lists the configured role names in stable order, mostly for the
// startup log.
func (p *Policy) Roles() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	keys := make([]string, 0, len(p.rolePerms))
	for k := range p.rolePerms {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
