package guard

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rule binds one declared "METHOD /path/{param}" key to the permissions that
// unlock it. Holding any one of Required authorizes (disjunction).
type Rule struct {
	Method   string
	Pattern  string
	Required []string
}

// LoadRules reads the static route map. Declaration order is significant:
// the first structurally matching rule wins. The file is therefore parsed as
// a yaml.Node instead of a Go map, which would shuffle the keys.
func LoadRules(path string) ([]Rule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseRules(raw)
}

func ParseRules(raw []byte) ([]Rule, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("route map must be a mapping of %q to permission lists", "METHOD /path")
	}
	var rules []Rule
	for i := 0; i+1 < len(root.Content); i += 2 {
		keyNode := root.Content[i]
		valNode := root.Content[i+1]
		rule, err := parseRuleKey(keyNode.Value)
		if err != nil {
			return nil, err
		}
		var perms []string
		if err := valNode.Decode(&perms); err != nil {
			return nil, fmt.Errorf("route %q: %w", keyNode.Value, err)
		}
		for _, p := range perms {
			p = strings.TrimSpace(p)
			if p != "" {
				rule.Required = append(rule.Required, p)
			}
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func parseRuleKey(key string) (Rule, error) {
	parts := strings.SplitN(strings.TrimSpace(key), " ", 2)
	if len(parts) != 2 {
		return Rule{}, fmt.Errorf("route key %q must be %q", key, "METHOD /path")
	}
	method := strings.ToUpper(strings.TrimSpace(parts[0]))
	pattern := strings.TrimSpace(parts[1])
	if method == "" || !strings.HasPrefix(pattern, "/") {
		return Rule{}, fmt.Errorf("route key %q must be %q", key, "METHOD /path")
	}
	return Rule{Method: method, Pattern: pattern}, nil
}
