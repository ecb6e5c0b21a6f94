package inject

import (
	"fmt"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pelletier/go-toml/v2"
)

// Rule injects Markup into every page whose path matches Pattern.
//
//	[[rule]]
//	name = "banner"
//	pattern = "/docs/**"
//	markup = '<aside id="banner">Preview build</aside>'
//	position = "start"
type Rule struct {
	Name     string   `toml:"name"`
	Pattern  string   `toml:"pattern"`
	Markup   string   `toml:"markup"`
	Position Position `toml:"position"`
}

// Rules is the parsed rules file.
type Rules struct {
	Rules []Rule `toml:"rule"`
}

// LoadRules reads a TOML rules file. An empty path yields no rules.
func LoadRules(path string) (*Rules, error) {
	if path == "" {
		return &Rules{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	return ParseRules(data)
}

// ParseRules parses and validates rules. Every pattern must be a valid glob
// and every markup balanced.
func ParseRules(data []byte) (*Rules, error) {
	var r Rules
	if err := toml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}

	for n := range r.Rules {
		rule := &r.Rules[n]
		label := rule.Name
		if label == "" {
			label = fmt.Sprintf("#%d", n+1)
		}

		if rule.Pattern == "" {
			return nil, fmt.Errorf("rule %s: pattern is required", label)
		}
		if !doublestar.ValidatePattern(rule.Pattern) {
			return nil, fmt.Errorf("rule %s: bad pattern %q", label, rule.Pattern)
		}
		if rule.Position == "" {
			rule.Position = PositionStart
		}
		if !rule.Position.Valid() {
			return nil, fmt.Errorf("rule %s: unknown position %q", label, rule.Position)
		}
		// Check now so a bad rule fails at startup rather than per request.
		if _, err := newFragment([]byte(rule.Markup), SourceRule, rule.Position); err != nil {
			return nil, fmt.Errorf("rule %s: %w", label, err)
		}
	}

	return &r, nil
}

// Len returns the number of rules.
func (r *Rules) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Rules)
}

// Match returns fresh fragments for every rule matching the request path. The
// query string is ignored.
func (r *Rules) Match(path string) []Fragment {
	if r == nil {
		return nil
	}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	var out []Fragment
	for _, rule := range r.Rules {
		ok, err := doublestar.Match(rule.Pattern, path)
		if err != nil || !ok {
			continue
		}
		f, err := newFragment([]byte(rule.Markup), SourceRule, rule.Position)
		if err != nil {
			continue
		}
		out = append(out, f)
	}
	return out
}
