package classifier

import (
	"fmt"
	"strings"

	"github.com/kubelogx/kubelogx/internal/types"
	"github.com/kubelogx/kubelogx/internal/util"
)

// Rule binds a level to the substring tokens that signal it.
type Rule struct {
	Level  types.Level `json:"level"`
	Tokens []string    `json:"tokens"`
}

// DefaultRules returns the baseline rule order: errors first, then warnings,
// then debug output.
func DefaultRules() []Rule {
	return []Rule{
		{
			Level: types.LevelError,
			Tokens: []string{
				"ERROR", "EXCEPTION", "FATAL", "PANIC", "REFUSED",
				"FAILED", "FAILURE", "TIMEOUT", "OOMKILLED", "CRITICAL",
			},
		},
		{
			Level:  types.LevelWarn,
			Tokens: []string{"WARN", "DEPRECAT", "HIGH MEMORY", "HIGH CPU", "RETRYING", "SLOW"},
		},
		{
			Level:  types.LevelDebug,
			Tokens: []string{"DEBUG", "TRACE", "PAYLOAD:", "VARIABLE DUMP"},
		},
	}
}

// Classifier maps raw lines to levels using an ordered rule list.
type Classifier struct {
	rules    []Rule
	fallback types.Level
}

// New builds a Classifier. Tokens are normalised (upper-cased, trimmed,
// deduplicated); rules left without tokens are dropped. Lines that match no
// rule classify as INFO.
func New(rules []Rule) *Classifier {
	c := &Classifier{fallback: types.LevelInfo}
	for _, r := range rules {
		tokens := util.NormalizeTokens(r.Tokens)
		if len(tokens) == 0 {
			continue
		}
		c.rules = append(c.rules, Rule{Level: r.Level, Tokens: tokens})
	}
	return c
}

// Default returns a Classifier over DefaultRules.
func Default() *Classifier { return New(DefaultRules()) }

// Classify returns the level of the first rule with a token contained in
// line, compared case-insensitively.
func (c *Classifier) Classify(line string) types.Level {
	if len(c.rules) == 0 || line == "" {
		return c.fallback
	}
	upper := strings.ToUpper(line)
	for _, r := range c.rules {
		for _, tok := range r.Tokens {
			if strings.Contains(upper, tok) {
				return r.Level
			}
		}
	}
	return c.fallback
}

// Rules returns a copy of the normalised rules in evaluation order.
func (c *Classifier) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	for i, r := range c.rules {
		out[i] = Rule{Level: r.Level, Tokens: append([]string(nil), r.Tokens...)}
	}
	return out
}

// ValidateRules checks that every rule names a level a line can be assigned.
func ValidateRules(rules []Rule) error {
	if len(rules) == 0 {
		return fmt.Errorf("at least one classifier rule is required")
	}
	for i, r := range rules {
		switch r.Level {
		case types.LevelError, types.LevelWarn, types.LevelDebug, types.LevelInfo:
		default:
			return fmt.Errorf("rule %d: unsupported level %q", i, r.Level)
		}
		if len(util.NormalizeTokens(r.Tokens)) == 0 {
			return fmt.Errorf("rule %d (%s): no tokens", i, r.Level)
		}
	}
	return nil
}
