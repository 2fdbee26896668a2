package antispam

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadRuleSet reads a YAML rules file and returns the default rule set
// merged under it. An empty path, or a path that doesn't exist, returns
// DefaultRuleSet() unchanged.
func LoadRuleSet(path string) (*RuleSet, error) {
	rules := DefaultRuleSet()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return rules, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read antispam rules file: %w", err)
	}

	if err := yaml.Unmarshal(data, rules); err != nil {
		return nil, fmt.Errorf("failed to parse antispam rules file: %w", err)
	}

	return rules, nil
}
