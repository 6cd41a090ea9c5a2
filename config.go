package condfmt

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ruleDoc is the on-disk form of a rule: identical to Rule except ranges
// are A1-style references.
type ruleDoc struct {
	Rule   `yaml:",inline"`
	Ranges []string `json:"ranges" yaml:"ranges"`
}

// ruleSetDoc is the on-disk form of a rule set.
type ruleSetDoc struct {
	Rules []ruleDoc `json:"rules" yaml:"rules"`
}

// RulesFromFile loads a declarative rule set from a file, auto-detecting
// the format by extension (.yaml, .yml, .json). Every rule is validated
// and given an ID if it carries none. The engine never writes rule sets
// back; persistence stays the host's concern.
func RulesFromFile(path string) ([]*Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule set: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return RulesFromYAML(data)
	case ".json":
		return RulesFromJSON(data)
	default:
		return nil, fmt.Errorf("unsupported rule set extension: %s", ext)
	}
}

// RulesFromYAML parses a YAML rule set.
func RulesFromYAML(data []byte) ([]*Rule, error) {
	var doc ruleSetDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml rule set: %w", err)
	}
	return materializeRules(doc)
}

// RulesFromJSON parses a JSON rule set.
func RulesFromJSON(data []byte) ([]*Rule, error) {
	var doc ruleSetDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse json rule set: %w", err)
	}
	return materializeRules(doc)
}

func materializeRules(doc ruleSetDoc) ([]*Rule, error) {
	rules := make([]*Rule, 0, len(doc.Rules))
	for i := range doc.Rules {
		entry := doc.Rules[i]
		rule := entry.Rule
		for _, ref := range entry.Ranges {
			rng, err := ParseRangeRef(ref)
			if err != nil {
				return nil, fmt.Errorf("rule %d: %w", i, err)
			}
			rule.Ranges = append(rule.Ranges, rng)
		}
		rule.ensureID()
		if err := rule.Validate(); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		rules = append(rules, &rule)
	}
	return rules, nil
}
