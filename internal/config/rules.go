package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document kinds a rule can bind a tab to.
const (
	// DocumentGraph keeps the format and variables in the editor's graph
	// extras so they travel with the saved workflow.
	DocumentGraph = "graph"
	// DocumentMemory keeps them in the daemon for pages without a graph.
	DocumentMemory = "memory"
)

// Rule selects tabs by URL and describes how their title is managed.
type Rule struct {
	Name          string `yaml:"name"`
	URLPattern    string `yaml:"url_pattern"`
	DefaultFormat string `yaml:"default_format,omitempty"`
	Document      string `yaml:"document,omitempty"`
}

// Matches reports whether url contains the rule's pattern, ignoring case.
func (r Rule) Matches(url string) bool {
	return strings.Contains(strings.ToLower(url), strings.ToLower(r.URLPattern))
}

// RulesConfig is the top-level YAML rules file.
type RulesConfig struct {
	Rules []Rule `yaml:"rules"`
}

// Match returns the first rule matching url.
func (c *RulesConfig) Match(url string) (Rule, bool) {
	for _, r := range c.Rules {
		if r.Matches(url) {
			return r, true
		}
	}
	return Rule{}, false
}

// LoadRules reads and validates a rules YAML file.
func LoadRules(path string) (*RulesConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rules config: %w", err)
	}
	var cfg RulesConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("rules config: %w", err)
	}
	if len(cfg.Rules) == 0 {
		return nil, errors.New("rules config: at least one rule is required")
	}
	for i := range cfg.Rules {
		r := &cfg.Rules[i]
		if r.Name == "" {
			return nil, fmt.Errorf("rules config: rules[%d] missing name", i)
		}
		if r.URLPattern == "" {
			return nil, fmt.Errorf("rules config: rules[%d] (%s) missing url_pattern", i, r.Name)
		}
		switch r.Document {
		case "":
			r.Document = DocumentGraph
		case DocumentGraph, DocumentMemory:
		default:
			return nil, fmt.Errorf("rules config: rules[%d] (%s) unknown document %q", i, r.Name, r.Document)
		}
	}
	return &cfg, nil
}

// DefaultRules builds the rule set used without a rules file: one graph rule
// for the URL filter, matching every tab when the filter is empty.
func DefaultRules(tabURLFilter string) *RulesConfig {
	return &RulesConfig{Rules: []Rule{{
		Name:       "default",
		URLPattern: tabURLFilter,
		Document:   DocumentGraph,
	}}}
}

// ResolveRules loads the rules file when set and falls back to DefaultRules.
func (c *Config) ResolveRules() (*RulesConfig, error) {
	if c.RulesFile == "" {
		return DefaultRules(c.TabURLFilter), nil
	}
	return LoadRules(c.RulesFile)
}
