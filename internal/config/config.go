// Package config loads the YAML configuration for a cvs2svn run, following
// the teacher's Unmarshal/validate/defaults pattern (config/config.go in
// rcowham-gitp4transfer).
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	yaml "gopkg.in/yaml.v2"
)

// Defaults for the CLI surface named in spec.md §6.
const (
	DefaultTrunkPath    = "trunk"
	DefaultBranchesPath = "branches"
	DefaultTagsPath     = "tags"
	DefaultUsername     = "cvs2svn"
	DefaultEncoding     = "utf-8"
	DefaultCommitThreshold = 300 // seconds, spec.md §4.2 same-commit rule
	DefaultResyncWindow    = 300 // seconds, spec.md §4.1 half-window widening
)

// BranchMapping renames a CVS symbol on its way into an SVN path, reused
// from the teacher's BranchMapping (there it renamed git branches; here it
// renames CVS branch/tag symbols).
type BranchMapping struct {
	Name   string `yaml:"name"`   // regex matched against the symbol name
	Prefix string `yaml:"prefix"` // prefix prepended to matching symbols
}

// TypeMapEntry overrides CVS's own kb/kkv-derived text/binary guess for
// paths matching RePath.
type TypeMapEntry struct {
	Binary bool
	RePath *regexp.Regexp
}

// Config is the full configuration for a cvs2svn run.
type Config struct {
	TrunkPath    string `yaml:"trunk_path"`
	BranchesPath string `yaml:"branches_path"`
	TagsPath     string `yaml:"tags_path"`

	Username string `yaml:"username"`
	Encoding string `yaml:"encoding"`

	CommitThresholdSeconds int `yaml:"commit_threshold_seconds"`
	ResyncWindowSeconds    int `yaml:"resync_window_seconds"`

	ForceBranches []string `yaml:"force_branches"`
	ForceTags     []string `yaml:"force_tags"`
	TrunkOnly     bool     `yaml:"trunk_only"`

	RecordRevisionProps bool `yaml:"record_revision_props"` // stamp cvs2svn:cvs-rev

	BranchMappings []BranchMapping `yaml:"branch_mappings"`
	TypeMaps       []string        `yaml:"typemaps"`
	ReTypeMaps     []TypeMapEntry  `yaml:"-"`
}

// Unmarshal parses config bytes, applying defaults first so a sparse or
// empty file still yields a usable Config.
func Unmarshal(data []byte) (*Config, error) {
	cfg := &Config{
		TrunkPath:              DefaultTrunkPath,
		BranchesPath:           DefaultBranchesPath,
		TagsPath:               DefaultTagsPath,
		Username:               DefaultUsername,
		Encoding:               DefaultEncoding,
		CommitThresholdSeconds: DefaultCommitThreshold,
		ResyncWindowSeconds:    DefaultResyncWindow,
		ReTypeMaps:             make([]TypeMapEntry, 0),
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %v. make sure to use 'single quotes' around strings with special characters (like match patterns)", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads and validates a configuration file.
func LoadFile(filename string) (*Config, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to load %v: %v", filename, err)
	}
	cfg, err := Unmarshal(content)
	if err != nil {
		return nil, fmt.Errorf("failed to load %v: %v", filename, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	for _, m := range c.BranchMappings {
		if _, err := regexp.Compile(m.Name); err != nil {
			return fmt.Errorf("failed to parse branch_mappings name '%s' as a regex", m.Name)
		}
	}
	for _, m := range c.TypeMaps {
		parts := strings.Fields(m)
		if len(parts) != 2 {
			return fmt.Errorf("failed to split '%s' on a space", m)
		}
		kind, reStr := parts[0], parts[1]
		if !strings.Contains(kind, "binary") && !strings.Contains(kind, "text") {
			return fmt.Errorf("typemaps must contain either 'binary' or 'text' in first part: %s", m)
		}
		reStr = strings.ReplaceAll(reStr, "...", ".*")
		reStr += "$"
		re, err := regexp.Compile(reStr)
		if err != nil {
			return fmt.Errorf("failed to parse '%s' as a regex", reStr)
		}
		c.ReTypeMaps = append(c.ReTypeMaps, TypeMapEntry{Binary: strings.Contains(kind, "binary"), RePath: re})
	}
	if c.CommitThresholdSeconds <= 0 {
		return fmt.Errorf("commit_threshold_seconds must be positive")
	}
	if c.ResyncWindowSeconds <= 0 {
		return fmt.Errorf("resync_window_seconds must be positive")
	}
	return nil
}

// IsBinaryOverride reports whether path has an explicit typemap override,
// and if so, whether it is binary.
func (c *Config) IsBinaryOverride(path string) (isBinary bool, matched bool) {
	for _, m := range c.ReTypeMaps {
		if m.RePath.MatchString(path) {
			return m.Binary, true
		}
	}
	return false, false
}
