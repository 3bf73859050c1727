// Package schema loads the target schema: the ordered list of information
// items the business requires in final output.
package schema

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// InfoItem is one named, typed output column with optional free-text
// synonyms embedded in its description.
type InfoItem struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Description string `yaml:"describe"`
	Sample      string `yaml:"sample"`
}

// TargetSchema is the ordered, immutable list of information items for a run.
type TargetSchema struct {
	Items []InfoItem
}

// Load reads a target schema from a YAML file.
func Load(path string) (*TargetSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}

	var doc struct {
		InfoItems []InfoItem `yaml:"info_items"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}
	if len(doc.InfoItems) == 0 {
		return nil, fmt.Errorf("schema %s defines no info_items", path)
	}

	seen := make(map[string]bool, len(doc.InfoItems))
	for _, item := range doc.InfoItems {
		if item.Name == "" {
			return nil, fmt.Errorf("schema %s contains an unnamed info item", path)
		}
		if seen[item.Name] {
			return nil, fmt.Errorf("schema %s defines %q twice", path, item.Name)
		}
		seen[item.Name] = true
	}

	return &TargetSchema{Items: doc.InfoItems}, nil
}

// Names returns the ordered item names.
func (s *TargetSchema) Names() []string {
	names := make([]string, len(s.Items))
	for i, item := range s.Items {
		names[i] = item.Name
	}
	return names
}

// Item returns the info item with the given name, or nil.
func (s *TargetSchema) Item(name string) *InfoItem {
	for i := range s.Items {
		if s.Items[i].Name == name {
			return &s.Items[i]
		}
	}
	return nil
}

// quoted matches double-quoted substrings; both ASCII and full-width CJK
// quotation marks appear in real descriptions.
var quoted = regexp.MustCompile(`["“]([^"”]+)["”]`)

// Synonyms extracts synonym strings from the item description. Synonyms are
// the quoted substrings of a description that carries the 同义词 marker, e.g.
//
//	同义词，例如："身份证号"、"身份证号码"等
func (item *InfoItem) Synonyms() []string {
	if !strings.Contains(item.Description, "同义词") {
		return nil
	}

	var synonyms []string
	for _, m := range quoted.FindAllStringSubmatch(item.Description, -1) {
		if w := strings.TrimSpace(m[1]); w != "" {
			synonyms = append(synonyms, w)
		}
	}
	return synonyms
}
