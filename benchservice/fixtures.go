package benchservice

import (
	"embed"
	"fmt"
	"io/fs"

	"gopkg.in/yaml.v3"
)

// TestCase is one declarative benchmark fixture, immutable once loaded.
type TestCase struct {
	Task                      string         `yaml:"task" json:"task"`
	Size                      string         `yaml:"size" json:"size"`
	Description               string         `yaml:"description" json:"description"`
	Endpoint                  string         `yaml:"endpoint" json:"endpoint"`
	Method                    string         `yaml:"method" json:"method"`
	Parameters                map[string]any `yaml:"parameters" json:"parameters"`
	ExpectedFieldPaths        []string       `yaml:"expectedFieldPaths" json:"expectedFieldPaths"`
	ValidateStructuredPayload bool           `yaml:"validateStructuredPayload" json:"validateStructuredPayload"`
	StructuredPayloadPath     string         `yaml:"structuredPayloadPath" json:"structuredPayloadPath"`
}

const (
	SizeSmall  = "small"
	SizeMedium = "medium"
	SizeLarge  = "large"
)

//go:embed fixtures/*.yaml
var fixtureFS embed.FS

// Loader serves fixtures keyed by (task, size).
type Loader struct {
	cases map[string]*TestCase
}

func fixtureKey(task, size string) string {
	return task + "|" + size
}

// NewLoader parses every embedded fixture file. Each file holds a list of
// test cases; duplicate (task, size) pairs are a packaging error.
func NewLoader() (*Loader, error) {
	loader := &Loader{cases: make(map[string]*TestCase)}

	err := fs.WalkDir(fixtureFS, "fixtures", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		raw, err := fixtureFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read fixture %s: %w", path, err)
		}
		var cases []TestCase
		if err := yaml.Unmarshal(raw, &cases); err != nil {
			return fmt.Errorf("failed to parse fixture %s: %w", path, err)
		}
		for i := range cases {
			c := cases[i]
			if c.Task == "" || c.Size == "" {
				return fmt.Errorf("fixture %s: case %d has empty task or size", path, i)
			}
			key := fixtureKey(c.Task, c.Size)
			if _, dup := loader.cases[key]; dup {
				return fmt.Errorf("fixture %s: duplicate case for (%s, %s)", path, c.Task, c.Size)
			}
			loader.cases[key] = &c
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return loader, nil
}

// Load returns the fixture for (task, size). The fixture's own declared
// task and size must match the lookup key; a mismatch means the fixture
// source is corrupted and fails loudly.
func (l *Loader) Load(task, size string) (*TestCase, error) {
	c, ok := l.cases[fixtureKey(task, size)]
	if !ok {
		return nil, fmt.Errorf("no fixture for task %q at size %q", task, size)
	}
	if c.Task != task || c.Size != size {
		return nil, fmt.Errorf("fixture corruption: case declares (%s, %s) but was indexed under (%s, %s)", c.Task, c.Size, task, size)
	}
	return c, nil
}

// List returns every loaded (task, size) pair.
func (l *Loader) List() []*TestCase {
	out := make([]*TestCase, 0, len(l.cases))
	for _, c := range l.cases {
		out = append(out, c)
	}
	return out
}
