package workflow

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"
)

// Bundle is the content of one or more definition files.
type Bundle struct {
	Workflows []*Definition `yaml:"workflows"`
	Schedules []*Schedule   `yaml:"schedules"`
}

// Merge appends other into b, rejecting duplicate ids.
func (b *Bundle) Merge(other *Bundle) error {
	seen := make(map[string]bool, len(b.Workflows))
	for _, w := range b.Workflows {
		seen["workflow/"+w.ID] = true
	}
	for _, s := range b.Schedules {
		seen["schedule/"+s.ID] = true
	}
	for _, w := range other.Workflows {
		if seen["workflow/"+w.ID] {
			return fmt.Errorf("workflow: duplicate workflow id %q", w.ID)
		}
		seen["workflow/"+w.ID] = true
		b.Workflows = append(b.Workflows, w)
	}
	for _, s := range other.Schedules {
		if seen["schedule/"+s.ID] {
			return fmt.Errorf("workflow: duplicate schedule id %q", s.ID)
		}
		seen["schedule/"+s.ID] = true
		b.Schedules = append(b.Schedules, s)
	}
	return nil
}

// ParseBundle decodes YAML that is either a bundle document
// (workflows/schedules lists) or a single workflow definition.
func ParseBundle(data []byte) (*Bundle, error) {
	var b Bundle
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	if len(b.Workflows) > 0 || len(b.Schedules) > 0 {
		return &b, nil
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, err
	}
	if def.ID == "" && len(def.Stages) == 0 {
		return &b, nil
	}
	b.Workflows = append(b.Workflows, &def)
	return &b, nil
}

// LoadFile reads one definition file.
func LoadFile(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	b, err := ParseBundle(data)
	if err != nil {
		return nil, fmt.Errorf("workflow: parsing %s: %w", path, err)
	}
	return b, nil
}

// Load reads definition files. Each path is a file or a directory searched
// recursively for *.yaml and *.yml. Files are read in lexical order.
func Load(paths ...string) (*Bundle, error) {
	files, err := collectFiles(paths)
	if err != nil {
		return nil, err
	}
	out := &Bundle{}
	for _, f := range files {
		b, err := LoadFile(f)
		if err != nil {
			return nil, err
		}
		if err := out.Merge(b); err != nil {
			return nil, fmt.Errorf("%w (in %s)", err, f)
		}
	}
	return out, nil
}

func collectFiles(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("workflow: %w", err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		var found []string
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			ext := strings.ToLower(filepath.Ext(path))
			if ext == ".yaml" || ext == ".yml" {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("workflow: scanning %s: %w", p, err)
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	return files, nil
}
