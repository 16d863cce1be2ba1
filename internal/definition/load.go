package definition

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// LoadFile strict-decodes one agent definition; unknown YAML fields are
// rejected. When the YAML declares no prompt, a prompt.md beside the
// file supplies it.
func LoadFile(path string) (*Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open definition: %w", err)
	}
	defer f.Close()

	var def Definition
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}

	if def.Prompt == "" {
		if data, err := os.ReadFile(filepath.Join(filepath.Dir(path), "prompt.md")); err == nil {
			def.Prompt = string(data)
		}
	}

	if err := def.Check(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Registry is the loaded agent library, keyed by agent name.
type Registry struct {
	defs map[string]*Definition
}

func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

func (r *Registry) Add(def *Definition) error {
	if _, exists := r.defs[def.Name]; exists {
		return &DefinitionError{Agent: def.Name, Reason: "duplicate agent name in library"}
	}
	r.defs[def.Name] = def
	return nil
}

func (r *Registry) Get(name string) (*Definition, bool) {
	def, ok := r.defs[name]
	return def, ok
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Delegates returns the library minus the named agent. Prompt templates
// list these as hand-off targets, so a running agent never sees itself.
func (r *Registry) Delegates(exclude string) map[string]*Definition {
	out := make(map[string]*Definition, len(r.defs))
	for name, def := range r.defs {
		if name == exclude {
			continue
		}
		out[name] = def
	}
	return out
}

// LoadDir loads every agent definition under dir into a registry. Each
// agent lives in its own subdirectory as agent.yaml with an optional
// prompt.md beside it; yaml files directly under dir are loaded too.
func LoadDir(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read agent library: %w", err)
	}

	reg := NewRegistry()
	for _, entry := range entries {
		var path string
		if entry.IsDir() {
			path = filepath.Join(dir, entry.Name(), "agent.yaml")
			if _, err := os.Stat(path); err != nil {
				continue
			}
		} else if ext := filepath.Ext(entry.Name()); ext == ".yaml" || ext == ".yml" {
			path = filepath.Join(dir, entry.Name())
		} else {
			continue
		}

		def, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		if err := reg.Add(def); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
