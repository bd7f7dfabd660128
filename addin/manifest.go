package addin

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/wippyai/xll-runtime/errors"
	"github.com/wippyai/xll-runtime/registry"
	"github.com/wippyai/xll-runtime/signature"
)

// Manifest lists the functions an add-in registers.
type Manifest struct {
	Name      string         `toml:"name"`
	Functions []FunctionSpec `toml:"function"`
}

// FunctionSpec is one [[function]] table of a manifest.
type FunctionSpec struct {
	Procedure    string   `toml:"procedure"`
	Name         string   `toml:"name"`
	Arguments    []string `toml:"arguments"`
	Category     string   `toml:"category"`
	Shortcut     string   `toml:"shortcut"`
	HelpTopic    string   `toml:"help_topic"`
	Help         string   `toml:"help"`
	ArgumentHelp []string `toml:"argument_help"`
	MacroType    string   `toml:"macro_type"`
	Attributes   []string `toml:"attributes"`
}

// LoadManifest reads a TOML manifest from path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Load("cannot read "+path, err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, errors.Load("parse error in "+path, err)
	}
	return m, nil
}

// ParseManifest decodes a TOML manifest. Unknown keys, duplicate or empty
// procedures and unknown macro types or attributes are errors.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, errors.Load("decode manifest", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, errors.Load(fmt.Sprintf("unknown manifest key %q", undecoded[0].String()), nil)
	}

	seen := make(map[string]bool, len(m.Functions))
	for i, fs := range m.Functions {
		if fs.Procedure == "" {
			return nil, errors.Load(fmt.Sprintf("function %d has no procedure", i+1), nil)
		}
		if seen[fs.Procedure] {
			return nil, errors.Load("duplicate procedure "+fs.Procedure, nil)
		}
		seen[fs.Procedure] = true
		if _, err := fs.Function(); err != nil {
			return nil, err
		}
	}
	return &m, nil
}

// Lookup returns the manifest entry for procedure.
func (m *Manifest) Lookup(procedure string) (FunctionSpec, bool) {
	if m == nil {
		return FunctionSpec{}, false
	}
	for _, fs := range m.Functions {
		if fs.Procedure == procedure {
			return fs, true
		}
	}
	return FunctionSpec{}, false
}

// Function converts the entry into a registration description.
func (s FunctionSpec) Function() (registry.Function, error) {
	macro, ok := registry.ParseMacroType(s.MacroType)
	if !ok {
		return registry.Function{}, errors.Load(
			fmt.Sprintf("%s: unknown macro_type %q", s.Procedure, s.MacroType), nil)
	}
	var attrs signature.Attributes
	for _, name := range s.Attributes {
		a, ok := signature.ParseAttribute(name)
		if !ok {
			return registry.Function{}, errors.Load(
				fmt.Sprintf("%s: unknown attribute %q", s.Procedure, name), nil)
		}
		attrs |= a
	}
	return registry.Function{
		Procedure:    s.Procedure,
		Name:         s.Name,
		Arguments:    s.Arguments,
		Category:     s.Category,
		Shortcut:     s.Shortcut,
		HelpTopic:    s.HelpTopic,
		Help:         s.Help,
		ArgumentHelp: s.ArgumentHelp,
		Macro:        macro,
		Attributes:   attrs,
	}, nil
}
