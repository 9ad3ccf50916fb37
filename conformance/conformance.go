// Package conformance runs suites of iterator modules against the values
// they are expected to produce once normalized.
//
// A suite is a YAML file holding a module, in the format of the irfile
// package, and a list of cases:
//
//	name: squares
//	module:
//	  decls:
//	    - fn: squares
//	      iterator: true
//	      ...
//	cases:
//	  - iterate: squares
//	    args: [4]
//	    values: [1, 4, 9, 16]
//	    cursors: [1, 1, 1, 1, 2]
//
// Each case either walks the iterator returned by a factory function
// (iterate) or calls a plain function (call). The module is normalized
// once per suite and every case runs in a fresh interpreter.
package conformance

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/stealthrocket/iterlower/irfile"
)

// Suite is a module and the cases run against it.
type Suite struct {
	Name   string      `yaml:"name"`
	Module irfile.File `yaml:"module"`
	Cases  []Case      `yaml:"cases"`

	// NormalizeError, when set, is a substring of the error normalization
	// must fail with. The suite has no cases in that case.
	NormalizeError string `yaml:"normalize_error,omitempty"`

	// Path is the file the suite was loaded from.
	Path string `yaml:"-"`
}

// Case is one check run against the normalized module of a suite.
type Case struct {
	Name string `yaml:"name"`

	// Iterate names an iterator factory; Call names a function. Exactly
	// one of them is set.
	Iterate string `yaml:"iterate,omitempty"`
	Call    string `yaml:"call,omitempty"`
	Args    []any  `yaml:"args,omitempty"`

	// Values are the values the iterator produces, in order.
	Values []any `yaml:"values,omitempty"`

	// Cursors, when set, are the cursors the iterator goes through, the
	// exhausted one included.
	Cursors []int64 `yaml:"cursors,omitempty"`

	// ElemType, when set, is the printed element type of the iterator.
	ElemType string `yaml:"elem_type,omitempty"`

	// Restart walks the iterator a second time from its head cursor and
	// expects the same values.
	Restart bool `yaml:"restart,omitempty"`

	// Result is the value returned by Call.
	Result any `yaml:"result,omitempty"`

	// Error, when set, is a substring of the error the case must fail
	// with.
	Error string `yaml:"error,omitempty"`

	Line int `yaml:"-"`
}

func (c *Case) UnmarshalYAML(value *yaml.Node) error {
	type rawCase Case
	if err := value.Decode((*rawCase)(c)); err != nil {
		return err
	}
	c.Line = value.Line
	return nil
}

// Load reads the suite in the file at path.
func Load(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s := &Suite{Path: path}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if s.Name == "" {
		s.Name = trimExt(filepath.Base(path))
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Glob loads the suites in the files matching pattern, sorted by path.
func Glob(pattern string) ([]*Suite, error) {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	suites := make([]*Suite, 0, len(paths))
	for _, path := range paths {
		s, err := Load(path)
		if err != nil {
			return nil, err
		}
		suites = append(suites, s)
	}
	return suites, nil
}

func (s *Suite) validate() error {
	if s.NormalizeError != "" && len(s.Cases) > 0 {
		return fmt.Errorf("suite %s expects normalization to fail but has cases", s.Name)
	}
	for i := range s.Cases {
		c := &s.Cases[i]
		switch {
		case c.Iterate == "" && c.Call == "":
			return fmt.Errorf("%d: case has neither iterate nor call", c.Line)
		case c.Iterate != "" && c.Call != "":
			return fmt.Errorf("%d: case has both iterate and call", c.Line)
		case c.Call != "" && (c.Values != nil || c.Cursors != nil || c.Restart):
			return fmt.Errorf("%d: call case %s expects iterator values", c.Line, c.Call)
		}
		if c.Name == "" {
			c.Name = fmt.Sprintf("%s%s", c.Iterate, c.Call)
			if len(c.Args) > 0 {
				c.Name += fmt.Sprint(c.Args)
			}
		}
	}
	return nil
}

func trimExt(name string) string {
	return name[:len(name)-len(filepath.Ext(name))]
}
