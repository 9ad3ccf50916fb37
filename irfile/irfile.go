// Package irfile loads modules written in YAML.
//
// The format mirrors the tree of the ir package closely enough for tests
// and the command line tool to describe iterators without a front end:
// declarations and statements are YAML mappings, expressions are strings
// in Go syntax. See File for an example.
package irfile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/stealthrocket/iterlower/ir"
)

// Load reads the module in the file at path.
func Load(path string) (*ir.ModuleSymbol, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(path, data)
}

// Parse decodes a module from YAML. name is used in positions.
func Parse(name string, data []byte) (*ir.ModuleSymbol, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return Build(name, &f)
}

// Build converts a decoded file into a module.
func Build(name string, f *File) (*ir.ModuleSymbol, error) {
	b := newBuilder(name)
	if err := b.module(f); err != nil {
		return nil, err
	}
	return b.mod, nil
}
