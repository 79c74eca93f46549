// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads the two YAML inputs the driver needs before it
// can decode anything: the class-config file (classfile search roots
// plus per-root option blocks) and the callback method list that
// seeds the method matcher's top-level candidate set when no
// call-site context is available.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jportal/trace/classfile"
)

// OptionBlock carries per-root parsing options, e.g. a root that holds
// classes from a specific JDK version with non-default verification
// rules. Values is intentionally open-ended: the fields a given root
// needs vary more than is worth a fixed struct.
type OptionBlock struct {
	Root   string            `yaml:"root"`
	Values map[string]string `yaml:"values"`
}

// ClassConfig is the --class-config file: where to find .class files,
// and any per-root options.
type ClassConfig struct {
	SearchRoots []string      `yaml:"search_roots"`
	Options     []OptionBlock `yaml:"options"`
}

// LoadClassConfig reads and parses a --class-config YAML file.
func LoadClassConfig(path string) (*ClassConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading class config: %v", ErrBadInput, err)
	}
	var cfg ClassConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing class config: %v", ErrBadInput, err)
	}
	if len(cfg.SearchRoots) == 0 {
		return nil, fmt.Errorf("%w: class config names no search_roots", ErrBadInput)
	}
	return &cfg, nil
}

// LoadClasses walks every search root in cfg and parses every .class
// file found under it.
func LoadClasses(cfg *ClassConfig) ([]*classfile.Class, error) {
	var classes []*classfile.Class
	for _, root := range cfg.SearchRoots {
		err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() || !strings.HasSuffix(path, ".class") {
				return nil
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("%w: reading %s: %v", ErrBadInput, path, err)
			}
			c, err := classfile.Parse(data)
			if err != nil {
				return fmt.Errorf("%w: parsing %s: %v", ErrBadInput, path, err)
			}
			classes = append(classes, c)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return classes, nil
}

// CallbackEntry names one externally-registered method entry point,
// e.g. a lambda metafactory target or a JNI upcall, that the matcher
// should accept as a top-level candidate when no call-site context
// narrows the search.
type CallbackEntry struct {
	Class  string `yaml:"class"`
	Method string `yaml:"method"`
	Desc   string `yaml:"descriptor"`
}

// LoadCallbacks reads and parses an optional --callback YAML file.
func LoadCallbacks(path string) ([]CallbackEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading callback list: %v", ErrBadInput, err)
	}
	var entries []CallbackEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: parsing callback list: %v", ErrBadInput, err)
	}
	return entries, nil
}
