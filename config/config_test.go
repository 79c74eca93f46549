// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadClassConfigParsesRootsAndOptions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "classes.yaml")
	data := "search_roots:\n  - ./classes\noptions:\n  - root: ./classes\n    values:\n      jdk: \"11\"\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadClassConfig(path)
	if err != nil {
		t.Fatalf("LoadClassConfig: %v", err)
	}
	if len(cfg.SearchRoots) != 1 || cfg.SearchRoots[0] != "./classes" {
		t.Errorf("SearchRoots = %v, want [./classes]", cfg.SearchRoots)
	}
	if len(cfg.Options) != 1 || cfg.Options[0].Values["jdk"] != "11" {
		t.Errorf("Options = %v, want one block with jdk=11", cfg.Options)
	}
}

func TestLoadClassConfigRequiresSearchRoots(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.yaml")
	if err := os.WriteFile(path, []byte("search_roots: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadClassConfig(path); !errors.Is(err, ErrBadInput) {
		t.Errorf("LoadClassConfig with no roots = %v, want ErrBadInput", err)
	}
}

func TestLoadCallbacksParsesEntries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "callbacks.yaml")
	data := "- class: java/lang/Runnable\n  method: run\n  descriptor: \"()V\"\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	entries, err := LoadCallbacks(path)
	if err != nil {
		t.Fatalf("LoadCallbacks: %v", err)
	}
	if len(entries) != 1 || entries[0].Method != "run" {
		t.Errorf("entries = %v, want one Runnable.run entry", entries)
	}
}
