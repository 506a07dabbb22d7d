// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/graphstats/pkg/logging"
	"github.com/AleutianAI/graphstats/pkg/ux"
	"github.com/AleutianAI/graphstats/services/stats/cancel"
	"github.com/AleutianAI/graphstats/services/stats/jobs"
	"github.com/AleutianAI/graphstats/services/stats/storage/badger"
)

// DefaultConfigPath is read when --config is not given and the file exists.
const DefaultConfigPath = "graphstats.yaml"

// Config is the graphstats.yaml layout.
type Config struct {
	Log              LogConfig            `yaml:"log"`
	Personality      string               `yaml:"personality" validate:"omitempty,personality"`
	Workers          int                  `yaml:"workers" validate:"gte=1,lte=64"`
	ProgressInterval time.Duration        `yaml:"progress_interval" validate:"gte=0"`
	MetricsAddr      string               `yaml:"metrics_addr" validate:"omitempty,hostname_port"`
	Jobs             map[string]JobConfig `yaml:"jobs" validate:"dive"`
	Store            StoreConfig          `yaml:"store"`
}

// LogConfig configures pkg/logging.
type LogConfig struct {
	Level string `yaml:"level" validate:"loglevel"`
	Dir   string `yaml:"dir"`
	JSON  bool   `yaml:"json"`
}

// JobConfig holds per-job defaults.
type JobConfig struct {
	ChunkSize int64 `yaml:"chunk_size" validate:"gte=1"`
}

// StoreConfig configures the badger store.
type StoreConfig struct {
	InMemory       bool          `yaml:"in_memory"`
	SyncWrites     bool          `yaml:"sync_writes"`
	GCInterval     time.Duration `yaml:"gc_interval" validate:"gte=0"`
	GCDiscardRatio float64       `yaml:"gc_discard_ratio" validate:"gte=0,lte=1"`
}

var configValidate *validator.Validate

func init() {
	configValidate = validator.New()
	_ = configValidate.RegisterValidation("loglevel", func(fl validator.FieldLevel) bool {
		_, err := logging.ParseLevel(fl.Field().String())
		return err == nil
	})
	_ = configValidate.RegisterValidation("personality", func(fl validator.FieldLevel) bool {
		_, err := ux.ParsePersonalityLevel(fl.Field().String())
		return err == nil
	})
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() Config {
	store := badger.DefaultConfig()
	return Config{
		Log:              LogConfig{Level: "info"},
		Workers:          cancel.DefaultWorkers,
		ProgressInterval: 10 * time.Second,
		Jobs: map[string]JobConfig{
			jobs.HistoName:     {ChunkSize: jobs.DefaultHistoChunkSize},
			jobs.PropStatsName: {ChunkSize: jobs.DefaultPropStatsChunkSize},
		},
		Store: StoreConfig{
			SyncWrites:     store.SyncWrites,
			GCInterval:     store.GCInterval,
			GCDiscardRatio: store.GCDiscardRatio,
		},
	}
}

// Validate checks struct tags.
func (c *Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ParseConfig decodes YAML over the defaults. Unknown keys are errors.
func ParseConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	data, err := io.ReadAll(r)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// LoadConfig reads path. An empty path reads DefaultConfigPath when it
// exists and otherwise returns the defaults.
func LoadConfig(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath
	}
	f, err := os.Open(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return ParseConfig(f)
}

// ChunkSize returns the configured chunk size for job, or 0 for the
// job's built-in default.
func (c *Config) ChunkSize(job string) int64 {
	return c.Jobs[job].ChunkSize
}

// BadgerConfig converts the store section for a database at path.
func (c *Config) BadgerConfig(path string) badger.Config {
	cfg := badger.DefaultConfig()
	cfg.Path = path
	cfg.InMemory = c.Store.InMemory
	cfg.SyncWrites = c.Store.SyncWrites
	cfg.GCInterval = c.Store.GCInterval
	cfg.GCDiscardRatio = c.Store.GCDiscardRatio
	if cfg.InMemory {
		cfg.Path = ""
	}
	return cfg
}
