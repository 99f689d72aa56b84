// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

// Package config loads and saves the operator configuration for libfarm
// tools. The file is a flat list of "key = value" lines; '#' starts a
// comment line and unknown keys are ignored so older binaries can read
// newer files.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Config holds operator settings for a farm data directory.
type Config struct {
	DataDir     string // directory holding farm.db and the config file
	Network     string // "mainnet", "testnet", "teratestnet" or "regtest"
	LogLevel    string // "debug", "info", "warn" or "error"
	LogFile     string // empty logs to stderr
	Admin       string // admin address used at init
	RewardToken string // reward token contract address
	ClaimPolicy string // "receiver" or "anyone"
	PayoutMode  string // "mint" or "transfer"
	BalanceMode string // "includes-deposit" or "excludes-deposit"
	RPCURL      string // token gateway URL; empty uses presets or discovery
	TokenDomain string // domain for _farmrpc._tcp SRV discovery
}

// DefaultDataDir returns ~/.libfarm, or .libfarm in the working directory
// when the home directory cannot be determined.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".libfarm"
	}
	return filepath.Join(home, ".libfarm")
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	return Config{
		DataDir:     DefaultDataDir(),
		Network:     "mainnet",
		LogLevel:    "info",
		ClaimPolicy: "receiver",
		PayoutMode:  "mint",
		BalanceMode: "includes-deposit",
	}
}

// ConfigPath returns the config file path inside dataDir.
func ConfigPath(dataDir string) string {
	return filepath.Join(filepath.Clean(dataDir), "config")
}

// LoadConfig reads path over DefaultConfig. Keys absent from the file keep
// their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
	}
	if err != nil {
		return cfg, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, err := parseKeyValue(line)
		if err != nil {
			return cfg, fmt.Errorf("%w: line %d: %q", ErrInvalidConfigLine, lineNo, line)
		}
		cfg.set(key, value)
	}
	if err := sc.Err(); err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	return cfg, nil
}

// parseKeyValue splits a line on the first '='.
func parseKeyValue(line string) (string, string, error) {
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return "", "", ErrInvalidConfigLine
	}
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return "", "", ErrInvalidConfigLine
	}
	return key, strings.TrimSpace(value), nil
}

func (c *Config) set(key, value string) {
	switch key {
	case "datadir":
		c.DataDir = value
	case "network":
		c.Network = value
	case "loglevel":
		c.LogLevel = value
	case "logfile":
		c.LogFile = value
	case "admin":
		c.Admin = value
	case "rewardtoken":
		c.RewardToken = value
	case "claimpolicy":
		c.ClaimPolicy = value
	case "payoutmode":
		c.PayoutMode = value
	case "balancemode":
		c.BalanceMode = value
	case "rpcurl":
		c.RPCURL = value
	case "tokendomain":
		c.TokenDomain = value
	}
}

// SaveConfig writes cfg to path, creating parent directories as needed.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}

	var b strings.Builder
	b.WriteString("# libfarm Configuration\n\n")
	for _, kv := range [][2]string{
		{"datadir", cfg.DataDir},
		{"network", cfg.Network},
		{"loglevel", cfg.LogLevel},
		{"logfile", cfg.LogFile},
		{"admin", cfg.Admin},
		{"rewardtoken", cfg.RewardToken},
		{"claimpolicy", cfg.ClaimPolicy},
		{"payoutmode", cfg.PayoutMode},
		{"balancemode", cfg.BalanceMode},
		{"rpcurl", cfg.RPCURL},
		{"tokendomain", cfg.TokenDomain},
	} {
		fmt.Fprintf(&b, "%s = %s\n", kv[0], kv[1])
	}

	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
