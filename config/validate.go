// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/bitfsorg/libfarm-go/identity"
)

// validLogLevels lists the accepted log level strings.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ValidateConfig checks that all configuration values are within acceptable
// ranges and returns the first error encountered, or nil if valid.
func ValidateConfig(cfg Config) error {
	if cfg.DataDir == "" {
		return ErrEmptyDataDir
	}

	if _, err := identity.IsMainnet(cfg.Network); err != nil {
		return ErrInvalidNetwork
	}

	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		return ErrInvalidLogLevel
	}

	for _, addr := range []string{cfg.Admin, cfg.RewardToken} {
		if addr == "" {
			continue
		}
		if _, err := identity.Parse(addr, cfg.Network); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidAddress, err)
		}
	}

	switch cfg.ClaimPolicy {
	case "receiver", "anyone":
	default:
		return ErrInvalidClaimPolicy
	}

	switch cfg.PayoutMode {
	case "mint", "transfer":
	default:
		return ErrInvalidPayoutMode
	}

	switch cfg.BalanceMode {
	case "includes-deposit", "excludes-deposit":
	default:
		return ErrInvalidBalanceMode
	}

	if cfg.RPCURL != "" {
		if err := validateURL(cfg.RPCURL); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidRPCURL, err)
		}
	}

	return nil
}

// validateURL checks that raw is an absolute http(s) URL with a host.
func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme %q is not http or https", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}
