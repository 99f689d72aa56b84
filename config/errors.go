// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import "errors"

var (
	// ErrInvalidNetwork indicates the network name is not recognized.
	ErrInvalidNetwork = errors.New("config: invalid network (must be \"mainnet\", \"testnet\", \"teratestnet\", or \"regtest\")")

	// ErrInvalidLogLevel indicates the log level is not recognized.
	ErrInvalidLogLevel = errors.New("config: invalid log level (must be \"debug\", \"info\", \"warn\", or \"error\")")

	// ErrEmptyDataDir indicates the data directory path is empty.
	ErrEmptyDataDir = errors.New("config: data directory must not be empty")

	// ErrInvalidAddress indicates an admin or token address that does not
	// parse on the configured network.
	ErrInvalidAddress = errors.New("config: invalid address")

	// ErrInvalidClaimPolicy indicates the claim policy is not recognized.
	ErrInvalidClaimPolicy = errors.New("config: invalid claim policy (must be \"receiver\" or \"anyone\")")

	// ErrInvalidPayoutMode indicates the payout mode is not recognized.
	ErrInvalidPayoutMode = errors.New("config: invalid payout mode (must be \"mint\" or \"transfer\")")

	// ErrInvalidBalanceMode indicates the vault balance mode is not recognized.
	ErrInvalidBalanceMode = errors.New("config: invalid balance mode (must be \"includes-deposit\" or \"excludes-deposit\")")

	// ErrInvalidRPCURL indicates the token gateway URL is malformed.
	ErrInvalidRPCURL = errors.New("config: invalid rpc url")

	// ErrConfigNotFound indicates the configuration file does not exist.
	ErrConfigNotFound = errors.New("config: configuration file not found")

	// ErrInvalidConfigLine indicates a line in the config file is malformed.
	ErrInvalidConfigLine = errors.New("config: invalid configuration line")
)
