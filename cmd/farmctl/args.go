package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bitfsorg/libfarm-go/amount"
	"github.com/bitfsorg/libfarm-go/distributor"
	"github.com/bitfsorg/libfarm-go/identity"
	"github.com/bitfsorg/libfarm-go/schedule"
)

// parseUnits parses "end:rate" pairs. Rates are decimal token units.
func parseUnits(args []string) ([]schedule.Unit, error) {
	units := make([]schedule.Unit, 0, len(args))
	for _, arg := range args {
		endStr, rateStr, ok := strings.Cut(arg, ":")
		if !ok {
			return nil, fmt.Errorf("schedule unit %q: want end:rate", arg)
		}
		end, err := strconv.ParseUint(endStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("schedule unit %q: end block: %w", arg, err)
		}
		rate, err := amount.Parse(rateStr)
		if err != nil {
			return nil, fmt.Errorf("schedule unit %q: rate: %w", arg, err)
		}
		units = append(units, schedule.Unit{EndBlock: end, RatePerBlock: rate})
	}
	return units, nil
}

// parseWeights parses "address=weight" pairs.
func parseWeights(args []string, network string) ([]distributor.WeightUpdate, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("set-weights needs at least one address=weight")
	}
	updates := make([]distributor.WeightUpdate, 0, len(args))
	for _, arg := range args {
		addrStr, weightStr, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("weight %q: want address=weight", arg)
		}
		addr, err := identity.Parse(addrStr, network)
		if err != nil {
			return nil, fmt.Errorf("weight %q: %w", arg, err)
		}
		w, err := strconv.ParseUint(weightStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("weight %q: %w", arg, err)
		}
		updates = append(updates, distributor.WeightUpdate{Receiver: addr, Weight: w})
	}
	return updates, nil
}

func parseAddresses(args []string, network string) ([]identity.Address, error) {
	out := make([]identity.Address, 0, len(args))
	for _, arg := range args {
		addr, err := identity.Parse(arg, network)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}
