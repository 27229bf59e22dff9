// Package airdrop distributes rewards to the current holders of a
// protocol's units: it enumerates holders from the ledger, computes
// per-address payouts, partitions them into transaction-sized batches, and
// runs the batches strictly sequentially behind a resumable on-disk log.
package airdrop

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/apas-port/harvestflow-go/ledger"
	"github.com/apas-port/harvestflow-go/oracle"
)

// Holding is one address's aggregate unit count under a policy.
type Holding struct {
	Address string
	Units   uint64
}

// EnumerateHolders walks every asset issued under the policy and
// aggregates current holders by address. The authenticity token is not a
// reward-bearing unit and is excluded. The result is sorted by address so
// batch composition is deterministic across runs.
func EnumerateHolders(ctx context.Context, gw ledger.Gateway, policyID string) ([]*Holding, error) {
	if policyID == "" {
		return nil, fmt.Errorf("%w: policy identity", ErrNilParam)
	}
	authUnit := ledger.Unit(policyID, oracle.AuthTokenName)

	byAddress := make(map[string]uint64)
	for page := 1; ; page++ {
		assets, err := gw.PolicyAssets(ctx, policyID, page)
		if err != nil {
			return nil, fmt.Errorf("airdrop: list policy assets: %w", err)
		}
		if len(assets) == 0 {
			break
		}
		for _, asset := range assets {
			if asset.Unit == authUnit || asset.Quantity == 0 {
				continue
			}
			if err := accumulateHolders(ctx, gw, asset.Unit, byAddress); err != nil {
				return nil, err
			}
		}
	}

	holdings := make([]*Holding, 0, len(byAddress))
	for addr, units := range byAddress {
		holdings = append(holdings, &Holding{Address: addr, Units: units})
	}
	sort.Slice(holdings, func(i, j int) bool { return holdings[i].Address < holdings[j].Address })
	return holdings, nil
}

func accumulateHolders(ctx context.Context, gw ledger.Gateway, unit string, byAddress map[string]uint64) error {
	for page := 1; ; page++ {
		holders, err := gw.AssetHolders(ctx, unit, page)
		if err != nil {
			return fmt.Errorf("airdrop: holders of %s: %w", unit, err)
		}
		if len(holders) == 0 {
			return nil
		}
		for _, h := range holders {
			byAddress[h.Address] += h.Quantity
		}
	}
}

// Payout is one address's reward.
type Payout struct {
	Address  string
	Units    uint64
	Lovelace uint64
}

// ComputePayouts converts holdings into payouts at the given per-unit
// rate. Holdings with zero units are dropped; a rate and unit count whose
// product would wrap is rejected rather than silently truncated.
func ComputePayouts(holdings []*Holding, ratePerUnit uint64) ([]*Payout, error) {
	if ratePerUnit == 0 {
		return nil, ErrInvalidRate
	}
	payouts := make([]*Payout, 0, len(holdings))
	for _, h := range holdings {
		if h.Units == 0 {
			continue
		}
		if h.Units > math.MaxUint64/ratePerUnit {
			return nil, fmt.Errorf("%w: %d units at rate %d for %s",
				ErrAmountOverflow, h.Units, ratePerUnit, h.Address)
		}
		payouts = append(payouts, &Payout{
			Address:  h.Address,
			Units:    h.Units,
			Lovelace: ratePerUnit * h.Units,
		})
	}
	return payouts, nil
}

// PartitionBatches splits payouts into batches of at most batchSize, in
// order. 120 payouts at a ceiling of 50 yield batches of 50, 50 and 20.
func PartitionBatches(payouts []*Payout, batchSize int) [][]*Payout {
	if batchSize < 1 {
		batchSize = 1
	}
	var batches [][]*Payout
	for start := 0; start < len(payouts); start += batchSize {
		end := start + batchSize
		if end > len(payouts) {
			end = len(payouts)
		}
		batches = append(batches, payouts[start:end])
	}
	return batches
}
