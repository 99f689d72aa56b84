package vault

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/bitfsorg/libfarm-go/amount"
	"github.com/bitfsorg/libfarm-go/identity"
	"github.com/bitfsorg/libfarm-go/metrics"
	"github.com/bitfsorg/libfarm-go/token"
)

// Deposit handles the token contract's notice that from sent amt to the
// vault. The caller must be the vault's token. It mints shares to from,
// moves the whole idle balance into the farm and pays the admin fee on the
// farm's unclaimed yield. The hook rides on the share mint.
func (v *Vault) Deposit(ctx context.Context, env Env, from identity.Address, amt *uint256.Int, hook []byte) (*Response, error) {
	resp, err := v.run(ctx, env, "deposit", false, func(ctx context.Context, st *State, resp *Response) error {
		if env.Caller != st.Token {
			return fmt.Errorf("%w: supported %s, given %s", ErrUnsupportedToken, st.Token, env.Caller)
		}
		if from.IsZero() {
			return fmt.Errorf("%w: empty depositor", ErrInvalidParam)
		}
		if amt == nil || amt.IsZero() || !amount.Fits(amt) {
			return fmt.Errorf("%w: deposit amount %s", ErrInvalidParam, amount.OrZero(amt).Dec())
		}

		p, err := v.pool(ctx, st, env.Block)
		if err != nil {
			return err
		}
		var idleAfter *uint256.Int
		switch v.opts.BalanceMode {
		case BalanceIncludesDeposit:
			idleAfter = p.Idle
			if p.Idle, err = amount.Sub(p.Idle, amt); err != nil {
				return fmt.Errorf("vault: idle balance %s does not include deposit %s: %w", idleAfter.Dec(), amt.Dec(), err)
			}
		default:
			if idleAfter, err = amount.Add(p.Idle, amt); err != nil {
				return err
			}
		}

		shares, err := sharesFor(amt, st.TotalShares, p)
		if err != nil {
			return err
		}
		if shares.IsZero() {
			return fmt.Errorf("%w: deposit %s mints no shares", ErrInvalidParam, amt.Dec())
		}
		total, err := amount.Add(st.TotalShares, shares)
		if err != nil {
			return err
		}
		cut, feeIns, err := fee(st, p.Unclaimed)
		if err != nil {
			return err
		}

		resp.Instructions = append(resp.Instructions, token.Mint(st.SharesToken, from, shares, hook))
		if !idleAfter.IsZero() {
			resp.Instructions = append(resp.Instructions, token.Send(st.Token, st.Farm, idleAfter, FarmDepositHook))
		}
		resp.Instructions = append(resp.Instructions, feeIns...)
		resp.Shares = shares
		resp.Amount = amt.Clone()
		resp.Fee = cut
		st.TotalShares = total
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.AddAmount(metrics.SharesMintedTotal, resp.Shares)
	metrics.AddAmount(metrics.FeesTotal, resp.Fee)
	return resp, nil
}

// Withdraw burns shares held by the caller and pays out their part of the
// pool. The payout is clamped to the balance deployed in the farm; the
// shortfall is not paid later.
func (v *Vault) Withdraw(ctx context.Context, env Env, shares *uint256.Int) (*Response, error) {
	resp, err := v.run(ctx, env, "withdraw", false, func(ctx context.Context, st *State, resp *Response) error {
		if shares == nil || shares.IsZero() || !amount.Fits(shares) {
			return fmt.Errorf("%w: shares %s", ErrInvalidParam, amount.OrZero(shares).Dec())
		}
		held, err := v.q.Balance(ctx, st.SharesToken, env.Caller)
		if err != nil {
			return fmt.Errorf("vault: share balance: %w", err)
		}
		if amount.OrZero(held).Lt(shares) {
			return fmt.Errorf("%w: %s holds %s shares, burning %s",
				token.ErrInsufficientBalance, env.Caller, amount.OrZero(held).Dec(), shares.Dec())
		}
		if st.TotalShares.Lt(shares) {
			return fmt.Errorf("%w: burning %s of %s outstanding shares",
				token.ErrInsufficientBalance, shares.Dec(), st.TotalShares.Dec())
		}

		p, err := v.pool(ctx, st, env.Block)
		if err != nil {
			return err
		}
		owed, err := owedFor(shares, st.TotalShares, p)
		if err != nil {
			return err
		}
		paid := amount.Min(owed, p.Deployed)
		cut, feeIns, err := fee(st, p.Unclaimed)
		if err != nil {
			return err
		}
		remaining, err := amount.Sub(st.TotalShares, shares)
		if err != nil {
			return err
		}

		resp.Instructions = append(resp.Instructions, token.BurnFrom(st.SharesToken, env.Caller, shares))
		if !paid.IsZero() {
			resp.Instructions = append(resp.Instructions,
				token.Redeem(st.Farm, paid),
				token.Transfer(st.Token, env.Caller, paid),
			)
		}
		resp.Instructions = append(resp.Instructions, feeIns...)
		resp.Shares = shares.Clone()
		resp.Amount = paid
		resp.Fee = cut
		resp.Clamped = paid.Lt(owed)
		st.TotalShares = remaining
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.AddAmount(metrics.SharesBurnedTotal, resp.Shares)
	metrics.AddAmount(metrics.FeesTotal, resp.Fee)
	if resp.Clamped {
		metrics.WithdrawClampsTotal.Inc()
		v.log.Info("withdrawal clamped", "block", env.Block, "caller", env.Caller, "paid", resp.Amount.Dec())
	}
	return resp, nil
}

// sharesFor returns amt * total / pool value, or amt for the first deposit.
func sharesFor(amt, total *uint256.Int, p *Pool) (*uint256.Int, error) {
	if total.IsZero() {
		return amt.Clone(), nil
	}
	value, err := p.Value()
	if err != nil {
		return nil, err
	}
	shares, err := amount.MulDiv(amt, total, value)
	if err != nil {
		return nil, fmt.Errorf("vault: shares for %s: %w", amt.Dec(), err)
	}
	return shares, nil
}

// owedFor returns pool value * shares / total, before clamping.
func owedFor(shares, total *uint256.Int, p *Pool) (*uint256.Int, error) {
	value, err := p.Value()
	if err != nil {
		return nil, err
	}
	owed, err := amount.MulDiv(value, shares, total)
	if err != nil {
		return nil, fmt.Errorf("vault: value of %s shares: %w", shares.Dec(), err)
	}
	return owed, nil
}

// Stop sets the circuit breaker. Admin only.
func (v *Vault) Stop(ctx context.Context, env Env) (*Response, error) {
	return v.run(ctx, env, "stop", false, func(_ context.Context, st *State, _ *Response) error {
		if err := requireAdmin(env, st); err != nil {
			return err
		}
		st.Stopped = true
		return nil
	})
}

// Resume clears the circuit breaker. Admin only; accepted while stopped.
func (v *Vault) Resume(ctx context.Context, env Env) (*Response, error) {
	return v.run(ctx, env, "resume", true, func(_ context.Context, st *State, _ *Response) error {
		if err := requireAdmin(env, st); err != nil {
			return err
		}
		st.Stopped = false
		return nil
	})
}

// ChangeAdmin hands admin rights, and the fee, to newAdmin. Admin only.
func (v *Vault) ChangeAdmin(ctx context.Context, env Env, newAdmin identity.Address) (*Response, error) {
	return v.run(ctx, env, "change_admin", false, func(_ context.Context, st *State, _ *Response) error {
		if err := requireAdmin(env, st); err != nil {
			return err
		}
		if newAdmin.IsZero() {
			return fmt.Errorf("%w: empty admin", ErrInvalidParam)
		}
		st.Admin = newAdmin
		return nil
	})
}

// SetFee changes the performance fee. Admin only.
func (v *Vault) SetFee(ctx context.Context, env Env, bps uint16) (*Response, error) {
	return v.run(ctx, env, "set_fee", false, func(_ context.Context, st *State, _ *Response) error {
		if err := requireAdmin(env, st); err != nil {
			return err
		}
		if bps > amount.BpsDenominator {
			return fmt.Errorf("%w: fee %d bps", ErrInvalidParam, bps)
		}
		st.FeeBps = bps
		return nil
	})
}
