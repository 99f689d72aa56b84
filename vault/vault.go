// Package vault implements share accounting for an auto-compounding vault.
//
// Depositors receive shares proportional to their contribution to the pool,
// where pool value is the vault's idle token balance plus the balance it has
// deployed in a farm plus the farm's unclaimed yield for the vault. The vault
// keeps only the share supply; every balance is read from a token.Querier at
// the start of a call. Like the distributor, the vault returns instructions
// for the host to execute and never moves tokens itself.
//
// All share math floors. Dust stays in the pool.
package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/holiman/uint256"
	"golang.org/x/sync/errgroup"

	"github.com/bitfsorg/libfarm-go/amount"
	"github.com/bitfsorg/libfarm-go/identity"
	"github.com/bitfsorg/libfarm-go/logger"
	"github.com/bitfsorg/libfarm-go/metrics"
	"github.com/bitfsorg/libfarm-go/registry"
	"github.com/bitfsorg/libfarm-go/token"
)

const component = "vault"

// DefaultFeeBps is the performance fee taken from harvested yield.
const DefaultFeeBps uint16 = 500

// FarmDepositHook is attached to the send that moves idle tokens into the
// farm, telling the farm to treat it as a deposit.
var FarmDepositHook = []byte(`{"deposit":{}}`)

// BalanceMode says whether the idle balance query already includes an
// incoming deposit.
type BalanceMode uint8

const (
	// BalanceIncludesDeposit means the host credits the deposit before
	// notifying the vault; the amount is subtracted from the idle balance.
	BalanceIncludesDeposit BalanceMode = iota
	// BalanceExcludesDeposit means the idle balance is read before the
	// deposit lands and is used as-is.
	BalanceExcludesDeposit
)

// String returns the mode name used in configuration.
func (m BalanceMode) String() string {
	switch m {
	case BalanceIncludesDeposit:
		return "includes-deposit"
	case BalanceExcludesDeposit:
		return "excludes-deposit"
	default:
		return fmt.Sprintf("BalanceMode(%d)", m)
	}
}

// Options configures a Vault.
type Options struct {
	BalanceMode BalanceMode
	Logger      *slog.Logger
}

// Env is what the host supplies with every call.
type Env struct {
	Block  uint64
	Caller identity.Address
}

// Response is the result of a committed operation.
type Response struct {
	Instructions []token.Instruction
	Shares       *uint256.Int // minted or burned
	Amount       *uint256.Int // deposited or paid out
	Fee          *uint256.Int
	Clamped      bool // withdrawal cut to the deployed balance
}

// InitConfig configures a new vault.
type InitConfig struct {
	Admin       identity.Address // defaults to the caller
	Self        identity.Address
	Token       identity.Address
	SharesToken identity.Address
	Farm        identity.Address
	FeeBps      uint16 // zero selects DefaultFeeBps
}

// Vault computes share mints and burns against a live pool valuation.
type Vault struct {
	mu   sync.Mutex
	reg  *registry.Registry
	q    token.Querier
	opts Options
	log  *slog.Logger
}

// New creates a vault persisting its state in reg and reading balances
// through q.
func New(reg *registry.Registry, q token.Querier, opts Options) *Vault {
	return &Vault{
		reg:  reg,
		q:    q,
		opts: opts,
		log:  logger.OrDiscard(opts.Logger).With("component", component),
	}
}

// Init creates the vault state. It succeeds only once per registry.
func (v *Vault) Init(env Env, cfg InitConfig) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	err := v.init(env, cfg)
	metrics.ObserveOperation(component, "init", err)
	if err != nil {
		return err
	}
	v.log.Info("vault initialized", "block", env.Block, "self", cfg.Self, "farm", cfg.Farm)
	return nil
}

func (v *Vault) init(env Env, cfg InitConfig) error {
	if _, err := v.reg.Meta(stateKey); err == nil {
		return ErrAlreadyInitialized
	} else if !errors.Is(err, registry.ErrMetaNotFound) {
		return fmt.Errorf("vault: init: %w", err)
	}
	if cfg.Admin.IsZero() {
		cfg.Admin = env.Caller
	}
	if cfg.FeeBps == 0 {
		cfg.FeeBps = DefaultFeeBps
	}
	switch {
	case cfg.Admin.IsZero():
		return fmt.Errorf("%w: admin is required", ErrInvalidParam)
	case cfg.Self.IsZero(), cfg.Token.IsZero(), cfg.SharesToken.IsZero(), cfg.Farm.IsZero():
		return fmt.Errorf("%w: self, token, shares token and farm are required", ErrInvalidParam)
	case cfg.FeeBps > amount.BpsDenominator:
		return fmt.Errorf("%w: fee %d bps", ErrInvalidParam, cfg.FeeBps)
	}

	st := &State{
		TotalShares: amount.Zero(),
		Admin:       cfg.Admin,
		FeeBps:      cfg.FeeBps,
		Self:        cfg.Self,
		Token:       cfg.Token,
		SharesToken: cfg.SharesToken,
		Farm:        cfg.Farm,
	}
	return v.save(env.Block, st)
}

func (v *Vault) save(block uint64, st *State) error {
	data, err := encodeState(st)
	if err != nil {
		return err
	}
	tx, err := v.reg.Begin(block)
	if err != nil {
		return err
	}
	if err := tx.PutMeta(stateKey, data); err != nil {
		tx.Discard()
		return err
	}
	return tx.Commit()
}

func (v *Vault) loadState() (*State, error) {
	data, err := v.reg.Meta(stateKey)
	if errors.Is(err, registry.ErrMetaNotFound) {
		return nil, ErrNotInitialized
	}
	if err != nil {
		return nil, fmt.Errorf("vault: load state: %w", err)
	}
	return decodeState(data)
}

// run executes fn against a copy of the state and persists the copy only
// if fn succeeds.
func (v *Vault) run(ctx context.Context, env Env, name string, allowStopped bool, fn func(ctx context.Context, st *State, resp *Response) error) (*Response, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	resp, err := v.execute(ctx, env, allowStopped, fn)
	metrics.ObserveOperation(component, name, err)
	switch {
	case errors.Is(err, ErrUnauthorized):
		v.log.Warn("operation rejected", "op", name, "block", env.Block, "caller", env.Caller, "error", err)
	case err != nil:
		v.log.Debug("operation failed", "op", name, "block", env.Block, "caller", env.Caller, "error", err)
	default:
		v.log.Debug("operation committed", "op", name, "block", env.Block, "caller", env.Caller, "instructions", len(resp.Instructions))
	}
	return resp, err
}

func (v *Vault) execute(ctx context.Context, env Env, allowStopped bool, fn func(ctx context.Context, st *State, resp *Response) error) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st, err := v.loadState()
	if err != nil {
		return nil, err
	}
	if st.Stopped && !allowStopped {
		return nil, ErrContractStopped
	}
	next := st.clone()
	resp := &Response{}
	if err := fn(ctx, next, resp); err != nil {
		return nil, err
	}
	if err := v.save(env.Block, next); err != nil {
		return nil, err
	}
	return resp, nil
}

func requireAdmin(env Env, st *State) error {
	if env.Caller != st.Admin {
		return fmt.Errorf("%w: not an admin: %s", ErrUnauthorized, env.Caller)
	}
	return nil
}

// Pool is a point-in-time valuation of the vault.
type Pool struct {
	Idle      *uint256.Int
	Deployed  *uint256.Int
	Unclaimed *uint256.Int
}

// Value returns Idle + Deployed + Unclaimed.
func (p *Pool) Value() (*uint256.Int, error) {
	return amount.Sum(p.Idle, p.Deployed, p.Unclaimed)
}

// pool values the vault. The three collaborator queries are independent and
// run concurrently; the first failure cancels the rest.
func (v *Vault) pool(ctx context.Context, st *State, block uint64) (*Pool, error) {
	var idle, deployed, unclaimed *uint256.Int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		if idle, err = v.q.Balance(gctx, st.Token, st.Self); err != nil {
			return fmt.Errorf("vault: idle balance: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		if deployed, err = v.q.Balance(gctx, st.Farm, st.Self); err != nil {
			return fmt.Errorf("vault: deployed balance: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		if unclaimed, err = v.q.UnclaimedYield(gctx, st.Farm, st.Self, block); err != nil {
			return fmt.Errorf("vault: unclaimed yield: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &Pool{
		Idle:      amount.OrZero(idle),
		Deployed:  amount.OrZero(deployed),
		Unclaimed: amount.OrZero(unclaimed),
	}, nil
}

// fee returns the admin's cut of the unclaimed yield and the instruction
// paying it, or nil when the cut is zero.
func fee(st *State, unclaimed *uint256.Int) (*uint256.Int, []token.Instruction, error) {
	cut, err := amount.Bps(unclaimed, st.FeeBps)
	if err != nil {
		return nil, nil, err
	}
	if cut.IsZero() {
		return cut, nil, nil
	}
	return cut, []token.Instruction{token.Transfer(st.Token, st.Admin, cut)}, nil
}
