// Package distributor releases a scheduled token emission to weighted
// receivers.
//
// Every mutating call runs against one snapshot of registry and state and
// either commits all of its changes and returns payout instructions, or
// returns an error and commits nothing. Payouts are instructions for the host
// to execute against the reward token; the controller never calls the token
// itself.
//
// Settlement protocol: a receiver with non-zero weight is settled at most
// once per block. Settling pays ReceiverReward under the weight in force
// since LastUpdateBlock and moves LastUpdateBlock to the current block.
// Weight changes always settle under the old weight first. Receivers with
// zero weight are not settled and keep their LastUpdateBlock.
package distributor

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/holiman/uint256"

	"github.com/bitfsorg/libfarm-go/accrual"
	"github.com/bitfsorg/libfarm-go/identity"
	"github.com/bitfsorg/libfarm-go/logger"
	"github.com/bitfsorg/libfarm-go/metrics"
	"github.com/bitfsorg/libfarm-go/registry"
	"github.com/bitfsorg/libfarm-go/schedule"
	"github.com/bitfsorg/libfarm-go/token"
)

const component = "distributor"

// seedLen is the length of the viewing key seed generated at Init.
const seedLen = 32

// Env is what the host supplies with every call.
type Env struct {
	Block  uint64
	Caller identity.Address
}

// Response is the result of a committed operation.
type Response struct {
	Payouts    []token.Instruction
	ViewingKey string // set by CreateViewingKey
}

// InitConfig configures a new distributor.
type InitConfig struct {
	Admin       identity.Address // defaults to the caller
	RewardToken identity.Address
	Schedule    []schedule.Unit
	Peer        identity.Address // optional; may be bound later, once
}

// Controller orchestrates weight changes, claims and admin operations.
type Controller struct {
	mu   sync.Mutex
	reg  *registry.Registry
	opts Options
	log  *slog.Logger
}

// New creates a controller over reg.
func New(reg *registry.Registry, opts Options) *Controller {
	return &Controller{
		reg:  reg,
		opts: opts,
		log:  logger.OrDiscard(opts.Logger).With("component", component),
	}
}

// Options returns the options the controller was created with. The variant
// in force is the one recorded at Init; see Config.
func (c *Controller) Options() Options { return c.opts }

// Init creates the distributor state. It succeeds only once per registry.
func (c *Controller) Init(env Env, cfg InitConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.init(env, cfg)
	metrics.ObserveOperation(component, "init", err)
	if err != nil {
		return err
	}
	c.log.Info("distributor initialized", "block", env.Block, "admin", cfg.Admin, "reward_token", cfg.RewardToken)
	return nil
}

func (c *Controller) init(env Env, cfg InitConfig) error {
	if _, err := c.reg.Meta(stateKey); err == nil {
		return ErrAlreadyInitialized
	} else if !errors.Is(err, registry.ErrMetaNotFound) {
		return fmt.Errorf("distributor: init: %w", err)
	}

	if cfg.Admin.IsZero() {
		cfg.Admin = env.Caller
	}
	if cfg.Admin.IsZero() {
		return fmt.Errorf("%w: admin is required", ErrInvalidParam)
	}
	if cfg.RewardToken.IsZero() {
		return fmt.Errorf("%w: reward token is required", ErrInvalidParam)
	}
	sched, err := schedule.New(cfg.Schedule)
	if err != nil {
		return err
	}
	seed := make([]byte, seedLen)
	if _, err := rand.Read(seed); err != nil {
		return fmt.Errorf("distributor: init seed: %w", err)
	}

	st := &State{
		Admin:       cfg.Admin,
		RewardToken: cfg.RewardToken,
		Schedule:    sched,
		Variant:     c.opts.variant(),
		Peer:        cfg.Peer,
		Seed:        seed,
		ViewingKeys: make(map[identity.Address][]byte),
	}
	tx, err := c.reg.Begin(env.Block)
	if err != nil {
		return err
	}
	data, err := encodeState(st)
	if err != nil {
		tx.Discard()
		return err
	}
	if err := tx.PutMeta(stateKey, data); err != nil {
		tx.Discard()
		return err
	}
	return tx.Commit()
}

// loadState reads the committed state.
func (c *Controller) loadState() (*State, error) {
	data, err := c.reg.Meta(stateKey)
	if errors.Is(err, registry.ErrMetaNotFound) {
		return nil, ErrNotInitialized
	}
	if err != nil {
		return nil, fmt.Errorf("distributor: load state: %w", err)
	}
	return decodeState(data)
}

// operation is the working set of one mutating call.
type operation struct {
	c       *Controller
	env     Env
	tx      *registry.Tx
	state   *State
	dirty   bool
	resp    Response
	trigger string
}

// run executes fn atomically. Unless allowStopped is set, a stopped
// distributor rejects the call before fn runs.
func (c *Controller) run(env Env, name string, allowStopped bool, fn func(op *operation) error) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	resp, err := c.execute(env, name, allowStopped, fn)
	metrics.ObserveOperation(component, name, err)
	switch {
	case errors.Is(err, ErrUnauthorized):
		c.log.Warn("operation rejected", "op", name, "block", env.Block, "caller", env.Caller, "error", err)
	case err != nil:
		c.log.Debug("operation failed", "op", name, "block", env.Block, "caller", env.Caller, "error", err)
	default:
		c.log.Debug("operation committed", "op", name, "block", env.Block, "caller", env.Caller, "payouts", len(resp.Payouts))
	}
	return resp, err
}

func (c *Controller) execute(env Env, name string, allowStopped bool, fn func(op *operation) error) (*Response, error) {
	st, err := c.loadState()
	if err != nil {
		return nil, err
	}
	if st.Stopped && !allowStopped {
		return nil, ErrContractStopped
	}

	tx, err := c.reg.Begin(env.Block)
	if err != nil {
		return nil, err
	}
	op := &operation{c: c, env: env, tx: tx, state: st.clone(), trigger: name}
	if err := fn(op); err != nil {
		tx.Discard()
		return nil, err
	}
	if op.dirty {
		data, err := encodeState(op.state)
		if err != nil {
			tx.Discard()
			return nil, err
		}
		if err := tx.PutMeta(stateKey, data); err != nil {
			tx.Discard()
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	for _, p := range op.resp.Payouts {
		if p.Kind == token.KindMint || p.Kind == token.KindTransfer || p.Kind == token.KindSend {
			metrics.AddAmount(metrics.RewardsPaidTotal, p.Amount)
		}
	}
	return &op.resp, nil
}

// requireAdmin fails with ErrUnauthorized unless the caller is the admin.
func (op *operation) requireAdmin() error {
	if op.env.Caller != op.state.Admin {
		return fmt.Errorf("%w: not an admin: %s", ErrUnauthorized, op.env.Caller)
	}
	return nil
}

// settle pays id its accrued reward under its current weight and marks it
// settled at the current block. Zero-weight receivers and receivers already
// settled at this block are left untouched.
func (op *operation) settle(id identity.Address, hook []byte) error {
	s, err := op.tx.Get(id)
	if err != nil {
		return err
	}
	if s.Weight == 0 || s.Settled(op.env.Block) {
		return nil
	}
	reward, err := accrual.ReceiverReward(op.env.Block, op.tx.TotalWeight(), op.state.Schedule, s)
	if err != nil {
		return err
	}
	if err := op.tx.MarkSettled(id); err != nil {
		return err
	}
	metrics.SettlementsTotal.WithLabelValues(op.trigger).Inc()
	if !reward.IsZero() {
		op.resp.Payouts = append(op.resp.Payouts, op.payout(id, reward, hook)...)
	}
	return nil
}

// payout builds the instructions delivering amt to id.
func (op *operation) payout(id identity.Address, amt *uint256.Int, hook []byte) []token.Instruction {
	rewardToken := op.state.RewardToken
	var out []token.Instruction
	v := op.state.Variant
	switch v.PayoutMode {
	case PayoutTransfer:
		if len(hook) > 0 && !v.NotifyReceivers {
			out = append(out, token.Send(rewardToken, id, amt, hook))
		} else {
			out = append(out, token.Transfer(rewardToken, id, amt))
		}
	default:
		var mintHook []byte
		if !v.NotifyReceivers {
			mintHook = hook
		}
		out = append(out, token.Mint(rewardToken, id, amt, mintHook))
	}
	if v.NotifyReceivers {
		out = append(out, token.NotifyAllocation(id, amt.Clone(), hook))
	}
	return out
}
