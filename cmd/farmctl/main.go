// Command farmctl operates a reward distributor and its vault stored in a
// local data directory. Each invocation runs one operation at the block and
// caller given on the command line and prints the resulting payout
// instructions as JSON for the host to execute.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/bitfsorg/libfarm-go/amount"
	"github.com/bitfsorg/libfarm-go/config"
	"github.com/bitfsorg/libfarm-go/distributor"
	"github.com/bitfsorg/libfarm-go/identity"
	"github.com/bitfsorg/libfarm-go/logger"
	"github.com/bitfsorg/libfarm-go/registry"
	"github.com/bitfsorg/libfarm-go/token"
	"github.com/bitfsorg/libfarm-go/vault"
)

const usage = `usage: farmctl [flags] <command> [args]

Distributor commands:
  init [end:rate ...]            create the distributor (admin, reward token from config or flags)
  config                         print the distributor configuration
  schedule                       print the emission schedule
  set-schedule end:rate ...      replace the schedule (admin)
  set-weights addr=weight ...    settle and reweight receivers (admin)
  claim <receiver>               settle and pay a receiver
  update-allocation <addr> ...   push settlement to receivers
  pending <receiver>             reward accrued as of --block
  weight <receiver>              receiver weight and last update block
  stop | resume                  circuit breaker (admin)
  change-admin <addr>            hand over admin rights (admin)
  bind-peer <addr>               bind the single receivable peer once (admin)
  create-viewing-key [entropy]   derive a viewing key for --caller
  set-viewing-key <key>          store a viewing key for --caller

Vault commands:
  vault-init                     create the vault (--self, --token, --shares-token, --farm)
  pool                           print the vault pool valuation as of --block
  deposit <from> <amount>        credit a deposit of <from>; --caller must be the vault token
  withdraw <shares>              redeem --caller's shares

Variant flags (--claim-policy, --payout-mode, --notify, --single-receiver)
only take effect at init; afterwards the stored variant applies.
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app carries everything a command needs.
type app struct {
	cfg    config.Config
	log    *slog.Logger
	out    io.Writer
	block  uint64
	caller identity.Address
	ctrl   *distributor.Controller
	reg    *registry.Registry
}

func run(args []string, out io.Writer) error {
	flags := flag.NewFlagSet("farmctl", flag.ContinueOnError)
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage, "\nFlags:\n")
		flags.PrintDefaults()
	}

	dataDirFlag := flags.String("datadir", "", "data directory (or set FARM_DATADIR env var)")
	networkFlag := flags.String("network", "", "network: mainnet, testnet, teratestnet, regtest (or set FARM_NETWORK env var)")
	logLevelFlag := flags.String("log-level", "", "log level: debug, info, warn, error (or set FARM_LOG_LEVEL env var)")
	blockFlag := flags.Uint64("block", 0, "current block height")
	callerFlag := flags.String("caller", "", "address making the call (or set FARM_CALLER env var)")

	// Distributor options
	adminFlag := flags.String("admin", "", "admin address for init (or set FARM_ADMIN env var)")
	rewardTokenFlag := flags.String("reward-token", "", "reward token contract address (or set FARM_REWARD_TOKEN env var)")
	claimPolicyFlag := flags.String("claim-policy", "", "who may claim at init: receiver, anyone")
	payoutModeFlag := flags.String("payout-mode", "", "how rewards are paid at init: mint, transfer")
	notifyFlag := flags.Bool("notify", false, "at init: append an allocation notice to every payout")
	singleFlag := flags.Bool("single-receiver", false, "at init: only the bound peer may hold weight")
	hookFlag := flags.String("hook", "", "opaque hook passed through to payouts")

	// Token gateway
	rpcURLFlag := flags.String("rpc-url", "", "token gateway URL (or set FARM_RPC_URL env var)")
	rpcUserFlag := flags.String("rpc-user", "", "token gateway user (or set FARM_RPC_USER env var)")
	rpcPassFlag := flags.String("rpc-pass", "", "token gateway password (or set FARM_RPC_PASS env var)")
	rpcRateFlag := flags.Float64("rpc-rate", 0, "maximum gateway queries per second (0 = unlimited)")
	viewingKeyFlag := flags.String("viewing-key", "", "viewing key for balance queries (or set FARM_VIEWING_KEY env var)")
	tokenDomainFlag := flags.String("token-domain", "", "discover the gateway via _farmrpc._tcp SRV records of this domain")

	// Vault options
	selfFlag := flags.String("self", "", "vault address")
	tokenFlag := flags.String("token", "", "vault underlying token address")
	sharesTokenFlag := flags.String("shares-token", "", "vault share token address")
	farmFlag := flags.String("farm", "", "farm the vault deposits into")
	feeBpsFlag := flags.Uint16("fee-bps", vault.DefaultFeeBps, "vault performance fee in basis points")
	balanceModeFlag := flags.String("balance-mode", "", "whether the idle balance includes a deposit: includes-deposit, excludes-deposit")
	localFarmFlag := flags.Bool("local-farm", false, "answer the farm's unclaimed yield from this data directory's distributor")

	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() == 0 {
		flags.Usage()
		return errors.New("missing command")
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	dataDir := firstNonEmpty(*dataDirFlag, os.Getenv("FARM_DATADIR"), config.DefaultDataDir())
	cfg, err := config.LoadConfig(config.ConfigPath(dataDir))
	configMissing := errors.Is(err, config.ErrConfigNotFound)
	if err != nil && !configMissing {
		return err
	}
	cfg.DataDir = dataDir

	overlay(&cfg.Network, os.Getenv("FARM_NETWORK"), *networkFlag)
	overlay(&cfg.LogLevel, os.Getenv("FARM_LOG_LEVEL"), *logLevelFlag)
	overlay(&cfg.Admin, os.Getenv("FARM_ADMIN"), *adminFlag)
	overlay(&cfg.RewardToken, os.Getenv("FARM_REWARD_TOKEN"), *rewardTokenFlag)
	overlay(&cfg.ClaimPolicy, os.Getenv("FARM_CLAIM_POLICY"), *claimPolicyFlag)
	overlay(&cfg.PayoutMode, os.Getenv("FARM_PAYOUT_MODE"), *payoutModeFlag)
	overlay(&cfg.BalanceMode, os.Getenv("FARM_BALANCE_MODE"), *balanceModeFlag)
	overlay(&cfg.RPCURL, os.Getenv("FARM_RPC_URL"), *rpcURLFlag)
	overlay(&cfg.TokenDomain, os.Getenv("FARM_TOKEN_DOMAIN"), *tokenDomainFlag)
	if err := config.ValidateConfig(cfg); err != nil {
		return err
	}

	log, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	a := &app{cfg: cfg, log: log, out: out, block: *blockFlag}
	if c := firstNonEmpty(*callerFlag, os.Getenv("FARM_CALLER")); c != "" {
		if a.caller, err = identity.Parse(c, cfg.Network); err != nil {
			return fmt.Errorf("--caller: %w", err)
		}
	}

	store, err := registry.OpenBoltStore(filepath.Join(cfg.DataDir, "farm.db"))
	if err != nil {
		return err
	}
	defer store.Close()
	a.reg = registry.New(store)

	opts := distributor.Options{
		NotifyReceivers: *notifyFlag,
		SingleReceiver:  *singleFlag,
		Logger:          log,
	}
	if cfg.ClaimPolicy == "anyone" {
		opts.ClaimPolicy = distributor.ClaimByAnyone
	}
	if cfg.PayoutMode == "transfer" {
		opts.PayoutMode = distributor.PayoutTransfer
	}
	a.ctrl = distributor.New(a.reg, opts)

	cmd, rest := flags.Arg(0), flags.Args()[1:]
	hook := []byte(*hookFlag)
	if len(hook) == 0 {
		hook = nil
	}

	switch cmd {
	case "init":
		if err := a.init(rest); err != nil {
			return err
		}
		if configMissing {
			if err := config.SaveConfig(config.ConfigPath(cfg.DataDir), cfg); err != nil {
				return err
			}
			log.Info("wrote config", "path", config.ConfigPath(cfg.DataDir))
		}
		return nil
	case "config":
		return a.showConfig()
	case "schedule":
		return a.showSchedule()
	case "set-schedule":
		units, err := parseUnits(rest)
		if err != nil {
			return err
		}
		return a.respond(a.ctrl.SetSchedule(a.env(), units))
	case "set-weights":
		updates, err := parseWeights(rest, cfg.Network)
		if err != nil {
			return err
		}
		return a.respond(a.ctrl.SetWeights(a.env(), updates))
	case "claim":
		receiver, err := a.oneAddress(cmd, rest)
		if err != nil {
			return err
		}
		return a.respond(a.ctrl.Claim(a.env(), receiver, hook))
	case "update-allocation":
		receivers, err := parseAddresses(rest, cfg.Network)
		if err != nil {
			return err
		}
		return a.respond(a.ctrl.UpdateAllocation(a.env(), receivers, hook))
	case "pending":
		return a.showPending(rest)
	case "weight":
		return a.showWeight(rest)
	case "stop":
		return a.respond(a.ctrl.Stop(a.env()))
	case "resume":
		return a.respond(a.ctrl.Resume(a.env()))
	case "change-admin":
		admin, err := a.oneAddress(cmd, rest)
		if err != nil {
			return err
		}
		return a.respond(a.ctrl.ChangeAdmin(a.env(), admin))
	case "bind-peer":
		peer, err := a.oneAddress(cmd, rest)
		if err != nil {
			return err
		}
		return a.respond(a.ctrl.BindPeer(a.env(), peer))
	case "create-viewing-key":
		var entropy []byte
		if len(rest) > 0 {
			entropy = []byte(rest[0])
		}
		return a.respond(a.ctrl.CreateViewingKey(a.env(), entropy))
	case "set-viewing-key":
		if len(rest) != 1 {
			return errors.New("set-viewing-key takes exactly one key")
		}
		return a.respond(a.ctrl.SetViewingKey(a.env(), rest[0]))
	case "vault-init":
		return a.vaultInit(vaultInitArgs{
			self:        *selfFlag,
			token:       *tokenFlag,
			sharesToken: *sharesTokenFlag,
			farm:        *farmFlag,
			feeBps:      *feeBpsFlag,
		})
	case "pool", "deposit", "withdraw":
		q, err := a.querier(token.RPCConfig{
			URL:        cfg.RPCURL,
			User:       *rpcUserFlag,
			Password:   *rpcPassFlag,
			ViewingKey: *viewingKeyFlag,
			RateLimit:  *rpcRateFlag,
		}, *localFarmFlag)
		if err != nil {
			return err
		}
		switch cmd {
		case "deposit":
			return a.deposit(q, rest, hook)
		case "withdraw":
			return a.withdraw(q, rest)
		}
		return a.showPool(q)
	default:
		flags.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// overlay applies env then flag on top of *dst; later non-empty values win.
func overlay(dst *string, values ...string) {
	for _, v := range values {
		if v != "" {
			*dst = v
		}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func newLogger(cfg config.Config) (*slog.Logger, func(), error) {
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	if cfg.LogFile == "" {
		return logger.New(os.Stderr, level, os.Getenv("NO_COLOR") == ""), func() {}, nil
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return logger.New(f, level, false), func() { _ = f.Close() }, nil
}

func (a *app) env() distributor.Env {
	return distributor.Env{Block: a.block, Caller: a.caller}
}

func (a *app) oneAddress(cmd string, args []string) (identity.Address, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("%s takes exactly one address", cmd)
	}
	return identity.Parse(args[0], a.cfg.Network)
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type responseView struct {
	Payouts    []token.View `json:"payouts"`
	ViewingKey string       `json:"viewing_key,omitempty"`
}

func (a *app) respond(resp *distributor.Response, err error) error {
	if err != nil {
		return err
	}
	view := responseView{Payouts: make([]token.View, 0, len(resp.Payouts)), ViewingKey: resp.ViewingKey}
	for _, p := range resp.Payouts {
		view.Payouts = append(view.Payouts, p.View())
	}
	return a.printJSON(view)
}

func (a *app) init(args []string) error {
	units, err := parseUnits(args)
	if err != nil {
		return err
	}
	if err := a.ctrl.Init(a.env(), distributor.InitConfig{
		Admin:       identity.Address(a.cfg.Admin),
		RewardToken: identity.Address(a.cfg.RewardToken),
		Schedule:    units,
	}); err != nil {
		return err
	}
	return a.showConfig()
}

type unitView struct {
	EndBlock     uint64 `json:"end_block"`
	RatePerBlock string `json:"rate_per_block"`
}

func (a *app) scheduleView() ([]unitView, *distributor.ConfigView, error) {
	cfg, err := a.ctrl.Config()
	if err != nil {
		return nil, nil, err
	}
	units := make([]unitView, 0, len(cfg.Schedule))
	for _, u := range cfg.Schedule {
		units = append(units, unitView{EndBlock: u.EndBlock, RatePerBlock: u.RatePerBlock.Dec()})
	}
	return units, cfg, nil
}

func (a *app) showSchedule() error {
	units, _, err := a.scheduleView()
	if err != nil {
		return err
	}
	return a.printJSON(units)
}

func (a *app) showConfig() error {
	units, cfg, err := a.scheduleView()
	if err != nil {
		return err
	}
	claimPolicy, payoutMode := "receiver", "mint"
	if cfg.Variant.ClaimPolicy == distributor.ClaimByAnyone {
		claimPolicy = "anyone"
	}
	if cfg.Variant.PayoutMode == distributor.PayoutTransfer {
		payoutMode = "transfer"
	}
	return a.printJSON(struct {
		Admin          string     `json:"admin"`
		RewardToken    string     `json:"reward_token"`
		ClaimPolicy    string     `json:"claim_policy"`
		PayoutMode     string     `json:"payout_mode"`
		Notify         bool       `json:"notify"`
		SingleReceiver bool       `json:"single_receiver"`
		Stopped        bool       `json:"stopped"`
		Peer           string     `json:"peer,omitempty"`
		TotalWeight    uint64     `json:"total_weight"`
		Schedule       []unitView `json:"schedule"`
	}{
		cfg.Admin.String(), cfg.RewardToken.String(), claimPolicy, payoutMode,
		cfg.Variant.NotifyReceivers, cfg.Variant.SingleReceiver,
		cfg.Stopped, cfg.Peer.String(), cfg.TotalWeight, units,
	})
}

func (a *app) showPending(args []string) error {
	receiver, err := a.oneAddress("pending", args)
	if err != nil {
		return err
	}
	p, err := a.ctrl.Pending(receiver, a.block)
	if err != nil {
		return err
	}
	return a.printJSON(map[string]any{"receiver": receiver, "block": a.block, "pending": p.Dec()})
}

func (a *app) showWeight(args []string) error {
	receiver, err := a.oneAddress("weight", args)
	if err != nil {
		return err
	}
	s, err := a.ctrl.Weight(receiver)
	if err != nil {
		return err
	}
	return a.printJSON(map[string]any{"receiver": receiver, "weight": s.Weight, "last_update_block": s.LastUpdateBlock})
}

type vaultInitArgs struct {
	self, token, sharesToken, farm string
	feeBps                         uint16
}

func (a *app) vault(q token.Querier) *vault.Vault {
	opts := vault.Options{Logger: a.log}
	if a.cfg.BalanceMode == "excludes-deposit" {
		opts.BalanceMode = vault.BalanceExcludesDeposit
	}
	return vault.New(a.reg, q, opts)
}

func (a *app) vaultInit(args vaultInitArgs) error {
	addrs := make([]identity.Address, 4)
	for i, s := range []string{args.self, args.token, args.sharesToken, args.farm} {
		if s == "" {
			return errors.New("vault-init requires --self, --token, --shares-token and --farm")
		}
		addr, err := identity.Parse(s, a.cfg.Network)
		if err != nil {
			return err
		}
		addrs[i] = addr
	}
	cfg := vault.InitConfig{
		Admin:       identity.Address(a.cfg.Admin),
		Self:        addrs[0],
		Token:       addrs[1],
		SharesToken: addrs[2],
		Farm:        addrs[3],
		FeeBps:      args.feeBps,
	}
	// Init reads no balances.
	if err := a.vault(nil).Init(vault.Env{Block: a.block, Caller: a.caller}, cfg); err != nil {
		return err
	}
	return a.printJSON(map[string]any{"self": cfg.Self, "farm": cfg.Farm, "fee_bps": cfg.FeeBps})
}

// querier builds the token gateway client. With localFarm the vault's farm
// is assumed to be this data directory's distributor.
func (a *app) querier(flags token.RPCConfig, localFarm bool) (token.Querier, error) {
	if flags.URL == "" && a.cfg.TokenDomain != "" {
		u, err := token.ResolveURL(a.cfg.TokenDomain, token.NewDNSSECResolver(""))
		if err != nil {
			return nil, err
		}
		flags.URL = u
		a.log.Debug("discovered token gateway", "domain", a.cfg.TokenDomain, "url", u)
	}
	env := map[string]string{
		"FARM_RPC_URL":     os.Getenv("FARM_RPC_URL"),
		"FARM_RPC_USER":    os.Getenv("FARM_RPC_USER"),
		"FARM_RPC_PASS":    os.Getenv("FARM_RPC_PASS"),
		"FARM_VIEWING_KEY": os.Getenv("FARM_VIEWING_KEY"),
	}
	rc, err := token.ResolveConfig(&flags, env, a.cfg.Network)
	if err != nil {
		return nil, err
	}
	var q token.Querier = token.NewRPCClient(*rc)
	if localFarm {
		st, err := a.vault(q).Config()
		if err != nil {
			return nil, err
		}
		q = &distributor.YieldQuerier{Farm: st.Farm, Source: a.ctrl, Balances: q}
	}
	return q, nil
}

func (a *app) showPool(q token.Querier) error {
	p, err := a.vault(q).PoolValue(context.Background(), a.block)
	if err != nil {
		return err
	}
	value, err := p.Value()
	if err != nil {
		return err
	}
	return a.printJSON(map[string]string{
		"idle":      p.Idle.Dec(),
		"deployed":  p.Deployed.Dec(),
		"unclaimed": p.Unclaimed.Dec(),
		"value":     value.Dec(),
	})
}

type vaultResponseView struct {
	Instructions []token.View `json:"instructions"`
	Shares       string       `json:"shares"`
	Amount       string       `json:"amount"`
	Fee          string       `json:"fee"`
	Clamped      bool         `json:"clamped,omitempty"`
}

func (a *app) respondVault(resp *vault.Response, err error) error {
	if err != nil {
		return err
	}
	view := vaultResponseView{
		Instructions: make([]token.View, 0, len(resp.Instructions)),
		Shares:       amount.OrZero(resp.Shares).Dec(),
		Amount:       amount.OrZero(resp.Amount).Dec(),
		Fee:          amount.OrZero(resp.Fee).Dec(),
		Clamped:      resp.Clamped,
	}
	for _, in := range resp.Instructions {
		view.Instructions = append(view.Instructions, in.View())
	}
	return a.printJSON(view)
}

func (a *app) deposit(q token.Querier, args []string, hook []byte) error {
	if len(args) != 2 {
		return errors.New("deposit takes <from> <amount>")
	}
	from, err := identity.Parse(args[0], a.cfg.Network)
	if err != nil {
		return err
	}
	amt, err := amount.Parse(args[1])
	if err != nil {
		return fmt.Errorf("deposit amount: %w", err)
	}
	env := vault.Env{Block: a.block, Caller: a.caller}
	return a.respondVault(a.vault(q).Deposit(context.Background(), env, from, amt, hook))
}

func (a *app) withdraw(q token.Querier, args []string) error {
	if len(args) != 1 {
		return errors.New("withdraw takes <shares>")
	}
	shares, err := amount.Parse(args[0])
	if err != nil {
		return fmt.Errorf("withdraw shares: %w", err)
	}
	env := vault.Env{Block: a.block, Caller: a.caller}
	return a.respondVault(a.vault(q).Withdraw(context.Background(), env, shares))
}
