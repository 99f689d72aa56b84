package distributor

import "log/slog"

// ClaimPolicy decides who may trigger a claim for a receiver.
type ClaimPolicy uint8

const (
	// ClaimByReceiver allows only the receiver itself to claim.
	ClaimByReceiver ClaimPolicy = iota
	// ClaimByAnyone allows any caller to claim on a receiver's behalf.
	// The payout always goes to the receiver.
	ClaimByAnyone
)

// PayoutMode decides how rewards reach receivers.
type PayoutMode uint8

const (
	// PayoutMint mints new reward tokens to the receiver.
	PayoutMint PayoutMode = iota
	// PayoutTransfer transfers reward tokens the distributor already holds.
	PayoutTransfer
)

// Variant is the contract flavor. It is recorded when the distributor is
// initialized and never changes afterwards.
type Variant struct {
	ClaimPolicy     ClaimPolicy
	PayoutMode      PayoutMode
	NotifyReceivers bool
	SingleReceiver  bool
}

// Options selects the variant for Init and carries the logger. Once a
// distributor exists, the variant stored with it wins over Options.
type Options struct {
	ClaimPolicy ClaimPolicy
	PayoutMode  PayoutMode

	// NotifyReceivers appends an allocation notice carrying the hook after
	// every payout.
	NotifyReceivers bool

	// SingleReceiver restricts weights to the bound peer.
	SingleReceiver bool

	// Logger receives one line per committed or rejected operation.
	// Nil discards.
	Logger *slog.Logger
}

func (o Options) variant() Variant {
	return Variant{
		ClaimPolicy:     o.ClaimPolicy,
		PayoutMode:      o.PayoutMode,
		NotifyReceivers: o.NotifyReceivers,
		SingleReceiver:  o.SingleReceiver,
	}
}

// DistributorOptions is the plain multi-receiver pull distributor.
func DistributorOptions() Options {
	return Options{ClaimPolicy: ClaimByReceiver, PayoutMode: PayoutMint}
}

// MasterOptions is the master allocator: anyone may push settlements and
// every receiver contract is told about its allocation.
func MasterOptions() Options {
	return Options{ClaimPolicy: ClaimByAnyone, PayoutMode: PayoutMint, NotifyReceivers: true}
}

// SingleReceiverOptions is the staking variant that pays a single bound
// peer contract out of a pre-funded balance.
func SingleReceiverOptions() Options {
	return Options{ClaimPolicy: ClaimByReceiver, PayoutMode: PayoutTransfer, SingleReceiver: true}
}
