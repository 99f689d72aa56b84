// Package token describes the external fungible-token collaborator: the
// outbound instructions the engine asks the host to execute and the
// read-only queries it makes against token and farm contracts.
package token

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/bitfsorg/libfarm-go/identity"
)

// Kind names an outbound token call.
type Kind uint8

const (
	// KindMint creates Amount new tokens for To.
	KindMint Kind = iota + 1
	// KindTransfer moves Amount from the calling contract to To.
	KindTransfer
	// KindSend moves Amount to contract To and invokes its receive hook with Hook.
	KindSend
	// KindBurnFrom destroys Amount of From's tokens.
	KindBurnFrom
	// KindRedeem withdraws Amount previously deposited into farm Contract.
	KindRedeem
	// KindNotifyAllocation tells receiver To that Amount was allocated to it.
	KindNotifyAllocation
)

var kindNames = map[Kind]string{
	KindMint:             "mint",
	KindTransfer:         "transfer",
	KindSend:             "send",
	KindBurnFrom:         "burn_from",
	KindRedeem:           "redeem",
	KindNotifyAllocation: "notify_allocation",
}

// String returns the snake_case name of k.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Instruction is one call the host must execute after an operation commits.
// Hook is carried through unmodified.
type Instruction struct {
	Kind     Kind
	Contract identity.Address // token or farm contract that executes the call
	To       identity.Address
	From     identity.Address
	Amount   *uint256.Int
	Hook     []byte
}

// Mint returns a mint instruction.
func Mint(contract, to identity.Address, amt *uint256.Int, hook []byte) Instruction {
	return Instruction{Kind: KindMint, Contract: contract, To: to, Amount: amt, Hook: hook}
}

// Transfer returns a transfer instruction.
func Transfer(contract, to identity.Address, amt *uint256.Int) Instruction {
	return Instruction{Kind: KindTransfer, Contract: contract, To: to, Amount: amt}
}

// Send returns a send-with-hook instruction.
func Send(contract, to identity.Address, amt *uint256.Int, hook []byte) Instruction {
	return Instruction{Kind: KindSend, Contract: contract, To: to, Amount: amt, Hook: hook}
}

// BurnFrom returns a burn instruction against owner's balance.
func BurnFrom(contract, owner identity.Address, amt *uint256.Int) Instruction {
	return Instruction{Kind: KindBurnFrom, Contract: contract, From: owner, Amount: amt}
}

// Redeem returns a farm withdrawal instruction.
func Redeem(farm identity.Address, amt *uint256.Int) Instruction {
	return Instruction{Kind: KindRedeem, Contract: farm, Amount: amt}
}

// NotifyAllocation returns an allocation notice for receiver.
func NotifyAllocation(receiver identity.Address, amt *uint256.Int, hook []byte) Instruction {
	return Instruction{Kind: KindNotifyAllocation, Contract: receiver, To: receiver, Amount: amt, Hook: hook}
}

// View is the printable form of an Instruction.
type View struct {
	Kind     string `json:"kind"`
	Contract string `json:"contract"`
	To       string `json:"to,omitempty"`
	From     string `json:"from,omitempty"`
	Amount   string `json:"amount"`
	Hook     []byte `json:"hook,omitempty"`
}

// View converts in to its printable form.
func (in Instruction) View() View {
	amt := "0"
	if in.Amount != nil {
		amt = in.Amount.Dec()
	}
	return View{
		Kind:     in.Kind.String(),
		Contract: in.Contract.String(),
		To:       in.To.String(),
		From:     in.From.String(),
		Amount:   amt,
		Hook:     in.Hook,
	}
}
