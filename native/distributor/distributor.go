package distributor

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"daotoken/native/fullmath"
)

var (
	ErrNoRecipients  = errors.New("distributor: no recipients")
	ErrInvalidWeight = errors.New("distributor: weights must be positive")
)

// Recipient pairs an address with its distribution weight.
type Recipient struct {
	Address common.Address `json:"address"`
	Weight  *big.Int       `json:"weight"`
}

// Share is one computed allocation.
type Share struct {
	Address common.Address `json:"address"`
	Amount  *big.Int       `json:"amount"`
}

// Outcome summarises one distribution. Dust is the truncation remainder
// minted - sum(shares); the caller decides where it lands (the token
// module keeps it in the token's own balance).
type Outcome struct {
	Shares []Share  `json:"shares"`
	Paid   *big.Int `json:"paid"`
	Dust   *big.Int `json:"dust"`
}

// Distribute splits minted across the recipients proportionally to their
// weights, flooring each share. Zero shares are retained so callers can
// report every recipient.
func Distribute(minted *big.Int, recipients []Recipient) (*Outcome, error) {
	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}
	totalWeight := big.NewInt(0)
	for _, r := range recipients {
		if r.Weight == nil || r.Weight.Sign() <= 0 {
			return nil, ErrInvalidWeight
		}
		totalWeight.Add(totalWeight, r.Weight)
	}
	if minted == nil {
		minted = big.NewInt(0)
	}
	outcome := &Outcome{
		Shares: make([]Share, 0, len(recipients)),
		Paid:   big.NewInt(0),
	}
	for _, r := range recipients {
		amount := fullmath.MulDiv(minted, r.Weight, totalWeight)
		outcome.Shares = append(outcome.Shares, Share{Address: r.Address, Amount: amount})
		outcome.Paid.Add(outcome.Paid, amount)
	}
	outcome.Dust = new(big.Int).Sub(minted, outcome.Paid)
	return outcome, nil
}
