package emission

import (
	"math/big"

	"daotoken/native/fullmath"
)

// SecondsPerDay is the settlement granularity. Anchors are created on a
// day boundary and elapsed time is accounted in whole days.
const SecondsPerDay = 86400

// Args parameterises a decaying emission schedule. The per-day rate
// starts at P and is multiplied by ANumerator/ADenominator every
// BDenominator/BNumerator days; C shifts the day phase of the first
// revision and D offsets the starting exponent.
type Args struct {
	P            *big.Int `json:"p"`
	ANumerator   uint64   `json:"aNumerator"`
	ADenominator uint64   `json:"aDenominator"`
	BNumerator   uint64   `json:"bNumerator"`
	BDenominator uint64   `json:"bDenominator"`
	C            uint64   `json:"c"`
	D            uint64   `json:"d"`
}

// Validate ensures the schedule denominators are usable.
func (a Args) Validate() error {
	if a.P == nil || a.P.Sign() < 0 {
		return ErrInvalidArgs
	}
	if a.ADenominator == 0 || a.BDenominator == 0 || a.BNumerator == 0 {
		return ErrInvalidArgs
	}
	return nil
}

// Clone returns a deep copy of the arguments.
func (a Args) Clone() Args {
	out := a
	if a.P != nil {
		out.P = new(big.Int).Set(a.P)
	}
	return out
}

// Anchor is the persistent state of one token's emission schedule. N is
// the count of whole days already settled; LastTimestamp is monotonically
// non-decreasing and only ever mutated by Settle.
type Anchor struct {
	Args          Args   `json:"args"`
	LastTimestamp int64  `json:"lastTimestamp"`
	N             uint64 `json:"n"`
}

// NewAnchor initialises an anchor at the given wall-clock time. The
// timestamp is floored to the day boundary so that the first settlement
// carries the partial day forward.
func NewAnchor(args Args, now int64) (*Anchor, error) {
	if err := args.Validate(); err != nil {
		return nil, err
	}
	return &Anchor{
		Args:          args.Clone(),
		LastTimestamp: now / SecondsPerDay * SecondsPerDay,
		N:             0,
	}, nil
}

// Clone returns a deep copy of the anchor.
func (an *Anchor) Clone() *Anchor {
	if an == nil {
		return nil
	}
	return &Anchor{Args: an.Args.Clone(), LastTimestamp: an.LastTimestamp, N: an.N}
}

// Settle converts the interval since the anchor into a minted amount and
// advances the anchor. current must be strictly after the anchor and at
// most one day ahead of observedNow; violations leave the anchor
// untouched. Replaying a settled interval is therefore always rejected.
func (an *Anchor) Settle(current, observedNow int64) (*big.Int, error) {
	if current <= an.LastTimestamp {
		return nil, ErrStaleSettlement
	}
	if current > observedNow+SecondsPerDay {
		return nil, ErrFutureSettlement
	}
	days := uint64((current - an.LastTimestamp) / SecondsPerDay)
	minted := an.amountForDays(days)
	an.LastTimestamp = current
	an.N += days
	return minted, nil
}

// Preview returns the amount a settlement at current would mint without
// mutating the anchor.
func (an *Anchor) Preview(current int64) *big.Int {
	if current <= an.LastTimestamp {
		return big.NewInt(0)
	}
	return an.amountForDays(uint64((current - an.LastTimestamp) / SecondsPerDay))
}

// amountForDays sums the per-day rate over global day indexes
// (N, N+days]. Days sharing an exponent are accounted as one chunk, so
// the cost is proportional to the number of revision periods crossed,
// not the number of days.
func (an *Anchor) amountForDays(days uint64) *big.Int {
	total := big.NewInt(0)
	if days == 0 || an.Args.P == nil || an.Args.P.Sign() == 0 {
		return total
	}
	first := an.N + 1
	last := an.N + days
	decays := an.Args.ANumerator < an.Args.ADenominator

	j := first
	for j <= last {
		e := an.exponentForDay(j)
		rate := an.rateForExponent(e)
		chunkEnd := an.lastDayOfExponent(e)
		if chunkEnd > last {
			chunkEnd = last
		}
		span := new(big.Int).SetUint64(chunkEnd - j + 1)
		total.Add(total, span.Mul(span, rate))
		if rate.Sign() == 0 && decays {
			break
		}
		j = chunkEnd + 1
	}
	return total
}

// exponentForDay returns the schedule exponent for the 1-based global
// day index j.
func (an *Anchor) exponentForDay(j uint64) uint64 {
	return ((j-1)*an.Args.BNumerator+an.Args.C)/an.Args.BDenominator + an.Args.D
}

// lastDayOfExponent returns the last 1-based day index that still uses
// exponent e.
func (an *Anchor) lastDayOfExponent(e uint64) uint64 {
	period := e - an.Args.D
	// Largest j with (j-1)*bN + c <= (period+1)*bD - 1.
	return ((period+1)*an.Args.BDenominator-1-an.Args.C)/an.Args.BNumerator + 1
}

// rateForExponent computes floor(P * aN^e / aD^e).
func (an *Anchor) rateForExponent(e uint64) *big.Int {
	if e == 0 {
		return new(big.Int).Set(an.Args.P)
	}
	exp := new(big.Int).SetUint64(e)
	num := new(big.Int).Exp(new(big.Int).SetUint64(an.Args.ANumerator), exp, nil)
	den := new(big.Int).Exp(new(big.Int).SetUint64(an.Args.ADenominator), exp, nil)
	return fullmath.MulDiv(an.Args.P, num, den)
}
