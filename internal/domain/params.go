package domain

// MaxFeeBps is the upper bound for the market fee rate (10%).
const MaxFeeBps = 1000

// FeeDenominator converts basis points to a fraction.
const FeeDenominator = 10000

// MarketParameters is an immutable snapshot of admin-controlled market
// configuration. Updates publish a new snapshot with Version+1 rather than
// mutating in place.
type MarketParameters struct {
	Version         uint64
	FeeBps          int64
	ClearingEnabled bool
}

// MarketStats holds monotonically non-decreasing counters updated only by
// successful settlement.
type MarketStats struct {
	TotalVolume int64
	TotalTrades int64
}

// FeeFor computes the market fee for a gross amount using truncating
// division, so fee <= gross always holds and the platform never owes more
// than it collects. The quotient and remainder are scaled separately so the
// intermediate products stay within int64 for any representable gross.
func (p *MarketParameters) FeeFor(gross int64) int64 {
	return gross/FeeDenominator*p.FeeBps + gross%FeeDenominator*p.FeeBps/FeeDenominator
}
