package limits

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/escrow/types"
)

// Tier indexes the three rolling windows of a spending policy.
type Tier int

const (
	TierDaily Tier = iota
	TierWeekly
	TierMonthly

	// NumTiers is the number of rolling windows per policy.
	NumTiers = 3
)

// Window periods. Rolling, not calendar-aligned: each tier resets relative
// to its own last reset time.
const (
	PeriodDaily   = 24 * time.Hour
	PeriodWeekly  = 7 * 24 * time.Hour
	PeriodMonthly = 30 * 24 * time.Hour
)

// Period returns the window duration for a tier.
func (t Tier) Period() time.Duration {
	switch t {
	case TierDaily:
		return PeriodDaily
	case TierWeekly:
		return PeriodWeekly
	case TierMonthly:
		return PeriodMonthly
	default:
		return 0
	}
}

// String returns the tier name used in error messages and journal payloads.
func (t Tier) String() string {
	switch t {
	case TierDaily:
		return "daily"
	case TierWeekly:
		return "weekly"
	case TierMonthly:
		return "monthly"
	default:
		return "unknown"
	}
}

// Window is one rolling accumulation window: a threshold, the amount spent
// since the window last opened, and when it opened.
type Window struct {
	Limit   types.Amount `json:"limit"`
	Spent   types.Amount `json:"spent"`
	ResetAt time.Time    `json:"reset_at"`
}

// Expired reports whether the window's period has fully elapsed as of now.
func (w Window) Expired(tier Tier, now time.Time) bool {
	return !now.Before(w.ResetAt.Add(tier.Period()))
}

// Remaining returns max(0, limit - spent) for the window as currently stored.
func (w Window) Remaining() types.Amount {
	return w.Limit.SaturatingSub(w.Spent)
}

// Policy is one account's spending-limit record: three independent rolling
// windows plus the active flag. Windows are indexed by Tier and processed
// uniformly; a tier's reset never touches the other tiers.
type Policy struct {
	types.Entity
	Account common.Address   `json:"account"`
	Windows [NumTiers]Window `json:"windows"`
	Active  bool             `json:"active"`
}

// NewPolicy creates an active policy for an account with the given
// thresholds, all accumulators zero and every window opening at now.
// Threshold hierarchy validation is the caller's concern.
func NewPolicy(account common.Address, daily, weekly, monthly types.Amount, now time.Time) *Policy {
	p := &Policy{
		Entity:  types.NewEntity(),
		Account: account,
		Active:  true,
	}
	p.Windows[TierDaily] = Window{Limit: daily, Spent: types.ZeroAmount(), ResetAt: now}
	p.Windows[TierWeekly] = Window{Limit: weekly, Spent: types.ZeroAmount(), ResetAt: now}
	p.Windows[TierMonthly] = Window{Limit: monthly, Spent: types.ZeroAmount(), ResetAt: now}
	return p
}

// SetThresholds overwrites the limit thresholds while preserving current
// accumulators and window-start timestamps, and re-activates the policy.
func (p *Policy) SetThresholds(daily, weekly, monthly types.Amount) {
	p.Windows[TierDaily].Limit = daily
	p.Windows[TierWeekly].Limit = weekly
	p.Windows[TierMonthly].Limit = monthly
	p.Active = true
}

// Clone returns a deep copy. Admit/deny decisions mutate a clone and
// persist it only on success, so a rejected call leaves stored state
// untouched.
func (p *Policy) Clone() *Policy {
	cp := *p
	return &cp
}

// ApplyResets zeroes every window whose period has elapsed as of now and
// reopens it at now. Each tier resets independently. Returns the tiers that
// were reset.
func (p *Policy) ApplyResets(now time.Time) []Tier {
	var reset []Tier
	for i := range p.Windows {
		tier := Tier(i)
		if p.Windows[i].Expired(tier, now) {
			p.Windows[i].Spent = types.ZeroAmount()
			p.Windows[i].ResetAt = now
			reset = append(reset, tier)
		}
	}
	return reset
}

// Check reports the first tier, in daily-weekly-monthly order, whose
// threshold the proposed amount would exceed. Resets must already have been
// applied. The second return is false when every tier admits the amount.
func (p *Policy) Check(amount types.Amount) (Tier, bool) {
	for i := range p.Windows {
		if p.Windows[i].Spent.Add(amount).GreaterThan(p.Windows[i].Limit) {
			return Tier(i), true
		}
	}
	return 0, false
}

// Record adds amount to all three accumulators. Callers run ApplyResets and
// Check first; Record itself never fails.
func (p *Policy) Record(amount types.Amount) {
	for i := range p.Windows {
		p.Windows[i].Spent = p.Windows[i].Spent.Add(amount)
	}
}

// Remaining computes per-tier remaining allowance as of now, honoring
// elapsed resets without mutating the stored windows.
func (p *Policy) Remaining(now time.Time) Allowance {
	var a Allowance
	for i := range p.Windows {
		tier := Tier(i)
		if p.Windows[i].Expired(tier, now) {
			a[i] = p.Windows[i].Limit
			continue
		}
		a[i] = p.Windows[i].Remaining()
	}
	return a
}

// Allowance is the remaining headroom per tier, indexed by Tier.
type Allowance [NumTiers]types.Amount

// ZeroAllowance is the allowance reported for accounts without a policy.
func ZeroAllowance() Allowance {
	return Allowance{types.ZeroAmount(), types.ZeroAmount(), types.ZeroAmount()}
}

// Daily returns the daily-tier headroom.
func (a Allowance) Daily() types.Amount { return a[TierDaily] }

// Weekly returns the weekly-tier headroom.
func (a Allowance) Weekly() types.Amount { return a[TierWeekly] }

// Monthly returns the monthly-tier headroom.
func (a Allowance) Monthly() types.Amount { return a[TierMonthly] }

// ValidHierarchy reports whether daily ≤ weekly ≤ monthly.
func ValidHierarchy(daily, weekly, monthly types.Amount) bool {
	return !weekly.LessThan(daily) && !monthly.LessThan(weekly)
}
