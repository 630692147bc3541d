package receivables

import "time"

const day = 24 * time.Hour

// DaysOverdue returns whole days elapsed since the due date, or zero when the
// account is not yet due.
func DaysOverdue(account Account, now time.Time) int {
	days := int(DateOf(now).Sub(DateOf(account.DueDate)) / day)
	if days < 0 {
		return 0
	}
	return days
}

// RiskTierFor maps days overdue to a risk tier. Boundaries belong to the lower tier.
func RiskTierFor(daysOverdue int) RiskTier {
	switch {
	case daysOverdue <= 0:
		return RiskNone
	case daysOverdue <= 30:
		return RiskLow
	case daysOverdue <= 60:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// Tiers lists risk tiers from least to most severe.
var Tiers = []RiskTier{RiskNone, RiskLow, RiskMedium, RiskHigh}

// BuildAgingReport totals open balances per tier. Paid accounts are skipped and
// balances not yet due land in NONE.
func BuildAgingReport(accounts []Account, now time.Time) AgingReport {
	index := make(map[RiskTier]int, len(Tiers))
	buckets := make([]AgingBucket, len(Tiers))
	for i, tier := range Tiers {
		index[tier] = i
		buckets[i] = AgingBucket{Tier: tier}
	}
	var total Money
	for _, acct := range accounts {
		if acct.Phase == AccountPaid || acct.CurrentBalance == 0 {
			continue
		}
		tier := RiskNone
		if acct.IsOverdue(now) {
			tier = RiskTierFor(DaysOverdue(acct, now))
		}
		b := &buckets[index[tier]]
		b.Amount += acct.CurrentBalance
		b.Count++
		total += acct.CurrentBalance
	}
	return AgingReport{AsOf: DateOf(now), Buckets: buckets, Total: total}
}
