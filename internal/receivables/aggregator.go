package receivables

import (
	"cmp"
	"slices"
	"time"
)

// Summarize builds the delinquency summaries for every client with at least one
// overdue account, ranked by overdue amount and then by client ID.
func Summarize(clients []Client, accounts []Account, now time.Time) []DelinquencySummary {
	byClient := make(map[int64]*DelinquencySummary, len(clients))
	for _, c := range clients {
		byClient[c.ID] = &DelinquencySummary{ClientID: c.ID, BusinessName: c.BusinessName}
	}
	for _, acct := range accounts {
		if !acct.IsOverdue(now) {
			continue
		}
		s, ok := byClient[acct.ClientID]
		if !ok {
			continue
		}
		s.OverdueAmount += acct.CurrentBalance
		s.OverdueCount++
		if days := DaysOverdue(acct, now); days > s.OverdueDays {
			s.OverdueDays = days
		}
	}

	out := make([]DelinquencySummary, 0)
	for _, s := range byClient {
		if s.OverdueCount == 0 {
			continue
		}
		s.RiskTier = RiskTierFor(s.OverdueDays)
		out = append(out, *s)
	}
	slices.SortFunc(out, func(a, b DelinquencySummary) int {
		if c := cmp.Compare(b.OverdueAmount, a.OverdueAmount); c != 0 {
			return c
		}
		return cmp.Compare(a.ClientID, b.ClientID)
	})
	return out
}

// BuildDelinquencyReport wraps Summarize with the as-of date and grand total.
func BuildDelinquencyReport(snap Snapshot, now time.Time) DelinquencyReport {
	summaries := Summarize(snap.Clients, snap.Accounts, now)
	var total Money
	for _, s := range summaries {
		total += s.OverdueAmount
	}
	return DelinquencyReport{AsOf: DateOf(now), Summaries: summaries, TotalOverdue: total}
}
