package receivables

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRiskTierBoundaries(t *testing.T) {
	cases := []struct {
		days int
		tier RiskTier
	}{
		{-3, RiskNone},
		{0, RiskNone},
		{1, RiskLow},
		{30, RiskLow},
		{31, RiskMedium},
		{60, RiskMedium},
		{61, RiskHigh},
		{400, RiskHigh},
	}
	for _, tc := range cases {
		require.Equal(t, tc.tier, RiskTierFor(tc.days), "days=%d", tc.days)
	}
}

func TestDaysOverdueFromDueDate(t *testing.T) {
	for _, days := range []int{30, 31, 60, 61} {
		acct := newTestAccount(t, 100, testNow.AddDate(0, 0, -days))
		require.Equal(t, days, DaysOverdue(acct, testNow))
	}

	notDue := newTestAccount(t, 100, testNow.AddDate(0, 0, 5))
	require.Equal(t, 0, DaysOverdue(notDue, testNow))
}

func TestClassifierBoundaryTiers(t *testing.T) {
	expect := map[int]RiskTier{30: RiskLow, 31: RiskMedium, 60: RiskMedium, 61: RiskHigh}
	for days, tier := range expect {
		acct := newTestAccount(t, 100, testNow.AddDate(0, 0, -days))
		require.Equal(t, tier, RiskTierFor(DaysOverdue(acct, testNow)), "days=%d", days)
	}
}

func TestBuildAgingReport(t *testing.T) {
	current := newTestAccount(t, 100, testNow.AddDate(0, 0, 3))
	low := newTestAccount(t, 200, testNow.AddDate(0, 0, -10))
	medium := newTestAccount(t, 300, testNow.AddDate(0, 0, -45))
	high := newTestAccount(t, 400, testNow.AddDate(0, 0, -90))
	paid := newTestAccount(t, 999, testNow.AddDate(0, 0, -90))
	require.NoError(t, paid.ApplyPayment(999, testNow, testNow))
	require.NoError(t, high.ApplyPayment(150, testNow, testNow))

	report := BuildAgingReport([]Account{current, low, medium, high, paid}, testNow)

	require.Equal(t, DateOf(testNow), report.AsOf)
	require.Equal(t, Money(850), report.Total)
	require.Equal(t, []AgingBucket{
		{Tier: RiskNone, Amount: 100, Count: 1},
		{Tier: RiskLow, Amount: 200, Count: 1},
		{Tier: RiskMedium, Amount: 300, Count: 1},
		{Tier: RiskHigh, Amount: 250, Count: 1},
	}, report.Buckets)
}
