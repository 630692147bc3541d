package receivables

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func accountFor(t *testing.T, clientID int64, amount Money, daysPastDue int) Account {
	t.Helper()
	acct := newTestAccount(t, amount, testNow.AddDate(0, 0, -daysPastDue))
	acct.ClientID = clientID
	return acct
}

func TestSummarizeRanksByOverdueAmount(t *testing.T) {
	clients := []Client{
		{ID: 1, BusinessName: "Toko Maju"},
		{ID: 2, BusinessName: "Warung Sari"},
		{ID: 3, BusinessName: "CV Sentosa"},
		{ID: 4, BusinessName: "Never Late"},
	}
	accounts := []Account{
		accountFor(t, 1, 300, 10),
		accountFor(t, 1, 200, 70),
		accountFor(t, 2, 900, 5),
		accountFor(t, 3, 500, 40),
		accountFor(t, 4, 1000, -10),
	}

	got := Summarize(clients, accounts, testNow)

	require.Equal(t, []DelinquencySummary{
		{ClientID: 2, BusinessName: "Warung Sari", OverdueAmount: 900, OverdueDays: 5, OverdueCount: 1, RiskTier: RiskLow},
		{ClientID: 1, BusinessName: "Toko Maju", OverdueAmount: 500, OverdueDays: 70, OverdueCount: 2, RiskTier: RiskHigh},
		{ClientID: 3, BusinessName: "CV Sentosa", OverdueAmount: 500, OverdueDays: 40, OverdueCount: 1, RiskTier: RiskMedium},
	}, got)
}

func TestSummarizeIgnoresPaidAndUnknownClients(t *testing.T) {
	paid := accountFor(t, 1, 400, 90)
	require.NoError(t, paid.ApplyPayment(400, testNow, testNow))
	orphan := accountFor(t, 99, 400, 90)

	got := Summarize([]Client{{ID: 1}}, []Account{paid, orphan}, testNow)
	require.Empty(t, got)
	require.NotNil(t, got)
}

func TestSummarizeIsIdempotent(t *testing.T) {
	clients := []Client{{ID: 5}, {ID: 3}, {ID: 8}}
	accounts := []Account{
		accountFor(t, 5, 100, 3),
		accountFor(t, 3, 100, 33),
		accountFor(t, 8, 100, 63),
	}

	first := Summarize(clients, accounts, testNow)
	second := Summarize(clients, accounts, testNow)
	require.Equal(t, first, second)
	require.Equal(t, []int64{3, 5, 8}, []int64{first[0].ClientID, first[1].ClientID, first[2].ClientID})
}

func TestBuildDelinquencyReportTotals(t *testing.T) {
	snap := Snapshot{
		Clients:  []Client{{ID: 1}, {ID: 2}},
		Accounts: []Account{accountFor(t, 1, 250, 2), accountFor(t, 2, 750, 2), accountFor(t, 2, 50, -2)},
	}
	report := BuildDelinquencyReport(snap, testNow)
	require.Equal(t, Money(1000), report.TotalOverdue)
	require.Len(t, report.Summaries, 2)
	require.Equal(t, DateOf(testNow), report.AsOf)
}
