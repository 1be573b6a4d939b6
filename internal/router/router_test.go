package router

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/paynet/fep/internal/ferr"
	"github.com/paynet/fep/internal/txn"
)

func TestRouteMatchesLowestPriorityRule(t *testing.T) {
	r := New()
	r.AddRule(&Rule{
		Name: "low-priority-catch-all", Priority: 100, Active: true,
		Destination: DestOpenSystemAPI, Timeout: time.Second,
	})
	r.AddRule(&Rule{
		Name: "withdrawal-to-cbs", Priority: 10, Active: true,
		Types:       map[txn.Type]bool{txn.TypeWithdrawal: true},
		Destination: DestMainframeCBS, Timeout: 5 * time.Second,
	})

	decision, err := r.Route(&txn.Request{Type: txn.TypeWithdrawal})
	require.NoError(t, err)
	require.Equal(t, DestMainframeCBS, decision.Destination)
	require.Equal(t, "withdrawal-to-cbs", decision.RuleName)
}

func TestRouteSkipsInactiveRules(t *testing.T) {
	r := New()
	r.AddRule(&Rule{Name: "disabled", Priority: 1, Active: false, Destination: DestMainframeCBS})
	r.AddRule(&Rule{Name: "active", Priority: 2, Active: true, Destination: DestFISCInterbank})

	decision, err := r.Route(&txn.Request{Type: txn.TypeTransfer})
	require.NoError(t, err)
	require.Equal(t, DestFISCInterbank, decision.Destination)
}

func TestRouteFallsBackToDefault(t *testing.T) {
	r := New()
	r.SetDefault(DestInternal, time.Second)

	decision, err := r.Route(&txn.Request{Type: txn.TypeBalanceInquiry})
	require.NoError(t, err)
	require.Equal(t, DestInternal, decision.Destination)
	require.Equal(t, "default", decision.RuleName)
}

func TestRouteReturnsRoutingErrorWithNoMatchAndNoDefault(t *testing.T) {
	r := New()
	_, err := r.Route(&txn.Request{Type: txn.TypePurchase})
	require.Error(t, err)

	fe, ok := ferr.As(err)
	require.True(t, ok)
	require.Equal(t, ferr.KindRouting, fe.Kind)
	require.Equal(t, "58", fe.ResponseCode)
}

func TestRouteHonorsCustomPredicate(t *testing.T) {
	r := New()
	r.AddRule(&Rule{
		Name: "large-transfer-to-card-network", Priority: 1, Active: true,
		Types: map[txn.Type]bool{txn.TypeTransfer: true},
		Predicate: func(req *txn.Request) bool {
			return req.DestBankCode == "999"
		},
		Destination: DestCardNetwork,
	})
	r.SetDefault(DestMainframeCBS, time.Second)

	decision, err := r.Route(&txn.Request{Type: txn.TypeTransfer, DestBankCode: "999"})
	require.NoError(t, err)
	require.Equal(t, DestCardNetwork, decision.Destination)

	decision, err = r.Route(&txn.Request{Type: txn.TypeTransfer, DestBankCode: "001"})
	require.NoError(t, err)
	require.Equal(t, DestMainframeCBS, decision.Destination)
}
