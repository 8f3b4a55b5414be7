package server

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLedgerCreditAccumulates(t *testing.T) {
	t.Parallel()
	ledger, err := newAccountLedger(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, ledger.Close()) })

	account := []byte("alice")

	balance, err := ledger.Balance(account)
	require.NoError(t, err)
	require.Zero(t, balance)

	require.NoError(t, ledger.Credit(context.Background(), account, 3000))
	require.NoError(t, ledger.Credit(context.Background(), account, 2000))

	balance, err = ledger.Balance(account)
	require.NoError(t, err)
	require.Equal(t, uint64(5000), balance)

	other, err := ledger.Balance([]byte("bob"))
	require.NoError(t, err)
	require.Zero(t, other)
}
