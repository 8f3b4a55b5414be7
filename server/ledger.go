package server

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/syndtr/goleveldb/leveldb"
	"go.uber.org/zap"

	"github.com/searchnet/chainreg/logging"
)

// accountLedger is a minimal token ledger used when chainreg runs
// standalone. The registry only depends on the Credit capability; embedded
// in a chain runtime the credit would be delegated to the host's balances
// module instead.
type accountLedger struct {
	db *leveldb.DB
}

func newAccountLedger(path string) (*accountLedger, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database @ %s: %w", path, err)
	}
	return &accountLedger{db: db}, nil
}

func (l *accountLedger) Close() error {
	return l.db.Close()
}

// Credit adds amount to the account balance.
func (l *accountLedger) Credit(ctx context.Context, account []byte, amount uint64) error {
	trans, err := l.db.OpenTransaction()
	if err != nil {
		return err
	}

	var balance uint64
	current, err := trans.Get(account, nil)
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
		// first credit for this account
	case err != nil:
		trans.Discard()
		return fmt.Errorf("querying balance: %w", err)
	default:
		balance = binary.BigEndian.Uint64(current)
	}

	if balance > math.MaxUint64-amount {
		trans.Discard()
		return fmt.Errorf("balance overflow crediting %d to %X", amount, account)
	}

	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, balance+amount)
	if err := trans.Put(account, buf, nil); err != nil {
		trans.Discard()
		return fmt.Errorf("saving balance: %w", err)
	}
	if err := trans.Commit(); err != nil {
		return err
	}

	logging.FromContext(ctx).Debug("credited account",
		zap.Binary("account", account),
		zap.Uint64("amount", amount),
		zap.Uint64("balance", balance+amount),
	)
	return nil
}

// Balance returns the current balance of an account. Unknown accounts
// have a zero balance.
func (l *accountLedger) Balance(account []byte) (uint64, error) {
	data, err := l.db.Get(account, nil)
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("querying balance: %w", err)
	}
	return binary.BigEndian.Uint64(data), nil
}
