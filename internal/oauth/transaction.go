package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/serroba/linkgate/internal/kv"
)

// KeyPrefix namespaces in-flight transactions in the key-value store.
const KeyPrefix = "oauth:"

// TransactionTTL bounds how long a user has to complete the provider login.
const TransactionTTL = 10 * time.Minute

var errTransactionNotFound = errors.New("transaction not found")

// Transaction is the state carried from Initiate to Complete.
type Transaction struct {
	CodeVerifier string `json:"codeVerifier"`
	RedirectURI  string `json:"redirectUri"`
}

func transactionKey(state string) string {
	return KeyPrefix + state
}

type transactions struct {
	store kv.Store
}

func (t transactions) save(ctx context.Context, state string, txn Transaction) error {
	raw, err := json.Marshal(txn)
	if err != nil {
		return fmt.Errorf("encode transaction: %w", err)
	}

	if err := t.store.Put(ctx, transactionKey(state), string(raw), kv.WithTTL(TransactionTTL)); err != nil {
		return fmt.Errorf("save transaction: %w", err)
	}

	return nil
}

// take loads and deletes the transaction for state. The record is removed
// even when it fails to parse.
func (t transactions) take(ctx context.Context, state string) (*Transaction, error) {
	key := transactionKey(state)

	raw, err := t.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, errTransactionNotFound
		}

		return nil, fmt.Errorf("get transaction: %w", err)
	}

	if err := t.store.Delete(ctx, key); err != nil {
		return nil, fmt.Errorf("delete transaction: %w", err)
	}

	var txn Transaction
	if err := json.Unmarshal([]byte(raw), &txn); err != nil || txn.CodeVerifier == "" {
		return nil, errTransactionNotFound
	}

	return &txn, nil
}
