package badger

import (
	"encoding/json"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/davshare/davshare/pkg/store"
)

// getJSON reads and decodes the value at key, mapping a missing key to
// store.ErrNotFound.
func getJSON(txn *badger.Txn, key []byte, out any) error {
	item, err := txn.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return store.ErrNotFound
		}
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
}

// setJSON encodes v and writes it at key.
func setJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return txn.Set(key, data)
}

// scanJSON iterates every value under prefix in key order.
func scanJSON(txn *badger.Txn, prefix []byte, fn func(data []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix

	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		err := it.Item().Value(func(val []byte) error {
			return fn(val)
		})
		if err != nil {
			return err
		}
	}
	return nil
}
