package operation

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"github.com/blockclique/blockclique-go/module/irrecoverable"
	"github.com/blockclique/blockclique-go/storage"
)

// insert will encode the given entity and insert the resulting binary data in
// the badger DB under the provided key. Inserting identical data again is a
// no-op, while different data under an existing key returns storage.ErrDataMismatch.
func insert(key []byte, entity interface{}) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {

		val, err := encodeEntity(entity)
		if err != nil {
			return err
		}

		item, err := tx.Get(key)
		if err == nil {
			existing, err := item.ValueCopy(nil)
			if err != nil {
				return irrecoverable.NewExceptionf("could not load existing data: %w", err)
			}
			if bytes.Equal(existing, val) {
				return nil
			}
			return fmt.Errorf("key %x: %w", key, storage.ErrDataMismatch)
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return irrecoverable.NewExceptionf("could not check key: %w", err)
		}

		err = tx.Set(key, val)
		if err != nil {
			return irrecoverable.NewExceptionf("could not store data: %w", err)
		}
		return nil
	}
}

// upsert will encode the given entity and store it under the given key,
// replacing whatever was stored there.
func upsert(key []byte, entity interface{}) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		val, err := encodeEntity(entity)
		if err != nil {
			return err
		}

		err = tx.Set(key, val)
		if err != nil {
			return irrecoverable.NewExceptionf("could not upsert data: %w", err)
		}
		return nil
	}
}

// retrieve will retrieve the binary data under the given key from the badger DB
// and decode it into the given entity. The provided entity needs to be a
// pointer to an initialized entity of the correct type.
// Error returns:
//   - storage.ErrNotFound if the key does not exist in the database
//   - generic error in case of unexpected failure from the database layer, or failure
//     to decode an existing database value
func retrieve(key []byte, entity interface{}) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {

		item, err := tx.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return storage.ErrNotFound
		}
		if err != nil {
			return irrecoverable.NewExceptionf("could not load data: %w", err)
		}

		return item.Value(func(val []byte) error {
			return decodeValue(val, entity)
		})
	}
}

// exists checks whether the given key is present in the DB.
func exists(key []byte, keyExists *bool) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		_, err := tx.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			*keyExists = false
			return nil
		}
		if err != nil {
			return irrecoverable.NewExceptionf("could not check existence: %w", err)
		}
		*keyExists = true
		return nil
	}
}

// createFunc returns a pointer to an initialized entity that we can decode the
// next value into during an iteration.
type createFunc func() interface{}

// handleFunc processes the entity last decoded into the target returned by createFunc.
type handleFunc func() error

// iterationFunc initializes the decode target and processing of one iteration step.
type iterationFunc func() (createFunc, handleFunc)

// iterate iterates in ascending order over all keys k with start <= k <= end.
// Both bounds must have the same length, keys of other lengths are skipped.
func iterate(start []byte, end []byte, iteration iterationFunc) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		if len(start) != len(end) || bytes.Compare(start, end) > 0 {
			return fmt.Errorf("invalid iteration bounds %x - %x", start, end)
		}

		options := badger.DefaultIteratorOptions
		it := tx.NewIterator(options)
		defer it.Close()

		for it.Seek(start); it.Valid(); it.Next() {
			item := it.Item()
			key := item.Key()
			if bytes.Compare(key, end) > 0 {
				break
			}
			if len(key) != len(start) {
				continue
			}

			create, handle := iteration()
			err := item.Value(func(val []byte) error {
				err := decodeValue(val, create())
				if err != nil {
					return err
				}
				return handle()
			})
			if err != nil {
				return fmt.Errorf("could not process value: %w", err)
			}
		}

		return nil
	}
}
