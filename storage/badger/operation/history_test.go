package operation

import (
	"testing"

	"github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockclique/blockclique-go/model/dag"
	"github.com/blockclique/blockclique-go/storage"
	"github.com/blockclique/blockclique-go/utils/unittest"
)

func TestFinalizedBlockInsertRetrieve(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		expected := &storage.FinalizedBlock{
			BlockID:      unittest.IdentifierFixture(),
			Slot:         dag.NewSlot(3, 1),
			Parents:      unittest.IdentifierListFixture(2),
			OperationIDs: unittest.IdentifierListFixture(3),
			FinalizedAt:  dag.NewSlot(5, 0),
		}

		err := db.Update(InsertFinalizedBlock(expected))
		require.NoError(t, err)

		// identical content is idempotent
		err = db.Update(InsertFinalizedBlock(expected))
		require.NoError(t, err)

		var actual storage.FinalizedBlock
		err = db.View(RetrieveFinalizedBlock(expected.BlockID, &actual))
		require.NoError(t, err)
		assert.Equal(t, *expected, actual)

		var found bool
		err = db.View(FinalizedBlockExists(expected.BlockID, &found))
		require.NoError(t, err)
		assert.True(t, found)

		err = db.View(RetrieveFinalizedBlock(unittest.IdentifierFixture(), &actual))
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestSlotIndex(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		ids := unittest.IdentifierListFixture(5)
		for period, id := range ids {
			err := db.Update(IndexSlot(dag.NewSlot(uint64(period), 1), id))
			require.NoError(t, err)
		}
		// another thread must not leak into range queries
		err := db.Update(IndexSlot(dag.NewSlot(2, 0), unittest.IdentifierFixture()))
		require.NoError(t, err)

		t.Run("conflicting index", func(t *testing.T) {
			err := db.Update(IndexSlot(dag.NewSlot(2, 1), unittest.IdentifierFixture()))
			assert.ErrorIs(t, err, storage.ErrDataMismatch)
		})

		t.Run("lookup", func(t *testing.T) {
			var id dag.Identifier
			err := db.View(LookupSlot(dag.NewSlot(3, 1), &id))
			require.NoError(t, err)
			assert.Equal(t, ids[3], id)
		})

		t.Run("range", func(t *testing.T) {
			var found []dag.Identifier
			err := db.View(LookupSlotRange(1, 1, 3, &found))
			require.NoError(t, err)
			assert.Equal(t, []dag.Identifier(ids[1:4]), found)
		})

		t.Run("invalid range", func(t *testing.T) {
			var found []dag.Identifier
			err := db.View(LookupSlotRange(1, 3, 1, &found))
			assert.Error(t, err)
		})
	})
}

func TestLatestFinal(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		var id dag.Identifier
		err := db.View(RetrieveLatestFinal(0, &id))
		assert.ErrorIs(t, err, storage.ErrNotFound)

		first, second := unittest.IdentifierFixture(), unittest.IdentifierFixture()
		require.NoError(t, db.Update(UpdateLatestFinal(0, first)))
		require.NoError(t, db.Update(UpdateLatestFinal(0, second)))

		err = db.View(RetrieveLatestFinal(0, &id))
		require.NoError(t, err)
		assert.Equal(t, second, id)
	})
}

func TestDecodeCorruptValue(t *testing.T) {
	var id dag.Identifier
	err := decodeValue([]byte{0xff, 0x00, 0x13}, &id)
	require.Error(t, err)
	assert.True(t, isErrUncompressedValue(err))
}
