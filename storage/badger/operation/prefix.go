package operation

import (
	"encoding/binary"
	"fmt"

	"github.com/blockclique/blockclique-go/model/dag"
)

const (
	// codes for entities
	codeFinalizedBlock = 10

	// codes for indexes
	codeSlotIndex   = 20
	codeLatestFinal = 21
)

func makePrefix(code byte, keys ...interface{}) []byte {
	prefix := make([]byte, 1)
	prefix[0] = code
	for _, key := range keys {
		prefix = append(prefix, b(key)...)
	}
	return prefix
}

func b(v interface{}) []byte {
	switch i := v.(type) {
	case uint8:
		return []byte{i}
	case uint64:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, i)
		return b
	case dag.Identifier:
		return i[:]
	default:
		panic(fmt.Sprintf("unsupported type to convert (%T)", v))
	}
}
