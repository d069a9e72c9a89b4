package bootstrap

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/blockclique/blockclique-go/crypto/hash"
	"github.com/blockclique/blockclique-go/model/encoding/cbor"
)

// A snapshot is framed as
//
//	magic "BCSG" | version u32 | payload length u64 | SHA3-256(payload) | payload
//
// with big endian integers and payload = zstd(cbor(Graph)).
var magic = [4]byte{'B', 'C', 'S', 'G'}

const (
	headerLen = len(magic) + 4 + 8 + hash.HashLen

	// maxDecodedSize bounds the memory a decoded payload may take.
	maxDecodedSize = 1 << 30
)

var (
	encoder = cbor.NewEncoder()

	compressor = func() *zstd.Encoder {
		w, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			panic(err)
		}
		return w
	}()

	decompressor = func() *zstd.Decoder {
		r, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecodedSize))
		if err != nil {
			panic(err)
		}
		return r
	}()
)

// Encode serializes a snapshot. The version of the frame is the version of the graph.
func Encode(graph *Graph) ([]byte, error) {
	raw, err := encoder.Encode(graph)
	if err != nil {
		return nil, fmt.Errorf("could not encode snapshot: %w", err)
	}
	payload := compressor.EncodeAll(raw, nil)
	checksum := hash.Sum256(payload)

	out := make([]byte, 0, headerLen+len(payload))
	out = append(out, magic[:]...)
	out = binary.BigEndian.AppendUint32(out, graph.Version)
	out = binary.BigEndian.AppendUint64(out, uint64(len(payload)))
	out = append(out, checksum[:]...)
	out = append(out, payload...)
	return out, nil
}

// Decode parses a snapshot. It has no side effects: adopting the decoded graph
// is up to the caller.
// Expected errors:
//   - DecodeError for truncated, corrupted or otherwise undecodable input, or a
//     snapshot of another format version
func Decode(data []byte) (*Graph, error) {
	if len(data) < len(magic) {
		return nil, NewDecodeErrorf(Truncated, "%d bytes is shorter than the magic", len(data))
	}
	if !bytes.Equal(data[:len(magic)], magic[:]) {
		return nil, NewDecodeErrorf(Malformed, "unexpected magic %x", data[:len(magic)])
	}
	if len(data) < headerLen {
		return nil, NewDecodeErrorf(Truncated, "%d bytes is shorter than the header", len(data))
	}

	offset := len(magic)
	version := binary.BigEndian.Uint32(data[offset:])
	offset += 4
	if version != Version {
		return nil, NewDecodeErrorf(VersionMismatch, "snapshot version %d, expected %d", version, Version)
	}
	length := binary.BigEndian.Uint64(data[offset:])
	offset += 8
	checksum := data[offset : offset+hash.HashLen]
	offset += hash.HashLen

	payload := data[offset:]
	if uint64(len(payload)) < length {
		return nil, NewDecodeErrorf(Truncated, "payload has %d bytes, expected %d", len(payload), length)
	}
	if uint64(len(payload)) > length {
		return nil, NewDecodeErrorf(Malformed, "%d trailing bytes after payload", uint64(len(payload))-length)
	}
	sum := hash.Sum256(payload)
	if !bytes.Equal(sum[:], checksum) {
		return nil, NewDecodeErrorf(InvalidChecksum, "payload checksum %x does not match %x", sum, checksum)
	}

	raw, err := decompressor.DecodeAll(payload, nil)
	if err != nil {
		return nil, NewDecodeErrorf(Malformed, "could not decompress payload: %w", err)
	}
	var graph Graph
	err = encoder.Decode(raw, &graph)
	if err != nil {
		return nil, NewDecodeErrorf(Malformed, "could not decode payload: %w", err)
	}
	if graph.Version != version {
		return nil, NewDecodeErrorf(Malformed, "payload version %d differs from frame version %d", graph.Version, version)
	}
	return &graph, nil
}
