package badger

import (
	"encoding/binary"
	"math"

	"github.com/poiesic/rangefinder/core"
)

// Key prefixes for different data types
const (
	entryPrefix     = "catent"
	numericPrefix   = "catnum"
	vectorPrefix    = "catvec"
	embeddingPrefix = "embcache"
)

// makeEntryKey generates a key for a catalog row by product ID.
func makeEntryKey(productID string) []byte {
	return []byte(entryPrefix + ":" + productID)
}

// productIDFromKey strips the prefix from an entry or vector key.
func productIDFromKey(prefix string, key []byte) string {
	return string(key[len(prefix)+1:])
}

// makeVectorKey generates a key for the embedding of a catalog row.
func makeVectorKey(productID string) []byte {
	return []byte(vectorPrefix + ":" + productID)
}

// makeEmbeddingKey generates a key for a cached embedding by content ID.
// Format: prefix:id
func makeEmbeddingKey(id core.ID) []byte {
	prefix := []byte(embeddingPrefix + ":")
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeNumericFieldPrefix generates the prefix shared by all index keys of a field.
// Format: prefix:field:
func makeNumericFieldPrefix(field string) []byte {
	return []byte(numericPrefix + ":" + field + ":")
}

// makeNumericKey generates a composite key for the numeric index.
// Format: prefix:field:value:productID
func makeNumericKey(field string, value float64, productID string) []byte {
	prefix := makeNumericFieldPrefix(field)
	buf := make([]byte, len(prefix)+8+len(productID))
	offset := copy(buf, prefix)
	// Order-preserving encoding so lexicographic sort follows numeric order
	binary.BigEndian.PutUint64(buf[offset:], sortableFloat(value))
	offset += 8
	copy(buf[offset:], productID)
	return buf
}

// makePartialNumericKey generates a partial key for range scans.
// Format: prefix:field:value
func makePartialNumericKey(field string, value float64) []byte {
	prefix := makeNumericFieldPrefix(field)
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], sortableFloat(value))
	return buf
}

// parseNumericKey extracts the value and product ID from a numeric index key.
func parseNumericKey(field string, key []byte) (float64, string) {
	offset := len(makeNumericFieldPrefix(field))
	value := unsortableFloat(binary.BigEndian.Uint64(key[offset : offset+8]))
	return value, string(key[offset+8:])
}

// sortableFloat maps a float to a uint64 whose unsigned order matches the float order.
func sortableFloat(f float64) uint64 {
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		return ^bits
	}
	return bits | 1<<63
}

func unsortableFloat(u uint64) float64 {
	if u&(1<<63) != 0 {
		return math.Float64frombits(u &^ (1 << 63))
	}
	return math.Float64frombits(^u)
}
