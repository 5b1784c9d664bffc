package location

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
)

// Location is an opaque, stable identifier of one produced element instance.
// The zero value is not a valid location.
type Location struct {
	hi, lo uint64
}

// Assign derives the Location for a provenance path. It is a pure function
// of the path: equal paths always yield equal locations.
func Assign(p Path) Location {
	h := fnv.New128a()
	h.Write([]byte(p.String()))
	return fromBytes(h.Sum(nil))
}

// Variant derives a distinct location from l. It is used to separate
// constructs that would otherwise share a provenance path.
func (l Location) Variant(n int) Location {
	var buf [24]byte
	binary.BigEndian.PutUint64(buf[0:8], l.hi)
	binary.BigEndian.PutUint64(buf[8:16], l.lo)
	binary.BigEndian.PutUint64(buf[16:24], uint64(n))
	h := fnv.New128a()
	h.Write(buf[:])
	return fromBytes(h.Sum(nil))
}

// IsZero reports whether l is the zero Location.
func (l Location) IsZero() bool {
	return l.hi == 0 && l.lo == 0
}

// Compare orders locations by their numeric value. The order is total and
// stable but unrelated to document order, which only an index knows.
func (l Location) Compare(other Location) int {
	switch {
	case l.hi < other.hi:
		return -1
	case l.hi > other.hi:
		return 1
	case l.lo < other.lo:
		return -1
	case l.lo > other.lo:
		return 1
	}
	return 0
}

// String renders the location as `@` followed by 32 hex digits.
func (l Location) String() string {
	return fmt.Sprintf("@%016x%016x", l.hi, l.lo)
}

// Bytes returns the 16 byte big-endian form of the location.
func (l Location) Bytes() []byte {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf[0:8], l.hi)
	binary.BigEndian.PutUint64(buf[8:16], l.lo)
	return buf
}

// FromBytes is the inverse of Bytes.
func FromBytes(b []byte) (Location, error) {
	if len(b) != 16 {
		return Location{}, fmt.Errorf("location must be 16 bytes, got %d", len(b))
	}
	return fromBytes(b), nil
}

func fromBytes(b []byte) Location {
	return Location{
		hi: binary.BigEndian.Uint64(b[0:8]),
		lo: binary.BigEndian.Uint64(b[8:16]),
	}
}
