package clique

import "math/bits"

// bitset is a fixed size set of small integers.
type bitset []uint64

func newBitset(n int) bitset {
	return make(bitset, (n+63)/64)
}

func (b bitset) set(i int) {
	b[i/64] |= 1 << (uint(i) % 64)
}

func (b bitset) clear(i int) {
	b[i/64] &^= 1 << (uint(i) % 64)
}

func (b bitset) has(i int) bool {
	return b[i/64]&(1<<(uint(i)%64)) != 0
}

func (b bitset) empty() bool {
	for _, w := range b {
		if w != 0 {
			return false
		}
	}
	return true
}

func (b bitset) clone() bitset {
	c := make(bitset, len(b))
	copy(c, b)
	return c
}

func (b bitset) and(other bitset) bitset {
	c := make(bitset, len(b))
	for i := range b {
		c[i] = b[i] & other[i]
	}
	return c
}

func (b bitset) andNot(other bitset) bitset {
	c := make(bitset, len(b))
	for i := range b {
		c[i] = b[i] &^ other[i]
	}
	return c
}

func (b bitset) or(other bitset) bitset {
	c := make(bitset, len(b))
	for i := range b {
		c[i] = b[i] | other[i]
	}
	return c
}

func (b bitset) andCount(other bitset) int {
	count := 0
	for i := range b {
		count += bits.OnesCount64(b[i] & other[i])
	}
	return count
}

// members returns the elements in ascending order.
func (b bitset) members() []int {
	var list []int
	for i, w := range b {
		for w != 0 {
			tz := bits.TrailingZeros64(w)
			list = append(list, i*64+tz)
			w &^= 1 << uint(tz)
		}
	}
	return list
}
