package schedule

import (
	"testing"

	"github.com/holiman/uint256"
)

func FuzzEmittedSplit(f *testing.F) {
	f.Add(uint64(0), uint64(500), uint64(1000), uint64(4000), uint64(2000), uint64(7))
	f.Add(uint64(999), uint64(1000), uint64(1001), uint64(1), uint64(1000), uint64(0))
	f.Fuzz(func(t *testing.T, a, b, c, rate1, end2, rate2 uint64) {
		// Keep ranges small enough for the products to stay well inside u128.
		a, b, c = a%1_000_000, b%1_000_000, c%1_000_000
		if a > b {
			a, b = b, a
		}
		if b > c {
			b, c = c, b
		}
		if a > b {
			a, b = b, a
		}
		s, err := New([]Unit{
			{EndBlock: 400_000, RatePerBlock: uint256.NewInt(rate1)},
			{EndBlock: end2 % 1_200_000, RatePerBlock: uint256.NewInt(rate2)},
		})
		if err != nil {
			t.Fatal(err)
		}

		ab, err := Emitted(a, b, s)
		if err != nil {
			t.Fatal(err)
		}
		bc, err := Emitted(b, c, s)
		if err != nil {
			t.Fatal(err)
		}
		ac, err := Emitted(a, c, s)
		if err != nil {
			t.Fatal(err)
		}
		if sum := new(uint256.Int).Add(ab, bc); !sum.Eq(ac) {
			t.Fatalf("emitted(%d,%d)+emitted(%d,%d)=%s, emitted(%d,%d)=%s", a, b, b, c, sum.Dec(), a, c, ac.Dec())
		}
	})
}

func FuzzDecode(f *testing.F) {
	seed, _ := Encode(Schedule{{EndBlock: 10, RatePerBlock: uint256.NewInt(3)}})
	f.Add(seed)
	f.Add([]byte{})
	f.Add([]byte{0xff, 0xff, 0xff, 0xff})
	f.Fuzz(func(t *testing.T, data []byte) {
		s, err := Decode(data)
		if err != nil {
			return
		}
		if !s.IsSorted() {
			t.Fatal("decoded schedule is not sorted")
		}
		out, err := Encode(s)
		if err != nil {
			t.Fatalf("re-encode: %v", err)
		}
		if len(out) != len(data) {
			t.Fatalf("re-encoded length %d, want %d", len(out), len(data))
		}
	})
}
