package schedule

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/libfarm-go/amount"
)

func unit(end, rate uint64) Unit {
	return Unit{EndBlock: end, RatePerBlock: uint256.NewInt(rate)}
}

func mustSchedule(t *testing.T, units ...Unit) Schedule {
	t.Helper()
	s, err := New(units)
	require.NoError(t, err)
	return s
}

func emitted(t *testing.T, from, to uint64, s Schedule) uint64 {
	t.Helper()
	got, err := Emitted(from, to, s)
	require.NoError(t, err)
	require.True(t, got.IsUint64())
	return got.Uint64()
}

func TestNew_SortsByEndBlock(t *testing.T) {
	s := mustSchedule(t, unit(6000, 6000), unit(1000, 3000), unit(3000, 3000))
	require.Len(t, s, 3)
	assert.Equal(t, []uint64{1000, 3000, 6000}, []uint64{s[0].EndBlock, s[1].EndBlock, s[2].EndBlock})
	assert.True(t, s.IsSorted())
	assert.Equal(t, uint64(6000), s.LastBlock())
}

func TestNew_CopiesInput(t *testing.T) {
	in := []Unit{unit(10, 5)}
	s := mustSchedule(t, in...)
	in[0].RatePerBlock.SetUint64(99)
	assert.Equal(t, uint64(5), s[0].RatePerBlock.Uint64())
}

func TestNew_RejectsWideRate(t *testing.T) {
	wide := new(uint256.Int).Lsh(uint256.NewInt(1), 128)
	_, err := New([]Unit{{EndBlock: 10, RatePerBlock: wide}})
	assert.ErrorIs(t, err, ErrRateTooLarge)
}

func TestEmitted(t *testing.T) {
	s := mustSchedule(t, unit(1000, 3000), unit(3000, 3000), unit(6000, 6000))

	tests := []struct {
		name     string
		from, to uint64
		want     uint64
	}{
		{"empty range", 500, 500, 0},
		{"reversed range", 700, 500, 0},
		{"single block", 0, 1, 3000},
		{"first segment", 0, 1000, 3_000_000},
		{"across boundary", 999, 1001, 6000},
		{"into third segment", 2999, 3001, 3000 + 6000},
		{"whole schedule", 0, 6000, 1000*3000 + 2000*3000 + 3000*6000},
		{"tail emits nothing", 6000, 9000, 0},
		{"partly into tail", 5999, 9000, 6000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, emitted(t, tt.from, tt.to, s))
		})
	}
}

func TestEmitted_EmptySchedule(t *testing.T) {
	assert.Equal(t, uint64(0), emitted(t, 0, 1_000_000, nil))
}

func TestEmitted_ZeroWidthForAllBlocks(t *testing.T) {
	s := mustSchedule(t, unit(10, 7), unit(20, 9))
	for b := uint64(0); b <= 25; b++ {
		assert.Equal(t, uint64(0), emitted(t, b, b, s), "block %d", b)
	}
}

func TestEmitted_DuplicateEndBlocks(t *testing.T) {
	s := mustSchedule(t, unit(10, 7), unit(10, 1000), unit(20, 9))
	assert.Equal(t, uint64(10*7+10*9), emitted(t, 0, 20, s))
}

func TestEmitted_MatchesRateAt(t *testing.T) {
	s := mustSchedule(t, unit(3, 10), unit(7, 4), unit(12, 1))
	for from := uint64(0); from <= 14; from++ {
		for to := from; to <= 14; to++ {
			var want uint64
			for b := from + 1; b <= to; b++ {
				want += s.RateAt(b).Uint64()
			}
			assert.Equal(t, want, emitted(t, from, to, s), "(%d, %d]", from, to)
		}
	}
}

func TestEmitted_Telescopes(t *testing.T) {
	s := mustSchedule(t, unit(1000, 4000), unit(2500, 17), unit(4000, 123456))
	checkpoints := []uint64{0, 1, 999, 1000, 1001, 2400, 3999, 4000, 4500}

	var sum uint64
	for i := 1; i < len(checkpoints); i++ {
		sum += emitted(t, checkpoints[i-1], checkpoints[i], s)
	}
	assert.Equal(t, emitted(t, 0, 4500, s), sum)
}

func TestEmitted_Overflow(t *testing.T) {
	s := Schedule{{EndBlock: 1000, RatePerBlock: amount.Max128.Clone()}}
	_, err := Emitted(0, 1, s)
	require.NoError(t, err)

	_, err = Emitted(0, 2, s)
	assert.ErrorIs(t, err, amount.ErrOverflow)
}

func TestRateAt(t *testing.T) {
	s := mustSchedule(t, unit(10, 5), unit(20, 8))
	assert.Equal(t, uint64(0), s.RateAt(0).Uint64())
	assert.Equal(t, uint64(5), s.RateAt(1).Uint64())
	assert.Equal(t, uint64(5), s.RateAt(10).Uint64())
	assert.Equal(t, uint64(8), s.RateAt(11).Uint64())
	assert.Equal(t, uint64(0), s.RateAt(21).Uint64())
}

func TestTotalEmission(t *testing.T) {
	s := mustSchedule(t, unit(1000, 4000))
	total, err := TotalEmission(s)
	require.NoError(t, err)
	assert.Equal(t, uint64(4_000_000), total.Uint64())
}

func TestClone(t *testing.T) {
	s := mustSchedule(t, unit(10, 5))
	c := s.Clone()
	c[0].RatePerBlock.SetUint64(1)
	assert.Equal(t, uint64(5), s[0].RatePerBlock.Uint64())
	assert.Nil(t, Schedule(nil).Clone())
}

// --- Codec tests ---

func TestEncodeDecode(t *testing.T) {
	s := mustSchedule(t, unit(1000, 3000), unit(6000, 6000))
	s = append(s, Unit{EndBlock: 7000, RatePerBlock: amount.Max128.Clone()})

	data, err := Encode(s)
	require.NoError(t, err)
	assert.Len(t, data, scheduleHeaderSize+3*scheduleUnitSize)

	got, err := Decode(data)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i := range s {
		assert.Equal(t, s[i].EndBlock, got[i].EndBlock)
		assert.True(t, s[i].RatePerBlock.Eq(got[i].RatePerBlock))
	}
}

func TestDecode_SortsUnits(t *testing.T) {
	data, err := Encode(Schedule{unit(50, 1), unit(10, 2)})
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), got[0].EndBlock)
}

func TestDecode_Malformed(t *testing.T) {
	data, err := Encode(Schedule{unit(50, 1)})
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"header only claims one unit", data[:scheduleHeaderSize]},
		{"truncated unit", data[:len(data)-1]},
		{"trailing bytes", append(append([]byte{}, data...), 0x00)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			assert.ErrorIs(t, err, ErrInvalidScheduleData)
		})
	}
}

func TestEncode_RejectsWideRate(t *testing.T) {
	wide := new(uint256.Int).Lsh(uint256.NewInt(1), 130)
	_, err := Encode(Schedule{{EndBlock: 1, RatePerBlock: wide}})
	assert.ErrorIs(t, err, ErrRateTooLarge)
}
