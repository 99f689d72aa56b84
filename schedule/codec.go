package schedule

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/holiman/uint256"
)

const (
	scheduleHeaderSize = 4  // num_units(4)
	scheduleUnitSize   = 24 // end_block(8) + rate_per_block(16)
)

// Encode serializes s to its fixed-width big-endian form.
func Encode(s Schedule) ([]byte, error) {
	if len(s) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d units", ErrTooManyUnits, len(s))
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	buf := make([]byte, scheduleHeaderSize+scheduleUnitSize*len(s))
	offset := 0

	binary.BigEndian.PutUint32(buf[offset:offset+4], uint32(len(s)))
	offset += 4

	for _, u := range s {
		binary.BigEndian.PutUint64(buf[offset:offset+8], u.EndBlock)
		offset += 8
		var rate [32]byte
		if u.RatePerBlock != nil {
			rate = u.RatePerBlock.Bytes32()
		}
		copy(buf[offset:offset+16], rate[16:])
		offset += 16
	}
	return buf, nil
}

// Decode parses data produced by Encode. The result is re-sorted.
func Decode(data []byte) (Schedule, error) {
	if len(data) < scheduleHeaderSize {
		return nil, fmt.Errorf("%w: too short (%d bytes)", ErrInvalidScheduleData, len(data))
	}
	numUnits := int(binary.BigEndian.Uint32(data[0:4]))
	expectedSize := scheduleHeaderSize + scheduleUnitSize*numUnits
	if len(data) != expectedSize {
		return nil, fmt.Errorf("%w: expected %d bytes for %d units, got %d",
			ErrInvalidScheduleData, expectedSize, numUnits, len(data))
	}

	s := make(Schedule, numUnits)
	offset := scheduleHeaderSize
	for i := 0; i < numUnits; i++ {
		s[i].EndBlock = binary.BigEndian.Uint64(data[offset : offset+8])
		offset += 8
		s[i].RatePerBlock = new(uint256.Int).SetBytes(data[offset : offset+16])
		offset += 16
	}
	s.Sort()
	return s, nil
}
