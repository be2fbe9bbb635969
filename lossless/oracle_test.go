package lossless

import (
	"fmt"

	"github.com/arloliu/nefenc/huffman"
	"github.com/arloliu/nefenc/internal/predictor"
)

// oracle decodes a bitstream the way a NEF reader does. It exists only to check the
// encoder; decoding is not part of the package API.
type oracle struct {
	buf []byte
	pos int // bit position

	codes map[uint16]int // width<<8 | code -> class
}

func newOracle(bitstream []byte) *oracle {
	codes := make(map[uint16]int, huffman.MaxClasses)
	for _, e := range huffman.Entries() {
		codes[uint16(e.Width)<<8|uint16(e.Code)] = int(e.Class)
	}

	return &oracle{buf: bitstream, codes: codes}
}

func (o *oracle) bits(count int) (uint32, error) {
	var v uint32
	for range count {
		if o.pos/8 >= len(o.buf) {
			return 0, fmt.Errorf("bitstream ended at bit %d", o.pos)
		}
		bit := (o.buf[o.pos/8] >> (7 - o.pos%8)) & 1
		v = v<<1 | uint32(bit)
		o.pos++
	}

	return v, nil
}

func (o *oracle) class() (int, error) {
	var code uint16
	for width := uint16(1); width <= 8; width++ {
		bit, err := o.bits(1)
		if err != nil {
			return 0, err
		}
		code = code<<1 | uint16(bit)
		if class, ok := o.codes[width<<8|code]; ok {
			return class, nil
		}
	}

	return 0, fmt.Errorf("no code matches at bit %d", o.pos)
}

// decode returns the reconstructed samples and the signed delta of every sample.
func (o *oracle) decode(rows, columns int, seed uint16) ([]uint16, []int, error) {
	samples := make([]uint16, 0, rows*columns)
	deltas := make([]int, 0, rows*columns)

	pred := predictor.New(seed)
	for row := range rows {
		for col := range columns {
			class, err := o.class()
			if err != nil {
				return nil, nil, err
			}

			v, err := o.bits(class)
			if err != nil {
				return nil, nil, err
			}

			diff := int(v)
			if class > 0 && v&(1<<(class-1)) == 0 {
				diff -= 1<<class - 1
			}

			sample := pred.Reference(row, col) + uint16(diff)
			pred.Update(row, col, uint16(diff))

			samples = append(samples, sample)
			deltas = append(deltas, diff)
		}
	}

	return samples, deltas, nil
}
