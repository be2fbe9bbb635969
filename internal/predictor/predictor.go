// Package predictor implements the two-dimensional reference predictor of the NEF
// lossless bitstream.
//
// A Bayer grid repeats a 2x2 color pattern, so every sample is predicted from the
// closest already-coded sample of the same color:
//   - columns 0 and 1 predict from the same column two rows earlier
//   - every later column predicts from the column two positions earlier in the same row
//
// The predictor tracks reconstructed values, i.e. the previous reference plus the
// coded delta, which is exactly what a decoder can rebuild from the bitstream.
package predictor

// State is the predictor state of a single encode pass.
//
// State is a small value type meant to live on the stack of one encode call. It must
// not be shared between concurrent encodes. Rows must be visited in increasing order
// and columns in increasing order within a row.
type State struct {
	rows [2][2]uint16 // first two columns, by row parity
	cur  [2]uint16    // current row, by column parity
}

// New returns a predictor state with every slot set to seed.
func New(seed uint16) State {
	return State{
		rows: [2][2]uint16{{seed, seed}, {seed, seed}},
		cur:  [2]uint16{seed, seed},
	}
}

// Reference returns the predicted value for the sample at (row, col).
func (s *State) Reference(row, col int) uint16 {
	if col <= 1 {
		return s.rows[row&1][col]
	}

	return s.cur[col&1]
}

// Update adds the coded delta to the slot that supplied the reference of (row, col).
//
// delta is a two's complement 16-bit value; the addition wraps like the sensor's
// native 16-bit arithmetic. For columns 0 and 1 the result also becomes the current
// row value for that column parity.
func (s *State) Update(row, col int, delta uint16) {
	if col <= 1 {
		s.rows[row&1][col] += delta
		s.cur[col] = s.rows[row&1][col]

		return
	}

	s.cur[col&1] += delta
}
