package cloud

// Mask is a boolean image aligned with a Grid.
type Mask struct {
	Rows int
	Cols int
	Bits []bool
}

// NewMask allocates a cleared mask.
func NewMask(rows, cols int) *Mask {
	if rows < 0 {
		rows = 0
	}
	if cols < 0 {
		cols = 0
	}
	return &Mask{Rows: rows, Cols: cols, Bits: make([]bool, rows*cols)}
}

// Get reports whether row/col is set.
func (m *Mask) Get(row, col int) bool { return m.Bits[row*m.Cols+col] }

// Set assigns row/col.
func (m *Mask) Set(row, col int, v bool) { m.Bits[row*m.Cols+col] = v }

// And returns the cell-wise conjunction of m and o. Masks of different
// shapes share no cells, so the result is empty.
func (m *Mask) And(o *Mask) *Mask {
	out := NewMask(m.Rows, m.Cols)
	if o == nil || o.Rows != m.Rows || o.Cols != m.Cols {
		return out
	}
	for i := range m.Bits {
		out.Bits[i] = m.Bits[i] && o.Bits[i]
	}
	return out
}

// Count returns the number of set cells.
func (m *Mask) Count() int {
	n := 0
	for _, b := range m.Bits {
		if b {
			n++
		}
	}
	return n
}

// Offsets returns the row-major positions of set cells in scan order.
func (m *Mask) Offsets() []int {
	out := make([]int, 0, m.Count())
	for i, b := range m.Bits {
		if b {
			out = append(out, i)
		}
	}
	return out
}

// Indices returns the set cells in scan order.
func (m *Mask) Indices() []Index {
	out := make([]Index, 0, m.Count())
	for i, b := range m.Bits {
		if b {
			out = append(out, Index{Row: i / m.Cols, Col: i % m.Cols})
		}
	}
	return out
}
