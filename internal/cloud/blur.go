package cloud

import "github.com/golang/geo/r3"

// BoxBlur smooths the grid with a size×size mean filter and returns a new grid.
//
// Only valid cells contribute to a window, and the window is clipped at the
// grid border rather than padded. A blurred cell is valid exactly when its
// source cell is valid, so holes in the input never get filled in.
// Sizes of 1 or less return an unmodified copy.
func BoxBlur(g *Grid, size int) *Grid {
	out := g.Clone()
	if size <= 1 || g.Len() == 0 {
		return out
	}
	half := size / 2

	// Summed-area tables with one row/column of zero padding.
	w := g.Cols + 1
	sum := make([]r3.Vector, (g.Rows+1)*w)
	cnt := make([]int, (g.Rows+1)*w)
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			var p r3.Vector
			n := 0
			if g.IsValid(r, c) {
				p = g.At(r, c)
				n = 1
			}
			i := (r+1)*w + (c + 1)
			sum[i] = p.Add(sum[i-1]).Add(sum[i-w]).Sub(sum[i-w-1])
			cnt[i] = n + cnt[i-1] + cnt[i-w] - cnt[i-w-1]
		}
	}

	for r := 0; r < g.Rows; r++ {
		r0, r1 := clamp(r-half, 0, g.Rows-1), clamp(r+half, 0, g.Rows-1)
		for c := 0; c < g.Cols; c++ {
			if !g.IsValid(r, c) {
				continue
			}
			c0, c1 := clamp(c-half, 0, g.Cols-1), clamp(c+half, 0, g.Cols-1)
			a := r0*w + c0
			b := r0*w + (c1 + 1)
			d := (r1+1)*w + c0
			e := (r1+1)*w + (c1 + 1)
			s := sum[e].Sub(sum[b]).Sub(sum[d]).Add(sum[a])
			n := cnt[e] - cnt[b] - cnt[d] + cnt[a]
			// n ≥ 1 because the centre cell itself is valid.
			out.Points[g.Offset(r, c)] = s.Mul(1 / float64(n))
		}
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
