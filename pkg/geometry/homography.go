package geometry

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Homography is a 3x3 projective transform in row-major order.
type Homography [3][3]float64

// TranslationHomography returns a pure translation.
func TranslationHomography(tx, ty float64) Homography {
	return Homography{{1, 0, tx}, {0, 1, ty}, {0, 0, 1}}
}

// HomographyFromPoints computes the projective transform mapping each
// src[i] to dst[i] for exactly four point pairs.
func HomographyFromPoints(src, dst [4]Point2D) (Homography, error) {
	// h33 is fixed at 1, leaving 8 unknowns:
	// x' = (h11 x + h12 y + h13) / (h31 x + h32 y + 1)
	// y' = (h21 x + h22 y + h23) / (h31 x + h32 y + 1)
	A := mat.NewDense(8, 8, nil)
	B := mat.NewVecDense(8, nil)

	for i := 0; i < 4; i++ {
		x, y := src[i].X, src[i].Y
		xp, yp := dst[i].X, dst[i].Y

		A.Set(i*2, 0, x)
		A.Set(i*2, 1, y)
		A.Set(i*2, 2, 1)
		A.Set(i*2, 6, -x*xp)
		A.Set(i*2, 7, -y*xp)
		B.SetVec(i*2, xp)

		A.Set(i*2+1, 3, x)
		A.Set(i*2+1, 4, y)
		A.Set(i*2+1, 5, 1)
		A.Set(i*2+1, 6, -x*yp)
		A.Set(i*2+1, 7, -y*yp)
		B.SetVec(i*2+1, yp)
	}

	var params mat.VecDense
	if err := params.SolveVec(A, B); err != nil {
		return Homography{}, fmt.Errorf("solve homography: %w", err)
	}

	return Homography{
		{params.AtVec(0), params.AtVec(1), params.AtVec(2)},
		{params.AtVec(3), params.AtVec(4), params.AtVec(5)},
		{params.AtVec(6), params.AtVec(7), 1},
	}, nil
}

// Apply projects a point through the transform. Points on the line at
// infinity map to +Inf.
func (h Homography) Apply(p Point2D) Point2D {
	w := h[2][0]*p.X + h[2][1]*p.Y + h[2][2]
	if math.Abs(w) < 1e-12 {
		return Point2D{X: math.Inf(1), Y: math.Inf(1)}
	}
	return Point2D{
		X: (h[0][0]*p.X + h[0][1]*p.Y + h[0][2]) / w,
		Y: (h[1][0]*p.X + h[1][1]*p.Y + h[1][2]) / w,
	}
}

// Compose returns h * other, which applies other first.
func (h Homography) Compose(other Homography) Homography {
	var prod mat.Dense
	prod.Mul(h.dense(), other.dense())

	var out Homography
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out[r][c] = prod.At(r, c)
		}
	}
	return out
}

func (h Homography) dense() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		h[0][0], h[0][1], h[0][2],
		h[1][0], h[1][1], h[1][2],
		h[2][0], h[2][1], h[2][2],
	})
}
