// Package carrier implements the value-shape layer of the model graph:
// uniform wrappers around the four value shapes a node can hold (scalar
// real, scalar int, vector real, matrix real) plus integer vector/matrix
// variants used for observed count data. A Carrier's shape and dimensions
// are fixed the first time a value is bound to it; storage is owned by
// exactly one Carrier.
package carrier

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Shape tags the value held by a Carrier. It never changes after
// construction.
type Shape int

const (
	// ScalarReal holds a single float64.
	ScalarReal Shape = iota
	// ScalarInt holds a single int64.
	ScalarInt
	// VectorReal holds a 1-D slice of float64, backed by *mat.VecDense.
	VectorReal
	// MatrixReal holds a 2-D block of float64, backed by *mat.Dense.
	MatrixReal
	// VectorInt holds a 1-D slice of int64.
	VectorInt
	// MatrixInt holds a 2-D block of int64, row-major.
	MatrixInt
)

// String renders the shape tag for logging and error messages.
func (s Shape) String() string {
	switch s {
	case ScalarReal:
		return "ScalarReal"
	case ScalarInt:
		return "ScalarInt"
	case VectorReal:
		return "VectorReal"
	case MatrixReal:
		return "MatrixReal"
	case VectorInt:
		return "VectorInt"
	case MatrixInt:
		return "MatrixInt"
	default:
		return fmt.Sprintf("Shape(%d)", int(s))
	}
}

// IntMatrix is a dense, row-major matrix of int64, the MatrixInt backing
// store. gonum's mat package has no integer matrix type, so this module
// provides its own bounds-checked one rather than smuggling integers
// through a float64 mat.Dense.
type IntMatrix struct {
	rows, cols int
	data       []int64
}

// NewIntMatrix allocates a zeroed r×c IntMatrix.
func NewIntMatrix(r, c int) *IntMatrix {
	return &IntMatrix{rows: r, cols: c, data: make([]int64, r*c)}
}

// Dims returns the row and column count.
func (m *IntMatrix) Dims() (int, int) { return m.rows, m.cols }

// At returns the element at (i, j).
func (m *IntMatrix) At(i, j int) int64 {
	m.checkBounds(i, j)
	return m.data[i*m.cols+j]
}

// Set writes the element at (i, j).
func (m *IntMatrix) Set(i, j int, v int64) {
	m.checkBounds(i, j)
	m.data[i*m.cols+j] = v
}

func (m *IntMatrix) checkBounds(i, j int) {
	if i < 0 || i >= m.rows || j < 0 || j >= m.cols {
		panic(fmt.Sprintf("carrier: IntMatrix index (%d,%d) out of bounds for %dx%d", i, j, m.rows, m.cols))
	}
}

// Carrier grants read access, and for mutable nodes write access, to a
// value of a particular Shape. Carriers are created once per node and
// never change shape or dimensions afterward.
type Carrier struct {
	shape Shape
	bound bool

	f64  float64
	i64  int64
	vec  *mat.VecDense
	mtx  *mat.Dense
	ivec []int64
	imtx *IntMatrix
}

// NewScalarReal creates a ScalarReal carrier bound to v.
func NewScalarReal(v float64) *Carrier {
	return &Carrier{shape: ScalarReal, bound: true, f64: v}
}

// NewScalarInt creates a ScalarInt carrier bound to v.
func NewScalarInt(v int64) *Carrier {
	return &Carrier{shape: ScalarInt, bound: true, i64: v}
}

// NewVectorReal wraps an existing *mat.VecDense. The carrier's dimension
// is locked to v.Len().
func NewVectorReal(v *mat.VecDense) *Carrier {
	return &Carrier{shape: VectorReal, bound: true, vec: v}
}

// NewMatrixReal wraps an existing *mat.Dense. The carrier's dimensions
// are locked to m.Dims().
func NewMatrixReal(m *mat.Dense) *Carrier {
	return &Carrier{shape: MatrixReal, bound: true, mtx: m}
}

// NewVectorInt wraps an existing []int64 slice.
func NewVectorInt(v []int64) *Carrier {
	return &Carrier{shape: VectorInt, bound: true, ivec: v}
}

// NewMatrixInt wraps an existing *IntMatrix.
func NewMatrixInt(m *IntMatrix) *Carrier {
	return &Carrier{shape: MatrixInt, bound: true, imtx: m}
}

// Shape returns the carrier's fixed shape tag.
func (c *Carrier) Shape() Shape { return c.shape }

// Dims reports (rows, cols) for any shape: (1,1) for scalars, (n,1) for
// vectors, (r,c) for matrices.
func (c *Carrier) Dims() (int, int) {
	switch c.shape {
	case ScalarReal, ScalarInt:
		return 1, 1
	case VectorReal:
		return c.vec.Len(), 1
	case VectorInt:
		return len(c.ivec), 1
	case MatrixReal:
		return c.mtx.Dims()
	case MatrixInt:
		return c.imtx.Dims()
	default:
		return 0, 0
	}
}

// checkShape panics if the carrier is not of the expected shape. A shape
// mismatch discovered here is a programming error (spec: fatal at
// construction, abort at runtime), never a recoverable condition.
func (c *Carrier) checkShape(want Shape) {
	if c.shape != want {
		panic(fmt.Sprintf("carrier: expected shape %s, got %s", want, c.shape))
	}
}

// Float returns the held float64. Panics unless Shape() == ScalarReal.
func (c *Carrier) Float() float64 {
	c.checkShape(ScalarReal)
	return c.f64
}

// SetFloat writes the held float64. Panics unless Shape() == ScalarReal.
func (c *Carrier) SetFloat(v float64) {
	c.checkShape(ScalarReal)
	c.f64 = v
}

// Int returns the held int64. Panics unless Shape() == ScalarInt.
func (c *Carrier) Int() int64 {
	c.checkShape(ScalarInt)
	return c.i64
}

// SetInt writes the held int64. Panics unless Shape() == ScalarInt.
func (c *Carrier) SetInt(v int64) {
	c.checkShape(ScalarInt)
	c.i64 = v
}

// Vec returns the held vector for read/write. Panics unless
// Shape() == VectorReal.
func (c *Carrier) Vec() *mat.VecDense {
	c.checkShape(VectorReal)
	return c.vec
}

// Mat returns the held matrix for read/write. Panics unless
// Shape() == MatrixReal.
func (c *Carrier) Mat() *mat.Dense {
	c.checkShape(MatrixReal)
	return c.mtx
}

// IntVec returns the held integer vector for read/write. Panics unless
// Shape() == VectorInt.
func (c *Carrier) IntVec() []int64 {
	c.checkShape(VectorInt)
	return c.ivec
}

// IntMat returns the held integer matrix for read/write. Panics unless
// Shape() == MatrixInt.
func (c *Carrier) IntMat() *IntMatrix {
	c.checkShape(MatrixInt)
	return c.imtx
}

// Snapshot is an opaque, shape-matched copy of a Carrier's current
// value, produced by Save and consumed by Restore. The sampler takes one
// per unobserved node before every proposal.
type Snapshot struct {
	shape Shape
	f64   float64
	i64   int64
	vec   []float64
	mtx   []float64
	rows  int
	cols  int
	ivec  []int64
	imtx  []int64
}

// Shape returns the shape tag the snapshot was captured with.
func (s *Snapshot) Shape() Shape { return s.shape }

// Float returns the snapshot's scalar float64 value. Panics unless
// Shape() == ScalarReal.
func (s *Snapshot) Float() float64 {
	if s.shape != ScalarReal {
		panic(fmt.Sprintf("carrier: snapshot Float() on shape %s", s.shape))
	}
	return s.f64
}

// Int returns the snapshot's scalar int64 value. Panics unless
// Shape() == ScalarInt.
func (s *Snapshot) Int() int64 {
	if s.shape != ScalarInt {
		panic(fmt.Sprintf("carrier: snapshot Int() on shape %s", s.shape))
	}
	return s.i64
}

// Vec returns the snapshot's vector as a read-only []float64. Panics
// unless Shape() == VectorReal.
func (s *Snapshot) Vec() []float64 {
	if s.shape != VectorReal {
		panic(fmt.Sprintf("carrier: snapshot Vec() on shape %s", s.shape))
	}
	return s.vec
}

// Mat returns the snapshot's matrix as a read-only row-major []float64
// plus its dimensions. Panics unless Shape() == MatrixReal.
func (s *Snapshot) Mat() (data []float64, rows, cols int) {
	if s.shape != MatrixReal {
		panic(fmt.Sprintf("carrier: snapshot Mat() on shape %s", s.shape))
	}
	return s.mtx, s.rows, s.cols
}

// IntVec returns the snapshot's integer vector as a read-only []int64.
// Panics unless Shape() == VectorInt.
func (s *Snapshot) IntVec() []int64 {
	if s.shape != VectorInt {
		panic(fmt.Sprintf("carrier: snapshot IntVec() on shape %s", s.shape))
	}
	return s.ivec
}

// IntMat returns the snapshot's integer matrix as a read-only row-major
// []int64 plus its dimensions. Panics unless Shape() == MatrixInt.
func (s *Snapshot) IntMat() (data []int64, rows, cols int) {
	if s.shape != MatrixInt {
		panic(fmt.Sprintf("carrier: snapshot IntMat() on shape %s", s.shape))
	}
	return s.imtx, s.rows, s.cols
}

// Save copies the carrier's current value into a reusable Snapshot.
// Passing a non-nil snap avoids an allocation on the hot path; pass nil
// to allocate a fresh one.
func (c *Carrier) Save(snap *Snapshot) *Snapshot {
	if snap == nil {
		snap = &Snapshot{}
	}
	snap.shape = c.shape
	switch c.shape {
	case ScalarReal:
		snap.f64 = c.f64
	case ScalarInt:
		snap.i64 = c.i64
	case VectorReal:
		n := c.vec.Len()
		snap.vec = growFloat64(snap.vec, n)
		for i := 0; i < n; i++ {
			snap.vec[i] = c.vec.AtVec(i)
		}
	case MatrixReal:
		r, col := c.mtx.Dims()
		snap.rows, snap.cols = r, col
		snap.mtx = growFloat64(snap.mtx, r*col)
		for i := 0; i < r; i++ {
			for j := 0; j < col; j++ {
				snap.mtx[i*col+j] = c.mtx.At(i, j)
			}
		}
	case VectorInt:
		snap.ivec = growInt64(snap.ivec, len(c.ivec))
		copy(snap.ivec, c.ivec)
	case MatrixInt:
		r, col := c.imtx.Dims()
		snap.rows, snap.cols = r, col
		snap.imtx = growInt64(snap.imtx, r*col)
		for i := 0; i < r; i++ {
			for j := 0; j < col; j++ {
				snap.imtx[i*col+j] = c.imtx.At(i, j)
			}
		}
	}
	return snap
}

// Restore writes a Snapshot's value back into the carrier. The snapshot
// must have been produced by Save on a carrier of the same shape and
// dimensions; a mismatch is a programming error and panics.
func (c *Carrier) Restore(snap *Snapshot) {
	if snap.shape != c.shape {
		panic(fmt.Sprintf("carrier: restore shape mismatch: carrier is %s, snapshot is %s", c.shape, snap.shape))
	}
	switch c.shape {
	case ScalarReal:
		c.f64 = snap.f64
	case ScalarInt:
		c.i64 = snap.i64
	case VectorReal:
		for i := 0; i < c.vec.Len(); i++ {
			c.vec.SetVec(i, snap.vec[i])
		}
	case MatrixReal:
		r, col := c.mtx.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < col; j++ {
				c.mtx.Set(i, j, snap.mtx[i*col+j])
			}
		}
	case VectorInt:
		copy(c.ivec, snap.ivec)
	case MatrixInt:
		r, col := c.imtx.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < col; j++ {
				c.imtx.Set(i, j, snap.imtx[i*col+j])
			}
		}
	}
}

func growFloat64(s []float64, n int) []float64 {
	if cap(s) < n {
		return make([]float64, n)
	}
	return s[:n]
}

func growInt64(s []int64, n int) []int64 {
	if cap(s) < n {
		return make([]int64, n)
	}
	return s[:n]
}
