package solver

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/okian/patpat/internal/domain/model"
)

const (
	// Relative singular value thresholds for the anchor cloud.
	collinearTolerance = 1e-9
	coplanarTolerance  = 1e-6

	// Points this far below the equatorial plane count as below it.
	planeEpsilon = 1e-9
)

// Multilateration treats each proximity value v at an anchor of radius r as
// a distance estimate d = r * (1 - v) and finds the point that best fits all
// distances by weighted linear least squares. Weights are the values, so a
// close contact counts more than a faint one.
type Multilateration struct{}

func (*Multilateration) Kind() Kind { return KindMultilateration }

func (*Multilateration) Solve(samples map[int]model.Sample, anchors []model.AnchorPoint, opts Options) (Result, error) {
	vals, err := values(samples, anchors, opts)
	if err != nil {
		return Result{}, err
	}

	var (
		pts    []model.Vec3
		distSq []float64
		dist   []float64
		w      []float64
	)
	for i, a := range anchors {
		v := vals[i]
		if !(v > 0) {
			continue
		}
		if v > 1 {
			v = 1
		}
		r := a.Radius
		if r <= 0 {
			r = DefaultRadius
		}
		d := r * (1 - v)
		pts = append(pts, a.Position)
		dist = append(dist, d)
		distSq = append(distSq, d*d)
		w = append(w, v)
	}
	if len(pts) == 0 {
		return Result{Kind: ResultNone}, nil
	}
	if len(pts) < 3 {
		return Result{}, fmt.Errorf("%w: %d usable points, need 3", ErrDegenerateGeometry, len(pts))
	}

	p, err := locate(pts, distSq, w)
	if err != nil {
		return Result{}, err
	}

	if opts.UpperHemisphereOnly && p.Z < -planeEpsilon {
		tol := opts.BoundsTolerance
		if tol <= 0 {
			tol = DefaultBoundsTolerance
		}
		p, err = locateOnEquator(pts, dist, distSq, w, tol)
		if err != nil {
			return Result{}, err
		}
	}
	return Result{Kind: ResultPoint, Point: p}, nil
}

// locate solves in the principal frame of the anchors. For a planar anchor
// cloud the in-plane position is solved first and the height above the
// plane is recovered from the remaining distance, on the +Z side.
func locate(pts []model.Vec3, distSq, w []float64) (model.Vec3, error) {
	n := len(pts)
	c := centroid(pts)

	centered := mat.NewDense(n, 3, nil)
	for i, p := range pts {
		d := p.Sub(c)
		centered.SetRow(i, []float64{d.X, d.Y, d.Z})
	}
	var svd mat.SVD
	if !svd.Factorize(centered, mat.SVDThin) {
		return model.Vec3{}, fmt.Errorf("%w: svd failed", ErrDegenerateGeometry)
	}
	sv := svd.Values(nil)
	if sv[0] == 0 || sv[1] <= collinearTolerance*sv[0] {
		return model.Vec3{}, fmt.Errorf("%w: anchors are collinear", ErrDegenerateGeometry)
	}
	var v mat.Dense
	svd.VTo(&v)
	axes := [3]model.Vec3{
		model.V3(v.At(0, 0), v.At(1, 0), v.At(2, 0)),
		model.V3(v.At(0, 1), v.At(1, 1), v.At(2, 1)),
		model.V3(v.At(0, 2), v.At(1, 2), v.At(2, 2)),
	}

	planar := len(sv) < 3 || sv[2] <= coplanarTolerance*sv[0]
	dims := 3
	if planar {
		dims = 2
	}
	local := make([][]float64, n)
	for i, p := range pts {
		d := p.Sub(c)
		local[i] = []float64{d.Dot(axes[0]), d.Dot(axes[1]), d.Dot(axes[2])}[:dims]
	}

	x, err := weightedLeastSquares(local, distSq, w)
	if err != nil {
		return model.Vec3{}, fmt.Errorf("%w: %v", ErrDegenerateGeometry, err)
	}

	p := c
	for k := 0; k < dims; k++ {
		p = p.Add(axes[k].Scale(x[k]))
	}
	if !planar {
		return p, nil
	}

	var h2, sw float64
	for i := range local {
		dx, dy := x[0]-local[i][0], x[1]-local[i][1]
		h2 += w[i] * (distSq[i] - dx*dx - dy*dy)
		sw += w[i]
	}
	h := math.Sqrt(math.Max(0, h2/sw))
	normal := axes[2]
	if normal.Z < 0 {
		normal = normal.Scale(-1)
	}
	return p.Add(normal.Scale(h)), nil
}

// locateOnEquator re-solves with the point constrained to z = 0 and rejects
// the result when it cannot explain the distances within tol.
func locateOnEquator(pts []model.Vec3, dist, distSq, w []float64, tol float64) (model.Vec3, error) {
	local := make([][]float64, len(pts))
	planeSq := make([]float64, len(pts))
	for i, p := range pts {
		local[i] = []float64{p.X, p.Y}
		planeSq[i] = distSq[i] - p.Z*p.Z
	}
	x, err := weightedLeastSquares(local, planeSq, w)
	if err != nil {
		return model.Vec3{}, fmt.Errorf("%w: %v", ErrOutOfBounds, err)
	}
	p := model.V3(x[0], x[1], 0)

	var res, sw float64
	for i, a := range pts {
		e := p.Distance(a) - dist[i]
		res += w[i] * e * e
		sw += w[i]
	}
	if rms := math.Sqrt(res / sw); rms > tol {
		return model.Vec3{}, fmt.Errorf("%w: residual %.3f above %.3f on the equatorial plane", ErrOutOfBounds, rms, tol)
	}
	return p, nil
}

// weightedLeastSquares fits x to |x - a_i|^2 = distSq_i. Subtracting the
// weighted mean equation removes the quadratic term:
//
//	2 (a_i - mean(a)) . x = (|a_i|^2 - mean(|a|^2)) - (distSq_i - mean(distSq))
//
// Rows are scaled by sqrt(w_i).
func weightedLeastSquares(anchors [][]float64, distSq, w []float64) ([]float64, error) {
	n := len(anchors)
	dims := len(anchors[0])

	var sw, meanSq, meanD float64
	mean := make([]float64, dims)
	sq := make([]float64, n)
	for i, a := range anchors {
		for k, c := range a {
			sq[i] += c * c
			mean[k] += w[i] * c
		}
		sw += w[i]
		meanSq += w[i] * sq[i]
		meanD += w[i] * distSq[i]
	}
	if sw == 0 {
		return nil, fmt.Errorf("zero total weight")
	}
	for k := range mean {
		mean[k] /= sw
	}
	meanSq /= sw
	meanD /= sw

	a := mat.NewDense(n, dims, nil)
	b := mat.NewVecDense(n, nil)
	for i, row := range anchors {
		s := math.Sqrt(w[i])
		for k, c := range row {
			a.Set(i, k, 2*(c-mean[k])*s)
		}
		b.SetVec(i, s*((sq[i]-meanSq)-(distSq[i]-meanD)))
	}

	var x mat.VecDense
	if err := x.SolveVec(a, b); err != nil {
		return nil, err
	}
	out := make([]float64, dims)
	for k := range out {
		out[k] = x.AtVec(k)
	}
	return out, nil
}

func centroid(pts []model.Vec3) model.Vec3 {
	var c model.Vec3
	for _, p := range pts {
		c = c.Add(p)
	}
	return c.Scale(1 / float64(len(pts)))
}
