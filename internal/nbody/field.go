package nbody

import "math"

// Field is a contiguous array of DIM-dimensional vectors, one per particle.
// Copies of a Field share the same backing storage.
type Field struct {
	dim  int
	data []float64
}

// NewField allocates a zeroed field for n particles.
func NewField(n, dim int) (Field, error) {
	if dim <= 0 {
		return Field{}, &ConfigError{Field: "dim", Value: dim, Reason: "must be positive"}
	}
	data, err := Alloc("field", n*dim)
	if err != nil {
		return Field{}, err
	}
	return Field{dim: dim, data: data}, nil
}

// FieldOf wraps an existing flat slice. len(data) must be a multiple of dim.
func FieldOf(data []float64, dim int) (Field, error) {
	if dim <= 0 || len(data)%dim != 0 {
		return Field{}, &ConfigError{Field: "field length", Value: len(data), Reason: "not a multiple of dim"}
	}
	return Field{dim: dim, data: data}, nil
}

func (f Field) Len() int { return len(f.data) / f.dim }
func (f Field) Dim() int { return f.dim }

// Raw exposes the flat slot array, particle-major.
func (f Field) Raw() []float64 { return f.data }

func (f Field) At(i, k int) float64     { return f.data[i*f.dim+k] }
func (f Field) Set(i, k int, v float64) { f.data[i*f.dim+k] = v }

// Vec returns the vector of particle i as a view into the field.
func (f Field) Vec(i int) []float64 {
	return f.data[i*f.dim : (i+1)*f.dim : (i+1)*f.dim]
}

func (f Field) Zero() {
	for i := range f.data {
		f.data[i] = 0
	}
}

// CopyFrom overwrites f with src. Both fields must have the same shape.
func (f Field) CopyFrom(src Field) {
	copy(f.data, src.data)
}

func (f Field) Clone() Field {
	c := make([]float64, len(f.data))
	copy(c, f.data)
	return Field{dim: f.dim, data: c}
}

func (f Field) IsValid() bool {
	for _, v := range f.data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// MaxSlots caps a single buffer so that size arithmetic cannot overflow.
const MaxSlots = math.MaxInt32

// Alloc returns a zeroed slice of n slots or an AllocationError.
func Alloc(what string, n int) ([]float64, error) {
	if n < 0 || n > MaxSlots {
		return nil, &AllocationError{What: what, Size: n}
	}
	return make([]float64, n), nil
}
