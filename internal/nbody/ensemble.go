package nbody

import "gonum.org/v1/gonum/floats"

// Ensemble holds the complete state of N particles in DIM dimensions.
// N and Dim never change after construction.
type Ensemble struct {
	N    int
	Dim  int
	Mass []float64
	Pos  Field
	Vel  Field
	Acc  Field
	Jerk Field
}

// NewEnsemble allocates a zeroed ensemble.
func NewEnsemble(n, dim int) (*Ensemble, error) {
	if n <= 0 {
		return nil, &ConfigError{Field: "particle count", Value: n, Reason: "must be positive"}
	}
	if dim <= 0 {
		return nil, &ConfigError{Field: "dim", Value: dim, Reason: "must be positive"}
	}
	if n > MaxSlots/dim {
		return nil, &AllocationError{What: "ensemble", Size: n * dim}
	}

	mass, err := Alloc("mass", n)
	if err != nil {
		return nil, err
	}
	e := &Ensemble{N: n, Dim: dim, Mass: mass}
	for _, f := range []*Field{&e.Pos, &e.Vel, &e.Acc, &e.Jerk} {
		if *f, err = NewField(n, dim); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Slots is the number of scalar slots per vector component array (N*DIM).
func (e *Ensemble) Slots() int { return e.N * e.Dim }

func (e *Ensemble) TotalMass() float64 { return floats.Sum(e.Mass) }

func (e *Ensemble) Clone() *Ensemble {
	mass := make([]float64, len(e.Mass))
	copy(mass, e.Mass)
	return &Ensemble{
		N:    e.N,
		Dim:  e.Dim,
		Mass: mass,
		Pos:  e.Pos.Clone(),
		Vel:  e.Vel.Clone(),
		Acc:  e.Acc.Clone(),
		Jerk: e.Jerk.Clone(),
	}
}

// CopyFrom overwrites e with the state of src; shapes must match.
func (e *Ensemble) CopyFrom(src *Ensemble) {
	copy(e.Mass, src.Mass)
	e.Pos.CopyFrom(src.Pos)
	e.Vel.CopyFrom(src.Vel)
	e.Acc.CopyFrom(src.Acc)
	e.Jerk.CopyFrom(src.Jerk)
}

// IsValid reports whether no NaN or Inf is present in position or velocity.
func (e *Ensemble) IsValid() bool {
	return e.Pos.IsValid() && e.Vel.IsValid()
}
