package hermite

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/go-logr/logr"
	"github.com/san-kum/clustersim/internal/metrics"
	"github.com/san-kum/clustersim/internal/nbody"
	"github.com/san-kum/clustersim/internal/plummer"
	"github.com/san-kum/clustersim/internal/shard"
)

func newStepper(t *testing.T, ens *nbody.Ensemble, workers int, dt float64) *Stepper {
	t.Helper()
	dom, err := nbody.NewDomain(ens.N, ens.Dim, workers, logr.Discard())
	if err != nil {
		t.Fatalf("domain: %v", err)
	}
	ex, err := shard.New(context.Background(), dom, ens.Mass)
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	t.Cleanup(func() { ex.Close() })
	s, err := New(dom, ex, dt)
	if err != nil {
		t.Fatalf("stepper: %v", err)
	}
	return s
}

func TestNewRejectsDt(t *testing.T) {
	dom := nbody.Domain{N: 2, Dim: 3, Workers: 1}
	for _, dt := range []float64{0, -0.1, math.NaN()} {
		_, err := New(dom, shard.NewLocal(dom), dt)
		if !errors.Is(err, nbody.ErrConfiguration) {
			t.Errorf("dt=%g: expected configuration error, got %v", dt, err)
		}
	}
}

func TestNewRejectsDomain(t *testing.T) {
	dom := nbody.Domain{N: 0, Dim: 3, Workers: 1}
	if _, err := New(dom, shard.NewLocal(dom), 0.1); !errors.Is(err, nbody.ErrConfiguration) {
		t.Errorf("expected configuration error for N=0, got %v", err)
	}
}

func TestSingleParticleDrifts(t *testing.T) {
	ens, _ := plummer.Single(3)
	ens.Vel.Set(0, 0, 2)
	s := newStepper(t, ens, 1, 0.5)
	ctx := context.Background()

	if err := s.Init(ctx, ens); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		if err := s.Step(ctx, ens); err != nil {
			t.Fatal(err)
		}
		for k := 0; k < 3; k++ {
			if ens.Acc.At(0, k) != 0 || ens.Jerk.At(0, k) != 0 {
				t.Fatalf("step %d: nonzero acc/jerk %v %v", i, ens.Acc.Raw(), ens.Jerk.Raw())
			}
		}
	}
	if got := ens.Pos.At(0, 0); got != 4 {
		t.Errorf("expected x = 4 after t = 2, got %g", got)
	}
}

// One step of two unit masses at rest, one unit apart, worked by hand.
func TestBinaryFirstStep(t *testing.T) {
	ens, _ := plummer.Binary(1)
	dt := 0.1
	s := newStepper(t, ens, 1, dt)

	if err := s.Step(context.Background(), ens); err != nil {
		t.Fatal(err)
	}

	// Predicted: x1 = 0.5 - dt²/2, v1 = -dt; the corrector refines this.
	// The exact solution at small t is x1 = 0.5 - t²/2 - t⁴/6 + O(t⁶).
	x1 := ens.Pos.At(1, 0)
	exact := 0.5 - dt*dt/2 - math.Pow(dt, 4)/6
	if math.Abs(x1-exact) > 1e-6 {
		t.Errorf("x1 = %.10f, expected about %.10f", x1, exact)
	}
	if ens.Pos.At(0, 0) != -x1 {
		t.Errorf("positions not mirrored: %v", ens.Pos.Raw())
	}
	if v := ens.Vel.At(1, 0); math.Abs(v+dt) > 1e-3 {
		t.Errorf("v1 = %g, expected about %g", v, -dt)
	}
}

func TestConservesMomentum(t *testing.T) {
	ens, err := plummer.Plummer(3, 16, 3, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	s := newStepper(t, ens, 2, 0.001)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		if err := s.Step(ctx, ens); err != nil {
			t.Fatal(err)
		}
	}
	for k, p := range metrics.Momentum(ens) {
		if math.Abs(p) > 1e-12 {
			t.Errorf("momentum[%d] = %g", k, p)
		}
	}
}

func TestBinaryEnergy(t *testing.T) {
	ens, _ := plummer.Binary(3)
	ens.Vel.Set(0, 1, -0.5)
	ens.Vel.Set(1, 1, 0.5)
	s := newStepper(t, ens, 3, 0.01)
	ctx := context.Background()

	e0 := metrics.Measure(ens).Total
	for i := 0; i < 300; i++ {
		if err := s.Step(ctx, ens); err != nil {
			t.Fatal(err)
		}
	}
	if d := metrics.RelativeDrift(metrics.Measure(ens).Total, e0); d > 1e-4 {
		t.Errorf("relative energy drift %g over 300 steps", d)
	}
}

func TestDeterministic(t *testing.T) {
	run := func() []float64 {
		ens, err := plummer.Plummer(9, 8, 3, 1, 1)
		if err != nil {
			t.Fatal(err)
		}
		s := newStepper(t, ens, 4, 0.01)
		for i := 0; i < 10; i++ {
			if err := s.Step(context.Background(), ens); err != nil {
				t.Fatal(err)
			}
		}
		return ens.Pos.Raw()
	}

	a, b := run(), run()
	for k := range a {
		if a[k] != b[k] {
			t.Fatalf("slot %d differs: %v vs %v", k, a[k], b[k])
		}
	}
}

func TestStepRejectsWrongShape(t *testing.T) {
	ens, _ := plummer.Binary(3)
	s := newStepper(t, ens, 1, 0.1)
	other, _ := plummer.Single(3)

	if err := s.Step(context.Background(), other); !errors.Is(err, nbody.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}
