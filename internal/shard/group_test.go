package shard_test

import (
	"context"
	"errors"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/clustersim/internal/nbody"
	"github.com/san-kum/clustersim/internal/plummer"
	"github.com/san-kum/clustersim/internal/shard"
)

func evaluate(ctx context.Context, ens *nbody.Ensemble, workers int) *nbody.Ensemble {
	out := ens.Clone()
	dom, err := nbody.NewDomain(out.N, out.Dim, workers, logr.Discard())
	Expect(err).NotTo(HaveOccurred())
	ex, err := shard.New(ctx, dom, out.Mass)
	Expect(err).NotTo(HaveOccurred())
	Expect(ex.Workers()).To(Equal(workers))

	Expect(ex.Evaluate(ctx, out)).To(Succeed())
	Expect(ex.Close()).To(Succeed())
	return out
}

var _ = Describe("Exchange", func() {
	var (
		ctx context.Context
		ens *nbody.Ensemble
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		ens, err = plummer.Plummer(5, 8, 3, 1.0, 1.0)
		Expect(err).NotTo(HaveOccurred())
	})

	It("picks the local exchange for one worker", func() {
		dom, err := nbody.NewDomain(8, 3, 1, logr.Discard())
		Expect(err).NotTo(HaveOccurred())
		ex, err := shard.New(ctx, dom, ens.Mass)
		Expect(err).NotTo(HaveOccurred())
		Expect(ex).To(BeAssignableToTypeOf(&shard.Local{}))
	})

	It("gives the same forces for every partition", func() {
		ref := evaluate(ctx, ens, 1)
		for _, w := range []int{2, 4} {
			got := evaluate(ctx, ens, w)
			for k, want := range ref.Acc.Raw() {
				Expect(got.Acc.Raw()[k]).To(BeNumerically("~", want, 1e-12*(1+abs(want))), "W=%d acc slot %d", w, k)
			}
			for k, want := range ref.Jerk.Raw() {
				Expect(got.Jerk.Raw()[k]).To(BeNumerically("~", want, 1e-12*(1+abs(want))), "W=%d jerk slot %d", w, k)
			}
		}
	})

	It("is bit-identical across runs and across sharded partitions", func() {
		a := evaluate(ctx, ens, 4)
		b := evaluate(ctx, ens, 4)
		c := evaluate(ctx, ens, 2)
		Expect(a.Acc.Raw()).To(Equal(b.Acc.Raw()))
		Expect(a.Jerk.Raw()).To(Equal(b.Jerk.Raw()))
		Expect(a.Acc.Raw()).To(Equal(c.Acc.Raw()))
	})

	It("handles shards that split a particle", func() {
		ref := evaluate(ctx, ens, 1)
		got := evaluate(ctx, ens, 3)
		for k, want := range ref.Acc.Raw() {
			Expect(got.Acc.Raw()[k]).To(BeNumerically("~", want, 1e-12*(1+abs(want))))
		}
	})

	It("does not touch mass, position or velocity", func() {
		got := evaluate(ctx, ens, 4)
		Expect(got.Mass).To(Equal(ens.Mass))
		Expect(got.Pos.Raw()).To(Equal(ens.Pos.Raw()))
		Expect(got.Vel.Raw()).To(Equal(ens.Vel.Raw()))
	})

	It("rejects a worker count that does not divide N*DIM", func() {
		dom := nbody.Domain{N: 8, Dim: 3, Workers: 5}
		_, err := shard.New(ctx, dom, ens.Mass)
		Expect(errors.Is(err, nbody.ErrConfiguration)).To(BeTrue())
	})

	It("detects a mass array of the wrong length", func() {
		dom := nbody.Domain{N: 8, Dim: 3, Workers: 2}
		_, err := shard.StartGroup(ctx, dom, ens.Mass[:7])
		Expect(errors.Is(err, nbody.ErrCollectiveMismatch)).To(BeTrue())
	})

	Describe("Group lifecycle", func() {
		var g *shard.Group

		BeforeEach(func() {
			dom := nbody.Domain{N: 8, Dim: 3, Workers: 4}
			var err error
			g, err = shard.StartGroup(ctx, dom, ens.Mass)
			Expect(err).NotTo(HaveOccurred())
		})

		It("refuses to evaluate after Close", func() {
			Expect(g.Close()).To(Succeed())
			Expect(g.Close()).To(Succeed())
			Expect(g.Evaluate(ctx, ens)).To(MatchError(shard.ErrClosed))
		})

		It("tears the group down on a shape mismatch", func() {
			other, err := nbody.NewEnsemble(4, 3)
			Expect(err).NotTo(HaveOccurred())
			err = g.Evaluate(ctx, other)
			Expect(errors.Is(err, nbody.ErrConfiguration)).To(BeTrue())
			Expect(g.Evaluate(ctx, ens)).To(MatchError(shard.ErrClosed))
		})

		It("returns the caller's cancellation", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			err := g.Evaluate(cctx, ens)
			Expect(errors.Is(err, context.Canceled)).To(BeTrue(), "got %v", err)
			Expect(g.Close()).To(Succeed())
		})

		It("serves many rounds", func() {
			for i := 0; i < 20; i++ {
				Expect(g.Evaluate(ctx, ens)).To(Succeed())
			}
			Expect(g.Close()).To(Succeed())
		})
	})
})

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
