package shard

import (
	"context"
	"errors"
	"fmt"

	"github.com/san-kum/clustersim/internal/force"
	"github.com/san-kum/clustersim/internal/nbody"
	"golang.org/x/sync/errgroup"
)

// ErrClosed is returned by Evaluate after Close.
var ErrClosed = errors.New("shard: group closed")

// Group is a fixed set of Workers ranks. The caller drives rank 0; ranks
// 1..Workers-1 run in their own goroutines until Close.
type Group struct {
	dom    nbody.Domain
	root   *Comm
	pool   *shardPool
	eval   *force.Evaluator
	eg     *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
	closed bool
}

// StartGroup launches the worker ranks and broadcasts the immutable masses.
func StartGroup(ctx context.Context, dom nbody.Domain, mass []float64) (*Group, error) {
	if err := dom.Validate(); err != nil {
		return nil, err
	}
	if len(mass) != dom.N {
		return nil, &nbody.CollectiveError{Op: "bcast", Rank: 0, Want: dom.N, Got: len(mass)}
	}

	gctx, cancel := context.WithCancel(ctx)
	eg, egctx := errgroup.WithContext(gctx)
	comms := NewComms(dom.Workers)
	pool := newShardPool(dom)

	g := &Group{
		dom:    dom,
		root:   comms[0],
		pool:   pool,
		eval:   force.New(),
		eg:     eg,
		ctx:    egctx,
		cancel: cancel,
	}
	for r := 1; r < dom.Workers; r++ {
		w := &worker{dom: dom, comm: comms[r], pool: pool, eval: force.New()}
		eg.Go(func() error { return w.serve(egctx) })
	}

	if err := g.root.Bcast(g.ctx, mass); err != nil {
		return nil, g.fail(err)
	}
	dom.Log.V(1).Info("worker group started", "workers", dom.Workers, "shardLen", dom.ShardLen())
	return g, nil
}

func (g *Group) Workers() int { return g.dom.Workers }

// Evaluate runs one scatter / broadcast / compute / gather round. Any error,
// on any rank, tears the group down.
func (g *Group) Evaluate(ctx context.Context, ens *nbody.Ensemble) error {
	if g.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return g.fail(err)
	}
	if err := g.dom.Matches(ens); err != nil {
		return g.fail(err)
	}
	stop := context.AfterFunc(ctx, g.cancel)
	defer stop()

	if err := g.evaluate(ens); err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return g.fail(err)
	}
	return nil
}

func (g *Group) evaluate(ens *nbody.Ensemble) error {
	ctx, c := g.ctx, g.root

	s, err := g.pool.Get(0)
	if err != nil {
		return err
	}
	defer g.pool.Put(s)

	pos, vel := ens.Pos.Raw(), ens.Vel.Raw()
	for _, x := range []struct{ send, recv []float64 }{
		{pos, s.Pos}, {vel, s.Vel}, {ens.Acc.Raw(), s.Acc}, {ens.Jerk.Raw(), s.Jerk},
	} {
		if err := c.Scatter(ctx, x.send, x.recv); err != nil {
			return fmt.Errorf("scatter: %w", err)
		}
	}
	if err := c.Bcast(ctx, pos); err != nil {
		return fmt.Errorf("bcast pos: %w", err)
	}
	if err := c.Bcast(ctx, vel); err != nil {
		return fmt.Errorf("bcast vel: %w", err)
	}

	g.eval.EvaluateShard(ens.Mass, ens.Pos, ens.Vel, s)

	if err := c.Gather(ctx, s.Acc, ens.Acc.Raw()); err != nil {
		return fmt.Errorf("gather acc: %w", err)
	}
	if err := c.Gather(ctx, s.Jerk, ens.Jerk.Raw()); err != nil {
		return fmt.Errorf("gather jerk: %w", err)
	}
	return c.Barrier(ctx)
}

// fail cancels every rank and returns the first worker error if there was
// one, err otherwise.
func (g *Group) fail(err error) error {
	g.closed = true
	g.cancel()
	if werr := g.eg.Wait(); werr != nil && !errors.Is(werr, context.Canceled) {
		return werr
	}
	return err
}

// Close stops the worker ranks and waits for them to exit. A group torn
// down by cancellation closes without error.
func (g *Group) Close() error {
	if g.closed {
		return nil
	}
	g.closed = true
	defer g.cancel()

	err := g.root.Stop(g.ctx)
	if err != nil {
		g.cancel()
	}
	if werr := g.eg.Wait(); werr != nil && !errors.Is(werr, context.Canceled) {
		return werr
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

type worker struct {
	dom  nbody.Domain
	comm *Comm
	pool *shardPool
	eval *force.Evaluator
}

// serve mirrors Group.evaluate from the worker side until the root stops the group.
func (w *worker) serve(ctx context.Context) error {
	c := w.comm
	mass, err := nbody.Alloc("mass", w.dom.N)
	if err != nil {
		return err
	}
	if err := c.Bcast(ctx, mass); err != nil {
		return err
	}
	pos, err := w.globalField("pos")
	if err != nil {
		return err
	}
	vel, err := w.globalField("vel")
	if err != nil {
		return err
	}

	for {
		err := w.round(ctx, mass, pos, vel)
		if errors.Is(err, errStop) {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			w.dom.Log.Error(err, "worker failed", "rank", c.Rank())
			return fmt.Errorf("rank %d: %w", c.Rank(), err)
		}
	}
}

// globalField allocates a rank-local copy of a full N*DIM array.
func (w *worker) globalField(what string) (nbody.Field, error) {
	buf, err := nbody.Alloc(what, w.dom.Slots())
	if err != nil {
		return nbody.Field{}, err
	}
	return nbody.FieldOf(buf, w.dom.Dim)
}

func (w *worker) round(ctx context.Context, mass []float64, pos, vel nbody.Field) error {
	c := w.comm
	s, err := w.pool.Get(c.Rank())
	if err != nil {
		return err
	}
	defer w.pool.Put(s)

	for _, buf := range [][]float64{s.Pos, s.Vel, s.Acc, s.Jerk} {
		if err := c.Scatter(ctx, nil, buf); err != nil {
			return err
		}
	}

	if err := c.Bcast(ctx, pos.Raw()); err != nil {
		return err
	}
	if err := c.Bcast(ctx, vel.Raw()); err != nil {
		return err
	}

	w.eval.EvaluateShard(mass, pos, vel, s)

	if err := c.Gather(ctx, s.Acc, nil); err != nil {
		return err
	}
	if err := c.Gather(ctx, s.Jerk, nil); err != nil {
		return err
	}
	return c.Barrier(ctx)
}
