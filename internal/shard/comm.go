package shard

import (
	"context"
	"errors"
	"fmt"

	"github.com/san-kum/clustersim/internal/nbody"
)

type tag int

const (
	tagScatter tag = iota
	tagBcast
	tagGather
	tagBarrier
	tagStop
)

func (t tag) String() string {
	switch t {
	case tagScatter:
		return "scatter"
	case tagBcast:
		return "bcast"
	case tagGather:
		return "gather"
	case tagBarrier:
		return "barrier"
	case tagStop:
		return "stop"
	}
	return fmt.Sprintf("tag(%d)", int(t))
}

type message struct {
	tag  tag
	data []float64
}

// errStop is returned to a worker whose coordinator has shut the group down.
var errStop = errors.New("shard: group stopped")

// hub links the root with every other rank. Messages between a pair of ranks
// are delivered in order.
type hub struct {
	size int
	down []chan message // root -> rank
	up   []chan message // rank -> root
}

// Comm is one rank's endpoint of a collective group. Rank 0 is the root.
// All ranks must call the same collectives in the same order.
type Comm struct {
	rank int
	hub  *hub
}

// NewComms connects size ranks and returns one endpoint per rank.
func NewComms(size int) []*Comm {
	h := &hub{
		size: size,
		down: make([]chan message, size),
		up:   make([]chan message, size),
	}
	comms := make([]*Comm, size)
	for r := 0; r < size; r++ {
		h.down[r] = make(chan message, 1)
		h.up[r] = make(chan message, 1)
		comms[r] = &Comm{rank: r, hub: h}
	}
	return comms
}

func (c *Comm) Rank() int { return c.rank }
func (c *Comm) Size() int { return c.hub.size }

func (c *Comm) send(ctx context.Context, ch chan<- message, m message) error {
	select {
	case ch <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Comm) recv(ctx context.Context, ch <-chan message, want tag) (message, error) {
	select {
	case m := <-ch:
		if m.tag == tagStop {
			return m, errStop
		}
		if m.tag != want {
			return m, fmt.Errorf("%w: rank %d expected %s, got %s", nbody.ErrCollectiveMismatch, c.rank, want, m.tag)
		}
		return m, nil
	case <-ctx.Done():
		return message{}, ctx.Err()
	}
}

func clone(b []float64) []float64 {
	c := make([]float64, len(b))
	copy(c, b)
	return c
}

// Scatter splits the root's send buffer into Size equal pieces; rank r
// receives piece r into recv. send is ignored on non-root ranks.
func (c *Comm) Scatter(ctx context.Context, send, recv []float64) error {
	n := len(recv)
	if c.rank != 0 {
		m, err := c.recv(ctx, c.hub.down[c.rank], tagScatter)
		if err != nil {
			return err
		}
		if len(m.data) != n {
			return &nbody.CollectiveError{Op: "scatter", Rank: c.rank, Want: n, Got: len(m.data)}
		}
		copy(recv, m.data)
		return nil
	}

	if len(send) != n*c.hub.size {
		return &nbody.CollectiveError{Op: "scatter", Rank: 0, Want: n * c.hub.size, Got: len(send)}
	}
	for r := 1; r < c.hub.size; r++ {
		piece := clone(send[r*n : (r+1)*n])
		if err := c.send(ctx, c.hub.down[r], message{tag: tagScatter, data: piece}); err != nil {
			return err
		}
	}
	copy(recv, send[:n])
	return nil
}

// Bcast copies the root's buf into buf on every other rank.
func (c *Comm) Bcast(ctx context.Context, buf []float64) error {
	if c.rank != 0 {
		m, err := c.recv(ctx, c.hub.down[c.rank], tagBcast)
		if err != nil {
			return err
		}
		if len(m.data) != len(buf) {
			return &nbody.CollectiveError{Op: "bcast", Rank: c.rank, Want: len(buf), Got: len(m.data)}
		}
		copy(buf, m.data)
		return nil
	}

	for r := 1; r < c.hub.size; r++ {
		if err := c.send(ctx, c.hub.down[r], message{tag: tagBcast, data: clone(buf)}); err != nil {
			return err
		}
	}
	return nil
}

// Gather concatenates every rank's send buffer, in rank order, into the
// root's recv buffer. recv is ignored on non-root ranks.
func (c *Comm) Gather(ctx context.Context, send, recv []float64) error {
	n := len(send)
	if c.rank != 0 {
		return c.send(ctx, c.hub.up[c.rank], message{tag: tagGather, data: clone(send)})
	}

	if len(recv) != n*c.hub.size {
		return &nbody.CollectiveError{Op: "gather", Rank: 0, Want: n * c.hub.size, Got: len(recv)}
	}
	copy(recv[:n], send)
	for r := 1; r < c.hub.size; r++ {
		m, err := c.recv(ctx, c.hub.up[r], tagGather)
		if err != nil {
			return err
		}
		if len(m.data) != n {
			return &nbody.CollectiveError{Op: "gather", Rank: r, Want: n, Got: len(m.data)}
		}
		copy(recv[r*n:(r+1)*n], m.data)
	}
	return nil
}

// Barrier returns once every rank has entered it.
func (c *Comm) Barrier(ctx context.Context) error {
	if c.rank != 0 {
		if err := c.send(ctx, c.hub.up[c.rank], message{tag: tagBarrier}); err != nil {
			return err
		}
		_, err := c.recv(ctx, c.hub.down[c.rank], tagBarrier)
		return err
	}

	for r := 1; r < c.hub.size; r++ {
		if _, err := c.recv(ctx, c.hub.up[r], tagBarrier); err != nil {
			return err
		}
	}
	for r := 1; r < c.hub.size; r++ {
		if err := c.send(ctx, c.hub.down[r], message{tag: tagBarrier}); err != nil {
			return err
		}
	}
	return nil
}

// Stop tells every non-root rank to leave its serve loop. Root only.
func (c *Comm) Stop(ctx context.Context) error {
	for r := 1; r < c.hub.size; r++ {
		if err := c.send(ctx, c.hub.down[r], message{tag: tagStop}); err != nil {
			return err
		}
	}
	return nil
}
