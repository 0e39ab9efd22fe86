package shard

import (
	"sync"

	"github.com/san-kum/clustersim/internal/nbody"
)

// shardPool recycles shard buffers between evaluations. A shard is still
// logically created at the start of an evaluation and discarded after its
// results are gathered; only the backing arrays are reused.
type shardPool struct {
	pool sync.Pool
	dom  nbody.Domain
}

func newShardPool(dom nbody.Domain) *shardPool {
	return &shardPool{dom: dom}
}

func (p *shardPool) Get(rank int) (*nbody.Shard, error) {
	s, ok := p.pool.Get().(*nbody.Shard)
	if !ok {
		return nbody.NewShard(p.dom, rank)
	}
	s.Rank = rank
	s.Lo, _ = p.dom.ShardRange(rank)
	return s, nil
}

func (p *shardPool) Put(s *nbody.Shard) {
	if s.Len() != p.dom.ShardLen() {
		return
	}
	for _, buf := range [][]float64{s.Pos, s.Vel, s.Acc, s.Jerk} {
		for i := range buf {
			buf[i] = 0
		}
	}
	p.pool.Put(s)
}
