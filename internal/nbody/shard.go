package nbody

// Shard is the slice of scalar slots [Lo, Lo+len(Acc)) one rank owns for a
// single force evaluation. Pos and Vel hold the scattered input slots, Acc and
// Jerk the partial results that are gathered back to the coordinator.
// A shard boundary may fall inside a particle's vector.
type Shard struct {
	Rank int
	Lo   int
	Pos  []float64
	Vel  []float64
	Acc  []float64
	Jerk []float64
}

// NewShard allocates the buffers for rank's shard.
func NewShard(d Domain, rank int) (*Shard, error) {
	lo, _ := d.ShardRange(rank)
	s := &Shard{Rank: rank, Lo: lo}
	var err error
	for _, buf := range []*[]float64{&s.Pos, &s.Vel, &s.Acc, &s.Jerk} {
		if *buf, err = Alloc("shard", d.ShardLen()); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Shard) Len() int { return len(s.Acc) }
func (s *Shard) Hi() int  { return s.Lo + len(s.Acc) }

// Contains reports whether global slot belongs to this shard.
func (s *Shard) Contains(slot int) bool { return slot >= s.Lo && slot < s.Hi() }
