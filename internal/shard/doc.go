// Package shard distributes force evaluation across a fixed group of workers
// by domain decomposition of the ensemble's N*DIM scalar slots.
//
// Each evaluation follows the same collective protocol:
//
//  1. scatter disjoint shards of pos/vel/acc/jerk from the coordinator (rank 0)
//  2. broadcast the full pos/vel to every rank
//  3. compute the shard against the full particle set
//  4. gather the acc/jerk shards back into the canonical arrays
//
// followed by a barrier. The immutable mass array is broadcast once when the
// group starts. Ranks are goroutines connected by per-rank channels; every
// collective blocks until all ranks take part, and a failure on any rank
// cancels the whole group.
//
// With a single worker, [Local] evaluates in place with the symmetric kernel
// and no data movement.
package shard
