// Package nbody provides the core data model for direct-summation N-body
// simulation.
//
// The package defines the types every other simulation package shares:
//
//   - [Field]: a length-carrying (particle, dim) indexed vector array
//   - [Ensemble]: mass, position, velocity, acceleration and jerk of N particles
//   - [Domain]: the run topology (N, DIM, worker count) threaded through
//     force evaluation, shard exchange and stepping
//   - [Shard]: the contiguous slice of scalar slots one worker owns during a
//     single force evaluation
//
// # Example
//
//	dom, err := nbody.NewDomain(64, 3, 4, logr.Discard())
//	ens, err := nbody.NewEnsemble(dom.N, dom.Dim)
//	lo, hi := dom.ShardRange(2)
//
// # Thread Safety
//
// An Ensemble has a single writer, the coordinator. Workers only ever see
// copies of it, delivered through the collective operations in package shard.
package nbody
