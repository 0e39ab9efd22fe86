// Package force computes gravitational acceleration and jerk by direct
// O(N²) summation (G = 1, no softening).
//
// Two kernels are provided:
//
//   - [Evaluator.Evaluate] visits each unordered pair once and applies
//     Newton's third law, halving the work of the naive double loop.
//   - [Evaluator.EvaluateShard] fills the slots of a single [nbody.Shard] by
//     comparing every particle the shard touches against the full particle
//     set. Used by the distributed exchange, where a worker cannot write
//     outside its own shard.
//
// Particles at identical positions produce Inf/NaN: close encounters are
// not regularised.
package force
