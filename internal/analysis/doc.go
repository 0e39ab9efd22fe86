// Package analysis provides post-run tools for cluster runs:
//
//   - [PowerSpectrum]: spectrum of a diagnostic series such as total energy
//   - [DominantFrequency]: strongest non-zero frequency of a series
//   - [Lyapunov]: growth rate of the separation between two nearby ensembles
//
// # Chaos
//
// Self-gravitating systems are chaotic: a tiny displacement of one particle
// grows exponentially on roughly a crossing time. Lyapunov measures that
// rate by integrating a reference and a perturbed copy side by side:
//
//	lambda, err := analysis.Lyapunov(ctx, ens, 0.001, 1.0, 1e-8)
package analysis
