// Package screen provides the convergence-retry orchestration and best-replica
// selection used by the emsift screening pipeline.
//
// # Reading Guide
//
// Start with these files to understand the core:
//   - outcome.go: classifying a minimization log (converged / not converged / unknown)
//   - state.go: the per-variant retry state machine and its pure transition function
//   - orchestrator.go: driving baseline evaluation and bounded retries through a CommandRunner
//   - selector.go, promoter.go: ranking attempts by maximum force and promoting the winner
//
// # Architecture
//
// The pipeline runs in two independent passes over a batch root:
//   - minimize: for each variant directory, evaluate the baseline log and issue up
//     to MaxRetries numbered re-runs until one converges
//   - select: for each variant directory, extract the maximum force from every
//     attempt log, rank, write forces_summary.txt and promote the winner's files
//     to the canonical base name
//
// Both passes are strictly sequential and append one block per variant to a
// BatchReporter. Per-variant problems never abort the batch; only a missing
// batch root does (ErrBatchRootMissing).
//
// Sub-packages:
//   - screen/trace: per-batch outcome recording and summaries
//   - screen/pocket: active-site centroid location from PDB structures
//   - screen/dock: docking preparation, execution and rank-file reporting
package screen
