// Package scheduler drives periodic collection cycles.
//
// The scheduler:
//   - Runs one fetch-normalize-store cycle per interval, never concurrently
//   - Measures wall-clock elapsed time per cycle and sleeps the remainder,
//     so slow cycles do not compound delay
//   - Triggers the retention prune once per cycle
//   - Uses an injectable clock so timing and shutdown are testable
package scheduler
