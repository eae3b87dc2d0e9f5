// Package security holds CI tooling for the module rather than library code.
// The perf-regression command gates benchmark regressions between a
// baseline and a candidate run.
//
// # What this package must NOT do
//
//   - Be imported by library code.
package security
