// Package transform sequences the two preprocessing stages for each
// artifact.
//
// Transform runs the conditional comment stage first (when enabled) and
// feeds its output to the pattern stage. The two edit lists are composed
// into one list against the original text, so a single source map covers
// both stages. Render runs only the pattern stage, for output that has
// already been through Transform.
//
// Artifacts are processed one at a time in call order. Directive
// definitions flow from each artifact to every later one through the
// shared condition registry, so the caller decides, and must keep
// deterministic, the processing order.
package transform
