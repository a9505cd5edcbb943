// Package ir provides the configuration representation shared by every
// preproc package.
//
// This package contains type definitions only, plus canonical serialization
// for fingerprinting. All other internal packages import ir; ir imports
// nothing internal.
//
// Key design constraints:
//   - Rule order is part of the configuration: values and regexValues are
//     ordered slices, never maps
//   - Replacement values are strings by the time they reach ir (the compiler
//     coerces numbers and booleans)
//   - All JSON tags use camelCase to match the configuration file keys
package ir
