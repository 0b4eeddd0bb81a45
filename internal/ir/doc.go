// Package ir provides the canonical value representation used to identify
// selector argument tuples.
//
// ir imports nothing internal. Every package that needs to compare or key
// arguments goes through it, so structural equality is defined in one place.
//
// Key design constraints:
//   - Trailing nil arguments are trimmed before keying
//   - Keys are RFC 8785 canonical JSON (sorted keys, NFC strings)
//   - No float values - integral floats are folded to Int, others rejected
package ir
