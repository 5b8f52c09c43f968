// Package sanitizer provides input normalization for marketplace data.
//
// All normalization functions are idempotent - applying them multiple times
// produces the same result. Functions handle invalid input gracefully,
// typically by returning empty strings rather than errors.
//
// Normalization includes:
//   - Free-text strings (metadata labels): collapse whitespace, trim
//   - Account identifiers: trim, lowercase, strip non [a-z0-9_-] runes
package sanitizer
