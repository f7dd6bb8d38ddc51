// Package sanitizer normalizes user input before validation and storage.
//
// Every function is idempotent and tolerant of bad input: it returns an empty
// value rather than an error, leaving rejection to the validators.
//
// Normalization includes:
//   - Phone numbers: E.164 via libphonenumber, with a default region for local numbers
//   - Emails: trimmed and lowercased
//   - Places: collapsed whitespace in title case, so "  new   delhi" becomes "New Delhi"
//   - Labels: collapsed whitespace for brand and model names
//   - Slices: duplicates and empty values removed after normalization
package sanitizer
