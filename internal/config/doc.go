// Package config loads, normalizes, and validates Capstan configuration.
//
// Settings come from a TOML file resolved from an explicit path, the user
// config directory, or a capstan.toml next to the working directory, with
// repository defaults filling anything unset. Normalization expands tilde
// paths and lowercases enum-like values before validation, so the rest of
// the system never sees a half-sanitized Config.
//
// Derived locations (queue file, lock files, log areas, history database)
// are exposed as methods rather than fields; only the two root directories
// are configurable.
package config
