// Package logging builds the slog loggers Capstan components share.
//
// Two handlers exist: a console handler that prefixes the component name and
// renders attrs as key=value pairs, and a JSON handler for machine-read
// daemon logs. Construction goes through Options or NewFromConfig, which
// tees daemon output to stdout and capstand.log. Field name constants and
// the job-id context helpers keep attribute keys identical across the
// manager, the runner, and the CLI, and NewNop gives tests and optional
// wiring a logger that cannot fail.
package logging
