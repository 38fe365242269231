// Package queue owns the durable job table: the records, their lifecycle
// states, and the file Store that persists them.
//
// The Store keeps the whole table in one JSON file alongside an advisory
// lock and the per-job log areas. Writes go through write-temp-then-rename
// so readers in other processes never observe a partial table, and Mutate
// layers the file lock over each read-modify-write cycle so overlapping
// writers cannot discard each other's updates. Records capture command,
// state, process id, and timestamps; the CLI and the runner daemon share
// nothing else.
//
// New statuses belong in models.go alongside the terminal-state set.
package queue
