// Package logging provides the leveled logging facade used across media-lite.
//
// Call sites use printf-style helpers (Debug, Info, Warn, Error, Fatal); the
// output is produced by a zerolog logger. Components that want structured
// fields take a child logger from With.
//
// The level comes from LOG_LEVEL (debug, info, warn, error) or DEBUG=true.
// LOG_FORMAT selects json or console output; by default a console writer is
// used when stderr is a terminal.
package logging
