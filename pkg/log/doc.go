// Package log provides structured logging for switchorch using zerolog.
//
// The global Logger is initialized once via Init and then narrowed with
// WithComponent/WithTable/WithKey/WithModule to attach the fields that matter
// for a given subsystem: a bulker cares about its table, a warm-restart
// registry cares about its module name. Keeping one global logger instead of
// threading a logger through every constructor mirrors how the rest of the
// convergence engine is wired: a small service directory, not ambient
// globals, but logging is the one exception the rest of the stack also makes
// an exception for, since every package needs it.
package log
