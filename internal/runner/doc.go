// Package runner defines the pipeline stage contract executed by workers and
// the registry that resolves the ordered runner chain for a library.
//
// A runner never executes anything itself: it inspects the Context handed to
// it by the worker and fills in the command, progress parser, output path and
// repeat flag. The worker owns subprocess execution, pausing and logging.
// Configured runners come in three types: generic command runners with
// {file_in}-style placeholders, a drapto runner that speaks drapto's JSON
// progress stream, and an in-process copy runner.
package runner
