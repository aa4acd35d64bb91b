// Package logging builds slog loggers for the labeler commands.
//
// Records below WARN go to standard output and WARN and above go to standard
// error, so a parent process capturing a child's stderr sees only problems.
// Standard output may also carry progress lines; log records never start
// with the progress prefix.
package logging
