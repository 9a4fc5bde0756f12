// Package logging configures the process-wide structured logger. All
// packages log through charmbracelet/log's default logger, so Setup only
// has to run once from the command entry point.
package logging
