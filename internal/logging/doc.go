// Package logging sets up structured JSON logging for docarchive.
//
// Logs go to a size-rotated file under ~/.docarchive/logs and, outside of
// MCP stdio mode, to stderr as well. The viewer backs `docarchive logs`.
package logging
