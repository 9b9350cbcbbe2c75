// Package preflight checks that the host can run docarchive before the
// server starts, and backs `docarchive doctor`.
//
// The checks cover:
//   - configuration validity
//   - write access to the data directory
//   - free disk space under the data directory (minimum 100 MB)
//   - the file descriptor limit (minimum 1024)
//   - whether another process holds the data directory
//   - the consume folder, when one is configured
//
//	checker := preflight.New()
//	results := checker.RunAll(ctx, cfg)
//	if checker.HasCriticalFailures(results) {
//	    // refuse to start
//	}
package preflight
