// Package watcher feeds a consume folder into the archive.
//
// A DirWatcher reports files appearing in one flat directory, using fsnotify
// with a polling fallback for mounts where inotify does not work. Events are
// debounced so a file is reported once it has been quiet for the configured
// window, which lets scanners and copy tools finish writing first.
//
// A Consumer reads each settled PDF, ingests it and moves it aside:
//
//	<consume_dir>/.done/    ingested
//	<consume_dir>/.failed/  rejected as an unsupported format
//
// Files that hit a storage or index failure are retried with backoff and,
// when every attempt fails, left in place for the next run.
package watcher
