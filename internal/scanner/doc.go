// Package scanner discovers candidate input files.
//
// Scan is a flat, non-recursive listing of each input directory that skips
// hidden names, non-regular files, and files still too young to be complete.
// Watcher optionally shortens the wait between polls using fsnotify.
package scanner
