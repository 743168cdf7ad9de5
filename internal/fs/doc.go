// Package fs abstracts the filesystem operations behind manifest and segment
// persistence so they can be failure-tested.
//
// Production code uses [Default] (an [OSFS]). Tests inject a [FaultyFS] to cut
// writes short, fail syncs or fail closes on selected files, which is how the
// crash-safety behavior of commit and create is exercised without an actual
// crash.
//
// Operations here take no context.Context: local file syscalls are fast and
// non-interruptible, so a context would be checked exactly never. Remote
// storage with real latency lives behind blobstore instead.
package fs
