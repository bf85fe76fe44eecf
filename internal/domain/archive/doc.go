// Package archive defines the on-disk format of the tab session archive.
//
// An archive is a single file holding every persisted tab record in order:
//
//	"TABS" | version (1 byte) | payload
//
// Version 2, the current one, stores a zstd-compressed JSON document with one
// flat entry per tab. Version 1 stored uncompressed JSON with the navigation
// history nested under "sessionData"; it is still read and upgraded in memory,
// but never written.
//
// Decode fails with ErrCorruptArchive when the header is missing, the version
// is unknown or the payload does not parse. That is never fatal: the caller
// restores zero tabs. File quarantines corrupt archives so a later write does
// not destroy them.
package archive
