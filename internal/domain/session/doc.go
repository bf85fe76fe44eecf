// Package session defines the restorable state of a browser tab.
//
// A Record is an immutable snapshot of one tab: its id (also the key of the
// tab's screenshot), title, navigation history, the active history entry,
// privacy and selection flags, timestamps and an opaque group id.
//
// Records are built from the live tab set with Capture, which reads each tab
// once through Tab.State so the snapshot is consistent without locking the
// tab set. Tabs without an id or without any URL are not archived.
//
// Timestamps are normalized to UTC milliseconds, the resolution of the
// archive, so a record survives an encode/decode round trip unchanged.
package session
