// Package persistence schedules archive writes for the live tab set.
//
// Capture happens on the caller. The encode and write step runs later on a
// timer goroutine, serialized by a mutex, and only commits when its
// generation is newer than the last committed one, so writes land in capture
// order even when a flush races the timer.
package persistence
