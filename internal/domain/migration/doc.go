// Package migration converts data written by the legacy browser.
//
// Legacy tabs are converted once, in place of the archive, until a
// successful restoration sets the migrated preference. Legacy sources are
// read-only, so an interrupted migration is simply run again on the next
// launch. Legacy history is regrouped into domains, sites and visits and
// handed to a HistoryWriteSink.
package migration
