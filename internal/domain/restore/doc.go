// Package restore rebuilds the tab set saved by a previous run.
//
// A Controller reads its startup records once, through a Loader that either
// decodes the archive or converts legacy tabs, and keeps them for its
// lifetime. Restore turns records into Placeholders whose screenshots are
// fetched lazily. Only one restoration runs at a time.
package restore
