// Package legacy reads tabs and history exported by the previous browser
// generation from <profile>/legacy.
package legacy
