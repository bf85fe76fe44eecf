// Package engine assembles the tab session components for one browser
// profile from configuration: the archive file, the screenshot store, the
// preference store, legacy sources, the persistence coordinator and the
// restoration controller.
package engine
