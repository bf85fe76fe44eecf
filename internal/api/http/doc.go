// Package http implements the read-mostly debug endpoints exposing the
// archive, the screenshot store and the persistence pipeline of a running
// engine.
package http
