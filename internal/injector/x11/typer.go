// Package x11 types characters through the X server. It is kept apart from
// package injector because robotgo needs cgo and the X11 headers.
package x11

import "github.com/go-vgo/robotgo"

// Typer types through the X server with robotgo.
type Typer struct{}

func (Typer) TypeRune(r rune) error {
	robotgo.TypeStr(string(r))
	return nil
}
