// Package runtime holds the application's global dependency injection
// container.
package runtime

import (
	"go.uber.org/dig"
)

// container is the process-wide dig container every component registers
// into and resolves from.
var container *dig.Container

func init() {
	container = dig.New()
}

// GetContainer returns the global dependency injection container.
func GetContainer() *dig.Container {
	return container
}
