package resolver

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoWeaversConfigured indicates that no installed weaver ended up with
// bound configuration. Running with no transformation at all is never
// silently accepted.
var ErrNoWeaversConfigured = errors.New("no weavers configured; add weaver elements to FodyWeavers.xml")

// WeaverNotFoundError is returned when configuration references weavers
// that are not installed. It names every offending element so the user
// can fix them all in one pass.
type WeaverNotFoundError struct {
	ElementNames []string
}

func (e *WeaverNotFoundError) Error() string {
	return fmt.Sprintf(
		"configuration references weavers that are not installed: %s. "+
			"Add the missing weaver packages to the project, or remove the elements from FodyWeavers.xml. "+
			"See https://github.com/Fody/Fody/wiki/Migration for upgrade guidance",
		strings.Join(e.ElementNames, ", "))
}
