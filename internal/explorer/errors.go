package explorer

import (
	"errors"
	"fmt"

	"github.com/tide-ide/tide/internal/coursetree"
)

var (
	// ErrUnauthenticated rejects refreshes while nobody is logged in.
	ErrUnauthenticated = errors.New("not logged in")
	// ErrConfigurationMissing is returned when the download path is unset.
	ErrConfigurationMissing = coursetree.ErrConfigurationMissing
	// ErrNodeNotFound is returned for paths that are not in the live tree.
	ErrNodeNotFound = errors.New("no such node in course tree")
)

// User-visible messages.
const (
	msgLoginRequired = "Login to browse courses and tasks!"
	msgNoDownload    = "Error while reading download path. Set the download path in the settings!"
	msgOpenFailed    = "Error, document might be deleted. Refreshing..."
	msgOpenAllFailed = "Error opening documents. Refreshing treeview"
)

// OpenError reports a task file the editor could not open. The tree is
// refreshed after it is returned.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open %s: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}
