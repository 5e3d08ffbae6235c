package core

import (
	"errors"
	"fmt"

	"github.com/frida-mgr/versions/client"
)

// ErrEmptyResult is returned when a refresh produces zero mappings.
// Callers must never persist such a result over prior state.
var ErrEmptyResult = errors.New("refresh produced zero mappings")

// NotFoundError reports a package or version missing from the registry.
type NotFoundError struct {
	Package string
	Version string
}

func (e *NotFoundError) Error() string {
	if e.Version != "" {
		return fmt.Sprintf("pypi: package %s version %s not found", e.Package, e.Version)
	}
	return fmt.Sprintf("pypi: package %s not found", e.Package)
}

func (e *NotFoundError) Unwrap() error {
	return client.ErrNotFound
}

// VersionFormatError reports an unparseable semantic version in a
// position where one is structurally required, such as a user-supplied
// version pin.
type VersionFormatError struct {
	Input string
}

func (e *VersionFormatError) Error() string {
	return fmt.Sprintf("invalid semantic version %q", e.Input)
}
