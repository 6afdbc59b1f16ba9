package schema

import (
	"fmt"
	"strings"
)

// ValidationError reports a malformed or incomplete object definition.
// Path locates the offending element (an FQN or a source path like
// "objects[3]").
type ValidationError struct {
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid definition at %s: %s", e.Path, e.Message)
}

// DuplicateNameError reports a fully-qualified name collision.
type DuplicateNameError struct {
	Name ObjectName
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("duplicate object name: %s", e.Name)
}

// ReferenceError reports a dangling reference: Object is the referencing
// object, Field the element holding the reference (a column or constraint
// name, empty for object-level dependency lists) and Ref the name that did
// not resolve.
type ReferenceError struct {
	Object ObjectName
	Field  string
	Ref    string
}

func (e *ReferenceError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: reference to undefined object %q", e.Object, e.Field, e.Ref)
	}
	return fmt.Sprintf("%s: reference to undefined object %q", e.Object, e.Ref)
}

// CyclicDependencyError reports a dependency cycle that cannot be broken by
// deferring foreign keys. Cycle lists the FQNs in graph order.
type CyclicDependencyError struct {
	Cycle []ObjectName
}

func (e *CyclicDependencyError) Error() string {
	names := make([]string, 0, len(e.Cycle)+1)
	for _, n := range e.Cycle {
		names = append(names, n.String())
	}
	if len(names) > 0 {
		names = append(names, names[0])
	}
	return "cyclic dependency: " + strings.Join(names, " -> ")
}

// ExtractionError reports a catalog connectivity or consistency failure
// during extraction from a live database.
type ExtractionError struct {
	Op  string
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Op, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
