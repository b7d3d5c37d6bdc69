package services

import "fmt"

// NotFoundError reports a validation failure where a referenced entity does
// not exist in the project (e.g. an agency name passed to the consolidator).
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %q", e.Kind, e.Name)
}

// ConsolidationError is returned when a consolidation pass fails partway.
// Deleted counts the rows removed before the failure; groups already
// processed stay merged, groups after the failure are untouched.
type ConsolidationError struct {
	Deleted int
	Group   int
	Err     error
}

func (e *ConsolidationError) Error() string {
	return fmt.Sprintf("consolidation stopped at group %d after deleting %d rows: %v", e.Group, e.Deleted, e.Err)
}

func (e *ConsolidationError) Unwrap() error {
	return e.Err
}
