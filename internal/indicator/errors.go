package indicator

import "errors"

var (
	// ErrNodeNotFound is returned when an operation names an id that is not in the tree.
	ErrNodeNotFound = errors.New("indicator not found")
	// ErrParentNotFound is returned when the requested parent does not exist.
	ErrParentNotFound = errors.New("parent indicator not found")
	// ErrMoveIntoDescendant is returned when a move would make a node its own ancestor.
	ErrMoveIntoDescendant = errors.New("cannot move an indicator under itself or one of its descendants")
	// ErrInvalidOrdering is returned when a reorder does not list exactly the parent's current children.
	ErrInvalidOrdering = errors.New("ordering must list every child of the parent exactly once")
	// ErrArchiveOccupied is returned when archiving would replace a configuration
	// that is already archived on the node.
	ErrArchiveOccupied = errors.New("indicator already holds archived schemas; restore them first")
)
