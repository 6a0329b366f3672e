package storage

// NotFoundError is returned when a turn or session doesn't exist in the
// store.
type NotFoundError struct {
	ID string
}

func (e NotFoundError) Error() string {
	if e.ID == "" {
		return "not found"
	}

	return "not found: " + e.ID
}
