package storage

// NotFoundError is returned when a document doesn't exist in the store.
type NotFoundError struct {
	DocumentID string
}

func (e NotFoundError) Error() string {
	if e.DocumentID == "" {
		return "document not found"
	}

	return "document not found: " + e.DocumentID
}
