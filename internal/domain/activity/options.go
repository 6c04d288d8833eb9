package activity

// ListOptions provides filtering options for listing entries.
type ListOptions struct {
	Collection string
	FailedOnly bool
	Limit      int
}
