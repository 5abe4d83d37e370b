package activity

// ListActivityOptions provides filtering options for listing activity.
type ListActivityOptions struct {
	SessionID *string
	TaskID    *string
	Types     []ActivityType
	Limit     int
	Offset    int
}
