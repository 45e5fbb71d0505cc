package types

// Status is a type for the lifecycle status of a resource row in the database.
// This is distinct from the domain statuses (subscription, billing run, payment)
// and is used to soft-delete and archive rows.
type Status string

const (
	StatusPublished Status = "published"
	StatusDeleted   Status = "deleted"
	StatusArchived  Status = "archived"
)

// Metadata is a generic string map attached to entities and gateway calls
type Metadata map[string]string
