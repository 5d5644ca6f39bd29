package login

import "context"

// Repository defines the persistence boundary for attempt audit records.
type Repository interface {
	Save(ctx context.Context, attempt *Attempt) error
	// ListBySubject returns the most recent attempts that signed username in.
	ListBySubject(ctx context.Context, username string, limit int) ([]Attempt, error)
}
