package login

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kidpech/authbridge/internal/domain/authbridge"
)

// State is a step of a single login attempt.
type State string

const (
	StateIdle               State = "idle"
	StateAwaitingCredential State = "awaiting_provider_credential"
	StateProviderFailed     State = "provider_failed"
	StateCredentialObtained State = "credential_obtained"
	StateExchangeSucceeded  State = "exchange_succeeded"
	StateExchangeFailed     State = "exchange_failed"
)

var transitions = map[State][]State{
	StateIdle:               {StateAwaitingCredential},
	StateAwaitingCredential: {StateProviderFailed, StateCredentialObtained},
	StateCredentialObtained: {StateExchangeSucceeded, StateExchangeFailed},
}

// Terminal reports whether no further transition is allowed.
func (s State) Terminal() bool {
	return s == StateProviderFailed || s == StateExchangeSucceeded || s == StateExchangeFailed
}

// Attempt is the audit record of one login attempt.
type Attempt struct {
	ID         string     `json:"id" db:"id"`
	TriggerID  string     `json:"trigger_id" db:"trigger_id"`
	Provider   string     `json:"provider" db:"provider"`
	Locale     string     `json:"locale" db:"locale"`
	State      State      `json:"state" db:"state"`
	ErrorKind  string     `json:"error_kind,omitempty" db:"error_kind"`
	Diagnostic string     `json:"diagnostic,omitempty" db:"diagnostic"`
	Username   string     `json:"username,omitempty" db:"username"`
	StartedAt  time.Time  `json:"started_at" db:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty" db:"finished_at"`
}

func newAttempt(req Request, now time.Time) *Attempt {
	return &Attempt{
		ID:        uuid.NewString(),
		TriggerID: req.TriggerID,
		Provider:  req.Provider,
		Locale:    req.Locale,
		State:     StateIdle,
		StartedAt: now.UTC(),
	}
}

// Transition moves the attempt to next, stamping FinishedAt on terminal states.
func (a *Attempt) Transition(next State, now time.Time) error {
	for _, allowed := range transitions[a.State] {
		if allowed == next {
			a.State = next
			if next.Terminal() {
				finished := now.UTC()
				a.FinishedAt = &finished
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.State, next)
}

// Request describes who triggered a login and where the session should go.
type Request struct {
	TriggerID  string `validate:"required"`
	Provider   string `validate:"required"`
	Locale     string
	SessionKey string
	// Dismiss closes the login surface after a session is published.
	Dismiss func()
}

// Result is returned when a session was published.
type Result struct {
	Attempt    *Attempt
	Session    *authbridge.Session
	SessionKey string
	// ExpiresIn is the lifetime the publisher granted, zero when unknown.
	ExpiresIn time.Duration
}

// ProviderResult is the single terminal event of a provider flow.
type ProviderResult struct {
	Credential authbridge.Credential
	Err        error
}

// ProviderFlow produces at most one credential or failure per attempt.
type ProviderFlow interface {
	Start(ctx context.Context) (<-chan ProviderResult, error)
}
