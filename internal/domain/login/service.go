package login

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kidpech/authbridge/internal/domain/authbridge"
	"github.com/kidpech/authbridge/internal/domain/authctx"
)

// Sentinel errors for deterministic HTTP mapping.
var (
	ErrAttemptInProgress = errors.New("a login attempt is already running for this trigger")
	ErrAttemptAbandoned  = errors.New("login attempt abandoned before completion")
	ErrInvalidTransition = errors.New("invalid attempt transition")
)

const (
	kindPublish = "publish_failed"
	// maxLocaleLen matches the locale column width of the audit table.
	maxLocaleLen = 35
)

// Exchanger turns a provider credential into a session.
type Exchanger interface {
	Exchange(ctx context.Context, provider string, cred authbridge.Credential, locale string) (*authbridge.Session, error)
}

// Publisher receives sessions on success.
type Publisher interface {
	Publish(ctx context.Context, key string, sess *authbridge.Session) error
}

// LocaleResolver is implemented by exchangers that canonicalise locales.
type LocaleResolver interface {
	ResolveLocale(raw string) string
}

// SessionTTLReporter is implemented by publishers that derive a lifetime per session.
type SessionTTLReporter interface {
	SessionTTL(sess *authbridge.Session) time.Duration
}

// Observer is told about every finished attempt.
type Observer interface {
	AttemptFinished(attempt *Attempt, exchange time.Duration)
}

// DiagnosticSink collects operator-facing failure lines.
type DiagnosticSink interface {
	Append(entry string)
}

// ErrorReporter forwards unexpected failures to an error tracker.
type ErrorReporter interface {
	Report(err error, tags map[string]string)
}

// ServiceDeps aggregates Service collaborators. Only Exchanger and Publisher are required.
type ServiceDeps struct {
	Exchanger  Exchanger
	Publisher  Publisher
	Repository Repository
	Observer   Observer
	Sink       DiagnosticSink
	Reporter   ErrorReporter
	Logger     *zap.Logger
}

// Service runs login attempts end to end.
type Service struct {
	deps      ServiceDeps
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewService wires a Service.
func NewService(deps ServiceDeps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		deps:      deps,
		validator: validator.New(),
		logger:    logger,
		now:       time.Now,
		inflight:  make(map[string]struct{}),
	}
}

// Login drives flow until it yields a credential, then exchanges it.
func (s *Service) Login(ctx context.Context, req Request, flow ProviderFlow) (*Result, error) {
	req = s.normalize(req)
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	if !s.acquire(req.TriggerID) {
		return nil, ErrAttemptInProgress
	}
	defer s.release(req.TriggerID)

	attempt := newAttempt(req, s.now())
	if err := attempt.Transition(StateAwaitingCredential, s.now()); err != nil {
		return nil, err
	}
	events, err := flow.Start(ctx)
	if err != nil {
		return nil, s.fail(ctx, attempt, StateProviderFailed, authbridge.NewProviderError("provider flow failed to start", err), 0)
	}
	var cred authbridge.Credential
	select {
	case res, ok := <-events:
		switch {
		case !ok:
			return nil, s.fail(ctx, attempt, StateProviderFailed, authbridge.NewProviderError("provider flow ended without a result", nil), 0)
		case res.Err != nil:
			return nil, s.fail(ctx, attempt, StateProviderFailed, asProviderError(res.Err), 0)
		}
		cred = res.Credential
	case <-ctx.Done():
		return nil, s.fail(ctx, attempt, StateProviderFailed, authbridge.NewProviderError("login canceled", ctx.Err()), 0)
	}
	return s.exchange(ctx, attempt, req, cred)
}

// Complete exchanges a credential the caller already obtained from the provider.
func (s *Service) Complete(ctx context.Context, req Request, cred authbridge.Credential) (*Result, error) {
	req = s.normalize(req)
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	if !s.acquire(req.TriggerID) {
		return nil, ErrAttemptInProgress
	}
	defer s.release(req.TriggerID)

	attempt := newAttempt(req, s.now())
	if err := attempt.Transition(StateAwaitingCredential, s.now()); err != nil {
		return nil, err
	}
	return s.exchange(ctx, attempt, req, cred)
}

// History lists recent attempts that signed username in.
func (s *Service) History(ctx context.Context, username string, limit int) ([]Attempt, error) {
	if s.deps.Repository == nil || strings.TrimSpace(username) == "" {
		return nil, nil
	}
	return s.deps.Repository.ListBySubject(ctx, username, limit)
}

func (s *Service) exchange(ctx context.Context, attempt *Attempt, req Request, cred authbridge.Credential) (*Result, error) {
	if strings.TrimSpace(cred.AccessToken) == "" {
		return nil, s.fail(ctx, attempt, StateProviderFailed, authbridge.NewProviderError("provider returned an empty credential", nil), 0)
	}
	if err := attempt.Transition(StateCredentialObtained, s.now()); err != nil {
		return nil, err
	}

	start := s.now()
	sess, err := s.deps.Exchanger.Exchange(ctx, req.Provider, cred, req.Locale)
	elapsed := s.now().Sub(start)
	if err != nil {
		return nil, s.fail(ctx, attempt, StateExchangeFailed, err, elapsed)
	}
	if ctx.Err() != nil {
		return nil, s.fail(ctx, attempt, StateExchangeFailed, ErrAttemptAbandoned, elapsed)
	}

	key := req.SessionKey
	if key == "" {
		key = authctx.NewKey()
	}
	if err := s.deps.Publisher.Publish(ctx, key, sess); err != nil {
		return nil, s.fail(ctx, attempt, StateExchangeFailed, err, elapsed)
	}

	var expiresIn time.Duration
	if r, ok := s.deps.Publisher.(SessionTTLReporter); ok {
		expiresIn = r.SessionTTL(sess)
	}

	attempt.Username = sess.Subject.Username
	if err := attempt.Transition(StateExchangeSucceeded, s.now()); err != nil {
		return nil, err
	}
	s.finish(ctx, attempt, elapsed)
	s.logger.Info("login succeeded",
		zap.String("attempt_id", attempt.ID),
		zap.String("provider", attempt.Provider),
		zap.String("username", attempt.Username),
	)
	if req.Dismiss != nil {
		req.Dismiss()
	}
	return &Result{Attempt: attempt, Session: sess, SessionKey: key, ExpiresIn: expiresIn}, nil
}

func (s *Service) fail(ctx context.Context, attempt *Attempt, state State, cause error, elapsed time.Duration) error {
	if err := attempt.Transition(state, s.now()); err != nil {
		return err
	}
	attempt.ErrorKind = errorKind(cause)
	attempt.Diagnostic = cause.Error()
	s.finish(ctx, attempt, elapsed)

	s.logger.Warn("login failed",
		zap.String("attempt_id", attempt.ID),
		zap.String("provider", attempt.Provider),
		zap.String("state", string(attempt.State)),
		zap.String("kind", attempt.ErrorKind),
		zap.Error(cause),
	)
	if s.deps.Sink != nil {
		s.deps.Sink.Append(s.now().UTC().Format(time.RFC3339) + " login " + attempt.Provider + " " + attempt.ErrorKind + ": " + attempt.Diagnostic)
	}
	if s.deps.Reporter != nil {
		switch authbridge.KindOf(cause) {
		case authbridge.KindTransport, authbridge.KindMalformedResponse:
			s.deps.Reporter.Report(cause, map[string]string{"provider": attempt.Provider, "kind": attempt.ErrorKind})
		}
	}
	return cause
}

func (s *Service) finish(ctx context.Context, attempt *Attempt, elapsed time.Duration) {
	if s.deps.Repository != nil {
		// Audit writes outlive an abandoned request.
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.deps.Repository.Save(saveCtx, attempt); err != nil {
			s.logger.Warn("save attempt failed", zap.String("attempt_id", attempt.ID), zap.Error(err))
		}
	}
	if s.deps.Observer != nil {
		s.deps.Observer.AttemptFinished(attempt, elapsed)
	}
}

func (s *Service) acquire(trigger string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[trigger]; busy {
		return false
	}
	s.inflight[trigger] = struct{}{}
	return true
}

func (s *Service) release(trigger string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, trigger)
}

func (s *Service) normalize(req Request) Request {
	req.TriggerID = strings.TrimSpace(req.TriggerID)
	req.Provider = strings.ToLower(strings.TrimSpace(req.Provider))
	req.Locale = strings.TrimSpace(req.Locale)
	if r, ok := s.deps.Exchanger.(LocaleResolver); ok {
		req.Locale = r.ResolveLocale(req.Locale)
	}
	if len(req.Locale) > maxLocaleLen {
		req.Locale = ""
	}
	return req
}

func asProviderError(err error) error {
	if authbridge.KindOf(err) != "" {
		return err
	}
	return authbridge.NewProviderError("identity provider failed", err)
}

func errorKind(err error) string {
	if kind := authbridge.KindOf(err); kind != "" {
		return string(kind)
	}
	if errors.Is(err, ErrAttemptAbandoned) {
		return "abandoned"
	}
	return kindPublish
}
