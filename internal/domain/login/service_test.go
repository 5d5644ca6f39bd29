package login

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kidpech/authbridge/internal/domain/authbridge"
)

func TestCompletePublishesSession(t *testing.T) {
	env := newFixture()
	env.exchanger.session = &authbridge.Session{AccessCredential: "A", RefreshCredential: "R", Subject: authbridge.SubjectIdentity{Username: "alice"}}
	dismissed := false

	res, err := env.service.Complete(context.Background(), Request{
		TriggerID:  "button-1",
		Provider:   "Google",
		Locale:     "en",
		SessionKey: "key-1",
		Dismiss:    func() { dismissed = true },
	}, authbridge.Credential{AccessToken: "tok123"})

	require.NoError(t, err)
	require.Equal(t, "key-1", res.SessionKey)
	require.Equal(t, StateExchangeSucceeded, res.Attempt.State)
	require.NotNil(t, res.Attempt.FinishedAt)
	require.True(t, dismissed)
	require.Equal(t, "alice", env.publisher.sessions["key-1"].Subject.Username)
	require.Equal(t, "google", env.exchanger.lastProvider)
	require.Equal(t, "tok123", env.exchanger.lastToken)
	require.Len(t, env.repo.saved, 1)
	require.Equal(t, "alice", env.repo.saved[0].Username)
	require.Equal(t, 1, env.observer.count)
}

func TestCompleteFailureDoesNotPublish(t *testing.T) {
	cases := map[string]error{
		"rejected":  &authbridge.Error{Kind: authbridge.KindBackendRejected, StatusCode: 401, Message: "bad token"},
		"transport": &authbridge.Error{Kind: authbridge.KindTransport, Err: errors.New("dial tcp: refused")},
		"malformed": &authbridge.Error{Kind: authbridge.KindMalformedResponse, Message: "missing refresh"},
	}
	for name, exchangeErr := range cases {
		t.Run(name, func(t *testing.T) {
			env := newFixture()
			env.exchanger.err = exchangeErr
			dismissed := false

			res, err := env.service.Complete(context.Background(), Request{
				TriggerID: "button-1",
				Provider:  "google",
				Dismiss:   func() { dismissed = true },
			}, authbridge.Credential{AccessToken: "tok"})

			require.Nil(t, res)
			require.True(t, errors.Is(err, exchangeErr))
			require.False(t, dismissed)
			require.Empty(t, env.publisher.sessions)
			require.Len(t, env.repo.saved, 1)
			require.Equal(t, StateExchangeFailed, env.repo.saved[0].State)
			require.Equal(t, string(authbridge.KindOf(exchangeErr)), env.repo.saved[0].ErrorKind)
			require.Len(t, env.sink.entries, 1)
		})
	}
}

func TestReporterOnlySeesUnexpectedFailures(t *testing.T) {
	env := newFixture()
	env.exchanger.err = &authbridge.Error{Kind: authbridge.KindBackendRejected, StatusCode: 400}
	_, _ = env.service.Complete(context.Background(), Request{TriggerID: "t", Provider: "google"}, authbridge.Credential{AccessToken: "tok"})
	require.Equal(t, 0, env.reporter.count)

	env.exchanger.err = &authbridge.Error{Kind: authbridge.KindMalformedResponse}
	_, _ = env.service.Complete(context.Background(), Request{TriggerID: "t", Provider: "google"}, authbridge.Credential{AccessToken: "tok"})
	require.Equal(t, 1, env.reporter.count)
}

func TestCompleteEmptyCredentialIsProviderFailure(t *testing.T) {
	env := newFixture()

	_, err := env.service.Complete(context.Background(), Request{TriggerID: "t", Provider: "google"}, authbridge.Credential{})

	require.True(t, errors.Is(err, authbridge.ErrProvider))
	require.Equal(t, 0, env.exchanger.calls)
	require.Equal(t, StateProviderFailed, env.repo.saved[0].State)
}

func TestCompleteValidatesRequest(t *testing.T) {
	env := newFixture()

	_, err := env.service.Complete(context.Background(), Request{Provider: "google"}, authbridge.Credential{AccessToken: "tok"})

	require.Error(t, err)
	require.Equal(t, 0, env.exchanger.calls)
}

func TestPublishFailureLeavesAttemptFailed(t *testing.T) {
	env := newFixture()
	env.publisher.err = errors.New("store down")

	_, err := env.service.Complete(context.Background(), Request{TriggerID: "t", Provider: "google"}, authbridge.Credential{AccessToken: "tok"})

	require.EqualError(t, err, "store down")
	require.Equal(t, StateExchangeFailed, env.repo.saved[0].State)
	require.Equal(t, kindPublish, env.repo.saved[0].ErrorKind)
}

func TestLoginRunsProviderFlow(t *testing.T) {
	env := newFixture()

	res, err := env.service.Login(context.Background(), Request{TriggerID: "t", Provider: "google"}, staticFlow{result: ProviderResult{Credential: authbridge.Credential{AccessToken: "from-popup"}}})

	require.NoError(t, err)
	require.NotEmpty(t, res.SessionKey)
	require.Equal(t, "from-popup", env.exchanger.lastToken)
}

func TestLoginProviderFailureNeverReachesBridge(t *testing.T) {
	env := newFixture()

	_, err := env.service.Login(context.Background(), Request{TriggerID: "t", Provider: "google"}, staticFlow{result: ProviderResult{Err: errors.New("popup closed")}})

	require.True(t, errors.Is(err, authbridge.ErrProvider))
	require.Equal(t, 0, env.exchanger.calls)
	require.Equal(t, StateProviderFailed, env.repo.saved[0].State)
	require.Empty(t, env.publisher.sessions)
}

func TestLoginFlowStartError(t *testing.T) {
	env := newFixture()

	_, err := env.service.Login(context.Background(), Request{TriggerID: "t", Provider: "google"}, staticFlow{startErr: errors.New("no browser")})

	require.True(t, errors.Is(err, authbridge.ErrProvider))
	require.Equal(t, 0, env.exchanger.calls)
}

func TestLoginCanceledWhileWaitingForProvider(t *testing.T) {
	env := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.service.Login(ctx, Request{TriggerID: "t", Provider: "google"}, silentFlow{})

	require.True(t, errors.Is(err, authbridge.ErrProvider))
	require.True(t, errors.Is(err, context.Canceled))
	require.Equal(t, 0, env.exchanger.calls)
}

func TestResultDiscardedWhenCallerGoesAway(t *testing.T) {
	env := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	env.exchanger.onCall = cancel

	_, err := env.service.Complete(ctx, Request{TriggerID: "t", Provider: "google"}, authbridge.Credential{AccessToken: "tok"})

	require.True(t, errors.Is(err, ErrAttemptAbandoned))
	require.Empty(t, env.publisher.sessions)
	require.Len(t, env.repo.saved, 1)
}

func TestConcurrentAttemptsOnSameTrigger(t *testing.T) {
	env := newFixture()
	release := make(chan struct{})
	entered := make(chan struct{})
	env.exchanger.block = release
	env.exchanger.entered = entered

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = env.service.Complete(context.Background(), Request{TriggerID: "button", Provider: "google"}, authbridge.Credential{AccessToken: "tok"})
	}()
	<-entered

	_, err := env.service.Complete(context.Background(), Request{TriggerID: "button", Provider: "google"}, authbridge.Credential{AccessToken: "tok"})
	require.True(t, errors.Is(err, ErrAttemptInProgress))

	close(release)
	wg.Wait()
	require.NoError(t, firstErr)

	_, err = env.service.Complete(context.Background(), Request{TriggerID: "button", Provider: "google"}, authbridge.Credential{AccessToken: "tok"})
	require.NoError(t, err)
	require.Equal(t, 2, env.exchanger.calls)
}

func TestTriggerReleasedAfterFailure(t *testing.T) {
	env := newFixture()
	env.exchanger.err = &authbridge.Error{Kind: authbridge.KindTransport}
	_, err := env.service.Complete(context.Background(), Request{TriggerID: "t", Provider: "google"}, authbridge.Credential{AccessToken: "tok"})
	require.Error(t, err)

	env.exchanger.err = nil
	_, err = env.service.Complete(context.Background(), Request{TriggerID: "t", Provider: "google"}, authbridge.Credential{AccessToken: "tok"})
	require.NoError(t, err)
}

func TestAttemptTransitions(t *testing.T) {
	now := time.Now()
	a := newAttempt(Request{TriggerID: "t", Provider: "google"}, now)
	require.Equal(t, StateIdle, a.State)

	require.True(t, errors.Is(a.Transition(StateCredentialObtained, now), ErrInvalidTransition))
	require.NoError(t, a.Transition(StateAwaitingCredential, now))
	require.Nil(t, a.FinishedAt)
	require.NoError(t, a.Transition(StateCredentialObtained, now))
	require.NoError(t, a.Transition(StateExchangeFailed, now))
	require.NotNil(t, a.FinishedAt)
	require.True(t, a.State.Terminal())
	require.True(t, errors.Is(a.Transition(StateExchangeSucceeded, now), ErrInvalidTransition))
}

func TestCompleteRecordsResolvedLocale(t *testing.T) {
	env := newFixture()
	service := NewService(ServiceDeps{
		Exchanger:  resolvingExchanger{env.exchanger},
		Publisher:  env.publisher,
		Repository: env.repo,
	})

	_, err := service.Complete(context.Background(), Request{
		TriggerID: "button-1",
		Provider:  "google",
		Locale:    "PT-br",
	}, authbridge.Credential{AccessToken: "tok"})

	require.NoError(t, err)
	require.Equal(t, "pt-BR", env.exchanger.lastLocale)
	require.Equal(t, "pt-BR", env.repo.saved[0].Locale)
}

func TestCompleteDropsOverlongLocale(t *testing.T) {
	env := newFixture()

	_, err := env.service.Complete(context.Background(), Request{
		TriggerID: "button-1",
		Provider:  "google",
		Locale:    strings.Repeat("x", 300),
	}, authbridge.Credential{AccessToken: "tok"})

	require.NoError(t, err)
	require.Empty(t, env.exchanger.lastLocale)
	require.Empty(t, env.repo.saved[0].Locale)
}

func TestCompleteReportsPublishedLifetime(t *testing.T) {
	env := newFixture()
	service := NewService(ServiceDeps{
		Exchanger: env.exchanger,
		Publisher: ttlPublisher{fakePublisher: env.publisher, ttl: 90 * time.Second},
	})

	res, err := service.Complete(context.Background(), Request{TriggerID: "b", Provider: "google"}, authbridge.Credential{AccessToken: "tok"})

	require.NoError(t, err)
	require.Equal(t, 90*time.Second, res.ExpiresIn)

	res, err = env.service.Complete(context.Background(), Request{TriggerID: "b", Provider: "google"}, authbridge.Credential{AccessToken: "tok"})
	require.NoError(t, err)
	require.Zero(t, res.ExpiresIn)
}

type fixture struct {
	service   *Service
	exchanger *fakeExchanger
	publisher *fakePublisher
	repo      *fakeRepo
	observer  *fakeObserver
	sink      *fakeSink
	reporter  *fakeReporter
}

func newFixture() *fixture {
	f := &fixture{
		exchanger: &fakeExchanger{},
		publisher: &fakePublisher{sessions: make(map[string]*authbridge.Session)},
		repo:      &fakeRepo{},
		observer:  &fakeObserver{},
		sink:      &fakeSink{},
		reporter:  &fakeReporter{},
	}
	f.service = NewService(ServiceDeps{
		Exchanger:  f.exchanger,
		Publisher:  f.publisher,
		Repository: f.repo,
		Observer:   f.observer,
		Sink:       f.sink,
		Reporter:   f.reporter,
		Logger:     zap.NewNop(),
	})
	return f
}

type fakeExchanger struct {
	mu           sync.Mutex
	session      *authbridge.Session
	byToken      map[string]*authbridge.Session
	err          error
	calls        int
	lastProvider string
	lastToken    string
	lastLocale   string
	onCall       func()
	block        chan struct{}
	entered      chan struct{}
}

func (f *fakeExchanger) Exchange(ctx context.Context, provider string, cred authbridge.Credential, locale string) (*authbridge.Session, error) {
	f.mu.Lock()
	f.calls++
	f.lastProvider = provider
	f.lastToken = cred.AccessToken
	f.lastLocale = locale
	block, entered, onCall := f.block, f.entered, f.onCall
	f.block, f.entered = nil, nil
	f.mu.Unlock()
	if entered != nil {
		close(entered)
	}
	if block != nil {
		<-block
	}
	if onCall != nil {
		onCall()
	}
	if f.err != nil {
		return nil, f.err
	}
	if sess, ok := f.byToken[cred.AccessToken]; ok {
		return sess, nil
	}
	if f.session != nil {
		return f.session, nil
	}
	return &authbridge.Session{AccessCredential: "A", RefreshCredential: "R", Subject: authbridge.SubjectIdentity{Username: "alice"}}, nil
}

type fakePublisher struct {
	mu       sync.Mutex
	sessions map[string]*authbridge.Session
	err      error
}

func (f *fakePublisher) Publish(ctx context.Context, key string, sess *authbridge.Session) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[key] = sess
	return nil
}

type fakeRepo struct {
	mu    sync.Mutex
	saved []Attempt
}

func (f *fakeRepo) Save(ctx context.Context, attempt *Attempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, *attempt)
	return nil
}

func (f *fakeRepo) ListBySubject(ctx context.Context, username string, limit int) ([]Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Attempt
	for _, a := range f.saved {
		if a.Username == username {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeObserver struct {
	mu    sync.Mutex
	count int
}

func (f *fakeObserver) AttemptFinished(attempt *Attempt, exchange time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count++
}

type fakeSink struct {
	mu      sync.Mutex
	entries []string
}

func (f *fakeSink) Append(entry string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
}

type fakeReporter struct {
	count int
}

func (f *fakeReporter) Report(err error, tags map[string]string) {
	f.count++
}

type staticFlow struct {
	result   ProviderResult
	startErr error
}

func (s staticFlow) Start(ctx context.Context) (<-chan ProviderResult, error) {
	if s.startErr != nil {
		return nil, s.startErr
	}
	ch := make(chan ProviderResult, 1)
	ch <- s.result
	close(ch)
	return ch, nil
}

type silentFlow struct{}

func (silentFlow) Start(ctx context.Context) (<-chan ProviderResult, error) {
	return make(chan ProviderResult), nil
}

type resolvingExchanger struct {
	*fakeExchanger
}

func (resolvingExchanger) ResolveLocale(raw string) string {
	if strings.EqualFold(raw, "pt-br") {
		return "pt-BR"
	}
	return "en"
}

type ttlPublisher struct {
	*fakePublisher
	ttl time.Duration
}

func (p ttlPublisher) SessionTTL(*authbridge.Session) time.Duration {
	return p.ttl
}
