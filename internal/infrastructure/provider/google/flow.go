package google

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/kidpech/authbridge/internal/domain/authbridge"
	"github.com/kidpech/authbridge/internal/domain/login"
)

const callbackPath = "/callback"

// Config feeds the loopback authorization-code flow.
type Config struct {
	ClientID     string
	ClientSecret string
	Issuer       string
	CallbackAddr string
	Scopes       []string
	// OpenBrowser is handed the authorization URL; the CLI prints it.
	OpenBrowser func(authURL string) error
	HTTPClient  *http.Client
}

// Flow runs a Google sign-in in the user's browser and yields the access token.
type Flow struct {
	cfg      Config
	endpoint oauth2.Endpoint
	verifier *oidc.IDTokenVerifier
	logger   *zap.Logger
}

// New discovers the issuer's endpoints and builds a Flow.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Flow, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("google oauth config missing client id")
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "https://accounts.google.com"
	}
	if cfg.CallbackAddr == "" {
		cfg.CallbackAddr = "127.0.0.1:0"
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.HTTPClient != nil {
		ctx = oidc.ClientContext(ctx, cfg.HTTPClient)
	}
	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("discover oidc provider: %w", err)
	}
	return &Flow{
		cfg:      cfg,
		endpoint: provider.Endpoint(),
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		logger:   logger,
	}, nil
}

// Start implements login.ProviderFlow. The returned channel yields exactly one result.
func (f *Flow) Start(ctx context.Context) (<-chan login.ProviderResult, error) {
	ln, err := net.Listen("tcp", f.cfg.CallbackAddr)
	if err != nil {
		return nil, fmt.Errorf("listen for callback: %w", err)
	}
	oauthCfg := &oauth2.Config{
		ClientID:     f.cfg.ClientID,
		ClientSecret: f.cfg.ClientSecret,
		Endpoint:     f.endpoint,
		RedirectURL:  "http://" + ln.Addr().String() + callbackPath,
		Scopes:       f.cfg.Scopes,
	}
	state := uuid.NewString()
	pkce := oauth2.GenerateVerifier()

	out := make(chan login.ProviderResult, 1)
	done := make(chan struct{})
	var once sync.Once
	deliver := func(res login.ProviderResult) {
		once.Do(func() {
			out <- res
			close(out)
			close(done)
		})
	}

	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			deliver(login.ProviderResult{Err: authbridge.NewProviderError("oauth state mismatch", nil)})
			return
		}
		if e := q.Get("error"); e != "" {
			fmt.Fprintln(w, "Sign-in was not completed. You can close this window.")
			deliver(login.ProviderResult{Err: authbridge.NewProviderError("google returned "+e, nil)})
			return
		}
		cred, err := f.redeem(ctx, oauthCfg, q.Get("code"), pkce)
		if err != nil {
			http.Error(w, "sign-in failed", http.StatusBadGateway)
			deliver(login.ProviderResult{Err: err})
			return
		}
		fmt.Fprintln(w, "Signed in. You can close this window.")
		deliver(login.ProviderResult{Credential: cred})
	})
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			deliver(login.ProviderResult{Err: authbridge.NewProviderError("callback server failed", err)})
		}
	}()
	go func() {
		select {
		case <-ctx.Done():
			deliver(login.ProviderResult{Err: authbridge.NewProviderError("login canceled", ctx.Err())})
		case <-done:
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	authURL := oauthCfg.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.S256ChallengeOption(pkce))
	go func() {
		open := f.cfg.OpenBrowser
		if open == nil {
			f.logger.Info("open this URL to sign in", zap.String("url", authURL))
			return
		}
		if err := open(authURL); err != nil {
			deliver(login.ProviderResult{Err: authbridge.NewProviderError("could not open browser", err)})
		}
	}()
	return out, nil
}

func (f *Flow) redeem(ctx context.Context, cfg *oauth2.Config, code, pkce string) (authbridge.Credential, error) {
	if code == "" {
		return authbridge.Credential{}, authbridge.NewProviderError("callback carried no code", nil)
	}
	if f.cfg.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, f.cfg.HTTPClient)
	}
	token, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(pkce))
	if err != nil {
		return authbridge.Credential{}, authbridge.NewProviderError("google token exchange failed", err)
	}
	if raw, ok := token.Extra("id_token").(string); ok && raw != "" && f.verifier != nil {
		idToken, err := f.verifier.Verify(ctx, raw)
		if err != nil {
			return authbridge.Credential{}, authbridge.NewProviderError("google id_token verification failed", err)
		}
		f.logger.Info("google oidc verified",
			zap.String("issuer", idToken.Issuer),
			zap.Bool("subject_present", idToken.Subject != ""),
		)
	}
	return authbridge.Credential{AccessToken: token.AccessToken}, nil
}

var _ login.ProviderFlow = (*Flow)(nil)
