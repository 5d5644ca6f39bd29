package authbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

const (
	maxResponseBytes = 1 << 20
	maxDiagnosticLen = 200
)

// Options configures a Bridge.
type Options struct {
	BaseURL       string
	DefaultLocale string
	Timeout       time.Duration
	HTTPClient    *http.Client
	Registry      *Registry
	Logger        *zap.Logger
}

// Bridge exchanges identity provider credentials for backend sessions.
type Bridge struct {
	baseURL       string
	defaultLocale language.Tag
	client        *http.Client
	registry      *Registry
	validator     *validator.Validate
	sanitizer     *bluemonday.Policy
	logger        *zap.Logger
}

// New wires a Bridge.
func New(opts Options) (*Bridge, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	parsed, err := url.Parse(base)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, fmt.Errorf("invalid backend base url %q", opts.BaseURL)
	}
	def, err := language.Parse(strings.TrimSpace(opts.DefaultLocale))
	if err != nil {
		def = language.English
	}
	client := &http.Client{Timeout: opts.Timeout}
	if opts.HTTPClient != nil {
		c := *opts.HTTPClient
		client = &c
	}
	// A redirect would replay the credential to another host.
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	registry := opts.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		baseURL:       base,
		defaultLocale: def,
		client:        client,
		registry:      registry,
		validator:     validator.New(),
		sanitizer:     bluemonday.StrictPolicy(),
		logger:        logger,
	}, nil
}

// ResolveLocale canonicalises a language tag, falling back to the default locale.
func (b *Bridge) ResolveLocale(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return b.defaultLocale.String()
	}
	tag, err := language.Parse(raw)
	if err != nil {
		return b.defaultLocale.String()
	}
	return tag.String()
}

// Endpoint returns the exchange URL for provider and locale.
func (b *Bridge) Endpoint(provider, locale string) string {
	return b.baseURL + "/" + url.PathEscape(locale) + "/api/auth/" + url.PathEscape(provider) + "/"
}

// Exchange performs exactly one backend request and returns the resulting session.
// Every failure is returned as *Error.
func (b *Bridge) Exchange(ctx context.Context, provider string, cred Credential, locale string) (sess *Session, err error) {
	defer func() {
		if r := recover(); r != nil {
			sess = nil
			err = transportError(fmt.Errorf("panic during exchange: %v", r))
		}
	}()

	if strings.TrimSpace(cred.AccessToken) == "" {
		return nil, NewProviderError("empty access token", nil)
	}
	p, ok := b.registry.Lookup(provider)
	if !ok {
		return nil, NewProviderError(fmt.Sprintf("unknown provider %q (accepted: %s)", provider, strings.Join(b.registry.Names(), ", ")), nil)
	}
	loc := b.ResolveLocale(locale)
	endpoint := b.Endpoint(p.Name, loc)

	body, err := json.Marshal(map[string]string{p.CredentialField: cred.AccessToken})
	if err != nil {
		return nil, transportError(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, transportError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", loc)

	log := b.logger.With(zap.String("provider", p.Name), zap.String("locale", loc))
	resp, err := b.client.Do(req)
	if err != nil {
		log.Warn("exchange request failed", zap.Error(err))
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, transportError(fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := b.diagnostic(resp.StatusCode, raw)
		log.Info("exchange rejected", zap.Int("status", resp.StatusCode), zap.String("diagnostic", msg))
		return nil, rejected(resp.StatusCode, msg)
	}

	var payload sessionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, malformed("decode session", err)
	}
	if err := b.validator.Struct(payload.fields()); err != nil {
		var verr validator.ValidationErrors
		if errors.As(err, &verr) {
			missing := make([]string, 0, len(verr))
			for _, field := range verr {
				missing = append(missing, strings.ToLower(field.Field()))
			}
			return nil, malformed("missing "+strings.Join(missing, ", "), nil)
		}
		return nil, malformed("invalid session", err)
	}
	log.Debug("exchange succeeded", zap.Int("status", resp.StatusCode))
	return payload.session(), nil
}

// diagnostic extracts a short operator-facing message from a rejection body.
func (b *Bridge) diagnostic(status int, raw []byte) string {
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err == nil {
		for _, key := range []string{"error", "detail", "message"} {
			if msg := stringValue(body[key]); msg != "" {
				return b.clip(msg)
			}
		}
	}
	if text := strings.TrimSpace(string(raw)); text != "" {
		return b.clip(text)
	}
	return http.StatusText(status)
}

// clip strips markup and cuts msg to maxDiagnosticLen bytes on a rune boundary.
func (b *Bridge) clip(msg string) string {
	msg = strings.TrimSpace(html.UnescapeString(b.sanitizer.Sanitize(msg)))
	if len(msg) <= maxDiagnosticLen {
		return msg
	}
	cut := maxDiagnosticLen
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if s := stringValue(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	}
	return ""
}
