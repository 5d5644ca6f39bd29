package authbridge

import (
	"encoding/json"
	"strings"
)

// Credential is the opaque token an identity provider hands back after a successful login.
type Credential struct {
	AccessToken string
}

// SubjectIdentity carries the user fields the backend returns with a session.
type SubjectIdentity struct {
	Username       string `json:"username"`
	UserID         string `json:"user_id,omitempty"`
	Email          string `json:"email,omitempty"`
	FirstName      string `json:"first_name,omitempty"`
	ProfilePicture string `json:"profile_picture,omitempty"`
}

// Session is the application session produced by a successful exchange.
type Session struct {
	AccessCredential  string          `json:"access_token"`
	RefreshCredential string          `json:"refresh_token"`
	Subject           SubjectIdentity `json:"subject"`
}

// sessionPayload accepts both the access_token/refresh_token and access/refresh spellings.
type sessionPayload struct {
	AccessToken    string          `json:"access_token"`
	Access         string          `json:"access"`
	RefreshToken   string          `json:"refresh_token"`
	Refresh        string          `json:"refresh"`
	Username       string          `json:"username"`
	ID             json.RawMessage `json:"id"`
	UserID         json.RawMessage `json:"user_id"`
	Email          string          `json:"email"`
	FirstName      string          `json:"first_name"`
	ProfilePicture string          `json:"profile_picture"`
}

// sessionFields is what must be present before a payload counts as a session.
type sessionFields struct {
	Access   string `validate:"required"`
	Refresh  string `validate:"required"`
	Username string `validate:"required"`
}

func (p sessionPayload) fields() sessionFields {
	return sessionFields{
		Access:   firstNonEmpty(p.AccessToken, p.Access),
		Refresh:  firstNonEmpty(p.RefreshToken, p.Refresh),
		Username: p.Username,
	}
}

func (p sessionPayload) session() *Session {
	f := p.fields()
	return &Session{
		AccessCredential:  f.Access,
		RefreshCredential: f.Refresh,
		Subject: SubjectIdentity{
			Username:       f.Username,
			UserID:         firstNonEmpty(rawID(p.UserID), rawID(p.ID)),
			Email:          p.Email,
			FirstName:      p.FirstName,
			ProfilePicture: p.ProfilePicture,
		},
	}
}

// rawID renders numeric and string identifiers alike.
func rawID(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return trimmed
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
