package avatar

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

const (
	DefaultSize = 80
	DefaultAlt  = "User Avatar"
	ObjectFit   = "cover"
)

// Options are the caller-supplied avatar attributes.
type Options struct {
	Src       string `form:"src" json:"src"`
	Size      int    `form:"size" json:"size"`
	Alt       string `form:"alt" json:"alt"`
	ClassName string `form:"class" json:"class_name"`
}

// Avatar is the fully resolved display contract.
type Avatar struct {
	URL       string `json:"url"`
	Alt       string `json:"alt"`
	ClassName string `json:"class_name"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Rounded   bool   `json:"rounded"`
	ObjectFit string `json:"object_fit"`
}

// Resolver fills in defaults from the backend configuration.
type Resolver struct {
	defaultURL string
	sanitizer  *bluemonday.Policy
}

// NewResolver builds a Resolver whose fallback is {backendBaseURL}/{defaultAvatarPath}.
func NewResolver(backendBaseURL, defaultAvatarPath string) *Resolver {
	base := strings.TrimRight(strings.TrimSpace(backendBaseURL), "/")
	path := strings.TrimLeft(strings.TrimSpace(defaultAvatarPath), "/")
	return &Resolver{defaultURL: base + "/" + path, sanitizer: bluemonday.StrictPolicy()}
}

// Resolve applies defaults and strips markup from free-text attributes.
func (r *Resolver) Resolve(opts Options) Avatar {
	url := strings.TrimSpace(opts.Src)
	if url == "" {
		url = r.defaultURL
	}
	size := opts.Size
	if size <= 0 {
		size = DefaultSize
	}
	alt := strings.TrimSpace(r.sanitizer.Sanitize(opts.Alt))
	if alt == "" {
		alt = DefaultAlt
	}
	return Avatar{
		URL:       url,
		Alt:       alt,
		ClassName: strings.TrimSpace(r.sanitizer.Sanitize(opts.ClassName)),
		Width:     size,
		Height:    size,
		Rounded:   true,
		ObjectFit: ObjectFit,
	}
}
