package platform

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/socialpost/socialpost/internal/models"
)

// Request is everything a client needs to publish one post to one platform.
// Account tokens arrive encrypted, exactly as stored; clients decrypt them.
type Request struct {
	Content    string
	Title      string
	MediaFiles []models.MediaFile
	Account    *models.PlatformAccount
}

// Client publishes content to a single social platform and returns the
// remote post id. Clients never touch post or user state.
type Client interface {
	Name() string
	Publish(ctx context.Context, req *Request) (string, error)
}

// TokenValidator is an optional capability for clients that can cheaply
// check token liveness before attempting a publish.
type TokenValidator interface {
	ValidateToken(ctx context.Context, account *models.PlatformAccount) bool
}

type ErrorKind string

const (
	ErrNotConnected       ErrorKind = "not_connected"
	ErrTokenInvalid       ErrorKind = "token_invalid"
	ErrUploadRejected     ErrorKind = "upload_rejected"
	ErrUnsupportedContent ErrorKind = "unsupported_content"
	ErrTransientNetwork   ErrorKind = "transient_network"
)

// Error is a publish failure. It is business data, not control flow: the
// orchestrator records it on the target and keeps going.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func NewError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Registry maps platform names to clients. Supporting a new platform means
// registering an implementation here, nothing else.
type Registry struct {
	clients map[string]Client
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]Client)}
}

func (r *Registry) Register(c Client) {
	r.clients[c.Name()] = c
}

func (r *Registry) Get(name string) (Client, bool) {
	c, ok := r.clients[name]
	return c, ok
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DisplayName renders a platform name for user-facing error messages,
// e.g. "facebook" -> "Facebook".
func DisplayName(platform string) string {
	switch platform {
	case models.PlatformYoutube:
		return "YouTube"
	case models.PlatformWhatsapp:
		return "WhatsApp"
	default:
		if platform == "" {
			return platform
		}
		return strings.ToUpper(platform[:1]) + platform[1:]
	}
}
