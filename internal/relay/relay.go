// Package relay translates the backend's raw response stream into the
// structured event protocol consumed by the UI client. It owns the protocol's
// ordering invariants for the duration of one request: at most one chat-id
// event, always before any text, and exactly one terminal finish event on
// every path.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	domainerrors "github.com/lumenapps/relay-service/internal/domain/errors"
	"github.com/lumenapps/relay-service/internal/services/backend"
)

// LatestChatIDCookieName is the short-lived fallback cookie carrying a newly
// created chat identifier for clients that missed the in-band event.
const LatestChatIDCookieName = "latest_chat_id"

// State is the lifecycle state of one stream invocation.
type State int

const (
	// StateIdle means the backend response is open but no event has been
	// emitted yet.
	StateIdle State = iota
	// StateStreaming means events are being emitted.
	StateStreaming
	// StateDone means the stream ended cleanly with text-end then finish.
	StateDone
	// StateFailed means the stream terminated with error then finish.
	StateFailed
)

// Backend produces the raw response stream for a chat query.
type Backend interface {
	StreamQuery(ctx context.Context, req *backend.QueryRequest) (*backend.QueryStream, error)
}

// Sink consumes the ordered event protocol. Implementations write to the
// client; the relay guarantees call ordering.
type Sink interface {
	WriteChatID(chatID string) error
	WriteTextStart() error
	WriteTextDelta(delta string) error
	WriteTextEnd() error
	WriteStreamError(code, message string) error
	WriteFinish() error
}

// Config holds the relay configuration.
type Config struct {
	// GenerationTimeout is the soft ceiling on total response generation.
	GenerationTimeout time.Duration
	// ChatIDCookieTTL scopes the fallback chat-id cookie.
	ChatIDCookieTTL time.Duration
	CookieSecure    bool
	CookieDomain    string
}

// normalize applies defaults for zero-valued fields.
func (c Config) normalize() Config {
	if c.GenerationTimeout == 0 {
		c.GenerationTimeout = 30 * time.Second
	}
	if c.ChatIDCookieTTL == 0 {
		c.ChatIDCookieTTL = 10 * time.Second
	}
	return c
}

// Relay forwards user queries to the backend and streams structured events
// back. It keeps no state across requests.
type Relay struct {
	backend Backend
	cfg     Config
	logger  zerolog.Logger
}

// New creates a relay.
func New(b Backend, cfg Config) (*Relay, error) {
	if b == nil {
		return nil, fmt.Errorf("backend is required")
	}
	return &Relay{
		backend: b,
		cfg:     cfg.normalize(),
		logger:  log.Logger,
	}, nil
}

// Request describes one relay invocation.
type Request struct {
	// Message is the user's message text.
	Message string
	// ChatID continues an existing conversation when non-empty. Empty means
	// a new chat: the backend's first chunk carries the new identifier as a
	// space-separated prefix.
	ChatID string
	// AccessToken is a fresh access token for the backend call.
	AccessToken string
}

// Open forwards the query and returns the open stream. A backend failure is
// classified and returned before any event is emitted, so the caller can
// still answer with a plain JSON error body. On success any Set-Cookie
// header from the backend has been copied verbatim onto respHeader.
func (r *Relay) Open(ctx context.Context, req *Request, respHeader http.Header) (*Stream, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.GenerationTimeout)

	qs, err := r.backend.StreamQuery(ctx, &backend.QueryRequest{
		Message:     req.Message,
		ChatID:      req.ChatID,
		AccessToken: req.AccessToken,
	})
	if err != nil {
		cancel()
		return nil, domainerrors.Classify(err)
	}

	// The backend session cookie is authoritative and opaque to the relay.
	for _, v := range qs.Header.Values("Set-Cookie") {
		respHeader.Add("Set-Cookie", v)
	}

	return &Stream{
		ctx:        ctx,
		cancel:     cancel,
		body:       qs.Body,
		newChat:    req.ChatID == "",
		respHeader: respHeader,
		cfg:        r.cfg,
		logger:     r.logger,
		state:      StateIdle,
	}, nil
}

// Stream is one in-flight relay invocation.
type Stream struct {
	ctx        context.Context
	cancel     context.CancelFunc
	body       io.ReadCloser
	newChat    bool
	respHeader http.Header
	cfg        Config
	logger     zerolog.Logger

	state  State
	chatID string
}

// State returns the stream's lifecycle state.
func (s *Stream) State() State {
	return s.state
}

// ChatID returns the chat identifier recovered from the handshake, or the
// empty string when the request continued an existing chat.
func (s *Stream) ChatID() string {
	return s.chatID
}

// Run reads the backend body to completion, emitting events to the sink.
// The protocol is always left in a terminal state: text-end plus finish on
// clean end of stream, a sanitized error plus finish on any failure. The
// body is closed on every exit path, and cancellation is checked before each
// chunk read.
func (s *Stream) Run(sink Sink) error {
	defer s.cancel()
	defer s.body.Close()

	s.state = StateStreaming

	dec := NewDecoder()
	buf := make([]byte, 4096)
	started := false
	awaitingHandshake := s.newChat

	for {
		select {
		case <-s.ctx.Done():
			return s.fail(sink, domainerrors.NewStreamError(s.ctx.Err()))
		default:
		}

		n, readErr := s.body.Read(buf)
		if n > 0 {
			text := dec.Decode(buf[:n])
			if text != "" && awaitingHandshake {
				chatID, rest, found := strings.Cut(text, " ")
				if !found || chatID == "" {
					return s.fail(sink, domainerrors.NewStreamError(errors.New("malformed chat handshake in first chunk")))
				}
				awaitingHandshake = false
				s.chatID = chatID
				s.setChatIDCookie(chatID)
				if err := sink.WriteChatID(chatID); err != nil {
					return s.fail(sink, domainerrors.NewStreamError(err))
				}
				text = rest
			}
			if text != "" {
				if !started {
					if err := sink.WriteTextStart(); err != nil {
						return s.fail(sink, domainerrors.NewStreamError(err))
					}
					started = true
				}
				if err := sink.WriteTextDelta(text); err != nil {
					return s.fail(sink, domainerrors.NewStreamError(err))
				}
			}
		}

		if readErr == io.EOF {
			if awaitingHandshake {
				return s.fail(sink, domainerrors.NewStreamError(errors.New("stream ended before chat handshake")))
			}
			if dec.Pending() {
				s.logger.Debug().Msg("discarding truncated trailing byte sequence at end of stream")
			}
			if !started {
				if err := sink.WriteTextStart(); err != nil {
					return s.fail(sink, domainerrors.NewStreamError(err))
				}
			}
			if err := sink.WriteTextEnd(); err != nil {
				return s.fail(sink, domainerrors.NewStreamError(err))
			}
			_ = sink.WriteFinish()
			s.state = StateDone
			return nil
		}
		if readErr != nil {
			return s.fail(sink, domainerrors.NewStreamError(readErr))
		}
	}
}

// fail emits the sanitized terminal error-plus-finish pair. The full error
// is logged server-side and never reaches the sink.
func (s *Stream) fail(sink Sink, derr *domainerrors.DomainError) error {
	s.logger.Error().Err(derr).Str("code", derr.Code).Msg("stream failed")
	_ = sink.WriteStreamError(derr.Code, derr.Message)
	_ = sink.WriteFinish()
	s.state = StateFailed
	return derr
}

// setChatIDCookie sets the short-lived fallback cookie so a client that
// navigated away mid-stream can still recover the new chat identifier.
func (s *Stream) setChatIDCookie(chatID string) {
	cookie := &http.Cookie{
		Name:     LatestChatIDCookieName,
		Value:    chatID,
		Path:     "/",
		Domain:   s.cfg.CookieDomain,
		MaxAge:   int(s.cfg.ChatIDCookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	s.respHeader.Add("Set-Cookie", cookie.String())
}
