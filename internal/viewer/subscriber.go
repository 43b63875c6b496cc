package viewer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/juju/clock"

	"github.com/lorrc/issue-relay/internal/core/domain"
	apperrors "github.com/lorrc/issue-relay/internal/core/errors"
	"github.com/lorrc/issue-relay/internal/infrastructure/logging"
)

// DefaultReconnectDelay is the fixed wait between a closed connection and
// the next attempt.
const DefaultReconnectDelay = 5 * time.Second

// ConnState is the lifecycle state of the subscription.
type ConnState int

const (
	StateConnecting ConnState = iota
	StateOpen
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// MessageConn is the read side of a websocket connection.
type MessageConn interface {
	ReadMessage() (messageType int, data []byte, err error)
	Close() error
}

// DialFunc opens a connection to the relay.
type DialFunc func(ctx context.Context, url string) (MessageConn, error)

// EventApplier consumes decoded events.
type EventApplier interface {
	Apply(event domain.Event) error
}

// SubscriberConfig configures a Subscriber.
type SubscriberConfig struct {
	URL            string
	Dial           DialFunc
	Clock          clock.Clock
	ReconnectDelay time.Duration
	Applier        EventApplier
	OnStateChange  func(ConnState)
	Logger         *slog.Logger
}

// Subscriber keeps a websocket subscription to the relay alive and feeds
// each received event to the applier. Reconnection is unbounded.
type Subscriber struct {
	url           string
	dial          DialFunc
	clock         clock.Clock
	delay         time.Duration
	applier       EventApplier
	onStateChange func(ConnState)
	logger        *slog.Logger

	mu    sync.RWMutex
	state ConnState
}

// NewSubscriber creates a subscriber. Unset fields fall back to the gorilla
// dialer, the wall clock and DefaultReconnectDelay.
func NewSubscriber(cfg SubscriberConfig) *Subscriber {
	if cfg.Dial == nil {
		cfg.Dial = DialWebSocket
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Subscriber{
		url:           cfg.URL,
		dial:          cfg.Dial,
		clock:         cfg.Clock,
		delay:         cfg.ReconnectDelay,
		applier:       cfg.Applier,
		onStateChange: cfg.OnStateChange,
		logger:        cfg.Logger.With("component", "subscriber", "url", cfg.URL),
		state:         StateClosed,
	}
}

// DialWebSocket dials url with the default gorilla dialer.
func DialWebSocket(ctx context.Context, url string) (MessageConn, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// State returns the current connection state.
func (s *Subscriber) State() ConnState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Subscriber) setState(state ConnState) {
	s.mu.Lock()
	if s.state == state {
		s.mu.Unlock()
		return
	}
	s.state = state
	s.mu.Unlock()

	s.logger.Debug("connection state changed", "state", state.String())
	if s.onStateChange != nil {
		s.onStateChange(state)
	}
}

// Run connects and consumes events until ctx is cancelled. Every close or
// failed attempt is followed by one fixed delay before the next attempt.
func (s *Subscriber) Run(ctx context.Context) error {
	for {
		s.setState(StateConnecting)
		conn, err := s.dial(ctx, s.url)
		if err != nil {
			if ctx.Err() != nil {
				s.setState(StateClosed)
				return nil
			}
			s.logger.Warn("failed to connect", "error", err)
		} else {
			s.setState(StateOpen)
			s.logger.Info("connected")
			s.consume(ctx, conn)
		}
		s.setState(StateClosed)

		if ctx.Err() != nil {
			return nil
		}

		s.logger.Info("reconnecting", "delay", s.delay)
		timer := s.clock.NewTimer(s.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.Chan():
		}
	}
}

func (s *Subscriber) consume(ctx context.Context, conn MessageConn) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()
	defer conn.Close()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Info("connection closed", "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			s.logger.Debug("non-text message ignored", "type", messageType)
			continue
		}
		s.handleMessage(data)
	}
}

// handleMessage never lets one bad payload end the subscription.
func (s *Subscriber) handleMessage(data []byte) {
	defer func() {
		if r := recover(); r != nil {
			logging.LogPanic(s.logger, r)
		}
	}()

	event, err := domain.DecodeEvent(data)
	if err != nil {
		if errors.Is(err, apperrors.ErrUnsupportedEvent) {
			s.logger.Debug("event ignored", "error", err)
			return
		}
		s.logger.Warn("malformed event dropped", "error", err, "size", len(data))
		return
	}

	if err := s.applier.Apply(event); err != nil {
		if errors.Is(err, apperrors.ErrUnsupportedEvent) {
			s.logger.Debug("event ignored", "error", err)
			return
		}
		s.logger.Error("failed to apply event",
			"error", err,
			"kind", event.Kind(),
			"target_id", event.TargetID(),
		)
	}
}
