package econtact

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Audit event types emitted by the engine.
const (
	AuditLoginSuccess   = "login_success"
	AuditLoginFailure   = "login_failure"
	AuditRefreshSuccess = "refresh_success"
	AuditRefreshFailure = "refresh_failure"
	AuditRefreshReuse   = "refresh_reuse_detected"
	AuditLogout         = "logout"
	AuditTokenRevoked   = "token_revoked"
	AuditTokenUnrevoked = "token_unrevoked"
)

// AuditEvent is one security-relevant occurrence. It never carries token
// material; TokenID is the jti claim.
type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	TokenID   string            `json:"token_id,omitempty"`
	IP        string            `json:"ip,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// AuditSink receives audit events from the dispatcher goroutine.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, AuditEvent) {}

// ChannelSink hands events to a consumer through a buffered channel.
type ChannelSink struct {
	events chan AuditEvent
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan AuditEvent, buffer)}
}

func (s *ChannelSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan AuditEvent {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{writer: w}
}

func (s *JSONWriterSink) Emit(ctx context.Context, event AuditEvent) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}

// ZapSink writes audit events as structured log entries. Failures are
// logged at Warn, everything else at Info.
type ZapSink struct {
	logger *zap.Logger
}

func NewZapSink(logger *zap.Logger) *ZapSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapSink{logger: logger.Named("audit")}
}

func (s *ZapSink) Emit(ctx context.Context, event AuditEvent) {
	fields := []zap.Field{
		zap.Time("timestamp", event.Timestamp),
		zap.String("user_id", event.UserID),
		zap.Bool("success", event.Success),
	}
	if event.TokenID != "" {
		fields = append(fields, zap.String("token_id", event.TokenID))
	}
	if event.IP != "" {
		fields = append(fields, zap.String("ip", event.IP))
	}
	if event.UserAgent != "" {
		fields = append(fields, zap.String("user_agent", event.UserAgent))
	}
	if event.Error != "" {
		fields = append(fields, zap.String("error", event.Error))
	}
	for k, v := range event.Metadata {
		fields = append(fields, zap.String("meta."+k, v))
	}

	if event.Success {
		s.logger.Info(event.EventType, fields...)
		return
	}
	s.logger.Warn(event.EventType, fields...)
}

// auditQueue hands events to the sink on one background goroutine so a
// slow sink never holds up login or refresh.
//
// With DropIfFull a full queue discards the event, except for refresh
// reuse: a replayed refresh token is the one event an operator must see,
// so it waits for room like every event does without DropIfFull.
type auditQueue struct {
	sink       AuditSink
	logger     *zap.Logger
	dropIfFull bool

	events   chan AuditEvent
	stop     chan struct{}
	stopOnce sync.Once
	drained  chan struct{}

	// mu guards closing events; emitters hold it shared.
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

func newAuditQueue(cfg AuditConfig, sink AuditSink, logger *zap.Logger) *auditQueue {
	if !cfg.Enabled {
		return nil
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	q := &auditQueue{
		sink:       sink,
		logger:     logger,
		dropIfFull: cfg.DropIfFull,
		events:     make(chan AuditEvent, size),
		stop:       make(chan struct{}),
		drained:    make(chan struct{}),
	}
	go q.deliver()
	return q
}

func (q *auditQueue) deliver() {
	defer close(q.drained)
	for event := range q.events {
		q.sink.Emit(context.Background(), event)
	}
}

func (q *auditQueue) Emit(ctx context.Context, event AuditEvent) {
	if q == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return
	}

	if q.dropIfFull && event.EventType != AuditRefreshReuse {
		select {
		case q.events <- event:
		default:
			q.drop(event, "queue full")
		}
		return
	}

	select {
	case q.events <- event:
	case <-ctx.Done():
		q.drop(event, "request ended")
	case <-q.stop:
	}
}

func (q *auditQueue) drop(event AuditEvent, reason string) {
	n := q.dropped.Add(1)
	q.logger.Debug("audit event dropped",
		zap.String("event_type", event.EventType),
		zap.String("user_id", event.UserID),
		zap.String("reason", reason),
		zap.Uint64("dropped_total", n),
	)
}

// Close stops accepting events and returns once every queued event has
// reached the sink. Emitters blocked on a full queue are released.
func (q *auditQueue) Close() {
	if q == nil {
		return
	}
	q.stopOnce.Do(func() { close(q.stop) })

	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.events)
	}
	q.mu.Unlock()
	<-q.drained
}

// Dropped reports events lost to a full queue or an ended request.
func (q *auditQueue) Dropped() uint64 {
	if q == nil {
		return 0
	}
	return q.dropped.Load()
}
