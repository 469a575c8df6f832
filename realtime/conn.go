package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/bt-bridge/agent-chat/shared"
)

// EventHandler receives inbound events strictly in arrival order.
type EventHandler func(event *ServerEvent)

// Transport is the outbound half of the duplex stream, as consumed by the
// dispatcher and the tool executor. Conn implements it; tests fake it.
type Transport interface {
	UpdateSession(session map[string]any) error
	AppendInputAudio(base64Frame string) error
	CreateConversationItem(item map[string]any) error
	CreateResponse(response map[string]any) error
	CancelResponse() error
}

// ConnConfig locates the realtime deployment.
type ConnConfig struct {
	Endpoint   string // https://<resource>.openai.azure.com
	APIKey     string
	APIVersion string
	Deployment string
}

const (
	dialBackoffBase = 500 * time.Millisecond
	dialMaxRetries  = 4
)

// Conn owns one persistent duplex connection: a websocket, a background
// receive task delivering events to a single handler, and mutex-guarded
// writes. The receive task is cancelled and awaited on Close.
type Conn struct {
	logger shared.LoggerAdapter

	mu      sync.Mutex
	ws      *websocket.Conn
	eh      EventHandler
	running bool

	recvDone chan struct{}

	ctx    context.Context
	cancel context.CancelCauseFunc
}

var _ Transport = (*Conn)(nil)

func Dial(ctx context.Context, logger shared.LoggerAdapter, cfg ConnConfig) (c *Conn, err error) {
	if logger == nil {
		return nil, shared.ErrNoLogger
	}
	if cfg.Endpoint == "" {
		return nil, shared.ErrNoEndpoint
	}
	if cfg.APIKey == "" {
		return nil, shared.ErrNoAPIKey
	}
	if cfg.Deployment == "" {
		return nil, shared.ErrNoDeployment
	}

	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parsing endpoint: %w", err)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u = u.JoinPath("/openai/realtime")
	q := u.Query()
	if cfg.APIVersion != "" {
		q.Set("api-version", cfg.APIVersion)
	}
	q.Set("deployment", cfg.Deployment)
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("api-key", cfg.APIKey)

	ctx, cancel := context.WithCancelCause(ctx)
	c = &Conn{
		logger:   logger,
		recvDone: make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}

	backoff := retry.WithMaxRetries(dialMaxRetries, retry.NewFibonacci(dialBackoffBase))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		ws, _, derr := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
		if derr != nil {
			c.logger.Warn("websocket dial failed, retrying", zap.Error(derr))
			return retry.RetryableError(derr)
		}
		c.ws = ws
		return nil
	})
	if err != nil {
		cancel(fmt.Errorf("dialing realtime endpoint: %w", err))
		return nil, fmt.Errorf("dialing realtime endpoint: %w", err)
	}
	c.logger.Info("realtime connection established", zap.String("deployment", cfg.Deployment))
	return c, nil
}

func (c *Conn) respectCtx() error {
	select {
	case <-c.ctx.Done():
		return context.Cause(c.ctx)
	default:
	}
	return nil
}

func (c *Conn) Done() <-chan struct{} {
	return c.ctx.Done()
}

func (c *Conn) RegisterEventHandler(handler EventHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return shared.ErrConnAlreadyRunning
	}
	if c.eh != nil {
		return shared.ErrEHandlerAlreadySet
	}
	if handler == nil {
		return errors.New("handler is required")
	}
	c.eh = handler
	return nil
}

// Start launches the background receive task. Events are decoded and
// handed to the registered handler one at a time, in arrival order.
func (c *Conn) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return shared.ErrConnAlreadyRunning
	}
	if c.ws == nil {
		return shared.ErrConnNotInitialized
	}
	if c.eh == nil {
		return shared.ErrNoEventHandler
	}
	if err := c.respectCtx(); err != nil {
		return fmt.Errorf("respecting connection context: %w", err)
	}
	c.running = true
	go c.receiveLoop(c.ws)
	return nil
}

func (c *Conn) receiveLoop(ws *websocket.Conn) {
	defer close(c.recvDone)
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if c.respectCtx() != nil {
				return
			}
			c.logger.Error("reading from websocket", err)
			c.cancel(fmt.Errorf("websocket read: %w", err))
			return
		}
		event := new(ServerEvent)
		if err := event.UnmarshalJSON(data); err != nil {
			c.logger.Warn(
				"can not unmarshal event",
				zap.Error(err),
				zap.ByteString("data", data),
			)
			continue
		}
		c.logger.Trace(
			"received event",
			zap.String("type", string(event.Type)),
			zap.String("event_id", event.EventId),
		)
		c.eh(event)
	}
}

// Close cancels the receive task, closes the socket and waits briefly for
// the loop to exit. Errors on this path are logged, not propagated:
// teardown is best-effort.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel(errors.New("connection closed"))
	}
	if c.ws != nil {
		deadline := time.Now().Add(time.Second)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if err := c.ws.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
			c.logger.Debug("writing close message failed", zap.Error(err))
		}
		if err := c.ws.Close(); err != nil {
			c.logger.Debug("closing websocket failed", zap.Error(err))
		}
		c.ws = nil
	}
	if c.running {
		c.running = false
		select {
		case <-c.recvDone:
		case <-time.After(2 * time.Second):
			c.logger.Warn("receive loop did not exit in time")
		}
	}
	return nil
}

func (c *Conn) send(event *ClientEvent) error {
	if event.EventId == "" {
		event.EventId = uuid.NewString()
	}
	data, err := event.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshaling client event: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.respectCtx(); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrConnClosed, err)
	}
	if c.ws == nil {
		return shared.ErrConnNotInitialized
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("writing to websocket: %w", err)
	}
	c.logger.Trace("sent event", zap.String("type", string(event.Type)))
	return nil
}

func (c *Conn) UpdateSession(session map[string]any) error {
	return c.send(&ClientEvent{
		Type:  ClientEventTypeSessionUpdate,
		Param: &ClientEventParamSessionUpdate{Session: session},
	})
}

func (c *Conn) AppendInputAudio(base64Frame string) error {
	return c.send(&ClientEvent{
		Type:  ClientEventTypeInputAudioBufferAppend,
		Param: &ClientEventParamInputAudioBufferAppend{Audio: base64Frame},
	})
}

func (c *Conn) CreateConversationItem(item map[string]any) error {
	return c.send(&ClientEvent{
		Type:  ClientEventTypeConversationItemCreate,
		Param: &ClientEventParamConversationItemCreate{Item: item},
	})
}

func (c *Conn) CreateResponse(response map[string]any) error {
	return c.send(&ClientEvent{
		Type:  ClientEventTypeResponseCreate,
		Param: &ClientEventParamResponseCreate{Response: response},
	})
}

func (c *Conn) CancelResponse() error {
	return c.send(&ClientEvent{
		Type:  ClientEventTypeResponseCancel,
		Param: &ClientEventParamResponseCancel{},
	})
}
