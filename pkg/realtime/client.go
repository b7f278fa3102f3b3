package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/snailbrainx/openai-realtime-go/pkg/realtime/protocol"
)

// ErrConnectionClosed is returned by Send after Close.
var ErrConnectionClosed = errors.New("realtime: connection is closed")

const (
	// DefaultURL is the Realtime API websocket endpoint.
	DefaultURL = "wss://api.openai.com/v1/realtime"
	// DefaultModel is the realtime-capable model dialed by default.
	DefaultModel = "gpt-4o-realtime-preview-2024-10-01"

	defaultConnectTimeout = 15 * time.Second
)

// Options configure a Realtime API connection.
type Options struct {
	// URL overrides the API endpoint. The model is appended as a query
	// parameter.
	URL string
	// Model selects the realtime model.
	Model string
	// APIKey authenticates the connection. Required.
	APIKey string
	// Logger receives transport diagnostics. Defaults to slog.Default.
	Logger *slog.Logger
}

// Client is the websocket transport to the Realtime API. It owns the
// single receive loop and serializes all outbound writes, so any
// goroutine may Send concurrently.
type Client struct {
	conn   *websocket.Conn
	logger *slog.Logger

	done      chan struct{}
	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool
	started   atomic.Bool

	errMu sync.Mutex
	err   error
}

// Dial opens the websocket connection and authenticates. The receive
// loop does not start until Start is called, so the caller can finish
// wiring the event handler first.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("realtime: api key is required")
	}
	endpoint := strings.TrimSpace(opts.URL)
	if endpoint == "" {
		endpoint = DefaultURL
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("realtime: parse url: %w", err)
	}
	q := u.Query()
	q.Set("model", model)
	u.RawQuery = q.Encode()

	headers := make(http.Header)
	headers.Set("Authorization", "Bearer "+apiKey)
	headers.Set("OpenAI-Beta", "realtime=v1")

	dialer := websocket.DefaultDialer
	if dialer == nil {
		dialer = &websocket.Dialer{}
	}

	dialCtx := ctx
	var cancel context.CancelFunc
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		dialCtx, cancel = context.WithTimeout(ctx, defaultConnectTimeout)
		defer cancel()
	}

	conn, resp, err := dialer.DialContext(dialCtx, u.String(), headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("realtime: dial %s (status %d): %w", u.Host, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("realtime: dial %s: %w", u.Host, err)
	}
	logger.Info("connected", "host", u.Host, "model", model)

	return &Client{
		conn:   conn,
		logger: logger,
		done:   make(chan struct{}),
	}, nil
}

// Start launches the receive loop, dispatching every decoded event to
// onEvent. It may be called at most once.
func (c *Client) Start(onEvent func(protocol.ServerEvent)) {
	if c == nil || onEvent == nil {
		return
	}
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	go c.readLoop(onEvent)
}

// Send marshals v and writes it to the connection.
func (c *Client) Send(v any) error {
	if c == nil {
		return fmt.Errorf("realtime: client must not be nil")
	}
	if c.closed.Load() {
		return ErrConnectionClosed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

// Close performs the websocket close handshake and waits for the
// receive loop to drain.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(2*time.Second))
		c.writeMu.Unlock()
		_ = c.conn.Close()
	})
	if c.started.Load() {
		<-c.done
	}
	return nil
}

// Done is closed when the receive loop exits.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the terminal transport error, if any. It blocks until
// the receive loop exits.
func (c *Client) Err() error {
	if c == nil {
		return nil
	}
	<-c.done
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Client) setErr(err error) {
	if err == nil {
		return
	}
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.err == nil {
		c.err = err
	}
}

func (c *Client) readLoop(onEvent func(protocol.ServerEvent)) {
	defer close(c.done)

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			if c.closed.Load() {
				return
			}
			c.setErr(err)
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		event, err := protocol.DecodeServerEvent(data)
		if err != nil {
			// Malformed frames are skipped, not fatal: the stream as a
			// whole is still usable.
			c.logger.Warn("skipping undecodable frame", "error", err)
			continue
		}
		onEvent(event)
	}
}
