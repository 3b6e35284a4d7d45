package chainconn

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	submitAndWatchMethod = "author_submitAndWatchExtrinsic"
	unwatchMethod        = "author_unwatchExtrinsic"
	watchNotification    = "author_extrinsicUpdate"
)

// RPCConnection is a Connection over a JSON-RPC 2.0 websocket endpoint.
// A single read loop fans incoming frames out to pending requests and
// active watch subscriptions.
type RPCConnection struct {
	name    string
	timeout time.Duration
	log     zerolog.Logger

	writeMu sync.Mutex // websocket writes must not interleave
	conn    *websocket.Conn

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]chan rpcResponse
	watches map[string]*Watch
	closed  bool
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// rpcFrame covers both responses and subscription notifications
type rpcFrame struct {
	ID     *uint64         `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
	Method string          `json:"method"`
	Params struct {
		Subscription string          `json:"subscription"`
		Result       json.RawMessage `json:"result"`
	} `json:"params"`
}

// Dial connects to a chain's websocket RPC endpoint. The timeout bounds the
// dial and every subsequent query; expiry is reported as ErrChainUnreachable.
func Dial(ctx context.Context, name, url string, timeout time.Duration, log zerolog.Logger) (*RPCConnection, error) {
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s (%s): %v", ErrChainUnreachable, name, url, err)
	}

	c := &RPCConnection{
		name:    name,
		timeout: timeout,
		log:     log.With().Str("chain", name).Logger(),
		conn:    conn,
		pending: make(map[uint64]chan rpcResponse),
		watches: make(map[string]*Watch),
	}
	go c.readLoop()

	c.log.Debug().Str("url", url).Msg("connected")
	return c, nil
}

// Name returns the configured chain name
func (c *RPCConnection) Name() string {
	return c.name
}

// Query performs a bounded JSON-RPC call
func (c *RPCConnection) Query(ctx context.Context, path string, args ...interface{}) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.call(ctx, path, args)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("%w: %s: %s (code %d)", ErrQueryFailed, path, resp.Error.Message, resp.Error.Code)
	}
	return resp.Result, nil
}

// SubmitAndWatch submits a signed payload and subscribes to its status
// stream. Only the subscription setup is bounded by the query timeout; the
// stream itself lives until a terminal status or Unsubscribe.
func (c *RPCConnection) SubmitAndWatch(ctx context.Context, signed []byte) (*Watch, error) {
	setupCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.call(setupCtx, submitAndWatchMethod, []interface{}{hexutil.Encode(signed)})
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("%w: submit rejected: %s", ErrQueryFailed, resp.Error.Message)
	}

	var subID string
	if err := json.Unmarshal(resp.Result, &subID); err != nil || subID == "" {
		return nil, fmt.Errorf("%w: malformed subscription id %q", ErrQueryFailed, resp.Result)
	}

	watch := NewWatch(func() { c.unwatch(subID) })

	c.mu.Lock()
	c.watches[subID] = watch
	c.mu.Unlock()

	c.log.Debug().Str("subscription", subID).Msg("watching extrinsic")
	return watch, nil
}

// Close tears down the transport and fails any pending calls
func (c *RPCConnection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	return c.conn.Close()
}

func (c *RPCConnection) call(ctx context.Context, method string, params []interface{}) (*rpcResponse, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: connection closed", ErrChainUnreachable)
	}
	c.nextID++
	id := c.nextID
	ch := make(chan rpcResponse, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	req := rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}
	c.writeMu.Lock()
	err := c.conn.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%w: write %s: %v", ErrChainUnreachable, method, err)
	}

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %v", ErrChainUnreachable, method, ctx.Err())
	case resp := <-ch:
		return &resp, nil
	}
}

func (c *RPCConnection) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.fail(fmt.Errorf("%w: read: %v", ErrChainUnreachable, err))
			return
		}

		var frame rpcFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.log.Warn().Err(err).Msg("dropping malformed frame")
			continue
		}

		switch {
		case frame.ID != nil:
			c.mu.Lock()
			ch, ok := c.pending[*frame.ID]
			c.mu.Unlock()
			if ok {
				ch <- rpcResponse{ID: *frame.ID, Result: frame.Result, Error: frame.Error}
			}
		case frame.Method == watchNotification:
			c.dispatchUpdate(frame.Params.Subscription, frame.Params.Result)
		}
	}
}

// dispatchUpdate decodes a watch notification and forwards it to the
// subscribed watch, if it is still live
func (c *RPCConnection) dispatchUpdate(subID string, raw json.RawMessage) {
	c.mu.Lock()
	watch, ok := c.watches[subID]
	c.mu.Unlock()
	if !ok {
		return
	}

	var status TxStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		watch.Send(TxStatus{Err: fmt.Errorf("%w: malformed status update: %v", ErrQueryFailed, err)})
		return
	}
	if !watch.Send(status) {
		c.mu.Lock()
		delete(c.watches, subID)
		c.mu.Unlock()
	}
}

// unwatch tells the chain to stop the subscription; invoked once per watch
// via Watch.Unsubscribe
func (c *RPCConnection) unwatch(subID string) {
	c.mu.Lock()
	delete(c.watches, subID)
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	if _, err := c.call(ctx, unwatchMethod, []interface{}{subID}); err != nil {
		c.log.Warn().Err(err).Str("subscription", subID).Msg("unwatch failed")
	}
}

// fail terminates all pending calls and watches after a transport error
func (c *RPCConnection) fail(err error) {
	c.mu.Lock()
	pending := c.pending
	watches := c.watches
	c.pending = make(map[uint64]chan rpcResponse)
	c.watches = make(map[string]*Watch)
	wasClosed := c.closed
	c.closed = true
	c.mu.Unlock()

	if !wasClosed {
		c.log.Warn().Err(err).Msg("connection lost")
	}
	for _, ch := range pending {
		ch <- rpcResponse{Error: &rpcError{Message: err.Error()}}
	}
	for _, w := range watches {
		w.Send(TxStatus{Err: err})
	}
}
