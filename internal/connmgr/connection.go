package connmgr

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/paynet/fep/internal/ferr"
	"github.com/paynet/fep/internal/wire"
)

// EndpointPair is a primary host with an optional backup, used for both
// the send and receive sockets independently.
type EndpointPair struct {
	Primary string
	Backup  string
}

// Config describes one logical FISC connection.
type Config struct {
	InstitutionID           string
	Send                    EndpointPair
	Receive                 EndpointPair
	SingleChannel           bool // when true, Send and Receive share one socket
	ConnectTimeout          time.Duration
	GracefulShutdownTimeout time.Duration
	HeartbeatInterval       time.Duration
	Strategy                FailureStrategy
	Reconnect               ReconnectPolicy
	Schema                  *wire.MessageSchema
}

type correlationKey struct {
	stan     string
	terminal string
}

type pendingRequest struct {
	request *wire.Message
	done    chan *wire.Message
}

// Connection owns one logical FISC link: a send socket, a receive
// socket (the same socket in single-channel mode), a pending-request
// correlation table, and the heartbeat/reconnect machinery that keeps
// both alive.
type Connection struct {
	cfg   Config
	codec *wire.Codec
	log   *zap.Logger

	state stateHolder

	sendMu    sync.Mutex
	sendConn  net.Conn
	recvConn  net.Conn
	sendAlive bool
	recvAlive bool

	ndMu sync.Mutex
	ndCh chan struct{}

	pendingMu sync.Mutex
	pending   map[correlationKey]*pendingRequest

	heartbeat *heartbeat

	closeOnce sync.Once
	closeCh   chan struct{}
	wg        sync.WaitGroup
}

// NewConnection constructs a Connection in the DISCONNECTED state.
func NewConnection(cfg Config, log *zap.Logger) *Connection {
	c := &Connection{
		cfg:     cfg,
		codec:   wire.NewCodec(),
		log:     log,
		pending: make(map[correlationKey]*pendingRequest),
		closeCh: make(chan struct{}),
		ndCh:    make(chan struct{}),
	}
	c.state.store(StateDisconnected)
	return c
}

// State returns the connection's current lifecycle state.
func (c *Connection) State() State { return c.state.load() }

func dialWithFallback(ctx context.Context, pair EndpointPair, timeout time.Duration) (net.Conn, error) {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", pair.Primary)
	if err == nil {
		return conn, nil
	}
	if pair.Backup == "" {
		return nil, fmt.Errorf("connmgr: dial %s failed and no backup configured: %w", pair.Primary, err)
	}
	conn, backupErr := dialer.DialContext(ctx, "tcp", pair.Backup)
	if backupErr != nil {
		return nil, fmt.Errorf("connmgr: primary %s and backup %s both failed: %w", pair.Primary, pair.Backup, backupErr)
	}
	return conn, nil
}

// Connect establishes both sockets (or one, in single-channel mode)
// against their primary hosts, falling back to backup per-channel on
// failure, and starts the receive-drain loop and heartbeat.
func (c *Connection) Connect(ctx context.Context) error {
	c.state.store(StateConnecting)

	sendConn, err := dialWithFallback(ctx, c.cfg.Send, c.cfg.ConnectTimeout)
	if err != nil {
		c.state.store(StateFailed)
		return err
	}

	var recvConn net.Conn
	if c.cfg.SingleChannel {
		recvConn = sendConn
		c.state.store(StateConnected)
	} else {
		c.state.store(StateSendOnlyConnected)
		recvConn, err = dialWithFallback(ctx, c.cfg.Receive, c.cfg.ConnectTimeout)
		if err != nil {
			sendConn.Close()
			c.state.store(StateFailed)
			return err
		}
		c.state.store(StateBothConnected)
	}

	c.sendMu.Lock()
	c.sendConn = sendConn
	c.recvConn = recvConn
	c.sendAlive = true
	c.recvAlive = true
	c.sendMu.Unlock()

	c.wg.Add(1)
	go c.receiveLoop()

	c.heartbeat = newHeartbeat(c.cfg.HeartbeatInterval, c.sendHeartbeat, c.onHeartbeatUnhealthy, c.log)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.heartbeat.run(c.loopCtx())
	}()

	c.log.Info("connection established", zap.String("institution", c.cfg.InstitutionID), zap.String("state", c.state.load().String()))
	return nil
}

func (c *Connection) loopCtx() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-c.closeCh
		cancel()
	}()
	return ctx
}

// SignOn sends the sign-on (MTI 0800, network-info "001") and advances
// to SIGNED_ON on a success response.
func (c *Connection) SignOn(ctx context.Context) error {
	c.state.store(StateSigningOn)

	msg := wire.NewMessage("0800")
	msg.Set(wire.F70NetworkInfo, wire.NetworkInfoSignOn)
	msg.Set(wire.F11STAN, "000000")
	msg.Set(wire.F41Terminal, c.cfg.InstitutionID)

	resp, err := c.Send(ctx, msg, c.cfg.ConnectTimeout)
	if err != nil {
		c.state.store(StateFailed)
		return fmt.Errorf("connmgr: sign-on failed: %w", err)
	}
	if resp.GetString(wire.F39ResponseCode) != "00" {
		c.state.store(StateFailed)
		return fmt.Errorf("connmgr: sign-on rejected with code %s", resp.GetString(wire.F39ResponseCode))
	}

	c.state.store(StateSignedOn)
	c.log.Info("sign-on complete", zap.String("institution", c.cfg.InstitutionID))
	return nil
}

func (c *Connection) sendHeartbeat(ctx context.Context) error {
	msg := wire.NewMessage("0800")
	msg.Set(wire.F70NetworkInfo, wire.NetworkInfoEcho)
	msg.Set(wire.F11STAN, "000000")
	msg.Set(wire.F41Terminal, c.cfg.InstitutionID)

	_, err := c.Send(ctx, msg, c.cfg.HeartbeatInterval)
	return err
}

// onSocketFailure reacts to one socket dropping the way cfg.Strategy
// dictates, returning whether the caller (receiveLoop) should stop
// rather than keep reading.
//
//   - FailWhenAnyDown cancels every pending request with ND the instant
//     either socket drops and forces a full reconnect of both.
//   - FallbackToSingle collapses both directions onto whichever socket
//     survived while the dead one redials in the background, only
//     failing outright once both are down.
//   - FailWhenBothDown (the default) keeps serving on the surviving
//     socket and redials just the failed channel, only cancelling
//     pending requests and forcing a full reconnect once both sockets
//     are down.
func (c *Connection) onSocketFailure(channel string, err error) bool {
	c.sendMu.Lock()
	if c.cfg.SingleChannel {
		// One physical socket serves both directions; there is no
		// partial-failure state to degrade into.
		c.sendAlive = false
		c.recvAlive = false
	} else {
		switch channel {
		case "send":
			c.sendAlive = false
		case "recv":
			c.recvAlive = false
		}
	}
	sendAlive, recvAlive := c.sendAlive, c.recvAlive
	c.sendMu.Unlock()

	bothDown := !sendAlive && !recvAlive
	c.log.Warn("socket failure",
		zap.String("channel", channel),
		zap.String("strategy", c.cfg.Strategy.String()),
		zap.Bool("bothDown", bothDown),
		zap.Error(err))

	switch c.cfg.Strategy {
	case FailWhenAnyDown:
		c.cancelPendingWithND()
		c.state.store(StateReconnecting)
		go c.reconnectLoop()
		return true

	case FallbackToSingle:
		if bothDown {
			c.cancelPendingWithND()
			c.state.store(StateReconnecting)
			go c.reconnectLoop()
			return true
		}
		// The survivor now carries both directions; receiveLoop keeps
		// running unmodified (it re-reads c.recvConn fresh each pass)
		// and will pick up the redialed dedicated socket the moment
		// redialChannel swaps it back in.
		c.collapseToSurvivor(channel)
		go c.redialChannel(channel, false)
		return false

	default: // FailWhenBothDown
		if bothDown {
			c.cancelPendingWithND()
			c.state.store(StateReconnecting)
			go c.reconnectLoop()
			return true
		}
		if sendAlive {
			c.state.store(StateSendOnlyConnected)
		} else {
			c.state.store(StateReceiveOnlyConnected)
		}
		go c.redialChannel(channel, true)
		return channel == "recv"
	}
}

// currentNDChan returns the channel FAIL_WHEN_ANY_DOWN cancellation
// closes. Each in-flight Send call captures its own reference before
// waiting so a cancel-then-reopen cycle can't be missed.
func (c *Connection) currentNDChan() chan struct{} {
	c.ndMu.Lock()
	defer c.ndMu.Unlock()
	return c.ndCh
}

// cancelPendingWithND closes the current ND channel, waking every Send
// call blocked in its select with an ND (network disconnect) error, and
// installs a fresh channel for the next connection lifecycle.
func (c *Connection) cancelPendingWithND() {
	c.ndMu.Lock()
	old := c.ndCh
	c.ndCh = make(chan struct{})
	c.ndMu.Unlock()
	close(old)
}

// collapseToSurvivor routes both directions over whichever socket is
// still alive, the FALLBACK_TO_SINGLE behavior: once collapsed, Send
// and receiveLoop keep working unmodified since they always read
// sendConn/recvConn fresh under sendMu.
func (c *Connection) collapseToSurvivor(deadChannel string) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	switch deadChannel {
	case "recv":
		if c.sendConn != nil {
			c.recvConn = c.sendConn
		}
	case "send":
		if c.recvConn != nil {
			c.sendConn = c.recvConn
		}
	}
}

// redialChannel reconnects just the named channel's endpoint pair
// without disturbing the surviving socket, so a single-socket outage
// degrades service on that direction alone rather than tearing down a
// connection that is still partially usable. spawnLoop starts a fresh
// receiveLoop once the dedicated receive socket is back; callers that
// already have a receiveLoop running against the collapsed survivor
// (FALLBACK_TO_SINGLE) pass false since that loop will pick up the
// redialed socket on its own next pass.
func (c *Connection) redialChannel(channel string, spawnLoop bool) {
	pair := c.cfg.Send
	if channel == "recv" {
		pair = c.cfg.Receive
	}

	err := Reconnect(context.Background(), c.cfg.Reconnect, func(ctx context.Context) error {
		conn, dialErr := dialWithFallback(ctx, pair, c.cfg.ConnectTimeout)
		if dialErr != nil {
			return dialErr
		}
		c.sendMu.Lock()
		if channel == "send" {
			c.sendConn = conn
			c.sendAlive = true
		} else {
			c.recvConn = conn
			c.recvAlive = true
		}
		c.sendMu.Unlock()
		return nil
	})

	if err != nil {
		c.log.Error("channel reconnect exhausted", zap.String("channel", channel), zap.Error(err))
		c.cancelPendingWithND()
		c.state.store(StateFailed)
		return
	}

	if channel == "recv" && spawnLoop {
		c.wg.Add(1)
		go c.receiveLoop()
	}

	c.sendMu.Lock()
	bothUp := c.sendAlive && c.recvAlive
	c.sendMu.Unlock()
	if bothUp {
		c.state.store(StateBothConnected)
		c.log.Info("channel redial restored both sockets", zap.String("institution", c.cfg.InstitutionID))
	}
}

func (c *Connection) onHeartbeatUnhealthy() {
	c.log.Warn("heartbeat unhealthy, transitioning to RECONNECTING", zap.String("institution", c.cfg.InstitutionID))
	c.state.store(StateReconnecting)
	go c.reconnectLoop()
}

func (c *Connection) reconnectLoop() {
	err := Reconnect(context.Background(), c.cfg.Reconnect, c.Connect)
	if err != nil {
		c.log.Error("reconnect exhausted", zap.Error(err))
		c.state.store(StateFailed)
		return
	}
	if err := c.SignOn(context.Background()); err != nil {
		c.log.Error("reconnect sign-on failed", zap.Error(err))
		c.state.store(StateFailed)
	}
}

// Send serializes request, registers a pending entry keyed by
// (STAN, terminal), writes it to the send socket, and blocks until a
// correlated response arrives, the deadline expires, or ctx is done.
func (c *Connection) Send(ctx context.Context, request *wire.Message, timeout time.Duration) (*wire.Message, error) {
	key := correlationKey{stan: request.GetString(wire.F11STAN), terminal: request.GetString(wire.F41Terminal)}

	c.pendingMu.Lock()
	if _, exists := c.pending[key]; exists {
		c.pendingMu.Unlock()
		return nil, ferr.New(ferr.KindValidation, "96", fmt.Errorf("connmgr: duplicate in-flight STAN %s for terminal %s", key.stan, key.terminal))
	}
	pr := &pendingRequest{request: request, done: make(chan *wire.Message, 1)}
	c.pending[key] = pr
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, key)
		c.pendingMu.Unlock()
	}()

	encoded, err := c.codec.Encode(request, c.cfg.Schema)
	if err != nil {
		return nil, err
	}

	c.sendMu.Lock()
	conn := c.sendConn
	c.sendMu.Unlock()
	if conn == nil {
		return nil, fmt.Errorf("connmgr: send socket not connected")
	}

	conn.SetWriteDeadline(time.Now().Add(timeout))
	if _, err := conn.Write(encoded); err != nil {
		c.onSocketFailure("send", err)
		return nil, ferr.Timeout(fmt.Errorf("connmgr: send write failed: %w", err))
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	ndCh := c.currentNDChan()

	select {
	case resp := <-pr.done:
		return resp, nil
	case <-deadline.C:
		return nil, ferr.Timeout(fmt.Errorf("connmgr: no response within %v for STAN %s", timeout, key.stan))
	case <-ctx.Done():
		return nil, ferr.Timeout(ctx.Err())
	case <-c.closeCh:
		return nil, fmt.Errorf("connmgr: connection closing")
	case <-ndCh:
		return nil, ferr.Timeout(fmt.Errorf("connmgr: connection failed under FAIL_WHEN_ANY_DOWN, request cancelled"))
	}
}

// receiveLoop drains the receive socket, decoding and dispatching each
// framed message by its (STAN, terminal) correlation key. It is the one
// goroutine permitted to read from the receive socket.
func (c *Connection) receiveLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.closeCh:
			return
		default:
		}

		c.sendMu.Lock()
		conn := c.recvConn
		c.sendMu.Unlock()
		if conn == nil {
			return
		}

		raw, err := readFramedMessage(conn, c.cfg.Schema)
		if err != nil {
			select {
			case <-c.closeCh:
				return
			default:
			}
			if c.onSocketFailure("recv", err) {
				return
			}
			continue
		}

		msg, err := c.codec.Decode(raw, c.cfg.Schema)
		if err != nil {
			c.log.Warn("receive loop decode error", zap.Error(err))
			continue
		}

		key := correlationKey{stan: msg.GetString(wire.F11STAN), terminal: msg.GetString(wire.F41Terminal)}

		c.pendingMu.Lock()
		pr, ok := c.pending[key]
		c.pendingMu.Unlock()
		if !ok {
			c.log.Warn("dropping uncorrelated reply", zap.String("stan", key.stan), zap.String("terminal", key.terminal))
			continue
		}

		select {
		case pr.done <- msg:
		default:
			c.log.Warn("duplicate reply for in-flight correlation key, dropping",
				zap.String("stan", key.stan), zap.String("terminal", key.terminal))
		}
	}
}

// readFramedMessage reads one complete wire message off conn using the
// schema's BCD length prefix to know how many bytes follow.
func readFramedMessage(conn net.Conn, schema *wire.MessageSchema) ([]byte, error) {
	if schema.Header == nil || !schema.Header.IncludeLength {
		return nil, fmt.Errorf("connmgr: schema %s has no length-prefixed framing", schema.Name)
	}

	lenBytes := make([]byte, schema.Header.LengthBytes)
	if _, err := readFull(conn, lenBytes); err != nil {
		return nil, err
	}
	bodyLen, err := bcdToInt(lenBytes)
	if err != nil {
		return nil, err
	}

	body := make([]byte, bodyLen)
	if _, err := readFull(conn, body); err != nil {
		return nil, err
	}

	return append(lenBytes, body...), nil
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func bcdToInt(data []byte) (int, error) {
	n := 0
	for _, b := range data {
		hi, lo := b>>4, b&0x0F
		if hi > 9 || lo > 9 {
			return 0, fmt.Errorf("connmgr: invalid BCD length prefix")
		}
		n = n*100 + int(hi)*10 + int(lo)
	}
	return n, nil
}

// Close stops accepting new sends, waits up to
// GracefulShutdownTimeout for inflight completions, then closes sockets.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		c.state.store(StateClosing)
		close(c.closeCh)

		done := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(c.cfg.GracefulShutdownTimeout):
			c.log.Warn("graceful shutdown timed out, forcing socket close")
		}

		c.sendMu.Lock()
		if c.sendConn != nil {
			c.sendConn.Close()
		}
		if c.recvConn != nil && c.recvConn != c.sendConn {
			c.recvConn.Close()
		}
		c.sendMu.Unlock()

		c.state.store(StateClosed)
	})
	return nil
}
