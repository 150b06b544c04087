package core

import (
	"context"
	"net"
	"strconv"
	"time"

	"golang.org/x/sys/unix"

	"github.com/Happensit/bff/core/http"
	"github.com/Happensit/bff/core/metrics"
	"github.com/Happensit/bff/core/optimize"
	"github.com/Happensit/bff/core/poller"
	"github.com/Happensit/bff/core/pools"
	"github.com/Happensit/bff/core/routes"
	"github.com/Happensit/bff/core/timerheap"
)

// WorkerConfig bounds the reactor loop's per-iteration batching and
// the state machine's timeouts.
type WorkerConfig struct {
	RequestTimeout    time.Duration // 5000ms per spec
	KeepAliveTimeout  time.Duration // 10000ms per spec
	LocalPoolSize     int           // per-worker connection records
	MaxEvents         int           // readiness events per Wait call, 2048 per spec
	MaxAcceptBatch    int           // accepts per listener-ready event, 128 per spec
	ReadAttempts      int           // recv attempts per read-ready event, 8 per spec
	ReadBatchCap      int           // read micro-batch capacity, 32 per spec
	WriteBatchCap     int           // write micro-batch capacity, 32 per spec
	RepeatedByteGuard bool          // disabled-by-default DoS heuristic
}

// DefaultWorkerConfig returns the specification's stated defaults.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		RequestTimeout:    5000 * time.Millisecond,
		KeepAliveTimeout:  10000 * time.Millisecond,
		LocalPoolSize:     10000,
		MaxEvents:         2048,
		MaxAcceptBatch:    128,
		ReadAttempts:      8,
		ReadBatchCap:      32,
		WriteBatchCap:     32,
		RepeatedByteGuard: false,
	}
}

// Logger is the narrow logging surface the reactor calls through, so
// this package does not import a concrete logging library directly.
type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// maxWaitMs caps one poller wait, bounding how long a cancelled
// context can go unobserved by Run.
const maxWaitMs = 100

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}

// Worker is one single-threaded event loop pinned to one listening
// socket (SO_REUSEPORT load-balances accepts across workers sharing a
// port). It owns its connection pool, timer wheel, and poller outright;
// the only state shared with other workers is the global fallback
// connection pool and the immutable route table.
type Worker struct {
	id     int
	lfd    int
	cfg    WorkerConfig
	routes *routes.Table
	hooks  metrics.Hooks
	log    Logger

	poll  poller.Poller
	wheel *timerheap.Wheel
	pool  *pools.Pool[Connection, *Connection]
	conns map[int]*Connection

	eventsBuf  []poller.Event
	readBatch  []*Connection
	writeBatch []*Connection
}

// NewWorker constructs a worker bound to an already-created,
// non-blocking listening descriptor. Listener creation is the process
// bootstrap's job (app.App.Run calls NewListener); the reactor only
// ever consumes the fd.
func NewWorker(id, lfd int, cfg WorkerConfig, fallback *pools.Fallback[Connection, *Connection], table *routes.Table, hooks metrics.Hooks, log Logger) (*Worker, error) {
	if hooks == nil {
		hooks = metrics.NoOp{}
	}
	if log == nil {
		log = nopLogger{}
	}
	p, err := poller.NewPoller(cfg.MaxEvents)
	if err != nil {
		return nil, err
	}
	if err := p.Add(lfd); err != nil {
		p.Close()
		return nil, err
	}
	return &Worker{
		id:         id,
		lfd:        lfd,
		cfg:        cfg,
		routes:     table,
		hooks:      hooks,
		log:        log,
		poll:       p,
		wheel:      timerheap.New(cfg.LocalPoolSize + 64),
		pool:       pools.NewPool[Connection, *Connection](cfg.LocalPoolSize, fallback),
		conns:      make(map[int]*Connection, cfg.LocalPoolSize),
		eventsBuf:  make([]poller.Event, 0, cfg.MaxEvents),
		readBatch:  make([]*Connection, 0, cfg.ReadBatchCap),
		writeBatch: make([]*Connection, 0, cfg.WriteBatchCap),
	}
}

// Run executes the reactor loop until ctx is cancelled, then closes
// every live connection's descriptor, the poller and the listening
// descriptor. Both micro-batches are flushed within each iteration, so
// none is in flight when the loop exits.
func (w *Worker) Run(ctx context.Context) error {
	defer w.shutdown()

	for {
		if ctx.Err() != nil {
			return nil
		}

		now := time.Now()
		timeout := w.wheel.NextTimeoutMs(now)
		// Bound the wait so an idle worker still observes cancellation
		// at the loop head.
		if timeout < 0 || timeout > maxWaitMs {
			timeout = maxWaitMs
		}

		events, err := w.poll.Wait(timeout, w.eventsBuf[:0])
		if err != nil {
			return err
		}
		w.eventsBuf = events

		now = time.Now()
		w.wheel.ProcessExpired(now, func(owner any) {
			conn := owner.(*Connection)
			w.closeConnection(conn, metrics.Timeout)
		})

		w.readBatch = w.readBatch[:0]
		w.writeBatch = w.writeBatch[:0]

		for _, ev := range events {
			if ev.Fd == w.lfd {
				w.acceptBatch(now)
				// The listener is armed EPOLLET|EPOLLONESHOT like every
				// other descriptor (see poller.Add); without re-arming
				// here, this worker would stop accepting after its first
				// readiness delivery.
				if err := w.poll.ArmRead(w.lfd); err != nil {
					return err
				}
				continue
			}
			conn, ok := w.conns[ev.Fd]
			if !ok || conn.state == StateFree || conn.state == StateClosing {
				// Stale event after close; silently dropped.
				continue
			}
			if ev.Error {
				w.closeConnection(conn, metrics.ClientDisconnect)
				continue
			}
			switch conn.state {
			case StateReading, StateKeepAlive:
				w.readBatch = append(w.readBatch, conn)
			case StateWriting:
				w.writeBatch = append(w.writeBatch, conn)
			}
		}

		for _, conn := range w.readBatch {
			w.processRead(conn, now)
		}
		for _, conn := range w.writeBatch {
			w.processWrite(conn)
		}

		w.hooks.SetActiveConnections(w.id, len(w.conns))
	}
}

func (w *Worker) shutdown() {
	for _, conn := range w.conns {
		unix.Close(conn.fd)
	}
	w.conns = nil
	w.poll.Close()
	unix.Close(w.lfd)
}

// acceptBatch accepts up to MaxAcceptBatch pending connections, stopping
// early on EAGAIN.
func (w *Worker) acceptBatch(now time.Time) {
	for i := 0; i < w.cfg.MaxAcceptBatch; i++ {
		nfd, sa, err := unix.Accept4(w.lfd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			if err == unix.EAGAIN {
				return
			}
			w.log.Warnf("accept: %v", err)
			return
		}

		configureSocket(nfd)

		rec, handle, ok := w.pool.Acquire()
		if !ok {
			unix.Close(nfd)
			w.hooks.IncError(metrics.ResourceExhausted)
			continue
		}
		rec.fd = nfd
		rec.state = StateReading
		rec.peerAddr = peerAddrString(sa)
		rec.poolHandle = handle
		rec.lastActive = now

		node, err := w.wheel.Add(rec, w.cfg.RequestTimeout, now)
		if err != nil {
			w.pool.Release(rec, handle)
			unix.Close(nfd)
			w.hooks.IncError(metrics.ResourceExhausted)
			continue
		}
		rec.timerNode = node

		if err := w.poll.Add(nfd); err != nil {
			w.wheel.Cancel(node)
			rec.timerNode = nil
			w.pool.Release(rec, handle)
			unix.Close(nfd)
			w.hooks.IncError(metrics.ResourceExhausted)
			continue
		}

		w.conns[nfd] = rec
	}
}

// peerAddrString renders the accepted peer address for observability
// only; it is never parsed or compared against, so a best-effort
// "unknown" on an unexpected sockaddr type is acceptable.
func peerAddrString(sa unix.Sockaddr) string {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		ip := net.IP(a.Addr[:])
		return net.JoinHostPort(ip.String(), strconv.Itoa(a.Port))
	case *unix.SockaddrInet6:
		ip := net.IP(a.Addr[:])
		return net.JoinHostPort(ip.String(), strconv.Itoa(a.Port))
	default:
		return "unknown"
	}
}

func configureSocket(fd int) {
	unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, 65536)
	unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, 32768)
}

// processRead implements the reactor's read-processing step (spec
// §4.5): repeated recv up to ReadAttempts or EAGAIN, enforcing the
// request-size ceiling, scanning for the header terminator, and
// dispatching on success.
func (w *Worker) processRead(conn *Connection, now time.Time) {
	for attempt := 0; attempt < w.cfg.ReadAttempts; attempt++ {
		if conn.readLen >= len(conn.readBuf) {
			w.closeConnection(conn, metrics.ProtocolError)
			return
		}

		n, err := unix.Read(conn.fd, conn.readBuf[conn.readLen:])
		if err != nil {
			if err == unix.EAGAIN {
				w.rearmRead(conn)
				return
			}
			w.closeConnection(conn, metrics.FatalIO)
			return
		}
		if n == 0 {
			w.closeConnection(conn, metrics.ClientDisconnect)
			return
		}

		conn.readLen += n
		conn.lastActive = now

		// Any bytes at all on a reused connection end the keep-alive
		// wait: cancel its keep-alive timer and arm a fresh request
		// timer immediately, before we know whether a full header block
		// has arrived yet. Otherwise a connection that trickles in a
		// request just ahead of the keep-alive deadline would keep
		// running against the (longer, already-ticking) keep-alive timer
		// instead of getting its own request-phase grace.
		if conn.state == StateKeepAlive {
			w.wheel.Cancel(conn.timerNode)
			conn.timerNode = nil
			node, aerr := w.wheel.Add(conn, w.cfg.RequestTimeout, now)
			if aerr != nil {
				w.closeConnection(conn, metrics.ResourceExhausted)
				return
			}
			conn.timerNode = node
			conn.state = StateReading
		}

		if w.cfg.RepeatedByteGuard && optimize.HasExcessiveRepeat(conn.readBuf[:conn.readLen]) {
			w.closeConnection(conn, metrics.ProtocolError)
			return
		}

		end := http.FindHeadersEnd(conn.readBuf[:conn.readLen])
		if end == -1 {
			continue
		}

		perr := http.Parse(conn.readBuf[:conn.readLen], end, &conn.req)
		if perr != nil {
			w.closeConnection(conn, metrics.ProtocolError)
			return
		}

		w.wheel.Cancel(conn.timerNode)
		conn.timerNode = nil

		Dispatch(conn, w.routes)
		// Attempt an immediate flush; processWrite re-arms for
		// write-readiness itself if the socket buffer is full, so no
		// separate arm call is needed here for the common case where a
		// small static response drains in one syscall.
		w.processWrite(conn)
		return
	}

	w.rearmRead(conn)
}

func (w *Worker) rearmRead(conn *Connection) {
	if err := w.poll.ArmRead(conn.fd); err != nil {
		w.closeConnection(conn, metrics.FatalIO)
	}
}

func (w *Worker) armWrite(conn *Connection) {
	if err := w.poll.ArmWrite(conn.fd); err != nil {
		w.closeConnection(conn, metrics.FatalIO)
	}
}

// processWrite implements the reactor's write-processing step: repeated
// vectored writes of the unsent suffix, reconstituted on each attempt
// from bytesSent, until EAGAIN (re-arm and return) or full drain
// (transition to KeepAlive or close).
func (w *Worker) processWrite(conn *Connection) {
	if conn.state != StateWriting {
		return
	}
	for {
		segs := conn.scatterRemaining()
		if len(segs) == 0 {
			w.completeWrite(conn)
			return
		}

		n, err := unix.Writev(conn.fd, segs)
		if err != nil {
			if err == unix.EAGAIN {
				w.armWrite(conn)
				return
			}
			w.closeConnection(conn, metrics.FatalIO)
			return
		}
		if n == 0 {
			w.armWrite(conn)
			return
		}
		conn.bytesSent += n

		if conn.bytesSent >= conn.totalResponseLen() {
			w.completeWrite(conn)
			return
		}
	}
}

func (w *Worker) completeWrite(conn *Connection) {
	if conn.keepAlive {
		conn.state = StateKeepAlive
		conn.readLen = 0
		conn.req.Reset()
		conn.bytesSent = 0
		conn.bodySeg = nil
		node, err := w.wheel.Add(conn, w.cfg.KeepAliveTimeout, time.Now())
		if err != nil {
			w.closeConnection(conn, metrics.ResourceExhausted)
			return
		}
		conn.timerNode = node
		w.rearmRead(conn)
		return
	}
	w.closeConnection(conn, "")
}

// closeConnection tears down conn: deregister from the poller, cancel
// any live timer, close the fd, release back to the pool. kind, if
// non-empty, increments the corresponding error-kind metric; an empty
// kind means a clean keep-alive-disabled close, not an error.
func (w *Worker) closeConnection(conn *Connection, kind metrics.ErrorKind) {
	if conn.state == StateFree {
		return
	}
	if kind != "" {
		w.hooks.IncError(kind)
	}

	w.poll.Remove(conn.fd)
	w.wheel.Cancel(conn.timerNode)
	conn.timerNode = nil

	delete(w.conns, conn.fd)
	unix.Close(conn.fd)

	handle := conn.poolHandle
	conn.state = StateClosing
	w.pool.Release(conn, handle)
}
