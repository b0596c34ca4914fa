// Package server implements the NTPv4 UDP request loop: receive, stamp
// T2, filter, decode, compose a reply stamped at T3, and send.
package server

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/le-stef/pendulum/internal/clock"
	"github.com/le-stef/pendulum/internal/ntperrors"
	"github.com/le-stef/pendulum/internal/ntppacket"
	"github.com/le-stef/pendulum/internal/ntptime"
	"github.com/le-stef/pendulum/internal/stats"
)

// maxPacketBytes is the pre-decode size guard rejecting oversized datagrams.
const maxPacketBytes = 1024

// Config bundles the server's tunables, mirroring the server.* section
// of the configuration file.
type Config struct {
	BindAddress string
	Stratum     uint8 // not read by the server: replies always carry Clock.Stratum()
	MinPoll     int8
	Workers     int
	Security    SecurityConfig

	// TraceFirstN, when positive, logs the decoded fields of the first N
	// inbound/outbound packets at debug level, for field commissioning.
	TraceFirstN int
}

// task is one inbound datagram handed from the receive loop to a worker.
type task struct {
	buf      []byte
	peer     *net.UDPAddr
	received ntptime.Timestamp // T2, stamped immediately after recv returns
}

// Server owns the UDP socket and dispatches inbound datagrams to a small
// worker pool. Each worker is fully sequential per-datagram: no request
// is queued behind another worker's I/O.
type Server struct {
	cfg   Config
	clock clock.Clock
	sec   *security
	stats *stats.Stats
	log   *logrus.Entry

	conn  *net.UDPConn
	tasks chan task

	traceRemaining int32
}

// New builds a Server bound to no socket yet; call Run to bind and serve.
func New(cfg Config, c clock.Clock, st *stats.Stats, log *logrus.Entry) *Server {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Server{
		cfg:            cfg,
		clock:          c,
		sec:            newSecurity(cfg.Security),
		stats:          st,
		log:            log,
		tasks:          make(chan task, cfg.Workers*8),
		traceRemaining: int32(cfg.TraceFirstN),
	}
}

// Run binds the UDP socket and serves until ctx is canceled. Returns
// ErrBindFailed if the bind fails; otherwise blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", s.cfg.BindAddress)
	if err != nil {
		return ntperrors.ErrBindFailed
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		s.log.WithField("event", "bind_failed").Error(err)
		return ntperrors.ErrBindFailed
	}
	s.conn = conn
	defer conn.Close()

	s.log.WithField("event", "listening").WithField("addr", s.cfg.BindAddress).Info("NTP server bound")

	for i := 0; i < s.cfg.Workers; i++ {
		go s.worker()
	}

	go func() {
		<-ctx.Done()
		// Unblock ReadFromUDP so the receive loop can observe cancellation.
		conn.SetReadDeadline(time.Now())
	}()

	buf := make([]byte, maxPacketBytes+1)
	for {
		n, peer, err := conn.ReadFromUDP(buf)
		received := s.clock.Now() // T2: stamped immediately after recv returns
		if err != nil {
			if ctx.Err() != nil {
				close(s.tasks)
				return nil
			}
			continue
		}

		if perr := s.sec.check(peer, n, time.Now()); perr != nil {
			s.stats.IncRequestsRejected()
			continue
		}
		s.stats.IncRequestsReceived()

		cp := make([]byte, n)
		copy(cp, buf[:n])
		select {
		case s.tasks <- task{buf: cp, peer: peer, received: received}:
		default:
			// Worker pool saturated; drop rather than stall the receive loop.
			s.stats.IncRequestsRejected()
		}
	}
}

// LocalAddr returns the bound socket address, or nil before Run has
// bound it. Useful for tests and for logging the resolved port when
// BindAddress requests an ephemeral one (":0").
func (s *Server) LocalAddr() net.Addr {
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

func (s *Server) worker() {
	for t := range s.tasks {
		s.handle(t)
	}
}

func (s *Server) handle(t task) {
	req, err := ntppacket.Decode(t.buf)
	if err != nil {
		s.stats.IncErrors()
		return
	}
	if err := ntppacket.Validate(req); err != nil {
		s.stats.IncErrors()
		return
	}

	reply := s.compose(req, t.received)
	s.traceIfRequested(req, reply, t.peer)

	out := reply.Encode()
	if _, err := s.conn.WriteToUDP(out, t.peer); err != nil {
		s.stats.IncErrors()
		return
	}
	s.stats.IncRequestsAnswered()
}

// traceIfRequested logs the decoded request/reply pair at debug level for
// the first TraceFirstN packets handled, then falls silent. Commissioning
// aid; it has no effect once the budget is spent.
func (s *Server) traceIfRequested(req, reply *ntppacket.Packet, peer *net.UDPAddr) {
	for {
		remaining := atomic.LoadInt32(&s.traceRemaining)
		if remaining <= 0 {
			return
		}
		if atomic.CompareAndSwapInt32(&s.traceRemaining, remaining, remaining-1) {
			break
		}
	}
	s.log.WithFields(logrus.Fields{
		"event":         "packet_trace",
		"peer":          peer.String(),
		"req_vn":        req.VN,
		"req_mode":      req.Mode,
		"req_poll":      req.Poll,
		"reply_stratum": reply.Stratum,
		"reply_poll":    reply.Poll,
		"reply_refid":   reply.ReferenceID,
		"transmit_ts":   reply.TransmitTS,
	}).Debug("traced packet")
}

// compose builds the reply packet. TransmitTS (T3) is a fresh
// Clock.Now() read, distinct from ReceiveTS (T2) handed in by the caller.
func (s *Server) compose(req *ntppacket.Packet, t2 ntptime.Timestamp) *ntppacket.Packet {
	stratum := s.clock.Stratum()

	li := uint8(ntppacket.LeapNone)
	if stratum >= 16 {
		li = ntppacket.LeapUnsync
	}

	poll := req.Poll
	if poll < s.cfg.MinPoll {
		poll = s.cfg.MinPoll
	}

	return &ntppacket.Packet{
		LI:             li,
		VN:             req.VN,
		Mode:           ntppacket.ModeServer,
		Stratum:        stratum,
		Poll:           poll,
		Precision:      s.clock.Precision(),
		RootDelay:      s.clock.RootDelay(),
		RootDispersion: s.clock.RootDispersion(),
		ReferenceID:    s.clock.ReferenceID(),
		ReferenceTS:    s.clock.ReferenceTimestamp(),
		OriginateTS:    req.TransmitTS,
		ReceiveTS:      t2,
		TransmitTS:     s.clock.Now(),
	}
}
