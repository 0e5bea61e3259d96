package muxirc

import (
	"net"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/jes/muxirc/ircwire"
)

// downstreamMessage pairs a parsed Message with the session it arrived
// from, since all downstreams share one channel into the engine.
type downstreamMessage struct {
	client *downstreamSession
	msg    ircwire.Message
}

// Engine is the single reactor described in spec section 4.6: one select
// loop multiplexing the upstream socket, the listening socket, and every
// downstream socket. Each socket runs its own reader/writer goroutine pair
// (framedConn), but every mutation of session state happens here, on this
// one goroutine, matching the single-actor concurrency model of spec
// section 5.
type Engine struct {
	cfg Config
	log Logger

	listener net.Listener
	up       *upstreamSession

	newDownstreamChan  chan *downstreamSession
	downstreamMsgChan  chan downstreamMessage
	deadDownstreamChan chan *downstreamSession

	upstreamMsgChan  chan ircwire.Message
	deadUpstreamChan chan struct{}

	fromAlarmChan chan struct{}
	toAlarmChan   chan struct{}
}

// NewEngine constructs an Engine from a populated Config. logger may be
// nil, in which case diagnostics go to the standard library's log package.
func NewEngine(cfg Config, logger Logger) *Engine {
	if logger == nil {
		logger = stdLogger{}
	}
	return &Engine{
		cfg: cfg,
		log: logger,

		newDownstreamChan:  make(chan *downstreamSession, 16),
		downstreamMsgChan:  make(chan downstreamMessage, 64),
		deadDownstreamChan: make(chan *downstreamSession, 16),

		upstreamMsgChan:  make(chan ircwire.Message, 64),
		deadUpstreamChan: make(chan struct{}, 1),

		fromAlarmChan: make(chan struct{}),
		toAlarmChan:   make(chan struct{}),
	}
}

// Run dials the upstream, opens the listener, and drives the event loop
// until a fatal error occurs. It does not return on success; per spec
// section 6, exit code 0 never happens.
func (e *Engine) Run() error {
	up, err := dialUpstream(e.cfg, e.log, func() {
		select {
		case e.deadUpstreamChan <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return errors.Wrap(err, "connecting to upstream")
	}
	e.up = up
	go up.conn.readLoop(func(m ircwire.Message) {
		e.upstreamMsgChan <- m
	})
	go up.conn.writeLoop()

	ln, err := net.Listen("tcp", net.JoinHostPort("", e.cfg.ListenPort))
	if err != nil {
		return errors.Wrap(err, "binding listen port")
	}
	e.listener = ln

	go e.acceptLoop()
	go e.alarm()

	e.loop()
	return nil // unreachable: loop only returns via os.Exit on the fatal path.
}

func (e *Engine) acceptLoop() {
	for {
		conn, err := e.listener.Accept()
		if err != nil {
			e.log.Printf("accept: %s", err)
			return
		}

		var d *downstreamSession
		d = newDownstreamSession(newFramedConn(conn, func() {
			e.deadDownstreamChan <- d
		}), e.up)

		go d.conn.readLoop(func(m ircwire.Message) {
			e.downstreamMsgChan <- downstreamMessage{client: d, msg: m}
		})
		go d.conn.writeLoop()

		e.newDownstreamChan <- d
	}
}

// loop is one never-returning pass over the event sources described in
// spec section 4.6. Each case body is the entirety of one iteration's
// worth of dispatch; the ordering guarantees of spec section 5 (in-order
// processing per source, fan-out completing before the next message is
// handled) fall out naturally from doing all work for one channel receive
// before selecting again.
func (e *Engine) loop() {
	for {
		select {
		case d := <-e.newDownstreamChan:
			e.up.addDownstream(d)

		case dm := <-e.downstreamMsgChan:
			if !e.up.hasDownstream(dm.client) || dm.client.conn.Errored() {
				continue
			}
			dm.client.dispatch(dm.msg)
			e.reapDownstream(dm.client)

		case d := <-e.deadDownstreamChan:
			if !e.up.hasDownstream(d) {
				continue
			}
			e.up.removeDownstream(d)
			d.conn.Close()

		case m := <-e.upstreamMsgChan:
			if e.up.conn.Errored() {
				continue
			}
			e.up.dispatch(m)
			e.reapAllDownstreams()

		case <-e.deadUpstreamChan:
			e.up.fatalf("upstream connection lost")
			e.up.conn.Close()
			os.Exit(1)

		case <-e.fromAlarmChan:
			e.toAlarmChan <- struct{}{}
			e.up.requestMotdIfWanted()
		}
	}
}

// alarm wakes the event loop periodically so it can run step 7's MOTD
// solicitation sweep even when no USER registration is what triggers it --
// e.g. a downstream that reaches motdWant while the server is mid-MOTD for
// someone else and only returns to motdIdle later. Grounded on ircd.go's
// Server.alarm: it pings the loop and waits for the loop's acknowledgement
// before sleeping again, so it never races ahead of the loop's own pace.
func (e *Engine) alarm() {
	for {
		time.Sleep(time.Second)
		e.fromAlarmChan <- struct{}{}
		<-e.toAlarmChan
	}
}

// reapDownstream disposes d if its handler run left it errored (e.g. an
// auth failure or a QUIT), matching spec section 4.6 step 6's sweep.
func (e *Engine) reapDownstream(d *downstreamSession) {
	if !d.conn.Errored() {
		return
	}
	e.up.removeDownstream(d)
	d.conn.Close()
}

func (e *Engine) reapAllDownstreams() {
	for _, d := range append([]*downstreamSession(nil), e.up.downstreams...) {
		e.reapDownstream(d)
	}
}
