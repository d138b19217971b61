package cansil

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vectorlane/cansil/internal/framequeue"
)

// wireFrame is the on-the-wire layout for VirtualBus: a 4-byte big-endian
// length header followed by a fixed-size frame struct, matching the
// teacher's virtual-CAN wire format.
type wireFrame struct {
	ID   uint32
	DLC  uint8
	Data [8]byte
}

func serializeVirtualFrame(f Frame) ([]byte, error) {
	buf := new(bytes.Buffer)
	wf := wireFrame{ID: f.ID, DLC: f.DLC, Data: f.Data}
	if err := binary.Write(buf, binary.BigEndian, wf); err != nil {
		return nil, err
	}
	payload := buf.Bytes()
	out := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(out, uint32(len(payload)))
	copy(out[4:], payload)
	return out, nil
}

func deserializeVirtualFrame(b []byte) (Frame, error) {
	var wf wireFrame
	if err := binary.Read(bytes.NewReader(b), binary.BigEndian, &wf); err != nil {
		return Frame{}, err
	}
	return Frame{ID: wf.ID, DLC: wf.DLC, Data: wf.Data}, nil
}

// VirtualBus is an in-process, TCP-loopback CAN bus used for SIL runs and
// tests without real hardware. Unlike a bus that depends on an
// externally-started relay process, VirtualBus lazily starts its own
// loopback relay the first time a process calls Connect against an
// address nobody is listening on yet, so a single test binary can play
// both ends of the virtual bus.
type VirtualBus struct {
	addr string

	mu        sync.Mutex
	conn      net.Conn
	listener  FrameListener
	queue     *framequeue.Queue
	stopCh    chan struct{}
	running   bool
	closeOnce sync.Once
}

// NewVirtualBus creates a bus bound to addr (e.g. "127.0.0.1:18000").
func NewVirtualBus(addr string) *VirtualBus {
	return &VirtualBus{addr: addr, queue: framequeue.New(256), stopCh: make(chan struct{})}
}

var virtualRelays sync.Map // addr -> *virtualRelay

type virtualRelay struct {
	mu      sync.Mutex
	clients []net.Conn
}

func (r *virtualRelay) broadcast(from net.Conn, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.clients {
		if c == from {
			continue
		}
		_, _ = c.Write(payload)
	}
}

func (r *virtualRelay) add(c net.Conn) {
	r.mu.Lock()
	r.clients = append(r.clients, c)
	r.mu.Unlock()
}

func ensureRelay(addr string) error {
	if _, ok := virtualRelays.Load(addr); ok {
		return nil
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		// Someone else (another process, or a prior Connect in this
		// process) is already serving this address.
		return nil
	}
	relay := &virtualRelay{}
	virtualRelays.Store(addr, relay)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			relay.add(conn)
			go relayReadLoop(relay, conn)
		}
	}()
	return nil
}

func relayReadLoop(r *virtualRelay, conn net.Conn) {
	defer conn.Close()
	header := make([]byte, 4)
	for {
		if _, err := readFull(conn, header); err != nil {
			return
		}
		n := binary.BigEndian.Uint32(header)
		body := make([]byte, n)
		if _, err := readFull(conn, body); err != nil {
			return
		}
		full := append(append([]byte{}, header...), body...)
		r.broadcast(conn, full)
	}
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

// Connect dials the relay at the bus's configured address, starting an
// in-process relay goroutine first if nothing is listening there yet.
func (b *VirtualBus) Connect(args ...any) error {
	if err := ensureRelay(b.addr); err != nil {
		return err
	}
	var conn net.Conn
	var err error
	for i := 0; i < 20; i++ {
		conn, err = net.Dial("tcp", b.addr)
		if err == nil {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err != nil {
		return fmt.Errorf("cansil: dial virtual bus %s: %w", b.addr, err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	b.mu.Lock()
	b.conn = conn
	b.mu.Unlock()
	return nil
}

// Send transmits a frame to every other peer connected to the relay.
func (b *VirtualBus) Send(frame Frame) error {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		return ErrBusNotConnected
	}
	payload, err := serializeVirtualFrame(frame)
	if err != nil {
		return err
	}
	_, err = conn.Write(payload)
	return err
}

// Subscribe registers a listener and starts the background receive loop
// if it is not already running.
func (b *VirtualBus) Subscribe(listener FrameListener) {
	b.mu.Lock()
	b.listener = listener
	alreadyRunning := b.running
	b.running = true
	b.mu.Unlock()
	if !alreadyRunning {
		go b.recvLoop()
	}
}

func (b *VirtualBus) recvLoop() {
	header := make([]byte, 4)
	for {
		select {
		case <-b.stopCh:
			return
		default:
		}
		b.mu.Lock()
		conn := b.conn
		b.mu.Unlock()
		if conn == nil {
			time.Sleep(5 * time.Millisecond)
			continue
		}
		_ = conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		if _, err := readFull(conn, header); err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			log.WithError(err).Debug("cansil: virtual bus receive loop closed")
			return
		}
		n := binary.BigEndian.Uint32(header)
		body := make([]byte, n)
		if _, err := readFull(conn, body); err != nil {
			continue
		}
		frame, err := deserializeVirtualFrame(body)
		if err != nil {
			continue
		}
		b.mu.Lock()
		l := b.listener
		b.mu.Unlock()
		if l != nil {
			l.Handle(frame)
		} else {
			b.queue.Push(framequeue.Frame(frame))
		}
	}
}

// Close shuts down the connection. Safe to call more than once.
func (b *VirtualBus) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.stopCh)
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.conn != nil {
			err = b.conn.Close()
		}
	})
	return err
}
