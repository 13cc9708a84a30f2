// Package engine implements the NINJAM protocol state machine: connection
// lifecycle, interval-delay encode/decode, peer/channel registry, and
// real-time mixing. It is the single largest piece of this module —
// everything else exists to drive it safely across three threads.
package engine

import (
	"bufio"
	"fmt"
	"log"
	"math"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"ninjamplugin/internal/clock"
	"ninjamplugin/internal/codec"
	"ninjamplugin/internal/pcmring"
	"ninjamplugin/internal/wire"
)

// Config carries the fixed session parameters chosen at activation.
type Config struct {
	SampleRate          int
	MaxBlockSize        int
	PeerChannelCapacity int
	Codec               codec.Factory
	DialTimeout         time.Duration
	ReadTimeout         time.Duration
}

// Callbacks are invoked by the engine as it advances; all are optional
// and are called on the goroutine that invoked Connect/Run/Disconnect:
// the worker's tick goroutine for Run, and whichever goroutine called
// Connect or Disconnect for those two.
type Callbacks struct {
	OnStateChanged    func(state ConnectionState, err error)
	OnUserInfoChanged func()
	OnTopicChanged    func(text string)
	OnLicense         LicenseCallback
}

// Engine is the NINJAM client state machine. Construct with New; a zero
// Engine is not usable.
type Engine struct {
	cfg Config
	cb  Callbacks

	mu sync.Mutex // guards everything below except the RT-safe atomics

	conn   net.Conn
	reader *bufio.Reader

	username string
	password string
	failErr  error

	local     LocalChannel
	lastLocal LocalChannel

	peers      map[uint16]*PeerUser
	peersDirty bool

	pcm     *pcmring.Pool
	capture *pcmring.Ring // local PCM queued by ProcessAudio, drained by Run

	encoder codec.Encoder
	decoder map[uint32]codec.Decoder // key: uint32(userIdx)<<8 | channelIdx

	bpm float64
	bpi int

	pendingBPM float64
	pendingBPI int
	bpmPending bool

	localGUID [16]byte

	// state is the connection-state mirror, read lock-free by the audio
	// and UI threads.
	state atomic.Int32

	// intervalPosition/intervalLength are advanced from the real-time
	// audio entry point without ever taking mu, matching the
	// "T_audio acquires no mutex" rule. boundaryPending is set by that
	// same call when position reaches length, and drained (CAS) by Run
	// on the worker thread, which performs the (possibly blocking)
	// interval rotation.
	intervalPosition atomic.Int64
	intervalLength   atomic.Int64
	beatPosition     atomic.Int64
	boundaryPending  atomic.Bool
	bpiAtomic        atomic.Int32 // mirror of bpi, read lock-free from ProcessAudio's beat calc

	// slots mirrors each preallocated pcmring slot's mix parameters into
	// lock-free atomics, indexed by ringSlot, so ProcessAudio can read
	// "which channels are active and how loud" without ever touching mu.
	// It is sized once, at construction, to cfg.PeerChannelCapacity.
	slots []peerSlot

	// mixScratch/mixMono are preallocated to cfg.MaxBlockSize so the
	// real-time mix step never allocates.
	mixScratch []float32
	mixMono    []float32

	mix *mixState
}

// New constructs an Engine ready to Connect. pcmPool must be preallocated
// by the caller to cfg.PeerChannelCapacity slots of cfg.MaxBlockSize
// frames (see internal/pcmring) so that subscribing a peer channel later
// never allocates.
func New(cfg Config, cb Callbacks, pcmPool *pcmring.Pool) *Engine {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 100 * time.Millisecond
	}
	e := &Engine{
		cfg:        cfg,
		cb:         cb,
		peers:      make(map[uint16]*PeerUser),
		decoder:    make(map[uint32]codec.Decoder),
		pcm:        pcmPool,
		capture:    pcmring.NewRing(cfg.MaxBlockSize),
		slots:      make([]peerSlot, cfg.PeerChannelCapacity),
		mixScratch: make([]float32, cfg.MaxBlockSize),
		mixMono:    make([]float32, cfg.MaxBlockSize),
	}
	e.state.Store(int32(Idle))
	e.mix = &mixState{}
	e.mix.localVolume.Store(math.Float32bits(1.0))
	return e
}

// State loads the connection-state mirror. Safe from any thread,
// including the real-time audio thread.
func (e *Engine) State() ConnectionState {
	return ConnectionState(e.state.Load())
}

func (e *Engine) setState(s ConnectionState, err error) {
	e.state.Store(int32(s))
	if s == Failed {
		e.failErr = err
	}
	if e.cb.OnStateChanged != nil {
		e.cb.OnStateChanged(s, err)
	}
}

// FailReason returns the error that produced the last Failed transition,
// or nil if the engine never failed.
func (e *Engine) FailReason() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.failErr
}

// Connect drives the engine through resolve -> handshake -> auth ->
// (optional license) -> Joined, calling back into the worker at each
// state transition. It blocks for the duration of the handshake plus, if
// a license prompt fires, however long cb.OnLicense takes to return. The
// dial is bounded by cfg.DialTimeout; the handshake reads set no
// deadline (cfg.ReadTimeout applies only to Run's reads), so Connect
// waits for as long as the server takes to answer.
func (e *Engine) Connect(addr, username, password string) error {
	e.mu.Lock()
	e.username, e.password = username, password
	e.mu.Unlock()

	e.setState(Resolving, nil)
	conn, err := net.DialTimeout("tcp", addr, e.cfg.DialTimeout)
	if err != nil {
		wrapped := fmt.Errorf("%w: %v", ErrResolveFailed, err)
		e.setState(Failed, wrapped)
		return wrapped
	}

	e.mu.Lock()
	e.conn = conn
	e.reader = bufio.NewReader(conn)
	e.mu.Unlock()

	e.setState(Handshaking, nil)
	hdr, payload, err := wire.ReadMessage(e.reader)
	if err != nil || hdr.MsgType != wire.MsgServerAuthChallenge {
		wrapped := fmt.Errorf("%w: reading server hello: %v", ErrProtocolError, err)
		e.fail(wrapped)
		return wrapped
	}
	challenge, err := wire.UnmarshalAuthChallenge(payload)
	if err != nil {
		wrapped := fmt.Errorf("%w: %v", ErrProtocolError, err)
		e.fail(wrapped)
		return wrapped
	}

	e.setState(Authenticating, nil)
	auth := wire.ClientAuth{
		Username:           username,
		PasswordHash:       wire.HashChallenge(username, password, challenge.Challenge),
		ClientCapabilities: 0,
		ProtocolVersion:    2,
	}
	if err := wire.WriteMessage(e.conn, wire.MsgClientAuth, auth.Marshal()); err != nil {
		wrapped := fmt.Errorf("%w: %v", ErrNetworkDropped, err)
		e.fail(wrapped)
		return wrapped
	}

	hdr, payload, err = wire.ReadMessage(e.reader)
	if err != nil || hdr.MsgType != wire.MsgServerAuthReply {
		wrapped := fmt.Errorf("%w: reading auth reply: %v", ErrProtocolError, err)
		e.fail(wrapped)
		return wrapped
	}
	reply, err := wire.UnmarshalAuthReply(payload)
	if err != nil {
		wrapped := fmt.Errorf("%w: %v", ErrProtocolError, err)
		e.fail(wrapped)
		return wrapped
	}
	if !reply.Succeeded() {
		wrapped := fmt.Errorf("%w: %s", ErrAuthFailed, reply.Message)
		e.fail(wrapped)
		return wrapped
	}

	if reply.NeedsLicense() {
		e.setState(AwaitingLicense, nil)
		if e.cb.OnLicense == nil {
			wrapped := fmt.Errorf("%w: license required but no license handler installed", ErrProtocolError)
			e.fail(wrapped)
			return wrapped
		}
		switch e.cb.OnLicense(reply.Message) {
		case LicenseReject:
			wrapped := ErrLicenseRejected
			e.fail(wrapped)
			return wrapped
		case LicenseTimeout:
			wrapped := ErrLicenseTimeout
			e.fail(wrapped)
			return wrapped
		}
	}

	if err := e.primeCodec(); err != nil {
		wrapped := fmt.Errorf("%w: %v", ErrCodecError, err)
		e.fail(wrapped)
		return wrapped
	}

	e.setState(Joined, nil)
	return nil
}

func (e *Engine) fail(err error) {
	log.Printf("[engine] %v", err)
	e.setState(Failed, err)
	e.mu.Lock()
	conn := e.conn
	e.conn = nil
	e.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

func (e *Engine) primeCodec() error {
	enc, err := e.cfg.Codec.NewEncoder(e.cfg.SampleRate, 1)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.encoder = enc
	if e.local.BitrateKB > 0 {
		_ = e.encoder.SetBitrate(e.local.BitrateKB * 1000)
	}
	e.mu.Unlock()
	return nil
}

// Disconnect moves the engine to Disconnecting, sends a best-effort
// goodbye, and closes the socket. Safe to call more than once.
func (e *Engine) Disconnect() {
	if e.State() == Idle {
		return
	}
	e.setState(Disconnecting, nil)
	e.mu.Lock()
	conn := e.conn
	e.conn = nil
	e.mu.Unlock()
	if conn != nil {
		_ = wire.WriteMessage(conn, wire.MsgKeepalive, nil)
		conn.Close()
	}
	e.setState(Idle, nil)
}

// Run is the engine's cooperative tick: read at most one message,
// advance any pending encode/decode, and return promptly. Intended to be
// called repeatedly from the worker's adaptive loop.
func (e *Engine) Run() (progressed bool, err error) {
	if e.State() != Joined {
		return false, nil
	}

	e.mu.Lock()
	conn := e.conn
	e.mu.Unlock()
	if conn == nil {
		return false, nil
	}

	if e.boundaryPending.CompareAndSwap(true, false) {
		e.rotateInterval()
		progressed = true
	}
	if encErr := e.drainCaptureAndEncode(e.capture); encErr != nil {
		// CodecError on the local encode path is recoverable: the
		// session continues, the offending frame is simply lost.
		progressed = true
	}

	conn.SetReadDeadline(time.Now().Add(e.cfg.ReadTimeout))
	hdr, payload, err := wire.ReadMessage(e.reader)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return progressed, nil
		}
		wrapped := fmt.Errorf("%w: %v", ErrNetworkDropped, err)
		e.fail(wrapped)
		return progressed, wrapped
	}

	if err := e.dispatch(hdr.MsgType, payload); err != nil {
		return progressed, err
	}
	return true, nil
}

func (e *Engine) dispatch(msgType byte, payload []byte) error {
	switch msgType {
	case wire.MsgServerConfigChange:
		cfg, err := wire.UnmarshalConfigChange(payload)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrProtocolError, err)
		}
		e.mu.Lock()
		e.pendingBPM, e.pendingBPI = float64(cfg.BPM), int(cfg.BPI)
		e.bpmPending = true
		if e.bpm == 0 {
			// First config on join: adopt immediately, there is no
			// "current interval" to finish out yet.
			e.bpm, e.bpi = e.pendingBPM, e.pendingBPI
			e.bpmPending = false
			length := clock.FramesForInterval(float64(e.cfg.SampleRate), e.bpi, e.bpm)
			e.intervalLength.Store(length)
			e.bpiAtomic.Store(int32(e.bpi))
		}
		e.mu.Unlock()
		return nil

	case wire.MsgServerUserInfoChange:
		entries, err := wire.UnmarshalUserInfoChange(payload)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrProtocolError, err)
		}
		e.applyUserInfoChange(entries)
		if e.cb.OnUserInfoChanged != nil {
			e.cb.OnUserInfoChanged()
		}
		return nil

	case wire.MsgDownloadInterval:
		dl, err := wire.UnmarshalDownloadInterval(payload)
		if err != nil {
			// A malformed chunk is recoverable: drop it, session continues.
			return nil
		}
		e.handleDownloadInterval(dl)
		return nil

	case wire.MsgChatMessage:
		if e.cb.OnTopicChanged != nil {
			e.cb.OnTopicChanged(string(payload))
		}
		return nil

	case wire.MsgKeepalive:
		return nil

	default:
		// Unknown message types are tolerated: forward compatibility
		// with servers that speak a newer protocol revision.
		return nil
	}
}
