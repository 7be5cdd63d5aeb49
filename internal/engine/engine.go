// Package engine implements the top-level audio engine orchestration: the
// lifecycle state machine, and the per-buffer Process call that wires
// together every other internal package (graph, routing, bufferpool, ring,
// timing, the sequencer bridge, FM voice machines, and error recovery).
// It follows this codebase's mutex-guarded Player lifecycle, generalized
// from "one fixed synth engine" to an arbitrary set of per-track voice
// machines behind a real audio graph.
package engine

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/cbegin/tonecore/internal/bridge"
	"github.com/cbegin/tonecore/internal/bufferpool"
	"github.com/cbegin/tonecore/internal/config"
	"github.com/cbegin/tonecore/internal/dsp"
	"github.com/cbegin/tonecore/internal/effects"
	"github.com/cbegin/tonecore/internal/evqueue"
	"github.com/cbegin/tonecore/internal/fm"
	"github.com/cbegin/tonecore/internal/graph"
	"github.com/cbegin/tonecore/internal/paramspec"
	"github.com/cbegin/tonecore/internal/persist"
	"github.com/cbegin/tonecore/internal/recovery"
	"github.com/cbegin/tonecore/internal/ring"
	"github.com/cbegin/tonecore/internal/routing"
	"github.com/cbegin/tonecore/internal/timing"
)

// State is a node in the audio engine state machine of §4.14.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateStarting
	StateRunning
	StateSuspended
	StateStopping
	StateStopped
	StateError
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateSuspended:
		return "suspended"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "error"
	}
}

var (
	ErrEngineStartFailed = errors.New("engine: start failed")
	ErrNotInitialized    = errors.New("engine: not initialized")
	ErrNotRunning        = errors.New("engine: not running")
	ErrAlreadyRunning    = errors.New("engine: already running")
)

var defaultLogger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "tonecore"})

// Metrics is the periodic observability snapshot described in §6.
type Metrics struct {
	CPUUsage                  float64
	AvgCycleTimeUs            float64
	DeadlineMisses            uint64
	Underruns                 uint64
	BufferPoolTotal           int64
	BufferPoolAllocated       int64
	RingUsage                 int
	RoutingConnectionsActive  int
	RoutingConnectionsTotal   int
	EventQueueDepth           int
}

// Engine is the top-level audio engine: one instance owns one graph, one
// routing matrix, one event queue, one timing synchronizer, a set of
// per-track FM voice machines dispatched to by the sequencer bridge, and
// the error recovery state machine.
type Engine struct {
	mu         sync.Mutex
	instanceID string
	state      State
	cfg        config.EngineConfig
	logger     *log.Logger

	pool     *bufferpool.Pool
	ringBuf  *ring.Buffer
	evq      *evqueue.Queue
	timer    *timing.Synchronizer
	rmatrix  *routing.Matrix
	graph    *graph.Graph
	seqBr    *bridge.Bridge
	recov    *recovery.Recovery
	masterFX *effects.GraphNode

	tracks         map[int]*fm.Machine
	paramBridges   map[int]*paramspec.Bridge
	extraSourceIDs []string

	store    persist.Store
	presetID string

	currentSampleTime uint64
	deadlineMisses    uint64
	underruns         uint64
}

// New constructs an Engine in the uninitialized state. logger may be nil,
// in which case a package-level default writing to stderr is used.
func New(cfg config.EngineConfig, logger *log.Logger) *Engine {
	if logger == nil {
		logger = defaultLogger
	}
	return &Engine{
		instanceID:   uuid.NewString(),
		presetID:     persist.NewPresetID(),
		state:        StateUninitialized,
		cfg:          cfg,
		logger:       logger,
		tracks:       make(map[int]*fm.Machine),
		paramBridges: make(map[int]*paramspec.Bridge),
	}
}

// SetPersistenceStore attaches an optional preset persistence backend.
// Parameter updates on tracks registered afterward are saved through it,
// fire-and-forget, under "preset:<id>:<param_id>" keys. A nil store (the
// default) disables persistence entirely; the bridge functions without it.
func (e *Engine) SetPersistenceStore(store persist.Store) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.store = store
}

// InstanceID returns the engine's unique identifier, stamped on log lines
// so a host running several engines can tell their log output apart.
func (e *Engine) InstanceID() string {
	return e.instanceID
}

// State returns the engine's current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Initialize validates the configuration and constructs every subsystem.
// Valid from StateUninitialized only.
func (e *Engine) Initialize() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateUninitialized {
		return fmt.Errorf("%w: initialize called in state %s", ErrEngineStartFailed, e.state)
	}
	if err := e.cfg.Validate(); err != nil {
		e.state = StateError
		return err
	}
	e.state = StateInitializing
	e.logger.Debug("initializing engine", "instance", e.instanceID, "sample_rate", e.cfg.SampleRate, "buffer_size", e.cfg.BufferSize)

	e.pool = bufferpool.New(int(e.cfg.BufferSize), int(e.cfg.ChannelCount), int(e.cfg.SampleRate), int(e.cfg.BufferPoolSize))
	e.ringBuf = ring.New(int(e.cfg.CircularBufferCapacity))
	e.evq = evqueue.New(1024)
	e.timer = timing.New(int(e.cfg.SampleRate))
	e.rmatrix = routing.New(1, int(e.cfg.MaxRoutingConnections))
	e.graph = graph.New(e.cfg.EnableLockFreeOperations)
	e.seqBr = bridge.New(e.evq)
	if e.cfg.EnableErrorRecovery {
		e.recov = recovery.NewRecovery(recovery.DefaultPolicy())
	}

	e.state = StateReady
	return nil
}

// RegisterTrack creates a new 16-voice FM TONE voice machine for trackNum,
// registers it with the sequencer bridge, and adds it to the audio graph
// as a source node; Start connects it to the master FX node, which feeds
// the output node. Valid before Start (or
// while Stopped, to reconfigure before the next Start).
func (e *Engine) RegisterTrack(trackNum int) (*fm.Machine, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateReady && e.state != StateStopped {
		return nil, fmt.Errorf("%w: register track in state %s", ErrEngineStartFailed, e.state)
	}
	machine := fm.NewMachine(float64(e.cfg.SampleRate))
	pb := paramspec.New(fm.ParamSpecs(), machine, persist.SaveFunc(e.store, e.presetID))
	e.tracks[trackNum] = machine
	e.paramBridges[trackNum] = pb
	e.seqBr.Register(trackNum, machine, pb)

	node := &trackNode{id: fmt.Sprintf("track-%d", trackNum), channels: int(e.cfg.ChannelCount), machine: machine}
	if err := e.graph.AddNode(node); err != nil {
		return nil, err
	}
	return machine, nil
}

// Graph exposes the engine's audio graph so a caller can wire additional
// nodes into it. Start connects only FM tracks and nodes registered through
// RegisterTrackMachine to the master FX node; nodes added here directly are
// connected by the caller.
func (e *Engine) Graph() *graph.Graph {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.graph
}

// RegisterTrackMachine adds an already-constructed VoiceMachine-shaped
// graph source node under trackNum, for track types other than FM TONE
// (e.g. a wavetable.Machine). The node must implement graph.Node and
// bridge.VoiceMachine both.
func (e *Engine) RegisterTrackMachine(trackNum int, node graph.Node, vm bridge.VoiceMachine) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateReady && e.state != StateStopped {
		return fmt.Errorf("%w: register track in state %s", ErrEngineStartFailed, e.state)
	}
	if err := e.graph.AddNode(node); err != nil {
		return err
	}
	e.seqBr.Register(trackNum, vm, nil)
	e.extraSourceIDs = append(e.extraSourceIDs, node.ID())
	return nil
}

// ParamBridge returns the Parameter Bridge for a registered track, for
// callers that want to drive it directly (e.g. from a decoded wireproto
// ParamChange outside the normal event queue path).
func (e *Engine) ParamBridge(trackNum int) (*paramspec.Bridge, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pb, ok := e.paramBridges[trackNum]
	return pb, ok
}

// EnqueueEvent adds an event to the engine's event queue for later
// dispatch during Process.
func (e *Engine) EnqueueEvent(ev evqueue.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.evq.Enqueue(ev)
}

const (
	outputNodeID   = "master-output"
	masterFXNodeID = "master-fx"
)

// Start transitions the engine into the running state: it (re)builds the
// audio graph's topology (connecting every track node through the master
// FX chain to the output node) and prepares it for real-time rendering.
// Valid from StateReady or StateStopped.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateReady && e.state != StateStopped {
		return fmt.Errorf("%w: from state %s", ErrEngineStartFailed, e.state)
	}
	e.state = StateStarting

	// Rebuilding the output and master-FX nodes also clears any stale
	// connections from a prior Start (RemoveNode drops every connection
	// touching the removed node), so repeated Start/Stop cycles don't
	// collide on already-occupied destination input indices.
	e.graph.RemoveNode(outputNodeID)
	e.graph.RemoveNode(masterFXNodeID)
	if err := e.graph.AddNode(&passthroughOutputNode{id: outputNodeID, channels: int(e.cfg.ChannelCount)}); err != nil {
		e.state = StateError
		return err
	}
	masterChain := effects.NewChain(effects.NewCompressor(int(e.cfg.SampleRate), -12, 4, 10, 80, 6))
	e.masterFX = effects.NewGraphNode(masterFXNodeID, masterChain)
	if err := e.graph.AddNode(e.masterFX); err != nil {
		e.state = StateError
		return err
	}
	if err := e.graph.Connect(graph.Connection{SourceID: masterFXNodeID, DestID: outputNodeID, DestInputIndex: 0, Gain: 1, Active: true}); err != nil {
		e.state = StateError
		return err
	}
	inputIdx := 0
	for trackNum := range e.tracks {
		srcID := fmt.Sprintf("track-%d", trackNum)
		_ = e.graph.Connect(graph.Connection{SourceID: srcID, DestID: masterFXNodeID, DestInputIndex: inputIdx, Gain: 1, Active: true})
		inputIdx++
	}
	for _, srcID := range e.extraSourceIDs {
		_ = e.graph.Connect(graph.Connection{SourceID: srcID, DestID: masterFXNodeID, DestInputIndex: inputIdx, Gain: 1, Active: true})
		inputIdx++
	}
	if err := e.graph.Prepare(); err != nil {
		e.state = StateError
		return fmt.Errorf("%w: %v", ErrEngineStartFailed, err)
	}

	e.currentSampleTime = 0
	e.timer.SetTransport(timing.TransportPlaying)
	e.state = StateRunning
	e.logger.Info("engine started")
	return nil
}

// Stop halts rendering and returns the engine to StateStopped. Valid from
// StateRunning or StateSuspended.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateRunning && e.state != StateSuspended {
		return fmt.Errorf("%w: from state %s", ErrNotRunning, e.state)
	}
	e.state = StateStopping
	e.timer.SetTransport(timing.TransportStopped)
	e.state = StateStopped
	e.logger.Info("engine stopped")
	return nil
}

// Suspend pauses rendering in place (Process becomes a silence-fill
// no-op) without tearing down the graph. Valid from StateRunning only.
func (e *Engine) Suspend() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateRunning {
		return fmt.Errorf("%w: suspend from state %s", ErrNotRunning, e.state)
	}
	e.state = StateSuspended
	e.timer.SetTransport(timing.TransportPaused)
	return nil
}

// Resume reverses Suspend.
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateSuspended {
		return fmt.Errorf("%w: resume from state %s", ErrNotRunning, e.state)
	}
	e.state = StateRunning
	e.timer.SetTransport(timing.TransportPlaying)
	return nil
}

// Reset returns an engine in StateError back to StateUninitialized so
// Initialize can be retried.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = StateUninitialized
}

// Process renders one buffer of audio: dispatches due events through the
// sequencer bridge, advances the timing synchronizer, renders the graph,
// and copies the interleaved result into output. output must be sized for
// frames * channel_count samples. Process holds the engine mutex for the
// whole buffer, so it waits if another Engine method holds it.
func (e *Engine) Process(output []float32, frames int, hostTimeNs uint64) (err error) {
	e.mu.Lock()
	state := e.state
	if state == StateSuspended {
		e.mu.Unlock()
		for i := range output {
			output[i] = 0
		}
		return nil
	}
	if state != StateRunning {
		e.mu.Unlock()
		return ErrNotRunning
	}

	defer func() {
		if r := recover(); r != nil {
			cause := fmt.Errorf("panic in Process: %v", r)
			for i := range output {
				output[i] = 0
			}
			e.underruns++
			if e.recov != nil {
				e.recov.Trigger(recovery.New(recovery.KindRealtimeSafety, cause))
			}
			err = cause
		}
		e.mu.Unlock()
	}()

	e.seqBr.ProcessEvents(e.currentSampleTime, frames)
	e.timer.ProcessBuffer(frames)

	mix := e.graph.Process(frames, int(e.cfg.ChannelCount))
	dsp.SoftClip(mix, 1.0)

	n := copy(output, mix)
	if n < len(output) {
		e.deadlineMisses++
	}
	if w := e.ringBuf.Write(mix); w < len(mix) {
		e.underruns++
	}

	e.currentSampleTime += uint64(frames)
	return nil
}

// Metrics returns the periodic observability snapshot of §6.
func (e *Engine) Metrics() Metrics {
	e.mu.Lock()
	defer e.mu.Unlock()
	poolStats := bufferpool.Stats{}
	if e.pool != nil {
		poolStats = e.pool.Stats()
	}
	m := Metrics{
		DeadlineMisses:      e.deadlineMisses,
		Underruns:           e.underruns,
		BufferPoolTotal:     poolStats.Total,
		BufferPoolAllocated: poolStats.Allocated,
	}
	if e.ringBuf != nil {
		m.RingUsage = e.ringBuf.AvailableRead()
	}
	if e.rmatrix != nil {
		conns := e.rmatrix.Snapshot()
		m.RoutingConnectionsTotal = len(conns)
		for _, c := range conns {
			if c.Active {
				m.RoutingConnectionsActive++
			}
		}
	}
	if e.evq != nil {
		m.EventQueueDepth = e.evq.Len()
	}
	return m
}

// RoutingMatrix exposes the engine's routing matrix for direct
// manipulation (e.g. by a UI layer), independent of the audio graph's own
// topology per §4.5.
func (e *Engine) RoutingMatrix() *routing.Matrix {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rmatrix
}
