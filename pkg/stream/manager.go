// Copyright (C) 2024  mvfst authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package stream

import (
	"time"

	"github.com/FFhix10/mvfst/pkg/congestion"
	"github.com/FFhix10/mvfst/pkg/flowcontrol"
	"github.com/FFhix10/mvfst/pkg/log"
	"github.com/FFhix10/mvfst/pkg/metrics"
	"github.com/FFhix10/mvfst/pkg/wire"
)

// Config carries the settings the manager needs at construction.
type Config struct {
	// Advertised initial stream limits, which also anchor the stream
	// limit windowing credit arithmetic.
	AdvertisedInitialMaxStreamsBidi uint64
	AdvertisedInitialMaxStreamsUni  uint64

	// StreamLimitWindowingFraction divides the initial limit into the
	// credit threshold for MAX_STREAMS updates.
	StreamLimitWindowingFraction uint64

	// Local receive windows by stream type.
	RecvWindowBidiRemote uint64
	RecvWindowBidiLocal  uint64
	RecvWindowUni        uint64
}

// Stats receives stream lifecycle callbacks. All methods may be
// invoked with a nil receiver guard by the manager.
type Stats interface {
	OnNewQuicStream()
	OnQuicStreamClosed()
}

// PrioritiesObserver is notified when any stream priority changes.
type PrioritiesObserver interface {
	OnStreamPrioritiesChange()
}

type streamIDSet map[wire.StreamID]struct{}

func (s streamIDSet) insert(id wire.StreamID) { s[id] = struct{}{} }
func (s streamIDSet) erase(id wire.StreamID)  { delete(s, id) }
func (s streamIDSet) contains(id wire.StreamID) bool {
	_, ok := s[id]
	return ok
}

// Server side initial stream IDs per type.
const (
	initialRemoteBidirectionalStreamID  wire.StreamID = 0x00
	initialRemoteUnidirectionalStreamID wire.StreamID = 0x02
	initialLocalBidirectionalStreamID   wire.StreamID = 0x01
	initialLocalUnidirectionalStreamID  wire.StreamID = 0x03
)

// Manager owns all stream state of one server connection.
type Manager struct {
	config Config

	streams              map[wire.StreamID]*State
	streamPriorityLevels map[wire.StreamID]uint8

	openBidirectionalPeerStreams  streamIDSet
	openUnidirectionalPeerStreams streamIDSet
	openBidirectionalLocalStreams streamIDSet
	openUnidirectionalLocalStream streamIDSet

	nextAcceptablePeerBidirectionalStreamID  wire.StreamID
	nextAcceptablePeerUnidirectionalStreamID wire.StreamID
	nextAcceptableLocalBidirectionalStreamID wire.StreamID
	nextAcceptableLocalUnidirectionalStream  wire.StreamID
	nextBidirectionalStreamID                wire.StreamID
	nextUnidirectionalStreamID               wire.StreamID

	maxRemoteBidirectionalStreamID  wire.StreamID
	maxRemoteUnidirectionalStreamID wire.StreamID
	maxLocalBidirectionalStreamID   wire.StreamID
	maxLocalUnidirectionalStreamID  wire.StreamID

	maxLocalBidirectionalStreamIDIncreased  bool
	maxLocalUnidirectionalStreamIDIncreased bool

	remoteBidirectionalStreamLimitUpdate    uint64
	hasRemoteBidirectionalStreamLimitUpdate bool
	remoteUnidirectionalStreamLimitUpdate   uint64
	hasRemoteUnidirectionalStreamLimit      bool

	// Peer advertised initial send windows by stream type.
	peerAdvertisedStreamWindowBidiLocal  uint64
	peerAdvertisedStreamWindowBidiRemote uint64
	peerAdvertisedStreamWindowUni        uint64

	// Index sets.
	readableStreams          streamIDSet
	peekableStreams          streamIDSet
	writableStreams          *PriorityQueue
	writableDSRStreams       *PriorityQueue
	writableControlStreams   streamIDSet
	lossStreams              streamIDSet
	blockedStreams           streamIDSet
	deliverableStreams       streamIDSet
	txStreams                streamIDSet
	windowUpdates            streamIDSet
	stopSendingStreams       map[wire.StreamID]uint64
	flowControlUpdatedStream streamIDSet

	newPeerStreams []wire.StreamID

	numControlStreams uint64
	isAppIdle         bool

	congestionController congestion.Controller
	stats                Stats
	prioritiesObserver   PrioritiesObserver
	clock                func() time.Time
}

// NewManager creates a server side stream manager.
func NewManager(config Config) *Manager {
	if config.StreamLimitWindowingFraction == 0 {
		config.StreamLimitWindowingFraction = 2
	}
	m := &Manager{
		config:                        config,
		streams:                       make(map[wire.StreamID]*State),
		streamPriorityLevels:          make(map[wire.StreamID]uint8),
		openBidirectionalPeerStreams:  make(streamIDSet),
		openUnidirectionalPeerStreams: make(streamIDSet),
		openBidirectionalLocalStreams: make(streamIDSet),
		openUnidirectionalLocalStream: make(streamIDSet),

		nextAcceptablePeerBidirectionalStreamID:  initialRemoteBidirectionalStreamID,
		nextAcceptablePeerUnidirectionalStreamID: initialRemoteUnidirectionalStreamID,
		nextAcceptableLocalBidirectionalStreamID: initialLocalBidirectionalStreamID,
		nextAcceptableLocalUnidirectionalStream:  initialLocalUnidirectionalStreamID,
		nextBidirectionalStreamID:                initialLocalBidirectionalStreamID,
		nextUnidirectionalStreamID:               initialLocalUnidirectionalStreamID,

		readableStreams:          make(streamIDSet),
		peekableStreams:          make(streamIDSet),
		writableStreams:          NewPriorityQueue(),
		writableDSRStreams:       NewPriorityQueue(),
		writableControlStreams:   make(streamIDSet),
		lossStreams:              make(streamIDSet),
		blockedStreams:           make(streamIDSet),
		deliverableStreams:       make(streamIDSet),
		txStreams:                make(streamIDSet),
		windowUpdates:            make(streamIDSet),
		stopSendingStreams:       make(map[wire.StreamID]uint64),
		flowControlUpdatedStream: make(streamIDSet),
		clock:                    time.Now,
	}
	m.maxRemoteBidirectionalStreamID = wire.StreamID(config.AdvertisedInitialMaxStreamsBidi)*wire.StreamIncrement + initialRemoteBidirectionalStreamID
	m.maxRemoteUnidirectionalStreamID = wire.StreamID(config.AdvertisedInitialMaxStreamsUni)*wire.StreamIncrement + initialRemoteUnidirectionalStreamID
	return m
}

// SetCongestionController wires the controller consulted on app idle
// transitions.
func (m *Manager) SetCongestionController(cc congestion.Controller) {
	m.congestionController = cc
}

// SetStats wires the stream lifecycle stats callback.
func (m *Manager) SetStats(stats Stats) {
	m.stats = stats
}

// SetPrioritiesObserver registers the priority change observer.
func (m *Manager) SetPrioritiesObserver(observer PrioritiesObserver) {
	m.prioritiesObserver = observer
}

// ResetPrioritiesObserver removes the priority change observer.
func (m *Manager) ResetPrioritiesObserver() {
	m.prioritiesObserver = nil
}

// SetClock overrides the time source, for tests.
func (m *Manager) SetClock(clock func() time.Time) {
	m.clock = clock
}

// SetPeerAdvertisedStreamWindows installs the peer's initial stream
// flow control offsets, available once transport parameters arrive.
func (m *Manager) SetPeerAdvertisedStreamWindows(bidiLocal, bidiRemote, uni uint64) {
	m.peerAdvertisedStreamWindowBidiLocal = bidiLocal
	m.peerAdvertisedStreamWindowBidiRemote = bidiRemote
	m.peerAdvertisedStreamWindowUni = uni
}

func (m *Manager) isLocalStream(id wire.StreamID) bool {
	return id.IsServerInitiated()
}

func (m *Manager) newFlowControl(id wire.StreamID) *flowcontrol.Stream {
	if m.isLocalStream(id) {
		if id.IsUnidirectional() {
			// We never receive data on our unidirectional streams.
			return flowcontrol.NewStream(m.peerAdvertisedStreamWindowUni, 0)
		}
		return flowcontrol.NewStream(m.peerAdvertisedStreamWindowBidiRemote, m.config.RecvWindowBidiLocal)
	}
	if id.IsUnidirectional() {
		return flowcontrol.NewStream(0, m.config.RecvWindowUni)
	}
	return flowcontrol.NewStream(m.peerAdvertisedStreamWindowBidiLocal, m.config.RecvWindowBidiRemote)
}

// StreamExists reports whether the stream is open, allocated or not.
func (m *Manager) StreamExists(id wire.StreamID) bool {
	if m.isLocalStream(id) {
		if id.IsUnidirectional() {
			return m.openUnidirectionalLocalStream.contains(id)
		}
		return m.openBidirectionalLocalStreams.contains(id)
	}
	if id.IsUnidirectional() {
		return m.openUnidirectionalPeerStreams.contains(id)
	}
	return m.openBidirectionalPeerStreams.contains(id)
}

// FindStream returns the allocated state of a stream, or nil. It never
// allocates.
func (m *Manager) FindStream(id wire.StreamID) *State {
	return m.streams[id]
}

// StreamCount returns the number of allocated streams.
func (m *Manager) StreamCount() int {
	return len(m.streams)
}

func (m *Manager) allocateStream(id wire.StreamID) (*State, error) {
	if _, exists := m.streams[id]; exists {
		return nil, wire.NewTransportError(wire.StreamStateError, "creating an active stream")
	}
	st := NewState(id, m.newFlowControl(id))
	m.streams[id] = st
	if err := m.addToStreamPriorityMap(st); err != nil {
		return nil, err
	}
	if m.stats != nil {
		m.stats.OnNewQuicStream()
	}
	metrics.StreamsOpened.Add(1)
	return st, nil
}

// getOrCreateOpenedLocalStream allocates state for a local stream that
// was opened but created lazily. It returns nil if the stream is
// closed or was never opened.
func (m *Manager) getOrCreateOpenedLocalStream(id wire.StreamID) (*State, error) {
	openLocalStreams := m.openBidirectionalLocalStreams
	if id.IsUnidirectional() {
		openLocalStreams = m.openUnidirectionalLocalStream
	}
	if !openLocalStreams.contains(id) {
		return nil, nil
	}
	return m.allocateStream(id)
}

// GetStream returns the state of a stream, lazily allocating peer
// streams when the limits permit. Closed streams return nil.
func (m *Manager) GetStream(id wire.StreamID) (*State, error) {
	if !m.isLocalStream(id) {
		st, err := m.getOrCreatePeerStream(id)
		m.updateAppIdleState()
		return st, err
	}
	if st, ok := m.streams[id]; ok {
		return st, nil
	}
	st, err := m.getOrCreateOpenedLocalStream(id)
	if err != nil {
		return nil, err
	}
	nextAcceptable := m.nextAcceptableLocalBidirectionalStreamID
	if id.IsUnidirectional() {
		nextAcceptable = m.nextAcceptableLocalUnidirectionalStream
	}
	if st == nil && id >= nextAcceptable {
		return nil, wire.NewTransportError(wire.StreamStateError, "trying to get an unopened local stream")
	}
	m.updateAppIdleState()
	return st, nil
}

func (m *Manager) getOrCreatePeerStream(id wire.StreamID) (*State, error) {
	if m.isLocalStream(id) {
		return nil, wire.NewTransportError(wire.StreamStateError, "attempted getting a server stream as a peer stream")
	}
	if st, ok := m.streams[id]; ok {
		return st, nil
	}
	openPeerStreams := m.openBidirectionalPeerStreams
	nextAcceptable := &m.nextAcceptablePeerBidirectionalStreamID
	maxStreamID := m.maxRemoteBidirectionalStreamID
	if id.IsUnidirectional() {
		openPeerStreams = m.openUnidirectionalPeerStreams
		nextAcceptable = &m.nextAcceptablePeerUnidirectionalStreamID
		maxStreamID = m.maxRemoteUnidirectionalStreamID
	}
	if openPeerStreams.contains(id) {
		// Stream was already open, create the state for it lazily.
		return m.allocateStream(id)
	}
	if id < *nextAcceptable {
		// Stream is closed.
		return nil, nil
	}
	if id >= maxStreamID {
		return nil, wire.NewTransportError(wire.StreamLimitError, "exceeded stream limit")
	}
	// Every lower stream of the same type opens implicitly.
	for open := *nextAcceptable; open <= id; open += wire.StreamIncrement {
		openPeerStreams.insert(open)
		m.newPeerStreams = append(m.newPeerStreams, open)
	}
	*nextAcceptable = id + wire.StreamIncrement
	return m.allocateStream(id)
}

// CreateNextBidirectionalStream opens the next server initiated
// bidirectional stream.
func (m *Manager) CreateNextBidirectionalStream() (*State, wire.LocalErrorCode) {
	st, code := m.createStream(m.nextBidirectionalStreamID)
	if code == wire.LocalNoError {
		m.nextBidirectionalStreamID += wire.StreamIncrement
	}
	return st, code
}

// CreateNextUnidirectionalStream opens the next server initiated
// unidirectional stream.
func (m *Manager) CreateNextUnidirectionalStream() (*State, wire.LocalErrorCode) {
	st, code := m.createStream(m.nextUnidirectionalStreamID)
	if code == wire.LocalNoError {
		m.nextUnidirectionalStreamID += wire.StreamIncrement
	}
	return st, code
}

func (m *Manager) createStream(id wire.StreamID) (*State, wire.LocalErrorCode) {
	existing, err := m.getOrCreateOpenedLocalStream(id)
	if err != nil {
		return nil, wire.LocalCreatingExistingStream
	}
	if existing != nil {
		return existing, wire.LocalNoError
	}
	openLocalStreams := m.openBidirectionalLocalStreams
	nextAcceptable := &m.nextAcceptableLocalBidirectionalStreamID
	maxStreamID := m.maxLocalBidirectionalStreamID
	if id.IsUnidirectional() {
		openLocalStreams = m.openUnidirectionalLocalStream
		nextAcceptable = &m.nextAcceptableLocalUnidirectionalStream
		maxStreamID = m.maxLocalUnidirectionalStreamID
	}
	if id < *nextAcceptable {
		return nil, wire.LocalCreatingExistingStream
	}
	if id >= maxStreamID {
		return nil, wire.LocalStreamLimitExceeded
	}
	for open := *nextAcceptable; open <= id; open += wire.StreamIncrement {
		openLocalStreams.insert(open)
	}
	*nextAcceptable = id + wire.StreamIncrement
	st, err := m.allocateStream(id)
	if err != nil {
		return nil, wire.LocalCreatingExistingStream
	}
	m.updateAppIdleState()
	return st, wire.LocalNoError
}

// SetMaxLocalBidirectionalStreams raises the peer granted cap of
// server initiated bidirectional streams.
func (m *Manager) SetMaxLocalBidirectionalStreams(maxStreams uint64, force bool) error {
	if maxStreams > wire.MaxMaxStreams {
		return wire.NewTransportError(wire.StreamLimitError, "attempt to set maxStreams beyond the max allowed")
	}
	maxStreamID := wire.StreamID(maxStreams)*wire.StreamIncrement + initialLocalBidirectionalStreamID
	if force || maxStreamID > m.maxLocalBidirectionalStreamID {
		m.maxLocalBidirectionalStreamID = maxStreamID
		m.maxLocalBidirectionalStreamIDIncreased = true
	}
	return nil
}

// SetMaxLocalUnidirectionalStreams raises the peer granted cap of
// server initiated unidirectional streams.
func (m *Manager) SetMaxLocalUnidirectionalStreams(maxStreams uint64, force bool) error {
	if maxStreams > wire.MaxMaxStreams {
		return wire.NewTransportError(wire.StreamLimitError, "attempt to set maxStreams beyond the max allowed")
	}
	maxStreamID := wire.StreamID(maxStreams)*wire.StreamIncrement + initialLocalUnidirectionalStreamID
	if force || maxStreamID > m.maxLocalUnidirectionalStreamID {
		m.maxLocalUnidirectionalStreamID = maxStreamID
		m.maxLocalUnidirectionalStreamIDIncreased = true
	}
	return nil
}

// SetMaxRemoteBidirectionalStreams raises the cap of client initiated
// bidirectional streams. Lowering is a no-op.
func (m *Manager) SetMaxRemoteBidirectionalStreams(maxStreams uint64) error {
	return m.setMaxRemoteBidirectionalStreams(maxStreams, false)
}

func (m *Manager) setMaxRemoteBidirectionalStreams(maxStreams uint64, force bool) error {
	if maxStreams > wire.MaxMaxStreams {
		return wire.NewTransportError(wire.StreamLimitError, "attempt to set maxStreams beyond the max allowed")
	}
	maxStreamID := wire.StreamID(maxStreams)*wire.StreamIncrement + initialRemoteBidirectionalStreamID
	if force || maxStreamID > m.maxRemoteBidirectionalStreamID {
		m.maxRemoteBidirectionalStreamID = maxStreamID
	}
	return nil
}

// SetMaxRemoteUnidirectionalStreams raises the cap of client initiated
// unidirectional streams. Lowering is a no-op.
func (m *Manager) SetMaxRemoteUnidirectionalStreams(maxStreams uint64) error {
	return m.setMaxRemoteUnidirectionalStreams(maxStreams, false)
}

func (m *Manager) setMaxRemoteUnidirectionalStreams(maxStreams uint64, force bool) error {
	if maxStreams > wire.MaxMaxStreams {
		return wire.NewTransportError(wire.StreamLimitError, "attempt to set maxStreams beyond the max allowed")
	}
	maxStreamID := wire.StreamID(maxStreams)*wire.StreamIncrement + initialRemoteUnidirectionalStreamID
	if force || maxStreamID > m.maxRemoteUnidirectionalStreamID {
		m.maxRemoteUnidirectionalStreamID = maxStreamID
	}
	return nil
}

// ConsumeMaxLocalBidirectionalStreamIDIncreased returns and clears the
// "limit raised" latch.
func (m *Manager) ConsumeMaxLocalBidirectionalStreamIDIncreased() bool {
	res := m.maxLocalBidirectionalStreamIDIncreased
	m.maxLocalBidirectionalStreamIDIncreased = false
	return res
}

// ConsumeMaxLocalUnidirectionalStreamIDIncreased returns and clears
// the "limit raised" latch.
func (m *Manager) ConsumeMaxLocalUnidirectionalStreamIDIncreased() bool {
	res := m.maxLocalUnidirectionalStreamIDIncreased
	m.maxLocalUnidirectionalStreamIDIncreased = false
	return res
}

// OpenableRemoteBidirectionalStreams is the number of additional
// client initiated bidirectional streams the peer may open now.
func (m *Manager) OpenableRemoteBidirectionalStreams() uint64 {
	return uint64(m.maxRemoteBidirectionalStreamID-m.nextAcceptablePeerBidirectionalStreamID) / uint64(wire.StreamIncrement)
}

// OpenableRemoteUnidirectionalStreams is the number of additional
// client initiated unidirectional streams the peer may open now.
func (m *Manager) OpenableRemoteUnidirectionalStreams() uint64 {
	return uint64(m.maxRemoteUnidirectionalStreamID-m.nextAcceptablePeerUnidirectionalStreamID) / uint64(wire.StreamIncrement)
}

// RemoteBidirectionalStreamLimitUpdate consumes the pending
// MAX_STREAMS advertisement, if any.
func (m *Manager) RemoteBidirectionalStreamLimitUpdate() (uint64, bool) {
	if !m.hasRemoteBidirectionalStreamLimitUpdate {
		return 0, false
	}
	m.hasRemoteBidirectionalStreamLimitUpdate = false
	return m.remoteBidirectionalStreamLimitUpdate, true
}

// RemoteUnidirectionalStreamLimitUpdate consumes the pending
// MAX_STREAMS advertisement, if any.
func (m *Manager) RemoteUnidirectionalStreamLimitUpdate() (uint64, bool) {
	if !m.hasRemoteUnidirectionalStreamLimit {
		return 0, false
	}
	m.hasRemoteUnidirectionalStreamLimit = false
	return m.remoteUnidirectionalStreamLimitUpdate, true
}

// NewPeerStreams drains the queue of streams the peer opened since the
// last call.
func (m *Manager) NewPeerStreams() []wire.StreamID {
	res := m.newPeerStreams
	m.newPeerStreams = nil
	return res
}

// RemoveClosedStream erases a stream in terminal states from every
// index, recomputes the stream limit credit and, for remote streams,
// may schedule a MAX_STREAMS update.
func (m *Manager) RemoveClosedStream(id wire.StreamID) error {
	st, ok := m.streams[id]
	if !ok {
		if log.IsLevelEnabled(log.TraceLevel) {
			log.Tracef("trying to remove already closed stream %d", id)
		}
		return nil
	}
	if !st.InTerminalStates() {
		return wire.NewTransportError(wire.StreamStateError, "removing a stream that is not in terminal states")
	}
	m.readableStreams.erase(id)
	m.peekableStreams.erase(id)
	m.writableStreams.Erase(id)
	m.writableDSRStreams.Erase(id)
	m.writableControlStreams.erase(id)
	m.lossStreams.erase(id)
	m.blockedStreams.erase(id)
	m.deliverableStreams.erase(id)
	m.txStreams.erase(id)
	m.windowUpdates.erase(id)
	delete(m.stopSendingStreams, id)
	m.flowControlUpdatedStream.erase(id)

	if _, ok := m.streamPriorityLevels[id]; !ok {
		return wire.NewTransportError(wire.StreamStateError, "removed stream is not in the priority map")
	}
	delete(m.streamPriorityLevels, id)

	if st.IsControl {
		m.numControlStreams--
	}
	delete(m.streams, id)
	if m.stats != nil {
		m.stats.OnQuicStreamClosed()
	}
	metrics.StreamsClosed.Add(1)

	if !m.isLocalStream(id) {
		openPeerStreams := m.openBidirectionalPeerStreams
		initialStreamLimit := m.config.AdvertisedInitialMaxStreamsBidi
		if id.IsUnidirectional() {
			openPeerStreams = m.openUnidirectionalPeerStreams
			initialStreamLimit = m.config.AdvertisedInitialMaxStreamsUni
		}
		openPeerStreams.erase(id)

		// The credit is how much stream space is free relative to the
		// initial limit. An update is advertised once enough credit
		// accumulates.
		streamWindow := initialStreamLimit / m.config.StreamLimitWindowingFraction
		var openable uint64
		if id.IsUnidirectional() {
			openable = m.OpenableRemoteUnidirectionalStreams()
		} else {
			openable = m.OpenableRemoteBidirectionalStreams()
		}
		streamCredit := initialStreamLimit - openable - uint64(len(openPeerStreams))
		if streamCredit >= streamWindow {
			if id.IsUnidirectional() {
				maxStreams := uint64(m.maxRemoteUnidirectionalStreamID-initialRemoteUnidirectionalStreamID) / uint64(wire.StreamIncrement)
				if err := m.SetMaxRemoteUnidirectionalStreams(maxStreams + streamCredit); err != nil {
					return err
				}
				m.remoteUnidirectionalStreamLimitUpdate = maxStreams + streamCredit
				m.hasRemoteUnidirectionalStreamLimit = true
			} else {
				maxStreams := uint64(m.maxRemoteBidirectionalStreamID-initialRemoteBidirectionalStreamID) / uint64(wire.StreamIncrement)
				if err := m.SetMaxRemoteBidirectionalStreams(maxStreams + streamCredit); err != nil {
					return err
				}
				m.remoteBidirectionalStreamLimitUpdate = maxStreams + streamCredit
				m.hasRemoteBidirectionalStreamLimitUpdate = true
			}
		}
	} else {
		if id.IsUnidirectional() {
			m.openUnidirectionalLocalStream.erase(id)
		} else {
			m.openBidirectionalLocalStreams.erase(id)
		}
	}
	m.updateAppIdleState()
	m.notifyStreamPriorityChanges()
	return nil
}

// SetStreamPriority changes a stream's priority. It returns true when
// the value actually changed.
func (m *Manager) SetStreamPriority(id wire.StreamID, level uint8, incremental bool) (bool, error) {
	st := m.FindStream(id)
	if st == nil {
		return false, nil
	}
	newPriority := Priority{Level: level, Incremental: incremental}
	if st.Priority == newPriority {
		return false, nil
	}
	st.Priority = newPriority
	if _, ok := m.streamPriorityLevels[id]; !ok {
		return false, wire.NewTransportError(wire.StreamStateError, "active stream not in stream priority map")
	}
	m.streamPriorityLevels[id] = newPriority.Level
	m.notifyStreamPriorityChanges()
	m.writableStreams.UpdateIfExist(id, newPriority)
	m.writableDSRStreams.UpdateIfExist(id, newPriority)
	return true, nil
}

// GetHighestPriorityLevel scans the priority map for the most urgent
// level among allocated streams.
func (m *Manager) GetHighestPriorityLevel() uint8 {
	min := wire.DefaultMaxPriority
	for _, level := range m.streamPriorityLevels {
		if level < min {
			min = level
		}
		if min == 0 {
			break
		}
	}
	return min
}

func (m *Manager) addToStreamPriorityMap(st *State) error {
	if _, exists := m.streamPriorityLevels[st.ID]; exists {
		return wire.NewTransportError(wire.StreamStateError, "attempted to add stream already in priority map")
	}
	m.streamPriorityLevels[st.ID] = st.Priority.Level
	m.notifyStreamPriorityChanges()
	return nil
}

func (m *Manager) notifyStreamPriorityChanges() {
	if m.prioritiesObserver != nil {
		m.prioritiesObserver.OnStreamPrioritiesChange()
	}
}

// SetStreamAsControl marks a stream as a control stream. Control
// streams do not count against app idleness.
func (m *Manager) SetStreamAsControl(st *State) {
	if !st.IsControl {
		st.IsControl = true
		m.numControlStreams++
	}
	m.updateAppIdleState()
}

// IsAppIdle reports whether the connection has no non control streams.
func (m *Manager) IsAppIdle() bool {
	return m.isAppIdle
}

func (m *Manager) hasNonCtrlStreams() bool {
	return uint64(len(m.streams)) != m.numControlStreams
}

func (m *Manager) updateAppIdleState() {
	currentNonCtrlStreams := m.hasNonCtrlStreams()
	if m.isAppIdle == !currentNonCtrlStreams {
		return
	}
	m.isAppIdle = !currentNonCtrlStreams
	if m.congestionController != nil {
		m.congestionController.SetAppIdle(m.isAppIdle, m.clock())
	}
}

// UpdateReadableStreams refreshes the readable index and the head of
// line blocking bookkeeping after any receive side change.
func (m *Manager) UpdateReadableStreams(st *State) {
	m.updateHolBlockedTime(st)
	if st.HasReadableData() {
		m.readableStreams.insert(st.ID)
	} else {
		m.readableStreams.erase(st.ID)
	}
	m.UpdatePeekableStreams(st)
}

// UpdatePeekableStreams refreshes the peekable index.
func (m *Manager) UpdatePeekableStreams(st *State) {
	if st.HasPeekableData() {
		m.peekableStreams.insert(st.ID)
	} else {
		m.peekableStreams.erase(st.ID)
	}
}

// UpdateWritableStreams refreshes the writable queues after any send
// side change.
func (m *Manager) UpdateWritableStreams(st *State) {
	if st.HasWriteError {
		m.writableStreams.Erase(st.ID)
		m.writableDSRStreams.Erase(st.ID)
		m.writableControlStreams.erase(st.ID)
		return
	}
	if st.HasWritableData() || st.HasLoss() {
		if st.IsControl {
			m.writableControlStreams.insert(st.ID)
		} else {
			m.writableStreams.Insert(st.ID, st.Priority)
		}
	} else {
		if st.IsControl {
			m.writableControlStreams.erase(st.ID)
		} else {
			m.writableStreams.Erase(st.ID)
		}
	}
	if st.HasLoss() {
		m.lossStreams.insert(st.ID)
	} else {
		m.lossStreams.erase(st.ID)
	}
}

// updateHolBlockedTime latches head of line blocking intervals.
// A stream is blocked when buffered data cannot be read because the
// front of the buffer is beyond the read offset.
func (m *Manager) updateHolBlockedTime(st *State) {
	front, ok := st.FrontReadBuffer()
	if !ok || st.CurrentReadOffset == front.Offset {
		if st.HolbLatched {
			st.TotalHolbTime += m.clock().Sub(st.LastHolbTime)
			st.HolbLatched = false
		}
		return
	}
	if st.HolbLatched {
		return
	}
	st.LastHolbTime = m.clock()
	st.HolbLatched = true
	st.HolbCount++
}

// Readable index accessors.

func (m *Manager) ReadableStreams() map[wire.StreamID]struct{}  { return m.readableStreams }
func (m *Manager) PeekableStreams() map[wire.StreamID]struct{}  { return m.peekableStreams }
func (m *Manager) WritableStreams() *PriorityQueue              { return m.writableStreams }
func (m *Manager) WritableDSRStreams() *PriorityQueue           { return m.writableDSRStreams }
func (m *Manager) BlockedStreams() map[wire.StreamID]struct{}   { return m.blockedStreams }
func (m *Manager) LossStreams() map[wire.StreamID]struct{}      { return m.lossStreams }
func (m *Manager) WindowUpdates() map[wire.StreamID]struct{}    { return m.windowUpdates }
func (m *Manager) TxStreams() map[wire.StreamID]struct{}        { return m.txStreams }
func (m *Manager) DeliverableStreams() map[wire.StreamID]struct{} {
	return m.deliverableStreams
}
func (m *Manager) FlowControlUpdated() map[wire.StreamID]struct{} {
	return m.flowControlUpdatedStream
}

// QueueWindowUpdate marks a stream needing a MAX_STREAM_DATA frame.
func (m *Manager) QueueWindowUpdate(id wire.StreamID) {
	m.windowUpdates.insert(id)
}

// QueueBlocked marks a stream blocked on stream flow control.
func (m *Manager) QueueBlocked(id wire.StreamID) {
	m.blockedStreams.insert(id)
}

// QueueFlowControlUpdated marks a stream whose send window changed.
func (m *Manager) QueueFlowControlUpdated(id wire.StreamID) {
	m.flowControlUpdatedStream.insert(id)
}

// QueueStopSending records an outbound STOP_SENDING request.
func (m *Manager) QueueStopSending(id wire.StreamID, errorCode uint64) {
	m.stopSendingStreams[id] = errorCode
}

// StopSendingStreams returns the pending STOP_SENDING requests.
func (m *Manager) StopSendingStreams() map[wire.StreamID]uint64 {
	return m.stopSendingStreams
}
