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

package server

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/FFhix10/mvfst/pkg/ackhandler"
	"github.com/FFhix10/mvfst/pkg/congestion"
	"github.com/FFhix10/mvfst/pkg/connid"
	"github.com/FFhix10/mvfst/pkg/flowcontrol"
	"github.com/FFhix10/mvfst/pkg/handshake"
	"github.com/FFhix10/mvfst/pkg/log"
	"github.com/FFhix10/mvfst/pkg/stream"
	"github.com/FFhix10/mvfst/pkg/wire"
)

const (
	// connIDEncodingRetryLimit bounds how often a rejected connection
	// ID candidate is re-encoded.
	connIDEncodingRetryLimit = 16

	// maxNumMigrationsAllowed caps peer address changes per connection.
	maxNumMigrationsAllowed = 6

	// timeToRetainLastCongestionAndRttState bounds how long a saved
	// congestion snapshot can be restored after migrating back.
	timeToRetainLastCongestionAndRttState = time.Minute

	// maxNumTokenSourceAddresses caps the address history carried in
	// resumption tokens.
	maxNumTokenSourceAddresses = 3
)

// State is the top level connection state.
type State uint8

const (
	StateOpen State = iota
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// ReadData is one received UDP payload with its source and arrival time.
type ReadData struct {
	Peer        netip.AddrPort
	Data        []byte
	ReceiveTime time.Time
}

// CongestionAndRttState is a snapshot of the congestion controller and
// RTT estimate bound to a peer address, saved across migrations.
type CongestionAndRttState struct {
	PeerAddress          netip.AddrPort
	RecordTime           time.Time
	CongestionController congestion.Controller
	RTT                  congestion.RTTSnapshot
}

// MigrationState tracks peer address changes.
type MigrationState struct {
	NumMigrations         uint32
	PreviousPeerAddresses []netip.AddrPort
	LastCongestionAndRtt  *CongestionAndRttState
}

// DatagramState carries the negotiated datagram extension limits.
type DatagramState struct {
	MaxReadFrameSize  uint64
	MaxWriteFrameSize uint64
}

// D6DMachineState is the PMTU discovery machine state.
type D6DMachineState uint8

const (
	D6DDisabled D6DMachineState = iota
	D6DBase
	D6DSearching
	D6DError
)

// D6DState carries the negotiated PMTU discovery parameters.
type D6DState struct {
	State        D6DMachineState
	BasePMTU     uint64
	MaxPMTU      uint64
	RaiseTimeout time.Duration
	ProbeTimeout time.Duration
}

// Conn is the state of one server connection. It is not safe for
// concurrent use: the driver delivers datagrams, timer fires and write
// requests one turn at a time.
type Conn struct {
	Settings *TransportSettings
	State    State

	Version    wire.Version
	HasVersion bool

	PeerAddress         netip.AddrPort
	OriginalPeerAddress netip.AddrPort
	ServerAddr          netip.AddrPort

	ClientConnectionID              connid.ConnectionID
	ServerConnectionID              connid.ConnectionID
	HasServerConnectionID           bool
	OriginalDestinationConnectionID connid.ConnectionID
	SelfConnectionIDs               []connid.Data
	PeerConnectionIDs               []connid.Data
	nextSelfConnectionIDSequence    uint64

	ConnIDAlgo         connid.Algo
	ConnIDRejector     connid.Rejector
	ServerConnIDParams *connid.ServerConnIDParams

	// MakeReadCodec builds the injected packet codec when the first
	// packet arrives.
	MakeReadCodec func() wire.ReadCodec
	ReadCodec     wire.ReadCodec

	HandshakeLayer handshake.Layer
	CryptoFactory  handshake.CryptoFactory
	CryptoState    *stream.CryptoState

	// Write side ciphers owned by the connection. Read side ciphers
	// live in the codec.
	InitialWriteCipher      wire.Aead
	InitialHeaderCipher     wire.HeaderCipher
	OneRttWriteCipher       wire.Aead
	OneRttWriteHeaderCipher wire.HeaderCipher

	AckStates    *ackhandler.AckStates
	LossState    *ackhandler.LossState
	Outstandings *ackhandler.OutstandingPackets
	RTTStats     *congestion.RTTStats

	CongestionController congestion.Controller
	StreamManager        *stream.Manager
	FlowControl          *flowcontrol.Connection
	PendingEvents        *PendingEvents

	MigrationState MigrationState

	// Undecryptable packets buffered until their keys arrive. The
	// buffer pointer disappearing means later packets are dropped.
	PendingZeroRttData    []ReadData
	HasZeroRttDataBuffer  bool
	PendingOneRttData     []ReadData
	HasOneRttDataBuffer   bool

	// Amplification guard: bytes the server may still send before the
	// peer address is validated.
	WritableBytesLimit    uint64
	HasWritableBytesLimit bool

	UdpSendPacketLen uint64

	// Peer negotiated parameters.
	PeerIdleTimeout             time.Duration
	PeerAckDelayExponent        uint64
	PeerMinAckDelay             time.Duration
	HasPeerMinAckDelay          bool
	PeerMaxUdpPayloadSize       uint64
	PeerActiveConnectionIdLimit uint64

	DatagramState DatagramState
	D6D           D6DState

	// Source address token bookkeeping for session resumption.
	// Addresses with a higher index are more recently used.
	TokenSourceAddresses []netip.Addr
	SourceTokenMatching  bool

	TransportParametersEncoded bool
	SentHandshakeDone          bool
	HandshakeConfirmed         bool
	UsedZeroRtt                bool

	// PeerConnectionError records the close frame the peer sent.
	PeerConnectionError *wire.TransportError

	PendingPathValidation *wire.PathChallengeFrame
	PathValidationLimiter *PathRateLimiter

	StatsCallback   TransportStatsCallback
	Observer        Observer
	DatagramHandler func(frame *wire.DatagramFrame)

	clock func() time.Time
}

// Config wires the external collaborators of a connection.
type Config struct {
	Settings            *TransportSettings
	ServerAddr          netip.AddrPort
	OriginalPeerAddress netip.AddrPort
	ConnIDAlgo          connid.Algo
	ConnIDRejector      connid.Rejector
	ServerConnIDParams  *connid.ServerConnIDParams
	MakeReadCodec       func() wire.ReadCodec
	HandshakeLayer      handshake.Layer
	CryptoFactory       handshake.CryptoFactory
	StatsCallback       TransportStatsCallback
	Observer            Observer
	DatagramHandler     func(frame *wire.DatagramFrame)
}

// NewConn creates the state of one accepted connection.
func NewConn(config Config) (*Conn, error) {
	if config.Settings == nil {
		config.Settings = DefaultTransportSettings()
	}
	if config.ConnIDAlgo == nil {
		return nil, fmt.Errorf("connection ID algorithm is not set")
	}
	if config.HandshakeLayer == nil {
		return nil, fmt.Errorf("handshake layer is not set")
	}
	if config.MakeReadCodec == nil {
		return nil, fmt.Errorf("read codec constructor is not set")
	}
	settings := config.Settings
	cc, err := congestion.NewController(settings.DefaultCongestionController, settings.MaxCwndBytes())
	if err != nil {
		return nil, fmt.Errorf("congestion.NewController() failed: %w", err)
	}
	manager := stream.NewManager(settings.StreamManagerConfig())
	manager.SetCongestionController(cc)
	c := &Conn{
		Settings:             settings,
		State:                StateOpen,
		OriginalPeerAddress:  config.OriginalPeerAddress,
		ServerAddr:           config.ServerAddr,
		ConnIDAlgo:           config.ConnIDAlgo,
		ConnIDRejector:       config.ConnIDRejector,
		ServerConnIDParams:   config.ServerConnIDParams,
		MakeReadCodec:        config.MakeReadCodec,
		HandshakeLayer:       config.HandshakeLayer,
		CryptoFactory:        config.CryptoFactory,
		CryptoState:          stream.NewCryptoState(),
		AckStates:            ackhandler.NewAckStates(),
		LossState:            &ackhandler.LossState{},
		Outstandings:         &ackhandler.OutstandingPackets{},
		RTTStats:             congestion.NewRTTStats(),
		CongestionController: cc,
		StreamManager:        manager,
		FlowControl:          flowcontrol.NewConnection(settings.AdvertisedInitialConnWindowSize),
		PendingEvents:        &PendingEvents{},
		HasZeroRttDataBuffer: true,
		HasOneRttDataBuffer:  true,
		UdpSendPacketLen:     wire.DefaultUDPSendPacketLen,
		PeerAckDelayExponent: wire.DefaultAckDelayExponent,
		StatsCallback:        config.StatsCallback,
		Observer:             config.Observer,
		DatagramHandler:      config.DatagramHandler,
		clock:                time.Now,
	}
	if config.StatsCallback != nil {
		manager.SetStats(config.StatsCallback)
	}
	return c, nil
}

// congestionControllerFromSettings builds the configured default
// congestion controller.
func congestionControllerFromSettings(s *TransportSettings) (congestion.Controller, error) {
	return congestion.NewController(s.DefaultCongestionController, s.MaxCwndBytes())
}

// SetClock overrides the time source, for tests.
func (c *Conn) SetClock(clock func() time.Time) {
	c.clock = clock
	c.StreamManager.SetClock(clock)
}

// createAndAddNewSelfConnID issues a fresh server connection ID with a
// sequence number and a stateless reset token. Candidates refused by
// the injected rejector are re-encoded a bounded number of times.
func (c *Conn) createAndAddNewSelfConnID() (*connid.Data, error) {
	if c.ConnIDAlgo == nil {
		return nil, fmt.Errorf("connection ID algorithm is not set")
	}
	if c.ServerConnIDParams == nil {
		return nil, fmt.Errorf("server connection ID params are not set")
	}
	if len(c.Settings.StatelessResetTokenSecret) == 0 {
		return nil, fmt.Errorf("stateless reset token secret is not set")
	}
	generator := connid.NewResetTokenGenerator(
		c.Settings.StatelessResetTokenSecret, c.ServerAddr.String())

	encoded, err := c.ConnIDAlgo.EncodeConnectionID(*c.ServerConnIDParams)
	encodedTimes := 1
	for err == nil && c.ConnIDRejector != nil &&
		c.ConnIDRejector.RejectConnectionID(encoded) &&
		encodedTimes < connIDEncodingRetryLimit {
		encoded, err = c.ConnIDAlgo.EncodeConnectionID(*c.ServerConnIDParams)
		encodedTimes++
	}
	if err != nil {
		return nil, fmt.Errorf("EncodeConnectionID() failed: %w", err)
	}
	if c.ConnIDRejector != nil && c.ConnIDRejector.RejectConnectionID(encoded) {
		log.Errorf("connection ID rejector refused all %d candidates", encodedTimes)
		return nil, fmt.Errorf("connection ID rejector refused all candidates")
	}
	data := connid.Data{
		ConnID:         encoded,
		SequenceNumber: c.nextSelfConnectionIDSequence,
		Token:          generator.Token(encoded),
	}
	c.nextSelfConnectionIDSequence++
	c.SelfConnectionIDs = append(c.SelfConnectionIDs, data)
	c.statsStatelessReset()
	return &data, nil
}

// TakePendingData drains the buffered packets of one protection type
// and retires the buffer. Later packets of that type are dropped.
func (c *Conn) TakePendingData(pt wire.ProtectionType) ([]ReadData, bool) {
	switch pt {
	case wire.ProtectionZeroRtt:
		if !c.HasZeroRttDataBuffer {
			return nil, false
		}
		data := c.PendingZeroRttData
		c.PendingZeroRttData = nil
		c.HasZeroRttDataBuffer = false
		return data, true
	case wire.ProtectionKeyPhaseZero:
		if !c.HasOneRttDataBuffer {
			return nil, false
		}
		data := c.PendingOneRttData
		c.PendingOneRttData = nil
		c.HasOneRttDataBuffer = false
		return data, true
	default:
		return nil, false
	}
}

func (c *Conn) String() string {
	if !c.HasServerConnectionID {
		return "Conn{}"
	}
	return fmt.Sprintf("Conn{scid=%v, peer=%v}", c.ServerConnectionID, c.PeerAddress)
}
