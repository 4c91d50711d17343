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
	"net/netip"
	"testing"
	"time"

	"github.com/FFhix10/mvfst/pkg/cipher"
	"github.com/FFhix10/mvfst/pkg/connid"
	"github.com/FFhix10/mvfst/pkg/wire"
)

// fakeAead is a stand in for a negotiated packet protection cipher.
type fakeAead struct{ name string }

func (a *fakeAead) Seal(dst, nonce, plaintext, additionalData []byte) []byte { return plaintext }
func (a *fakeAead) Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error) {
	return ciphertext, nil
}
func (a *fakeAead) Overhead() int { return 16 }

type fakeHeaderCipher struct{}

func (h *fakeHeaderCipher) Mask(sample []byte) ([]byte, error) { return make([]byte, 5), nil }

// codecStep is one scripted ParsePacket outcome.
type codecStep struct {
	result   wire.CodecResult
	consumed int
}

// fakeCodec replays scripted parse results and records cipher installs.
type fakeCodec struct {
	steps []codecStep

	clientConnID connid.ConnectionID
	serverConnID connid.ConnectionID
	params       wire.CodecParameters

	initialReadCipher   wire.Aead
	initialSet          bool
	handshakeReadCipher wire.Aead
	zeroRttReadCipher   wire.Aead
	oneRttReadCipher    wire.Aead
	headerCiphers       int
}

var _ wire.ReadCodec = &fakeCodec{}

func (f *fakeCodec) push(result wire.CodecResult, consumed int) {
	f.steps = append(f.steps, codecStep{result: result, consumed: consumed})
}

func (f *fakeCodec) ParsePacket(data []byte, largestReceived wire.LargestReceivedQuery) (wire.CodecResult, int) {
	if len(f.steps) == 0 {
		return wire.NewNothingResult(), len(data)
	}
	step := f.steps[0]
	f.steps = f.steps[1:]
	consumed := step.consumed
	if consumed <= 0 || consumed > len(data) {
		consumed = len(data)
	}
	return step.result, consumed
}

func (f *fakeCodec) SetInitialReadCipher(aead wire.Aead) {
	f.initialReadCipher = aead
	f.initialSet = true
}
func (f *fakeCodec) SetInitialHeaderCipher(hc wire.HeaderCipher)   { f.headerCiphers++ }
func (f *fakeCodec) SetHandshakeReadCipher(aead wire.Aead)         { f.handshakeReadCipher = aead }
func (f *fakeCodec) SetHandshakeHeaderCipher(hc wire.HeaderCipher) { f.headerCiphers++ }
func (f *fakeCodec) SetZeroRttReadCipher(aead wire.Aead)           { f.zeroRttReadCipher = aead }
func (f *fakeCodec) SetZeroRttHeaderCipher(hc wire.HeaderCipher)   { f.headerCiphers++ }
func (f *fakeCodec) SetOneRttReadCipher(aead wire.Aead)            { f.oneRttReadCipher = aead }
func (f *fakeCodec) SetOneRttHeaderCipher(hc wire.HeaderCipher)    { f.headerCiphers++ }

func (f *fakeCodec) SetClientConnectionID(id connid.ConnectionID) { f.clientConnID = id }
func (f *fakeCodec) SetServerConnectionID(id connid.ConnectionID) { f.serverConnID = id }
func (f *fakeCodec) ClientConnectionID() connid.ConnectionID      { return f.clientConnID }

func (f *fakeCodec) SetCodecParameters(params wire.CodecParameters) { f.params = params }

// fakeHandshakeLayer releases scripted ciphers once, like the real
// engine.
type fakeHandshakeLayer struct {
	acceptedParams *wire.ServerTransportParameters
	handshakeData  [][]byte
	levels         []wire.EncryptionLevel

	pendingZeroRttRead   wire.Aead
	pendingHandshakeRead wire.Aead
	pendingOneRttRead    wire.Aead
	pendingOneRttWrite   wire.Aead
	clientParams         *wire.ClientTransportParameters
	done                 bool
}

func (f *fakeHandshakeLayer) Accept(params *wire.ServerTransportParameters) {
	f.acceptedParams = params
}

func (f *fakeHandshakeLayer) DoHandshake(data []byte, level wire.EncryptionLevel) error {
	f.handshakeData = append(f.handshakeData, data)
	f.levels = append(f.levels, level)
	return nil
}

func takeAead(slot *wire.Aead) wire.Aead {
	aead := *slot
	*slot = nil
	return aead
}

func (f *fakeHandshakeLayer) ZeroRttReadCipher() wire.Aead   { return takeAead(&f.pendingZeroRttRead) }
func (f *fakeHandshakeLayer) HandshakeReadCipher() wire.Aead { return takeAead(&f.pendingHandshakeRead) }
func (f *fakeHandshakeLayer) OneRttReadCipher() wire.Aead    { return takeAead(&f.pendingOneRttRead) }
func (f *fakeHandshakeLayer) OneRttWriteCipher() wire.Aead   { return takeAead(&f.pendingOneRttWrite) }

func (f *fakeHandshakeLayer) ZeroRttReadHeaderCipher() wire.HeaderCipher {
	return &fakeHeaderCipher{}
}
func (f *fakeHandshakeLayer) HandshakeReadHeaderCipher() wire.HeaderCipher {
	return &fakeHeaderCipher{}
}
func (f *fakeHandshakeLayer) OneRttReadHeaderCipher() wire.HeaderCipher {
	return &fakeHeaderCipher{}
}
func (f *fakeHandshakeLayer) OneRttWriteHeaderCipher() wire.HeaderCipher {
	return &fakeHeaderCipher{}
}

func (f *fakeHandshakeLayer) ClientTransportParams() *wire.ClientTransportParameters {
	return f.clientParams
}

func (f *fakeHandshakeLayer) Done() bool { return f.done }

// recordingStats counts stats callback invocations.
type recordingStats struct {
	dropped        map[wire.DropReason]int
	processed      int
	outOfOrder     int
	statelessReset int
	newStreams     int
	closedStreams  int
}

func newRecordingStats() *recordingStats {
	return &recordingStats{dropped: make(map[wire.DropReason]int)}
}

func (s *recordingStats) OnPacketDropped(reason wire.DropReason) { s.dropped[reason]++ }
func (s *recordingStats) OnPacketProcessed()                     { s.processed++ }
func (s *recordingStats) OnOutOfOrderPacketReceived()            { s.outOfOrder++ }
func (s *recordingStats) OnStatelessReset()                      { s.statelessReset++ }
func (s *recordingStats) OnNewQuicStream()                       { s.newStreams++ }
func (s *recordingStats) OnQuicStreamClosed()                    { s.closedStreams++ }

var (
	clientAddr  = netip.MustParseAddrPort("192.0.2.10:5000")
	rebindAddr  = netip.MustParseAddrPort("192.0.2.200:5000")
	fartherAddr = netip.MustParseAddrPort("198.51.100.7:6000")
	serverAddr  = netip.MustParseAddrPort("203.0.113.1:443")
)

var (
	testClientCID = connid.ConnectionID{0x8a, 0x8b, 0x8c, 0x8d, 0x8e, 0x8f, 0x90, 0x91}
	testDstCID    = connid.ConnectionID{0xc0, 0xc1, 0xc2, 0xc3, 0xc4, 0xc5, 0xc6, 0xc7}
)

type testEnv struct {
	conn  *Conn
	codec *fakeCodec
	layer *fakeHandshakeLayer
	stats *recordingStats
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	codec := &fakeCodec{}
	layer := &fakeHandshakeLayer{}
	stats := newRecordingStats()
	settings := DefaultTransportSettings()
	settings.StatelessResetTokenSecret = []byte("0123456789abcdef0123456789abcdef")
	conn, err := NewConn(Config{
		Settings:            settings,
		ServerAddr:          serverAddr,
		OriginalPeerAddress: clientAddr,
		ConnIDAlgo:          &connid.RandomAlgo{},
		ServerConnIDParams:  &connid.ServerConnIDParams{HostID: 1, Version: 1},
		MakeReadCodec:       func() wire.ReadCodec { return codec },
		HandshakeLayer:      layer,
		CryptoFactory:       cipher.NewCodecFactory(),
		StatsCallback:       stats,
	})
	if err != nil {
		t.Fatalf("NewConn() failed: %v", err)
	}
	return &testEnv{conn: conn, codec: codec, layer: layer, stats: stats}
}

// initialDatagram builds the invariant long header prefix of a client
// initial packet.
func initialDatagram(version wire.Version, dst, src connid.ConnectionID, payloadLen int) []byte {
	b := []byte{0xc0}
	b = append(b, byte(version>>24), byte(version>>16), byte(version>>8), byte(version))
	b = append(b, byte(len(dst)))
	b = append(b, dst...)
	b = append(b, byte(len(src)))
	b = append(b, src...)
	return append(b, make([]byte, payloadLen)...)
}

func initialCryptoPacket(packetNum wire.PacketNum, offset uint64, cryptoLen int) *wire.RegularPacket {
	return &wire.RegularPacket{
		Header: &wire.LongHeader{
			Type:       wire.LongHeaderInitial,
			SrcConnID:  testClientCID,
			DstConnID:  testDstCID,
			Version:    wire.QUICv1,
			PacketNumb: packetNum,
		},
		Frames: []wire.Frame{
			&wire.CryptoFrame{Offset: offset, Data: make([]byte, cryptoLen)},
		},
	}
}

func appDataPacket(packetNum wire.PacketNum, serverCID connid.ConnectionID, frames ...wire.Frame) *wire.RegularPacket {
	return &wire.RegularPacket{
		Header: &wire.ShortHeader{
			ConnID:     serverCID,
			PacketNumb: packetNum,
		},
		Frames: frames,
	}
}

// establishedEnv returns an env that already processed a valid client
// initial packet carrying crypto data.
func establishedEnv(t *testing.T) *testEnv {
	t.Helper()
	env := newTestEnv(t)
	env.codec.push(wire.NewRegularResult(initialCryptoPacket(0, 0, 512)), 0)
	rd := &ReadData{
		Peer:        clientAddr,
		Data:        initialDatagram(wire.QUICv1, testDstCID, testClientCID, 512),
		ReceiveTime: time.Now(),
	}
	if err := OnReadData(env.conn, rd); err != nil {
		t.Fatalf("OnReadData(initial) failed: %v", err)
	}
	return env
}
