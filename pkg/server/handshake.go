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

	"github.com/FFhix10/mvfst/pkg/log"
	"github.com/FFhix10/mvfst/pkg/mathext"
	"github.com/FFhix10/mvfst/pkg/wire"
)

// updateHandshakeState pulls newly derived ciphers out of the
// handshake layer, negotiates the client transport parameters when the
// 1-RTT write key appears, clears the amplification limit when the
// 1-RTT read key appears, and queues HandshakeDone once.
func updateHandshakeState(c *Conn) error {
	layer := c.HandshakeLayer

	if zeroRttReadCipher := layer.ZeroRttReadCipher(); zeroRttReadCipher != nil {
		c.UsedZeroRtt = true
		if c.Observer != nil {
			c.Observer.AddTransportStateUpdate("derived 0-rtt read cipher")
		}
		c.ReadCodec.SetZeroRttReadCipher(zeroRttReadCipher)
	}
	if hc := layer.ZeroRttReadHeaderCipher(); hc != nil {
		c.ReadCodec.SetZeroRttHeaderCipher(hc)
	}
	if hc := layer.OneRttWriteHeaderCipher(); hc != nil {
		c.OneRttWriteHeaderCipher = hc
	}
	if hc := layer.OneRttReadHeaderCipher(); hc != nil {
		c.ReadCodec.SetOneRttHeaderCipher(hc)
	}

	if oneRttWriteCipher := layer.OneRttWriteCipher(); oneRttWriteCipher != nil {
		if c.Observer != nil {
			c.Observer.AddTransportStateUpdate("derived 1-rtt write cipher")
		}
		if c.OneRttWriteCipher != nil {
			return wire.NewTransportError(wire.CryptoError, "duplicate 1-rtt write cipher")
		}
		c.OneRttWriteCipher = oneRttWriteCipher

		// Transport parameters negotiate as soon as the 1-RTT write
		// keys exist.
		clientParams := layer.ClientTransportParams()
		if clientParams == nil {
			return wire.NewTransportError(wire.TransportParameterError, "no client transport params")
		}
		if err := processClientInitialParams(c, clientParams); err != nil {
			return err
		}
	}
	if oneRttReadCipher := layer.OneRttReadCipher(); oneRttReadCipher != nil {
		if c.Observer != nil {
			c.Observer.AddTransportStateUpdate("derived 1-rtt read cipher")
		}
		// The client finished message arrived, the address is proven.
		c.WritableBytesLimit = 0
		c.HasWritableBytesLimit = false
		c.ReadCodec.SetOneRttReadCipher(oneRttReadCipher)
	}
	if handshakeReadCipher := layer.HandshakeReadCipher(); handshakeReadCipher != nil {
		hc := layer.HandshakeReadHeaderCipher()
		if hc == nil {
			return wire.NewTransportError(wire.CryptoError, "handshake read cipher without header cipher")
		}
		c.ReadCodec.SetHandshakeReadCipher(handshakeReadCipher)
		c.ReadCodec.SetHandshakeHeaderCipher(hc)
	}
	if layer.Done() {
		if c.OneRttWriteCipher == nil {
			return wire.NewTransportError(wire.CryptoError, "handshake done without 1-rtt write cipher")
		}
		if !c.SentHandshakeDone {
			c.PendingEvents.QueueSimpleFrame(&wire.HandshakeDoneFrame{})
			c.SentHandshakeDone = true
		}
	}
	return nil
}

// processClientInitialParams validates and applies the peer's
// transport parameters.
func processClientInitialParams(c *Conn, clientParams *wire.ClientTransportParameters) error {
	intOrZero := func(id wire.ParameterID) (uint64, bool, error) {
		return clientParams.Integer(id)
	}

	if c.Version == wire.QUICv1 || c.Version == wire.QUICDraft {
		initialSourceConnID, ok := clientParams.ConnID(wire.ParamInitialSourceConnectionID)
		if !ok || !initialSourceConnID.Equal(c.ReadCodec.ClientConnectionID()) {
			return wire.NewTransportError(wire.TransportParameterError, "initial CID does not match")
		}
	}

	// Parameters a client must not send.
	forbidden := []struct {
		id   wire.ParameterID
		name string
	}{
		{wire.ParamPreferredAddress, "preferred address"},
		{wire.ParamOriginalDestinationConnectionID, "original destination connection ID"},
		{wire.ParamStatelessResetToken, "stateless reset token"},
		{wire.ParamRetrySourceConnectionID, "retry source connection ID"},
	}
	for _, p := range forbidden {
		v, present, _ := intOrZero(p.id)
		if present && v != 0 {
			return wire.NewTransportError(wire.TransportParameterError,
				fmt.Sprintf("%s is received by server", p.name))
		}
	}

	maxAckDelay, hasMaxAckDelay, err := intOrZero(wire.ParamMaxAckDelay)
	if err != nil {
		return wire.NewTransportError(wire.TransportParameterError, err.Error())
	}
	if hasMaxAckDelay && time.Duration(maxAckDelay)*time.Millisecond >= wire.MaxAckDelay {
		return wire.NewTransportError(wire.TransportParameterError, "max ack delay is greater than 2^14")
	}

	packetSize, hasPacketSize, _ := intOrZero(wire.ParamMaxUDPPayloadSize)
	if hasPacketSize && packetSize < wire.MinMaxUDPPayload {
		return wire.NewTransportError(wire.TransportParameterError,
			fmt.Sprintf("max packet size too small. received max_packetSize = %d", packetSize))
	}

	maxData, _, _ := intOrZero(wire.ParamInitialMaxData)
	maxStreamDataBidiLocal, _, _ := intOrZero(wire.ParamInitialMaxStreamDataBidiLocal)
	maxStreamDataBidiRemote, _, _ := intOrZero(wire.ParamInitialMaxStreamDataBidiRemote)
	maxStreamDataUni, _, _ := intOrZero(wire.ParamInitialMaxStreamDataUni)
	maxStreamsBidi, _, _ := intOrZero(wire.ParamInitialMaxStreamsBidi)
	maxStreamsUni, _, _ := intOrZero(wire.ParamInitialMaxStreamsUni)
	idleTimeout, _, _ := intOrZero(wire.ParamMaxIdleTimeout)

	if log.IsLevelEnabled(log.TraceLevel) {
		log.Tracef("%v client advertised flow control conn=%d bidiLocal=%d bidiRemote=%d uni=%d",
			c, maxData, maxStreamDataBidiLocal, maxStreamDataBidiRemote, maxStreamDataUni)
	}
	c.FlowControl.SetPeerAdvertisedMaxOffset(maxData)
	c.StreamManager.SetPeerAdvertisedStreamWindows(maxStreamDataBidiLocal, maxStreamDataBidiRemote, maxStreamDataUni)
	if err := c.StreamManager.SetMaxLocalBidirectionalStreams(maxStreamsBidi, false); err != nil {
		return err
	}
	if err := c.StreamManager.SetMaxLocalUnidirectionalStreams(maxStreamsUni, false); err != nil {
		return err
	}
	c.PeerIdleTimeout = mathext.Clamp(time.Duration(idleTimeout)*time.Millisecond, 0, wire.MaxIdleTimeout)

	ackDelayExponent, hasAckDelayExponent, _ := intOrZero(wire.ParamAckDelayExponent)
	if hasAckDelayExponent && ackDelayExponent > wire.MaxAckDelayExponent {
		return wire.NewTransportError(wire.TransportParameterError, "ack_delay_exponent too large")
	}
	if hasAckDelayExponent {
		c.PeerAckDelayExponent = ackDelayExponent
	} else {
		c.PeerAckDelayExponent = wire.DefaultAckDelayExponent
	}

	if minAckDelay, has, _ := intOrZero(wire.ParamMinAckDelay); has {
		c.PeerMinAckDelay = time.Duration(minAckDelay) * time.Microsecond
		c.HasPeerMinAckDelay = true
	}

	if maxDatagramFrameSize, has, _ := intOrZero(wire.ParamMaxDatagramFrameSize); has {
		if maxDatagramFrameSize > 0 && maxDatagramFrameSize <= wire.MaxDatagramPacketOverhead {
			return wire.NewTransportError(wire.TransportParameterError, "max_datagram_frame_size too small")
		}
		c.DatagramState.MaxWriteFrameSize = maxDatagramFrameSize
	}

	// The peer's limit is an upper bound for PMTU probing.
	maxUdpPayloadSize := wire.DefaultMaxUDPPayload
	if hasPacketSize {
		maxUdpPayloadSize = mathext.Min(packetSize, maxUdpPayloadSize)
		c.PeerMaxUdpPayloadSize = maxUdpPayloadSize
		if c.Settings.CanIgnorePathMTU {
			if packetSize > wire.DefaultMaxUDPPayload {
				// A good peer should never set an oversized limit, so
				// fall back to the default.
				c.UdpSendPacketLen = wire.DefaultUDPSendPacketLen
			} else {
				c.UdpSendPacketLen = maxUdpPayloadSize
			}
		}
	}

	if limit, has, _ := intOrZero(wire.ParamActiveConnectionIDLimit); has {
		c.PeerActiveConnectionIdLimit = limit
	} else {
		c.PeerActiveConnectionIdLimit = wire.DefaultActiveConnectionIDLimit
	}

	if c.Settings.D6DConfig.Enabled {
		applyD6DParams(c, clientParams, maxUdpPayloadSize)
	}
	return nil
}

// applyD6DParams sanity checks and applies the PMTU discovery
// parameters. The base PMTU doubles as the client's opt-in: without it
// the raise and probe timeouts are irrelevant.
func applyD6DParams(c *Conn, clientParams *wire.ClientTransportParameters, maxUdpPayloadSize uint64) {
	basePMTU, hasBase, _ := clientParams.Integer(wire.ParamD6DBasePMTU)
	if hasBase {
		if basePMTU >= wire.MinMaxUDPPayload && basePMTU <= wire.DefaultMaxUDPPayload {
			// Probes below udpSendPacketLen would be useless, so the
			// base starts no lower.
			c.D6D.BasePMTU = mathext.Max(basePMTU, c.UdpSendPacketLen)
			c.D6D.MaxPMTU = maxUdpPayloadSize
			c.D6D.State = D6DBase
		} else {
			log.Errorf("client d6dBasePMTU fails sanity check: %d", basePMTU)
			return
		}
	}
	if raiseTimeout, has, _ := clientParams.Integer(wire.ParamD6DRaiseTimeout); has {
		if time.Duration(raiseTimeout)*time.Second >= wire.MinD6DRaiseTimeout {
			c.D6D.RaiseTimeout = time.Duration(raiseTimeout) * time.Second
		} else {
			log.Errorf("client d6dRaiseTimeout fails sanity check: %d", raiseTimeout)
		}
	}
	if probeTimeout, has, _ := clientParams.Integer(wire.ParamD6DProbeTimeout); has {
		if time.Duration(probeTimeout)*time.Second >= wire.MinD6DProbeTimeout {
			c.D6D.ProbeTimeout = time.Duration(probeTimeout) * time.Second
		} else {
			log.Errorf("client d6dProbeTimeout fails sanity check: %d", probeTimeout)
		}
	}
}

// validateAndUpdateSourceToken matches the connection's peer address
// against the addresses carried in a resumption token, reorders the
// list so recently seen addresses are favored, and decides whether
// 0-RTT is acceptable. The reordered list is persisted on the
// connection for the next session ticket.
func validateAndUpdateSourceToken(c *Conn, sourceAddresses []netip.Addr) bool {
	foundMatch := false
	peerIP := c.PeerAddress.Addr()
	for i := len(sourceAddresses) - 1; i >= 0; i-- {
		if peerIP == sourceAddresses[i] {
			foundMatch = true
			// Move the matched address to the end of the list to
			// increase its favorability.
			sourceAddresses = append(sourceAddresses[:i], sourceAddresses[i+1:]...)
			sourceAddresses = append(sourceAddresses, peerIP)
		}
	}
	c.SourceTokenMatching = foundMatch
	acceptZeroRtt := foundMatch &&
		c.Settings.ZeroRttSourceTokenMatchingPolicy != AlwaysReject

	if !foundMatch {
		// Add the peer address to the token for the next resumption.
		if len(sourceAddresses) >= maxNumTokenSourceAddresses {
			sourceAddresses = sourceAddresses[1:]
		}
		sourceAddresses = append(sourceAddresses, peerIP)

		switch c.Settings.ZeroRttSourceTokenMatchingPolicy {
		case AlwaysReject, RejectIfNoExactMatch:
			acceptZeroRtt = false
		case LimitIfNoExactMatch:
			acceptZeroRtt = true
			c.WritableBytesLimit = c.Settings.LimitedCwndInMss * c.UdpSendPacketLen
			c.HasWritableBytesLimit = true
		}
	}
	c.TokenSourceAddresses = sourceAddresses
	return acceptZeroRtt
}

// updateWritableByteLimitOnRecvPacket raises the amplification budget
// when a packet arrives, since the peer could achieve the same by
// opening a new connection.
func updateWritableByteLimitOnRecvPacket(c *Conn) {
	if c.HasWritableBytesLimit {
		c.WritableBytesLimit += c.Settings.LimitedCwndInMss * c.UdpSendPacketLen
	}
}

// updateTransportParamsFromTicket refreshes the advertised parameters
// from a resumed session's ticket, before the handshake runs.
func updateTransportParamsFromTicket(
	c *Conn,
	idleTimeout time.Duration,
	maxRecvPacketSize uint64,
	initialMaxData uint64,
	initialMaxStreamDataBidiLocal uint64,
	initialMaxStreamDataBidiRemote uint64,
	initialMaxStreamDataUni uint64,
	initialMaxStreamsBidi uint64,
	initialMaxStreamsUni uint64,
) {
	c.Settings.IdleTimeout = idleTimeout
	c.Settings.MaxRecvPacketSize = maxRecvPacketSize
	c.Settings.AdvertisedInitialConnWindowSize = initialMaxData
	c.Settings.AdvertisedInitialBidiLocalStreamWindowSize = initialMaxStreamDataBidiLocal
	c.Settings.AdvertisedInitialBidiRemoteStreamWindowSize = initialMaxStreamDataBidiRemote
	c.Settings.AdvertisedInitialUniStreamWindowSize = initialMaxStreamDataUni
	c.Settings.AdvertisedInitialMaxStreamsBidi = initialMaxStreamsBidi
	c.Settings.AdvertisedInitialMaxStreamsUni = initialMaxStreamsUni
}

// setSupportedExtensionTransportParameters collects the extension
// parameters this server advertises.
func setSupportedExtensionTransportParameters(c *Conn) []wire.TransportParameter {
	var custom []wire.TransportParameter
	if c.Settings.DatagramConfig.Enabled {
		c.DatagramState.MaxReadFrameSize = c.Settings.DatagramConfig.MaxReadFrameSize
		custom = append(custom, wire.IntegerParameter(
			wire.ParamMaxDatagramFrameSize, c.DatagramState.MaxReadFrameSize))
	}
	return custom
}

// setExperimentalSettings is an extension point for experimental
// version gated behavior.
func setExperimentalSettings(c *Conn) {
}

// confirmHandshake runs when the peer acknowledged HandshakeDone.
// Handshake level state is no longer needed.
func confirmHandshake(c *Conn) {
	if c.HandshakeConfirmed {
		return
	}
	c.HandshakeConfirmed = true
	c.CryptoState.HandshakeStream.ImplicitAckAll()
	c.LossState.ClearLossTime(wire.PacketNumberSpaceHandshake)
	if c.Observer != nil {
		c.Observer.AddTransportStateUpdate("handshake confirmed")
	}
}
