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

	"github.com/FFhix10/mvfst/pkg/ackhandler"
	"github.com/FFhix10/mvfst/pkg/connid"
	"github.com/FFhix10/mvfst/pkg/log"
	"github.com/FFhix10/mvfst/pkg/metrics"
	"github.com/FFhix10/mvfst/pkg/wire"
)

// OnReadData ingests one UDP payload. A transport error return means
// the connection must close: the state is already moved to Closed and
// the driver emits the CONNECTION_CLOSE frame.
func OnReadData(c *Conn, rd *ReadData) error {
	var err error
	switch c.State {
	case StateOpen:
		err = onReadDataFromOpen(c, rd)
	case StateClosed:
		err = onReadDataFromClosed(c, rd)
	}
	if err != nil {
		OnClose(c)
	}
	return err
}

// OnClose transitions the connection to Closed. Closed absorbs
// everything except connection close frames.
func OnClose(c *Conn) {
	switch c.State {
	case StateOpen:
		c.State = StateClosed
	case StateClosed:
	}
}

// bootstrapConnection runs on the first datagram of a connection:
// parse the invariant header, issue a server connection ID, derive the
// initial ciphers and hand the handshake layer our transport
// parameters. It returns false when the datagram must be dropped.
func bootstrapConnection(c *Conn, rd *ReadData) (bool, error) {
	parsedHeader, err := wire.ParseLongHeaderInvariant(rd.Data)
	if err != nil {
		log.Debugf("could not parse initial packet header: %v", err)
		c.dropPacket(0, wire.DropReasonParseError)
		return false, nil
	}
	version := parsedHeader.Version
	if version == wire.VersionNegotiation {
		// A server never consumes version negotiation packets.
		c.dropPacket(0, wire.DropReasonInvalidPacket)
		return false, nil
	}
	clientConnectionID := parsedHeader.SrcConnID
	initialDestinationConnectionID := parsedHeader.DstConnID
	if initialDestinationConnectionID.Len() < connid.MinServerConnectionIDSize {
		log.Debugf("initial connection ID too small: %d bytes", initialDestinationConnectionID.Len())
		c.dropPacket(0, wire.DropReasonInitialConnIDSmall)
		return false, nil
	}

	newConnIDData, err := c.createAndAddNewSelfConnID()
	if err != nil {
		return false, fmt.Errorf("createAndAddNewSelfConnID() failed: %w", err)
	}
	c.ServerConnectionID = newConnIDData.ConnID
	c.HasServerConnectionID = true
	c.ClientConnectionID = clientConnectionID
	c.OriginalDestinationConnectionID = initialDestinationConnectionID

	customParams := setSupportedExtensionTransportParameters(c)
	c.HandshakeLayer.Accept(&wire.ServerTransportParameters{
		Version:                         version,
		InitialMaxData:                  c.Settings.AdvertisedInitialConnWindowSize,
		InitialMaxStreamDataBidiLocal:   c.Settings.AdvertisedInitialBidiLocalStreamWindowSize,
		InitialMaxStreamDataBidiRemote:  c.Settings.AdvertisedInitialBidiRemoteStreamWindowSize,
		InitialMaxStreamDataUni:         c.Settings.AdvertisedInitialUniStreamWindowSize,
		InitialMaxStreamsBidi:           c.Settings.AdvertisedInitialMaxStreamsBidi,
		InitialMaxStreamsUni:            c.Settings.AdvertisedInitialMaxStreamsUni,
		IdleTimeout:                     c.Settings.IdleTimeout,
		AckDelayExponent:                c.Settings.AckDelayExponent,
		MaxRecvPacketSize:               c.Settings.MaxRecvPacketSize,
		StatelessResetToken:             newConnIDData.Token,
		InitialSourceConnectionID:       c.ServerConnectionID,
		OriginalDestinationConnectionID: initialDestinationConnectionID,
		CustomParameters:                customParams,
	})
	c.TransportParametersEncoded = true

	initialReadCipher, err := c.CryptoFactory.ClientInitialCipher(initialDestinationConnectionID, version)
	if err != nil {
		return false, fmt.Errorf("ClientInitialCipher() failed: %w", err)
	}
	initialReadHeaderCipher, err := c.CryptoFactory.ClientInitialHeaderCipher(initialDestinationConnectionID, version)
	if err != nil {
		return false, fmt.Errorf("ClientInitialHeaderCipher() failed: %w", err)
	}
	c.InitialWriteCipher, err = c.CryptoFactory.ServerInitialCipher(initialDestinationConnectionID, version)
	if err != nil {
		return false, fmt.Errorf("ServerInitialCipher() failed: %w", err)
	}
	c.InitialHeaderCipher, err = c.CryptoFactory.ServerInitialHeaderCipher(initialDestinationConnectionID, version)
	if err != nil {
		return false, fmt.Errorf("ServerInitialHeaderCipher() failed: %w", err)
	}

	c.ReadCodec = c.MakeReadCodec()
	c.ReadCodec.SetInitialReadCipher(initialReadCipher)
	c.ReadCodec.SetInitialHeaderCipher(initialReadHeaderCipher)
	c.ReadCodec.SetClientConnectionID(clientConnectionID)
	c.ReadCodec.SetServerConnectionID(c.ServerConnectionID)
	c.ReadCodec.SetCodecParameters(wire.CodecParameters{
		AckDelayExponent: c.PeerAckDelayExponent,
		Version:          version,
	})
	if c.Observer != nil {
		c.Observer.SetScid(c.ServerConnectionID)
		c.Observer.SetDcid(initialDestinationConnectionID)
	}
	c.PeerAddress = c.OriginalPeerAddress
	return true, nil
}

// handleCipherUnavailable buffers 0-RTT and 1-RTT packets that arrived
// before their read keys, within the configured budget.
func handleCipherUnavailable(c *Conn, cu *wire.CipherUnavailable, packetSize int, rd *ReadData) {
	if len(cu.Packet) == 0 {
		log.Debugf("%v drop because no data", c)
		c.observerPacketDrop(packetSize, wire.DropReasonNoData)
		return
	}
	if cu.ProtectionType != wire.ProtectionZeroRtt && cu.ProtectionType != wire.ProtectionKeyPhaseZero {
		log.Debugf("%v drop because unexpected protection level", c)
		c.observerPacketDrop(packetSize, wire.DropReasonUnexpectedProtectionLevel)
		return
	}
	combinedSize := len(c.PendingZeroRttData) + len(c.PendingOneRttData)
	if combinedSize >= c.Settings.MaxPacketsToBuffer {
		log.Debugf("%v drop because max buffered", c)
		c.observerPacketDrop(packetSize, wire.DropReasonMaxBuffered)
		return
	}
	bufferAvailable := c.HasZeroRttDataBuffer
	if cu.ProtectionType == wire.ProtectionKeyPhaseZero {
		bufferAvailable = c.HasOneRttDataBuffer
	}
	if !bufferAvailable {
		log.Debugf("%v drop because %v buffer no longer available", c, cu.ProtectionType)
		c.observerPacketDrop(packetSize, wire.DropReasonBufferUnavailable)
		return
	}
	pending := ReadData{
		Peer:        rd.Peer,
		Data:        cu.Packet,
		ReceiveTime: rd.ReceiveTime,
	}
	if cu.ProtectionType == wire.ProtectionZeroRtt {
		c.PendingZeroRttData = append(c.PendingZeroRttData, pending)
	} else {
		c.PendingOneRttData = append(c.PendingOneRttData, pending)
	}
	metrics.PacketsBuffered.Add(1)
	if c.Observer != nil {
		c.Observer.AddPacketBuffered(cu.ProtectionType, packetSize)
	}
	if log.IsLevelEnabled(log.TraceLevel) {
		log.Tracef("%v buffered a %v packet waiting for keys", c, cu.ProtectionType)
	}
}

func onReadDataFromOpen(c *Conn, rd *ReadData) error {
	if len(rd.Data) == 0 {
		return nil
	}
	if c.ReadCodec == nil {
		// First packet from the peer.
		ok, err := bootstrapConnection(c, rd)
		if err != nil || !ok {
			return err
		}
	}

	udpData := rd.Data
	for processedPackets := 0; len(udpData) > 0 && processedPackets < wire.MaxNumCoalescedPackets; processedPackets++ {
		parsedPacket, consumed := c.ReadCodec.ParsePacket(udpData, c.AckStates)
		if consumed <= 0 || consumed > len(udpData) {
			c.dropPacket(len(udpData), wire.DropReasonParseError)
			return nil
		}
		packetSize := consumed
		udpData = udpData[consumed:]

		switch parsedPacket.Type() {
		case wire.CodecResultCipherUnavailable:
			handleCipherUnavailable(c, parsedPacket.CipherUnavailable(), packetSize, rd)
		case wire.CodecResultRetry:
			log.Debugf("%v drop because the server is not supposed to receive a retry", c)
			c.observerPacketDrop(packetSize, wire.DropReasonRetry)
		case wire.CodecResultStatelessReset:
			log.Debugf("%v drop because reset", c)
			c.observerPacketDrop(packetSize, wire.DropReasonReset)
		case wire.CodecResultNothing:
			log.Debugf("%v drop cipher unavailable, no data", c)
			c.observerPacketDrop(packetSize, wire.DropReasonCipherUnavailable)
		case wire.CodecResultRegular:
		}

		regularPacket := parsedPacket.RegularPacket()
		if regularPacket == nil {
			// Drop reasons were recorded in the switch above; count
			// the failed parse and move to the next coalesced packet.
			c.statsPacketDropped(wire.DropReasonParseError)
			continue
		}
		if err := processRegularPacket(c, rd, regularPacket, packetSize); err != nil {
			return err
		}
	}
	if len(udpData) > 0 {
		log.Debugf("%v leaving %d bytes unprocessed after attempting to process %d packets",
			c, len(udpData), wire.MaxNumCoalescedPackets)
	}
	return nil
}

func processRegularPacket(c *Conn, rd *ReadData, regularPacket *wire.RegularPacket, packetSize int) error {
	if len(regularPacket.Frames) == 0 {
		// A parseable header with no frames is a protocol violation.
		c.dropPacket(packetSize, wire.DropReasonProtocolViolation)
		return wire.NewTransportError(wire.ProtocolViolation, "packet has no frames")
	}

	protectionLevel := regularPacket.Header.ProtectionType()
	encryptionLevel := protectionLevel.EncryptionLevel()
	packetNum := regularPacket.Header.PacketNum()
	packetNumberSpace := regularPacket.Header.PacketNumberSpace()

	isProtectedPacket := protectionLevel == wire.ProtectionZeroRtt ||
		protectionLevel == wire.ProtectionKeyPhaseZero ||
		protectionLevel == wire.ProtectionKeyPhaseOne

	if !isProtectedPacket {
		// Only a small set of frames may ride in initial and
		// handshake packets.
		for _, f := range regularPacket.Frames {
			switch f.(type) {
			case *wire.PaddingFrame, *wire.AckFrame, *wire.ConnectionCloseFrame, *wire.CryptoFrame, *wire.PingFrame:
			default:
				c.dropPacket(packetSize, wire.DropReasonProtocolViolation)
				return wire.NewTransportError(wire.ProtocolViolation, "invalid frame")
			}
		}
	}

	if c.Observer != nil {
		c.Observer.AddPacket(regularPacket, packetSize)
	}

	// The higher layer already validated that the version is supported.
	if !c.HasVersion {
		longHeader, ok := regularPacket.Header.(*wire.LongHeader)
		if !ok {
			return wire.NewTransportError(wire.ProtocolViolation, "invalid packet type")
		}
		c.Version = longHeader.Version
		c.HasVersion = true
		setExperimentalSettings(c)
	}

	if c.PeerAddress != rd.Peer {
		if encryptionLevel != wire.EncryptionLevelAppData {
			c.dropPacket(packetSize, wire.DropReasonPeerAddressChange)
			return wire.NewTransportError(wire.InvalidMigration, "migration not allowed during handshake")
		}
		if c.Settings.DisableMigration {
			c.dropPacket(packetSize, wire.DropReasonPeerAddressChange)
			return wire.NewTransportError(wire.InvalidMigration, "migration disabled")
		}
	}

	ackState := c.AckStates.AckState(packetNumberSpace)
	outOfOrder := ackState.UpdateLargestReceivedPacketNum(packetNum, rd.ReceiveTime)
	if outOfOrder {
		c.statsOutOfOrder()
	}

	pktHasRetransmittableData := false
	pktHasCryptoData := false
	isNonProbingPacket := false
	handshakeConfirmedThisLoop := false

	for _, quicFrame := range regularPacket.Frames {
		switch frame := quicFrame.(type) {
		case *wire.AckFrame:
			if log.IsLevelEnabled(log.TraceLevel) {
				log.Tracef("%v received ack frame packet=%d", c, packetNum)
			}
			isNonProbingPacket = true
			visitor := func(packet *ackhandler.OutstandingPacket, packetFrame wire.Frame, ack *wire.AckFrame) {
				switch sent := packetFrame.(type) {
				case *wire.StreamFrame:
					ackedStream, _ := c.StreamManager.GetStream(sent.StreamID)
					if ackedStream != nil {
						ackedStream.OnStreamFrameAcked(sent)
						c.StreamManager.UpdateWritableStreams(ackedStream)
					}
				case *wire.CryptoFrame:
					cryptoStream := c.CryptoState.StreamFor(encryptionLevel)
					cryptoStream.ProcessCryptoStreamAck(sent.Offset, len(sent.Data))
				case *wire.RstStreamFrame:
					rstStream, _ := c.StreamManager.GetStream(sent.StreamID)
					if rstStream != nil {
						rstStream.OnRstStreamAcked()
					}
				case *wire.AckFrame:
					// The peer confirmed our ack; the received history
					// below its largest acked is no longer needed.
					ackState.Acks.DeleteBelow(sent.LargestAcked())
				case *wire.PingFrame:
					if !packet.IsD6DProbe {
						c.PendingEvents.CancelPingTimeout = true
					}
				case *wire.HandshakeDoneFrame:
					// Confirm outside of the frame loop to avoid
					// re-entrancy.
					handshakeConfirmedThisLoop = true
				}
			}
			ackhandler.ProcessAckFrame(c.Outstandings, c.RTTStats, c.CongestionController,
				packetNumberSpace, frame, visitor, rd.ReceiveTime)
			if c.Observer != nil && c.RTTStats.HasMeasurement() {
				c.Observer.AddMetricUpdate(c.RTTStats.LatestRTT(), c.RTTStats.MinRTT(),
					c.RTTStats.SmoothedRTT(), frame.AckDelay)
			}

		case *wire.RstStreamFrame:
			pktHasRetransmittableData = true
			isNonProbingPacket = true
			st, err := c.StreamManager.GetStream(frame.StreamID)
			if err != nil {
				return err
			}
			if st == nil {
				break
			}
			newBytes, err := st.ReceiveRstStream(frame)
			if err != nil {
				return err
			}
			if err := c.FlowControl.OnStreamBytesReceived(newBytes); err != nil {
				return err
			}
			c.StreamManager.UpdateReadableStreams(st)

		case *wire.CryptoFrame:
			pktHasRetransmittableData = true
			pktHasCryptoData = true
			isNonProbingPacket = true
			if log.IsLevelEnabled(log.TraceLevel) {
				log.Tracef("%v received crypto data offset=%d len=%d level=%v",
					c, frame.Offset, len(frame.Data), encryptionLevel)
			}
			c.CryptoState.StreamFor(encryptionLevel).AppendToReadBuffer(frame.Offset, frame.Data)

		case *wire.StreamFrame:
			pktHasRetransmittableData = true
			isNonProbingPacket = true
			st, err := c.StreamManager.GetStream(frame.StreamID)
			if err != nil {
				return err
			}
			// Data for closed streams whose state is gone is ignored.
			if st == nil {
				break
			}
			newBytes, err := st.ReceiveStreamFrame(frame)
			if err != nil {
				return err
			}
			if err := c.FlowControl.OnStreamBytesReceived(newBytes); err != nil {
				return err
			}
			c.FlowControl.AddStreamBufferBytes(newBytes)
			c.StreamManager.UpdateReadableStreams(st)

		case *wire.MaxDataFrame:
			pktHasRetransmittableData = true
			isNonProbingPacket = true
			c.FlowControl.HandleMaxData(frame.MaximumData)

		case *wire.MaxStreamDataFrame:
			if isReceiveOnlyStream(frame.StreamID) {
				return wire.NewTransportError(wire.StreamStateError,
					"received MaxStreamDataFrame for receiving stream")
			}
			pktHasRetransmittableData = true
			isNonProbingPacket = true
			st, err := c.StreamManager.GetStream(frame.StreamID)
			if err != nil {
				return err
			}
			if st == nil {
				break
			}
			if st.FlowControl.HandleWindowUpdate(frame.MaximumData) {
				c.StreamManager.QueueFlowControlUpdated(st.ID)
				c.StreamManager.UpdateWritableStreams(st)
			}

		case *wire.DataBlockedFrame:
			pktHasRetransmittableData = true
			isNonProbingPacket = true
			// The peer ran out of connection credit; push a MAX_DATA.
			c.PendingEvents.SendConnWindowUpdate = true

		case *wire.StreamDataBlockedFrame:
			pktHasRetransmittableData = true
			isNonProbingPacket = true
			st, err := c.StreamManager.GetStream(frame.StreamID)
			if err != nil {
				return err
			}
			if st != nil {
				c.StreamManager.QueueWindowUpdate(st.ID)
			}

		case *wire.StreamsBlockedFrame:
			// The peer wishes to open a stream but hit our limit.
			isNonProbingPacket = true
			if log.IsLevelEnabled(log.TraceLevel) {
				log.Tracef("%v received streams blocked limit=%d", c, frame.StreamLimit)
			}

		case *wire.ConnectionCloseFrame:
			isNonProbingPacket = true
			errMsg := fmt.Sprintf("server closed by peer reason=%s", frame.ReasonPhrase)
			log.Debugf("%v %s", c, errMsg)
			if c.Observer != nil {
				c.Observer.AddTransportStateUpdate(errMsg)
			}
			// App callbacks see the peer supplied error; the peer gets
			// NO_ERROR back.
			c.PeerConnectionError = wire.NewTransportError(frame.ErrorCode, errMsg)
			return wire.NewTransportError(wire.NoError, "peer closed")

		case *wire.PingFrame:
			isNonProbingPacket = true
			// Ping carries no data but should be acked early.
			pktHasRetransmittableData = true

		case *wire.PaddingFrame:

		case *wire.DatagramFrame:
			// Datagram frames are unreliable but count towards the ack
			// policy so they are acked early.
			pktHasRetransmittableData = true
			if c.DatagramHandler != nil {
				c.DatagramHandler(frame)
			}

		case wire.SimpleFrame:
			pktHasRetransmittableData = true
			nonProbing, err := handleSimpleFrame(c, frame, packetNum, rd.Peer != c.PeerAddress)
			if err != nil {
				return err
			}
			isNonProbingPacket = isNonProbingPacket || nonProbing
		}
	}

	if handshakeConfirmedThisLoop {
		confirmHandshake(c)
	}

	// Update the writable limit before processing handshake data, so
	// an undecided validation does not raise the budget.
	updateWritableByteLimitOnRecvPacket(c)

	if c.PeerAddress != rd.Peer {
		if !isNonProbingPacket {
			// Responding with a PathResponse on the new address
			// without migrating is not supported.
			c.dropPacket(packetSize, wire.DropReasonPeerAddressChange)
			return wire.NewTransportError(wire.InvalidMigration, "probing not supported yet")
		}
		if packetNum == ackState.LargestReceived {
			intentionalMigration := false
			if shortHeader, ok := regularPacket.Header.(*wire.ShortHeader); ok &&
				!shortHeader.ConnID.Equal(c.ServerConnectionID) {
				intentionalMigration = true
			}
			if err := onConnectionMigration(c, rd.Peer, intentionalMigration); err != nil {
				return err
			}
		}
	}

	// Feed newly contiguous crypto data into the handshake layer.
	cryptoData := c.CryptoState.StreamFor(encryptionLevel).ReadAvailable()
	if len(cryptoData) > 0 {
		if err := c.HandshakeLayer.DoHandshake(cryptoData, encryptionLevel); err != nil {
			c.dropPacket(packetSize, wire.DropReasonTransportParameterError)
			return wire.NewTransportError(wire.CryptoError, err.Error())
		}
		if err := updateHandshakeState(c); err != nil {
			c.dropPacket(packetSize, wire.DropReasonTransportParameterError)
			return err
		}
	}

	ackhandler.UpdateAckSendStateOnRecvPacket(c.Settings.AckPolicy(), c.PendingEvents,
		ackState, outOfOrder, pktHasRetransmittableData, pktHasCryptoData)

	// Once 1-RTT keys exist the initial keys retire on both sides and
	// in flight initial crypto data is implicitly acked.
	if c.OneRttWriteCipher != nil && c.InitialWriteCipher != nil {
		c.InitialWriteCipher = nil
		c.InitialHeaderCipher = nil
		c.ReadCodec.SetInitialReadCipher(nil)
		c.ReadCodec.SetInitialHeaderCipher(nil)
		c.CryptoState.InitialStream.ImplicitAckAll()
	}
	c.statsPacketProcessed()
	return nil
}

// isReceiveOnlyStream reports whether the server can only ever
// receive on the stream: client initiated unidirectional streams.
func isReceiveOnlyStream(id wire.StreamID) bool {
	return id.IsClientInitiated() && id.IsUnidirectional()
}

// handleSimpleFrame dispatches the small control frames. The return
// value reports whether the frame makes the packet non probing.
func handleSimpleFrame(c *Conn, f wire.SimpleFrame, packetNum wire.PacketNum, fromChangedAddress bool) (bool, error) {
	switch frame := f.(type) {
	case *wire.PathChallengeFrame:
		c.PendingEvents.PathResponses = append(c.PendingEvents.PathResponses,
			&wire.PathResponseFrame{Data: frame.Data})
		return false, nil
	case *wire.PathResponseFrame:
		if c.PendingPathValidation != nil && c.PendingPathValidation.Data == frame.Data {
			// The peer proved ownership of the path.
			c.PendingPathValidation = nil
			c.PendingEvents.PathValidationTimeoutArmed = false
			for _, addr := range c.MigrationState.PreviousPeerAddresses {
				if addr == c.PeerAddress {
					return false, nil
				}
			}
			c.MigrationState.PreviousPeerAddresses = append(c.MigrationState.PreviousPeerAddresses, c.PeerAddress)
		}
		return false, nil
	case *wire.NewConnectionIDFrame:
		c.PeerConnectionIDs = append(c.PeerConnectionIDs, connid.Data{
			ConnID:         frame.ConnID,
			SequenceNumber: frame.SequenceNumber,
			Token:          frame.Token,
		})
		return false, nil
	case *wire.RetireConnectionIDFrame:
		for i, data := range c.SelfConnectionIDs {
			if data.SequenceNumber == frame.SequenceNumber {
				c.SelfConnectionIDs = append(c.SelfConnectionIDs[:i], c.SelfConnectionIDs[i+1:]...)
				break
			}
		}
		return true, nil
	case *wire.NewTokenFrame:
		return true, wire.NewTransportError(wire.ProtocolViolation, "server received NewToken frame")
	case *wire.HandshakeDoneFrame:
		return true, wire.NewTransportError(wire.ProtocolViolation, "server received HandshakeDone frame")
	default:
		return true, nil
	}
}

func onReadDataFromClosed(c *Conn, rd *ReadData) error {
	packetSize := len(rd.Data)
	if c.ReadCodec == nil {
		// Closed before the first packet was ever processed. This is
		// normally not possible but drop it all the same.
		c.dropPacket(packetSize, wire.DropReasonServerStateClosed)
		return nil
	}
	if c.PeerConnectionError != nil {
		// A peer error was already recorded; further ones are noise.
		c.dropPacket(packetSize, wire.DropReasonServerStateClosed)
		return nil
	}
	parsedPacket, _ := c.ReadCodec.ParsePacket(rd.Data, c.AckStates)
	switch parsedPacket.Type() {
	case wire.CodecResultCipherUnavailable, wire.CodecResultNothing:
		log.Debugf("%v drop cipher unavailable", c)
		c.observerPacketDrop(packetSize, wire.DropReasonCipherUnavailable)
	case wire.CodecResultRetry:
		log.Debugf("%v drop because the server is not supposed to receive a retry", c)
		c.observerPacketDrop(packetSize, wire.DropReasonRetry)
	case wire.CodecResultStatelessReset:
		log.Debugf("%v drop because reset", c)
		c.observerPacketDrop(packetSize, wire.DropReasonReset)
	case wire.CodecResultRegular:
	}
	regularPacket := parsedPacket.RegularPacket()
	if regularPacket == nil {
		log.Debugf("%v not able to parse QUIC packet", c)
		c.dropPacket(packetSize, wire.DropReasonParseError)
		return nil
	}
	if len(regularPacket.Frames) == 0 {
		c.dropPacket(packetSize, wire.DropReasonProtocolViolation)
		return wire.NewTransportError(wire.ProtocolViolation, "packet has no frames")
	}

	packetNum := regularPacket.Header.PacketNum()
	space := regularPacket.Header.PacketNumberSpace()
	if c.Observer != nil {
		c.Observer.AddPacket(regularPacket, packetSize)
	}

	// Only close frames are processed in the closed state.
	for _, quicFrame := range regularPacket.Frames {
		if frame, ok := quicFrame.(*wire.ConnectionCloseFrame); ok {
			errMsg := fmt.Sprintf("server closed by peer reason=%s", frame.ReasonPhrase)
			log.Debugf("%v %s", c, errMsg)
			if c.Observer != nil {
				c.Observer.AddTransportStateUpdate(errMsg)
			}
			c.PeerConnectionError = wire.NewTransportError(frame.ErrorCode, errMsg)
		}
	}

	// Track the largest received packet number so the driver knows
	// whether a fresh close must go out.
	ackState := c.AckStates.AckState(space)
	if !ackState.HasReceived || packetNum > ackState.LargestReceived {
		ackState.LargestReceived = packetNum
		ackState.HasReceived = true
	}
	return nil
}
