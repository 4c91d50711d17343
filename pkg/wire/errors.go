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

package wire

import "fmt"

// TransportErrorCode is a peer visible QUIC error code.
type TransportErrorCode uint64

const (
	NoError                 TransportErrorCode = 0x0
	InternalError           TransportErrorCode = 0x1
	FlowControlError        TransportErrorCode = 0x3
	StreamLimitError        TransportErrorCode = 0x4
	StreamStateError        TransportErrorCode = 0x5
	FinalSizeError          TransportErrorCode = 0x6
	FrameEncodingError      TransportErrorCode = 0x7
	TransportParameterError TransportErrorCode = 0x8
	ProtocolViolation       TransportErrorCode = 0xa
	InvalidMigration        TransportErrorCode = 0xc
	CryptoError             TransportErrorCode = 0x100
)

func (c TransportErrorCode) String() string {
	switch c {
	case NoError:
		return "NO_ERROR"
	case InternalError:
		return "INTERNAL_ERROR"
	case FlowControlError:
		return "FLOW_CONTROL_ERROR"
	case StreamLimitError:
		return "STREAM_LIMIT_ERROR"
	case StreamStateError:
		return "STREAM_STATE_ERROR"
	case FinalSizeError:
		return "FINAL_SIZE_ERROR"
	case FrameEncodingError:
		return "FRAME_ENCODING_ERROR"
	case TransportParameterError:
		return "TRANSPORT_PARAMETER_ERROR"
	case ProtocolViolation:
		return "PROTOCOL_VIOLATION"
	case InvalidMigration:
		return "INVALID_MIGRATION"
	case CryptoError:
		return "CRYPTO_ERROR"
	default:
		return fmt.Sprintf("TRANSPORT_ERROR_%#x", uint64(c))
	}
}

// TransportError unwinds the datagram processing path and is
// translated into an outbound CONNECTION_CLOSE by the driver.
// A TransportError with code NoError marks a peer initiated close.
type TransportError struct {
	Code   TransportErrorCode
	Reason string
}

var _ error = &TransportError{}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%v: %s", e.Code, e.Reason)
}

// NewTransportError creates a transport error with a human readable reason.
func NewTransportError(code TransportErrorCode, reason string) *TransportError {
	return &TransportError{Code: code, Reason: reason}
}

// LocalErrorCode is an API level error, not visible to the peer.
type LocalErrorCode uint8

const (
	LocalNoError LocalErrorCode = iota
	LocalCreatingExistingStream
	LocalStreamLimitExceeded
	LocalStreamNotExists
)

func (c LocalErrorCode) String() string {
	switch c {
	case LocalNoError:
		return "NO_ERROR"
	case LocalCreatingExistingStream:
		return "CREATING_EXISTING_STREAM"
	case LocalStreamLimitExceeded:
		return "STREAM_LIMIT_EXCEEDED"
	case LocalStreamNotExists:
		return "STREAM_NOT_EXISTS"
	default:
		return "UNKNOWN"
	}
}

// DropReason explains why an inbound packet was discarded.
// Drops are counted, never propagated as errors.
type DropReason uint8

const (
	DropReasonNone DropReason = iota
	DropReasonParseError
	DropReasonCipherUnavailable
	DropReasonMaxBuffered
	DropReasonBufferUnavailable
	DropReasonUnexpectedProtectionLevel
	DropReasonNoData
	DropReasonServerStateClosed
	DropReasonInvalidPacket
	DropReasonInitialConnIDSmall
	DropReasonPeerAddressChange
	DropReasonRetry
	DropReasonReset
	DropReasonTransportParameterError
	DropReasonProtocolViolation
)

func (r DropReason) String() string {
	switch r {
	case DropReasonNone:
		return "NONE"
	case DropReasonParseError:
		return "PARSE_ERROR"
	case DropReasonCipherUnavailable:
		return "CIPHER_UNAVAILABLE"
	case DropReasonMaxBuffered:
		return "MAX_BUFFERED"
	case DropReasonBufferUnavailable:
		return "BUFFER_UNAVAILABLE"
	case DropReasonUnexpectedProtectionLevel:
		return "UNEXPECTED_PROTECTION_LEVEL"
	case DropReasonNoData:
		return "NO_DATA"
	case DropReasonServerStateClosed:
		return "SERVER_STATE_CLOSED"
	case DropReasonInvalidPacket:
		return "INVALID_PACKET"
	case DropReasonInitialConnIDSmall:
		return "INITIAL_CONNID_SMALL"
	case DropReasonPeerAddressChange:
		return "PEER_ADDRESS_CHANGE"
	case DropReasonRetry:
		return "RETRY"
	case DropReasonReset:
		return "RESET"
	case DropReasonTransportParameterError:
		return "TRANSPORT_PARAMETER_ERROR"
	case DropReasonProtocolViolation:
		return "PROTOCOL_VIOLATION"
	default:
		return "UNKNOWN"
	}
}
