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
	"github.com/FFhix10/mvfst/pkg/mathext"
	"github.com/FFhix10/mvfst/pkg/wire"
)

// ReceiveStreamFrame applies one STREAM frame to the receive half.
// It returns the number of newly observed bytes so the caller can feed
// connection level flow control.
func (s *State) ReceiveStreamFrame(frame *wire.StreamFrame) (newBytes uint64, err error) {
	if s.RecvState != RecvStateOpen {
		// Late data on a closed receive half is dropped silently.
		return 0, nil
	}
	dataEnd := frame.Offset + uint64(len(frame.Data))

	if frame.Fin {
		if s.HasFinalRead && s.FinalReadOffset != dataEnd {
			return 0, wire.NewTransportError(wire.FinalSizeError, "final size changed by a later FIN")
		}
		s.FinalReadOffset = dataEnd
		s.HasFinalRead = true
	}
	if s.HasFinalRead && dataEnd > s.FinalReadOffset {
		return 0, wire.NewTransportError(wire.FinalSizeError, "data beyond the final size")
	}

	if dataEnd > s.MaxOffsetObserved {
		if err := s.FlowControl.OnReceive(dataEnd); err != nil {
			return 0, err
		}
		newBytes = dataEnd - s.MaxOffsetObserved
		s.MaxOffsetObserved = dataEnd
	}

	// Data entirely below the read offset was already consumed.
	if dataEnd > s.CurrentReadOffset || (frame.Fin && dataEnd == s.CurrentReadOffset) {
		buf := &Buffer{Offset: frame.Offset, Data: frame.Data, EOF: frame.Fin}
		if existing, ok := s.readBuffer.Get(buf); ok {
			// Keep the longer of two buffers starting at the same offset.
			if len(buf.Data) > len(existing.Data) || (buf.EOF && !existing.EOF) {
				s.readBuffer.ReplaceOrInsert(buf)
			}
		} else {
			s.readBuffer.ReplaceOrInsert(buf)
		}
	}

	if s.HasFinalRead && s.CurrentReadOffset == s.FinalReadOffset {
		s.RecvState = RecvStateClosed
	}
	return newBytes, nil
}

// ReceiveRstStream applies a RESET_STREAM frame to the receive half.
func (s *State) ReceiveRstStream(frame *wire.RstStreamFrame) (newBytes uint64, err error) {
	if s.RecvState != RecvStateOpen {
		return 0, nil
	}
	if s.HasFinalRead && s.FinalReadOffset != frame.FinalSize {
		return 0, wire.NewTransportError(wire.FinalSizeError, "reset final size does not match FIN")
	}
	if frame.FinalSize < s.MaxOffsetObserved {
		return 0, wire.NewTransportError(wire.FinalSizeError, "reset final size below observed data")
	}
	if frame.FinalSize > s.MaxOffsetObserved {
		if err := s.FlowControl.OnReceive(frame.FinalSize); err != nil {
			return 0, err
		}
		newBytes = frame.FinalSize - s.MaxOffsetObserved
		s.MaxOffsetObserved = frame.FinalSize
	}
	s.FinalReadOffset = frame.FinalSize
	s.HasFinalRead = true
	s.StreamReadError = frame.ErrorCode
	s.HasReadError = true
	s.readBuffer.Clear(false)
	s.RecvState = RecvStateClosed
	return newBytes, nil
}

// ReadAvailable drains contiguous reassembled data from the read
// buffer and advances the read offset. The receive half closes when
// the FIN offset is reached.
func (s *State) ReadAvailable() []byte {
	var out []byte
	for {
		front, ok := s.readBuffer.Min()
		if !ok || front.Offset > s.CurrentReadOffset {
			break
		}
		s.readBuffer.DeleteMin()
		if end := front.Offset + uint64(len(front.Data)); end > s.CurrentReadOffset {
			out = append(out, front.Data[s.CurrentReadOffset-front.Offset:]...)
			s.CurrentReadOffset = end
		}
	}
	if s.HasFinalRead && s.CurrentReadOffset == s.FinalReadOffset && s.RecvState == RecvStateOpen {
		s.RecvState = RecvStateClosed
	}
	return out
}

// WriteData appends bytes to the write buffer. eof marks the final byte.
func (s *State) WriteData(data []byte, eof bool) {
	s.WriteBuffer = append(s.WriteBuffer, data...)
	if eof {
		s.FinalWriteOffset = s.CurrentWriteOffset + uint64(len(s.WriteBuffer))
		s.HasFinalWrite = true
	}
}

// OnStreamFrameSent moves written bytes into the retransmission buffer.
func (s *State) OnStreamFrameSent(offset uint64, length int, fin bool) {
	if length > len(s.WriteBuffer) {
		length = len(s.WriteBuffer)
	}
	data := make([]byte, length)
	copy(data, s.WriteBuffer[:length])
	s.WriteBuffer = s.WriteBuffer[length:]
	s.RetransmissionBuffer[offset] = &Buffer{Offset: offset, Data: data, EOF: fin}
	s.CurrentWriteOffset = offset + uint64(length)
	if fin {
		// One past the final offset marks the FIN as sent.
		s.CurrentWriteOffset++
	}
	if length > 0 {
		s.NumPacketsTxWithNewData++
	}
}

// OnStreamFrameAcked releases the retransmission bookkeeping of one
// acked frame. The send half closes when everything up to the final
// offset is acknowledged.
func (s *State) OnStreamFrameAcked(frame *wire.StreamFrame) {
	delete(s.RetransmissionBuffer, frame.Offset)
	end := frame.Offset + uint64(len(frame.Data))
	s.AckedUpTo = mathext.Max(s.AckedUpTo, end)
	if s.SendState == SendStateOpen && s.HasFinalWrite &&
		len(s.RetransmissionBuffer) == 0 && len(s.WriteBuffer) == 0 &&
		len(s.LossBuffer) == 0 && s.AckedUpTo >= s.FinalWriteOffset {
		s.SendState = SendStateClosed
	}
}

// OnRstStreamSent transitions the send half after a RESET_STREAM left.
func (s *State) OnRstStreamSent() {
	if s.SendState == SendStateOpen {
		s.SendState = SendStateResetSent
	}
}

// OnRstStreamAcked finishes the send half after the peer acknowledged
// our RESET_STREAM.
func (s *State) OnRstStreamAcked() {
	if s.SendState == SendStateResetSent {
		s.SendState = SendStateClosed
	}
}

// InsertIntoLossBuffer records a frame declared lost, merging it with
// an adjacent entry when possible.
func (s *State) InsertIntoLossBuffer(buf *Buffer) {
	idx := len(s.LossBuffer)
	for i, existing := range s.LossBuffer {
		if buf.Offset < existing.Offset {
			idx = i
			break
		}
	}
	if idx > 0 {
		prev := s.LossBuffer[idx-1]
		if prev.Offset+uint64(len(prev.Data)) == buf.Offset {
			prev.Data = append(prev.Data, buf.Data...)
			prev.EOF = buf.EOF
			return
		}
	}
	s.LossBuffer = append(s.LossBuffer, nil)
	copy(s.LossBuffer[idx+1:], s.LossBuffer[idx:])
	s.LossBuffer[idx] = buf
}
