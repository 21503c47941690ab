package speech

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// ProtocolVersion is the only binary frame version the ASR gateway speaks.
const ProtocolVersion = 0b0001

// MessageType is the high nibble of the second header byte.
type MessageType uint8

const (
	FullClientRequest  MessageType = 0b0001
	AudioOnlyRequest   MessageType = 0b0010
	FullServerResponse MessageType = 0b1001
	ErrorMessage       MessageType = 0b1111
)

// MessageFlags is the low nibble of the second header byte.
type MessageFlags uint8

const (
	NoSequenceNumber       MessageFlags = 0b0000
	PositiveSequenceNumber MessageFlags = 0b0001
	// LastPacketNoSequence marks the final packet without a sequence field.
	LastPacketNoSequence MessageFlags = 0b0010
	// NegativeSequenceNumber marks the final packet; the sequence is negated.
	NegativeSequenceNumber MessageFlags = 0b0011
)

type SerializationMethod uint8

const (
	NoSerialization   SerializationMethod = 0b0000
	JSONSerialization SerializationMethod = 0b0001
)

type CompressionMethod uint8

const (
	NoCompression   CompressionMethod = 0b0000
	GzipCompression CompressionMethod = 0b0001
)

// Header is the fixed four byte frame prefix.
type Header struct {
	ProtocolVersion     uint8
	HeaderSize          uint8 // in 4 byte words
	MessageType         MessageType
	MessageFlags        MessageFlags
	SerializationMethod SerializationMethod
	CompressionMethod   CompressionMethod
	Reserved            uint8
}

// Frame is one websocket binary message exchanged with the ASR gateway.
type Frame struct {
	Header    Header
	Sequence  int32
	ErrorCode uint32
	Payload   []byte
}

func NewHeader(msgType MessageType, flags MessageFlags, serialization SerializationMethod, compression CompressionMethod) Header {
	return Header{
		ProtocolVersion:     ProtocolVersion,
		HeaderSize:          0b0001,
		MessageType:         msgType,
		MessageFlags:        flags,
		SerializationMethod: serialization,
		CompressionMethod:   compression,
	}
}

// Encode packs the header into four bytes.
func (h Header) Encode() []byte {
	return []byte{
		(h.ProtocolVersion << 4) | h.HeaderSize,
		(uint8(h.MessageType) << 4) | uint8(h.MessageFlags),
		(uint8(h.SerializationMethod) << 4) | uint8(h.CompressionMethod),
		h.Reserved,
	}
}

// DecodeHeader unpacks the first four bytes of a frame.
func DecodeHeader(data []byte) (Header, error) {
	if len(data) < 4 {
		return Header{}, fmt.Errorf("header too short: got %d bytes, need 4", len(data))
	}

	header := Header{
		ProtocolVersion:     (data[0] >> 4) & 0x0F,
		HeaderSize:          data[0] & 0x0F,
		MessageType:         MessageType((data[1] >> 4) & 0x0F),
		MessageFlags:        MessageFlags(data[1] & 0x0F),
		SerializationMethod: SerializationMethod((data[2] >> 4) & 0x0F),
		CompressionMethod:   CompressionMethod(data[2] & 0x0F),
		Reserved:            data[3],
	}

	if header.ProtocolVersion != ProtocolVersion {
		return Header{}, fmt.Errorf("unsupported protocol version: %d", header.ProtocolVersion)
	}
	return header, nil
}

func (h Header) hasSequence() bool {
	switch h.MessageFlags & 0b0011 {
	case PositiveSequenceNumber, NegativeSequenceNumber:
		return true
	default:
		return false
	}
}

// EncodeFrame serialises f as header, optional sequence, optional error code,
// payload size and payload, all big endian.
func EncodeFrame(f *Frame) []byte {
	var buf bytes.Buffer
	buf.Write(f.Header.Encode())

	if f.Header.hasSequence() {
		_ = binary.Write(&buf, binary.BigEndian, f.Sequence)
	}
	if f.Header.MessageType == ErrorMessage {
		_ = binary.Write(&buf, binary.BigEndian, f.ErrorCode)
	}

	_ = binary.Write(&buf, binary.BigEndian, uint32(len(f.Payload)))
	buf.Write(f.Payload)
	return buf.Bytes()
}

// DecodeFrame reads one frame from r.
func DecodeFrame(r io.Reader) (*Frame, error) {
	raw := make([]byte, 4)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	header, err := DecodeHeader(raw)
	if err != nil {
		return nil, err
	}
	frame := &Frame{Header: header}

	if extra := int(header.HeaderSize)*4 - 4; extra > 0 {
		if _, err := io.CopyN(io.Discard, r, int64(extra)); err != nil {
			return nil, fmt.Errorf("read extended header: %w", err)
		}
	}

	if header.hasSequence() {
		if err := binary.Read(r, binary.BigEndian, &frame.Sequence); err != nil {
			return nil, fmt.Errorf("read sequence: %w", err)
		}
	}
	if header.MessageType == ErrorMessage {
		if err := binary.Read(r, binary.BigEndian, &frame.ErrorCode); err != nil {
			return nil, fmt.Errorf("read error code: %w", err)
		}
	}

	var size uint32
	if err := binary.Read(r, binary.BigEndian, &size); err != nil {
		return nil, fmt.Errorf("read payload size: %w", err)
	}
	if size > 0 {
		frame.Payload = make([]byte, size)
		if _, err := io.ReadFull(r, frame.Payload); err != nil {
			return nil, fmt.Errorf("read payload (expected %d bytes): %w", size, err)
		}
	}

	return frame, nil
}

// NewFullClientRequest wraps the session parameters sent before any audio.
func NewFullClientRequest(payload []byte, compression CompressionMethod) *Frame {
	return &Frame{
		Header:  NewHeader(FullClientRequest, NoSequenceNumber, JSONSerialization, compression),
		Payload: payload,
	}
}

// NewAudioRequest wraps one audio chunk. The last chunk carries a negated
// sequence, or no sequence at all when sequence is zero.
func NewAudioRequest(audio []byte, sequence int32, last bool, compression CompressionMethod) *Frame {
	var flags MessageFlags
	switch {
	case last && sequence != 0:
		flags = NegativeSequenceNumber
		sequence = -sequence
	case last:
		flags = LastPacketNoSequence
	case sequence > 0:
		flags = PositiveSequenceNumber
	default:
		flags = NoSequenceNumber
	}

	return &Frame{
		Header:   NewHeader(AudioOnlyRequest, flags, NoSerialization, compression),
		Sequence: sequence,
		Payload:  audio,
	}
}

// IsLastPacket reports whether the frame closes its direction of the stream.
func (f *Frame) IsLastPacket() bool {
	switch f.Header.MessageFlags & 0b0011 {
	case LastPacketNoSequence, NegativeSequenceNumber:
		return true
	default:
		return false
	}
}
