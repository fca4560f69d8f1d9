// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"tuner/internal/session"
)

/*
Packet Structure (BigEndian)

+------------------------------------------------------------------------+
| Field           | Data Type | Size (Bytes) | Description               |
|-----------------|-----------|--------------|---------------------------|
| Sequence Number | uint32    | 4            | Publisher packet counter  |
| Frame Sequence  | uint64    | 8            | Frame.Seq                 |
| Timestamp       | int64     | 8            | Frame time, ns since epoch|
| Flags           | uint8     | 1            | See Flag* constants       |
| Frequency       | float32   | 4            | Hz, 0 when unvoiced       |
| Cents           | float32   | 4            | Offset of the shown note  |
| Semitone        | int16     | 2            | Shown note above C0       |
| Stable          | uint16    | 2            | Consecutive detections    |
| Samples         | uint32    | 4            | Gated samples in session  |
| Name Length     | uint8     | 1            | N                         |
| Name            | []byte    | N            | Shown note, e.g. "C#4"    |
+------------------------------------------------------------------------+

The shown note is the current note when FlagVoiced is set, otherwise the
last detected note when FlagHasLast is set.
*/

const (
	FlagVoiced uint8 = 1 << iota
	FlagGated
	FlagActive
	FlagHasLast
)

const headerSize = 4 + 8 + 8 + 1 + 4 + 4 + 2 + 2 + 4 + 1

var errShortPacket = errors.New("packet too short")

// Packet is the decoded form of a frame datagram.
type Packet struct {
	Sequence  uint32
	FrameSeq  uint64
	Timestamp int64
	Flags     uint8
	Frequency float32
	Cents     float32
	Semitone  int16
	Stable    uint16
	Samples   uint32
	Name      string
}

func (p Packet) Has(flag uint8) bool {
	return p.Flags&flag != 0
}

// packetHeader mirrors the fixed part of the layout for binary.Write.
type packetHeader struct {
	Sequence  uint32
	FrameSeq  uint64
	Timestamp int64
	Flags     uint8
	Frequency float32
	Cents     float32
	Semitone  int16
	Stable    uint16
	Samples   uint32
	NameLen   uint8
}

// writePacket packs frame into buf, which is reset first.
func writePacket(buf *bytes.Buffer, seq uint32, frame session.Frame) error {
	h := packetHeader{
		Sequence:  seq,
		FrameSeq:  frame.Seq,
		Timestamp: frame.Time.UnixNano(),
		Stable:    uint16(min(frame.Stable, 0xffff)),
		Samples:   uint32(max(frame.Samples, 0)),
	}

	note := frame.Note
	switch {
	case frame.Voiced:
		h.Flags |= FlagVoiced
		h.Frequency = float32(frame.Frequency)
	case frame.HasLast:
		note = frame.LastNote
	}
	if frame.Gated {
		h.Flags |= FlagGated
	}
	if frame.Active {
		h.Flags |= FlagActive
	}
	if frame.HasLast {
		h.Flags |= FlagHasLast
	}
	h.Cents = float32(note.Cents)
	h.Semitone = int16(note.Semitone)
	if len(note.Name) > 0xff {
		return fmt.Errorf("note name too long: %d bytes", len(note.Name))
	}
	h.NameLen = uint8(len(note.Name))

	buf.Reset()
	if err := binary.Write(buf, binary.BigEndian, &h); err != nil {
		return err
	}
	buf.WriteString(note.Name)
	return nil
}

// DecodePacket parses a datagram produced by the publisher.
func DecodePacket(data []byte) (Packet, error) {
	if len(data) < headerSize {
		return Packet{}, fmt.Errorf("%w: %d bytes", errShortPacket, len(data))
	}

	var h packetHeader
	r := bytes.NewReader(data)
	if err := binary.Read(r, binary.BigEndian, &h); err != nil {
		return Packet{}, err
	}
	name := make([]byte, h.NameLen)
	if _, err := io.ReadFull(r, name); err != nil {
		return Packet{}, fmt.Errorf("%w: name truncated", errShortPacket)
	}

	return Packet{
		Sequence:  h.Sequence,
		FrameSeq:  h.FrameSeq,
		Timestamp: h.Timestamp,
		Flags:     h.Flags,
		Frequency: h.Frequency,
		Cents:     h.Cents,
		Semitone:  h.Semitone,
		Stable:    h.Stable,
		Samples:   h.Samples,
		Name:      string(name),
	}, nil
}
