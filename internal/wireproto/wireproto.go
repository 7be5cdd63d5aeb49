// Package wireproto implements the binary tagged-union encoding for
// sequencer events described in §6: a 1-byte tag followed by a
// fixed-layout payload, little-endian throughout. It follows the manual
// binary.LittleEndian struct-packing idiom this codebase already uses for
// its WAV container encoder, applied here to a tagged union instead of a
// single fixed header.
package wireproto

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/cbegin/tonecore/internal/evqueue"
)

// Tag identifies the payload that follows.
type Tag byte

const (
	TagNoteOn      Tag = 0x01
	TagNoteOff     Tag = 0x02
	TagParamChange Tag = 0x03
	TagTransport   Tag = 0x04
)

// TransportCmd is the payload of a Transport message.
type TransportCmd byte

const (
	TransportStop TransportCmd = iota
	TransportPlay
	TransportPause
)

var (
	ErrTruncated   = errors.New("wireproto: message truncated")
	ErrUnknownTag  = errors.New("wireproto: unknown message tag")
)

// sizes, tag byte not included.
const (
	sizeNoteOn      = 1 + 1 + 1 + 8 // note, velocity, track, sample_time
	sizeNoteOff     = 1 + 1 + 8     // note, track, sample_time
	sizeParamChange = 1 + 2 + 4 + 8 // track, key_id, value, sample_time
	sizeTransport   = 1 + 8         // cmd, sample_time
)

// EncodeNoteOn writes a 0x01 NoteOn message.
func EncodeNoteOn(note, velocity, track byte, sampleTime uint64) []byte {
	buf := make([]byte, 1+sizeNoteOn)
	buf[0] = byte(TagNoteOn)
	buf[1] = note
	buf[2] = velocity
	buf[3] = track
	binary.LittleEndian.PutUint64(buf[4:], sampleTime)
	return buf
}

// EncodeNoteOff writes a 0x02 NoteOff message.
func EncodeNoteOff(note, track byte, sampleTime uint64) []byte {
	buf := make([]byte, 1+sizeNoteOff)
	buf[0] = byte(TagNoteOff)
	buf[1] = note
	buf[2] = track
	binary.LittleEndian.PutUint64(buf[3:], sampleTime)
	return buf
}

// EncodeParamChange writes a 0x03 ParamChange message.
func EncodeParamChange(track byte, keyID uint16, value float32, sampleTime uint64) []byte {
	buf := make([]byte, 1+sizeParamChange)
	buf[0] = byte(TagParamChange)
	buf[1] = track
	binary.LittleEndian.PutUint16(buf[2:], keyID)
	binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(value))
	binary.LittleEndian.PutUint64(buf[8:], sampleTime)
	return buf
}

// EncodeTransport writes a 0x04 Transport message.
func EncodeTransport(cmd TransportCmd, sampleTime uint64) []byte {
	buf := make([]byte, 1+sizeTransport)
	buf[0] = byte(TagTransport)
	buf[1] = byte(cmd)
	binary.LittleEndian.PutUint64(buf[2:], sampleTime)
	return buf
}

// Message is a decoded wire event. It carries the raw u16 KeyID; ToEvent
// resolves it to a ParamKey through a caller-supplied KeyTable.
type Message struct {
	Tag        Tag
	Note       byte
	Velocity   byte
	Track      byte
	KeyID      uint16
	Value      float32
	Cmd        TransportCmd
	SampleTime uint64
}

// Decode reads one message from the front of buf and returns it along with
// the number of bytes consumed.
func Decode(buf []byte) (Message, int, error) {
	if len(buf) < 1 {
		return Message{}, 0, ErrTruncated
	}
	tag := Tag(buf[0])
	body := buf[1:]
	switch tag {
	case TagNoteOn:
		if len(body) < sizeNoteOn {
			return Message{}, 0, ErrTruncated
		}
		return Message{
			Tag: tag, Note: body[0], Velocity: body[1], Track: body[2],
			SampleTime: binary.LittleEndian.Uint64(body[3:]),
		}, 1 + sizeNoteOn, nil
	case TagNoteOff:
		if len(body) < sizeNoteOff {
			return Message{}, 0, ErrTruncated
		}
		return Message{
			Tag: tag, Note: body[0], Track: body[1],
			SampleTime: binary.LittleEndian.Uint64(body[2:]),
		}, 1 + sizeNoteOff, nil
	case TagParamChange:
		if len(body) < sizeParamChange {
			return Message{}, 0, ErrTruncated
		}
		return Message{
			Tag: tag, Track: body[0],
			KeyID:      binary.LittleEndian.Uint16(body[1:]),
			Value:      math.Float32frombits(binary.LittleEndian.Uint32(body[3:])),
			SampleTime: binary.LittleEndian.Uint64(body[7:]),
		}, 1 + sizeParamChange, nil
	case TagTransport:
		if len(body) < sizeTransport {
			return Message{}, 0, ErrTruncated
		}
		return Message{
			Tag: tag, Cmd: TransportCmd(body[0]),
			SampleTime: binary.LittleEndian.Uint64(body[1:]),
		}, 1 + sizeTransport, nil
	default:
		return Message{}, 0, fmt.Errorf("%w: 0x%02x", ErrUnknownTag, byte(tag))
	}
}

// KeyTable resolves a wire-format u16 key id to a ParameterSpec string id,
// the mapping a preset/session establishes once and reuses for every
// ParamChange message (keeping the wire payload fixed-size).
type KeyTable map[uint16]string

// ToEvent converts a decoded Message into an evqueue.Event ready for
// enqueueing, using keys to resolve ParamChange key ids to string
// parameter ids.
func (m Message) ToEvent(keys KeyTable) (evqueue.Event, error) {
	switch m.Tag {
	case TagNoteOn:
		return evqueue.Event{Kind: evqueue.KindNoteOn, Track: int(m.Track), Note: int(m.Note), Velocity: int(m.Velocity), Timestamp: m.SampleTime, Priority: evqueue.PriorityHigh}, nil
	case TagNoteOff:
		return evqueue.Event{Kind: evqueue.KindNoteOff, Track: int(m.Track), Note: int(m.Note), Timestamp: m.SampleTime, Priority: evqueue.PriorityHigh}, nil
	case TagParamChange:
		key, ok := keys[m.KeyID]
		if !ok {
			return evqueue.Event{}, fmt.Errorf("wireproto: unresolved param key id %d", m.KeyID)
		}
		return evqueue.Event{Kind: evqueue.KindParamChange, Track: int(m.Track), ParamKey: key, Value: float64(m.Value), Timestamp: m.SampleTime, Priority: evqueue.PriorityNormal, DropIfLate: true}, nil
	case TagTransport:
		return evqueue.Event{Kind: evqueue.KindTransport, Value: float64(m.Cmd), Timestamp: m.SampleTime, Priority: evqueue.PriorityCritical}, nil
	default:
		return evqueue.Event{}, fmt.Errorf("%w: 0x%02x", ErrUnknownTag, byte(m.Tag))
	}
}
