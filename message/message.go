package message

import (
	"encoding/binary"
	"fmt"
	"io"
)

// ID identifies a peer wire message. Values are fixed by the protocol.
type ID uint8

const (
	IDChoke         ID = 0
	IDUnchoke       ID = 1
	IDInterested    ID = 2
	IDNotInterested ID = 3
	IDHave          ID = 4
	IDBitfield      ID = 5
	IDRequest       ID = 6
	IDPiece         ID = 7
	IDCancel        ID = 8
	IDPort          ID = 9
)

// Message is one non-keep-alive frame: an id byte and its payload.
type Message struct {
	ID      ID
	Payload []byte
}

// Read reassembles exactly one length-prefixed frame: four length bytes,
// then that many body bytes, short TCP reads notwithstanding. A zero
// length prefix is a keep-alive and yields (nil, nil).
func Read(r io.Reader) (*Message, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(header[:])
	if length == 0 {
		return nil, nil
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return &Message{ID: ID(body[0]), Payload: body[1:]}, nil
}

// Serialize renders the frame with its length prefix. A nil message
// serializes as a keep-alive.
func (m *Message) Serialize() []byte {
	if m == nil {
		return make([]byte, 4)
	}
	frame := make([]byte, 4+1+len(m.Payload))
	binary.BigEndian.PutUint32(frame[:4], uint32(1+len(m.Payload)))
	frame[4] = byte(m.ID)
	copy(frame[5:], m.Payload)
	return frame
}

// Request builds a REQUEST for one block of a piece.
func Request(index, begin, length int) *Message {
	payload := make([]byte, 12)
	binary.BigEndian.PutUint32(payload[0:4], uint32(index))
	binary.BigEndian.PutUint32(payload[4:8], uint32(begin))
	binary.BigEndian.PutUint32(payload[8:12], uint32(length))
	return &Message{ID: IDRequest, Payload: payload}
}

// Have builds a HAVE announcing a completed piece.
func Have(index int) *Message {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, uint32(index))
	return &Message{ID: IDHave, Payload: payload}
}

// ParseHave extracts the piece index from a HAVE frame.
func ParseHave(m *Message) (int, error) {
	if m.ID != IDHave {
		return 0, fmt.Errorf("message: expected HAVE (id %d), got id %d", IDHave, m.ID)
	}
	if len(m.Payload) != 4 {
		return 0, fmt.Errorf("message: HAVE payload is %d bytes, want 4", len(m.Payload))
	}
	return int(binary.BigEndian.Uint32(m.Payload)), nil
}

// ParsePiece splits a PIECE frame into the piece index and offset it
// announces and the block data it carries. Matching the announced pair
// against what was requested is the caller's contract.
func ParsePiece(m *Message) (index, begin int, block []byte, err error) {
	if m.ID != IDPiece {
		return 0, 0, nil, fmt.Errorf("message: expected PIECE (id %d), got id %d", IDPiece, m.ID)
	}
	if len(m.Payload) < 8 {
		return 0, 0, nil, fmt.Errorf("message: PIECE payload is %d bytes, want at least 8", len(m.Payload))
	}
	index = int(binary.BigEndian.Uint32(m.Payload[0:4]))
	begin = int(binary.BigEndian.Uint32(m.Payload[4:8]))
	return index, begin, m.Payload[8:], nil
}

// Bitfield is the piece-availability bit array from a BITFIELD frame,
// most significant bit first.
type Bitfield []byte

func (b Bitfield) HasPiece(index int) bool {
	if index < 0 || index/8 >= len(b) {
		return false
	}
	return b[index/8]&(1<<uint(7-index%8)) != 0
}

func (b Bitfield) SetPiece(index int) {
	if index < 0 || index/8 >= len(b) {
		return
	}
	b[index/8] |= 1 << uint(7-index%8)
}
