package handshake

import (
	"errors"
	"fmt"
	"io"
)

// Protocol is the fixed v1 protocol identifier carried in every
// handshake frame.
const Protocol = "BitTorrent protocol"

var ErrBadProtocol = errors.New("handshake: remote does not speak BitTorrent protocol")

type Handshake struct {
	Pstr     string
	InfoHash [20]byte
	PeerId   [20]byte
}

func New(infoHash [20]byte, peerId [20]byte) *Handshake {
	return &Handshake{
		Pstr:     Protocol,
		InfoHash: infoHash,
		PeerId:   peerId,
	}
}

// Serialize renders the 68-byte frame: pstrlen, pstr, 8 reserved zero
// bytes, info hash, peer id.
func (h *Handshake) Serialize() []byte {
	buff := make([]byte, 49+len(h.Pstr))
	buff[0] = byte(len(h.Pstr))
	curr := 1
	curr += copy(buff[curr:], h.Pstr)
	curr += copy(buff[curr:], make([]byte, 8))
	curr += copy(buff[curr:], h.InfoHash[:])
	curr += copy(buff[curr:], h.PeerId[:])
	return buff
}

// Read reassembles a handshake frame from r. A remote that closes the
// stream early or announces a different protocol string is rejected.
func Read(r io.Reader) (*Handshake, error) {
	lengthBuf := make([]byte, 1)
	if _, err := io.ReadFull(r, lengthBuf); err != nil {
		return nil, fmt.Errorf("handshake: read pstrlen: %w", err)
	}
	pstrlen := int(lengthBuf[0])
	if pstrlen == 0 {
		return nil, ErrBadProtocol
	}

	handshakeBuf := make([]byte, 48+pstrlen)
	if _, err := io.ReadFull(r, handshakeBuf); err != nil {
		return nil, fmt.Errorf("handshake: read frame: %w", err)
	}
	pstr := string(handshakeBuf[0:pstrlen])
	if pstr != Protocol {
		return nil, ErrBadProtocol
	}
	var infoHash, peerId [20]byte
	copy(infoHash[:], handshakeBuf[pstrlen+8:pstrlen+28])
	copy(peerId[:], handshakeBuf[pstrlen+28:])
	return &Handshake{
		Pstr:     pstr,
		InfoHash: infoHash,
		PeerId:   peerId,
	}, nil
}
