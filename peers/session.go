package peers

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/minibit/handshake"
	"github.com/minibit/message"
)

var (
	ErrInfoHashMismatch  = errors.New("peers: handshake info hash mismatch")
	ErrUnexpectedMessage = errors.New("peers: unexpected message")
	ErrBadState          = errors.New("peers: operation not valid in current state")
)

type State int

const (
	StateConnected State = iota
	StateHandshaken
	StateBitfieldReceived
	StateInterested
	StateUnchoked
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "Connected"
	case StateHandshaken:
		return "Handshaken"
	case StateBitfieldReceived:
		return "BitfieldReceived"
	case StateInterested:
		return "Interested"
	case StateUnchoked:
		return "Unchoked"
	case StateClosed:
		return "Closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Session owns one TCP connection to a remote peer and walks the
// pre-download negotiation:
//
//	Connected -> Handshaken -> BitfieldReceived -> Interested -> Unchoked
//
// Keep-alives, HAVE and PORT frames are consumed without a state change;
// any other unexpected frame, and every I/O error, closes the session.
// The connection is never touched by anything but its session.
type Session struct {
	Conn     net.Conn
	State    State
	Peer     Peer
	InfoHash [20]byte
	LocalId  [20]byte
	RemoteId [20]byte
	Bitfield message.Bitfield
}

// Dial opens the TCP connection, leaving the session in Connected.
func Dial(peer Peer, infoHash, peerId [20]byte) (*Session, error) {
	conn, err := net.DialTimeout("tcp", peer.String(), 3*time.Second)
	if err != nil {
		return nil, err
	}
	return &Session{
		Conn:     conn,
		State:    StateConnected,
		Peer:     peer,
		InfoHash: infoHash,
		LocalId:  peerId,
	}, nil
}

// Handshake exchanges the 68-byte frames and verifies that the remote
// speaks the protocol for the same torrent.
func (s *Session) Handshake() error {
	if err := s.expect(StateConnected); err != nil {
		return err
	}
	s.Conn.SetDeadline(time.Now().Add(3 * time.Second))
	defer s.Conn.SetDeadline(time.Time{})

	req := handshake.New(s.InfoHash, s.LocalId)
	if _, err := s.Conn.Write(req.Serialize()); err != nil {
		return s.fail(err)
	}
	res, err := handshake.Read(s.Conn)
	if err != nil {
		return s.fail(err)
	}
	if !bytes.Equal(res.InfoHash[:], s.InfoHash[:]) {
		return s.fail(ErrInfoHashMismatch)
	}
	s.RemoteId = res.PeerId
	s.State = StateHandshaken
	return nil
}

// ReceiveBitfield waits for the remote's bitfield announcement.
func (s *Session) ReceiveBitfield() error {
	if err := s.expect(StateHandshaken); err != nil {
		return err
	}
	s.Conn.SetDeadline(time.Now().Add(5 * time.Second))
	defer s.Conn.SetDeadline(time.Time{})

	msg, err := s.next()
	if err != nil {
		return s.fail(err)
	}
	if msg.ID != message.IDBitfield {
		return s.fail(fmt.Errorf("%w: want bitfield (%d), got %d", ErrUnexpectedMessage, message.IDBitfield, msg.ID))
	}
	s.Bitfield = message.Bitfield(msg.Payload)
	s.State = StateBitfieldReceived
	return nil
}

// SendInterested announces interest in the remote's pieces.
func (s *Session) SendInterested() error {
	if err := s.expect(StateBitfieldReceived); err != nil {
		return err
	}
	msg := message.Message{ID: message.IDInterested}
	if _, err := s.Conn.Write(msg.Serialize()); err != nil {
		return s.fail(err)
	}
	s.State = StateInterested
	return nil
}

// AwaitUnchoke blocks until the remote unchokes us.
func (s *Session) AwaitUnchoke() error {
	if err := s.expect(StateInterested); err != nil {
		return err
	}
	msg, err := s.next()
	if err != nil {
		return s.fail(err)
	}
	if msg.ID != message.IDUnchoke {
		return s.fail(fmt.Errorf("%w: want unchoke (%d), got %d", ErrUnexpectedMessage, message.IDUnchoke, msg.ID))
	}
	s.State = StateUnchoked
	return nil
}

// SendRequest asks for one block. Only valid while unchoked.
func (s *Session) SendRequest(index, begin, length int) error {
	if err := s.expect(StateUnchoked); err != nil {
		return err
	}
	if _, err := s.Conn.Write(message.Request(index, begin, length).Serialize()); err != nil {
		return s.fail(err)
	}
	return nil
}

// ReceiveBlock waits for the PIECE frame answering the request sent for
// (index, begin) and copies its block into buf at that offset. A frame
// announcing any other (index, begin) pair fails the session.
func (s *Session) ReceiveBlock(index, begin int, buf []byte) (int, error) {
	if err := s.expect(StateUnchoked); err != nil {
		return 0, err
	}
	msg, err := s.next()
	if err != nil {
		return 0, s.fail(err)
	}
	if msg.ID != message.IDPiece {
		return 0, s.fail(fmt.Errorf("%w: want piece (%d), got %d", ErrUnexpectedMessage, message.IDPiece, msg.ID))
	}
	gotIndex, gotBegin, block, err := message.ParsePiece(msg)
	if err != nil {
		return 0, s.fail(err)
	}
	if gotIndex != index || gotBegin != begin {
		return 0, s.fail(fmt.Errorf("%w: piece for (%d, %d), requested (%d, %d)",
			ErrUnexpectedMessage, gotIndex, gotBegin, index, begin))
	}
	if begin+len(block) > len(buf) {
		return 0, s.fail(fmt.Errorf("peers: block of %d bytes overflows piece buffer at offset %d", len(block), begin))
	}
	copy(buf[begin:], block)
	return len(block), nil
}

// SendHave announces a completed piece to the remote.
func (s *Session) SendHave(index int) error {
	if err := s.expect(StateUnchoked); err != nil {
		return err
	}
	if _, err := s.Conn.Write(message.Have(index).Serialize()); err != nil {
		return s.fail(err)
	}
	return nil
}

// Close releases the socket. Safe to call more than once.
func (s *Session) Close() error {
	if s.State == StateClosed {
		return nil
	}
	s.State = StateClosed
	return s.Conn.Close()
}

// next reads frames until one arrives that the caller must act on.
// Keep-alives are dropped; HAVE updates the bitfield; PORT is ignored.
func (s *Session) next() (*message.Message, error) {
	for {
		msg, err := message.Read(s.Conn)
		if err != nil {
			return nil, err
		}
		if msg == nil {
			continue
		}
		switch msg.ID {
		case message.IDHave:
			if index, err := message.ParseHave(msg); err == nil && s.Bitfield != nil {
				s.Bitfield.SetPiece(index)
			}
			log.Debugf("peer %s announced piece", s.Peer.String())
		case message.IDPort:
		default:
			return msg, nil
		}
	}
}

func (s *Session) expect(state State) error {
	if s.State != state {
		return fmt.Errorf("%w: in %s, want %s", ErrBadState, s.State, state)
	}
	return nil
}

func (s *Session) fail(err error) error {
	s.Close()
	return err
}
