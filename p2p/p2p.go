package p2p

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/minibit/peers"
	"github.com/minibit/torrent"
	"github.com/minibit/tracker"
)

// Client composes the metainfo, tracker and peer session layers. It
// holds at most one session at a time and is built fresh per run.
type Client struct {
	Torrent *torrent.Torrent
	Port    uint16
}

func New(tr *torrent.Torrent) *Client {
	return &Client{Torrent: tr, Port: 6881}
}

// ListPeers announces to the tracker and returns the swarm's peers.
func (c *Client) ListPeers() ([]peers.Peer, error) {
	tk, err := tracker.New(c.Torrent, c.Port)
	if err != nil {
		return nil, err
	}
	return tk.GetPeers()
}

// Handshake dials the peer and completes the handshake, returning the
// session in Handshaken. The caller owns the session and must close it.
func (c *Client) Handshake(peer peers.Peer) (*peers.Session, error) {
	s, err := peers.Dial(peer, c.Torrent.InfoHash, c.Torrent.PeerId)
	if err != nil {
		return nil, err
	}
	if err := s.Handshake(); err != nil {
		return nil, err
	}
	return s, nil
}

// pickPeer selects the fixed download peer: the second tracker entry
// when available, else the first.
func pickPeer(list []peers.Peer) (peers.Peer, error) {
	switch len(list) {
	case 0:
		return peers.Peer{}, fmt.Errorf("p2p: tracker returned no peers")
	case 1:
		return list[0], nil
	default:
		return list[1], nil
	}
}

// openSession walks a fresh session to Unchoked.
func (c *Client) openSession(peer peers.Peer) (*peers.Session, error) {
	s, err := c.Handshake(peer)
	if err != nil {
		return nil, err
	}
	log.Infof("handshake complete with %s (peer id %x)", peer.String(), s.RemoteId)
	if err := s.ReceiveBitfield(); err != nil {
		return nil, err
	}
	if err := s.SendInterested(); err != nil {
		return nil, err
	}
	if err := s.AwaitUnchoke(); err != nil {
		return nil, err
	}
	return s, nil
}

func (c *Client) downloadPiece(s *peers.Session, index int) ([]byte, error) {
	if index < 0 || index >= c.Torrent.PieceCount {
		return nil, fmt.Errorf("p2p: piece index %d out of range [0, %d)", index, c.Torrent.PieceCount)
	}
	if !s.Bitfield.HasPiece(index) {
		return nil, fmt.Errorf("p2p: peer %s does not have piece %d", s.Peer.String(), index)
	}
	d := &Downloader{Session: s}
	buf, err := d.DownloadPiece(index, c.Torrent.PieceSize(index), c.Torrent.Pieces[index])
	if err != nil {
		return nil, err
	}
	if err := s.SendHave(index); err != nil {
		log.Warnf("failed to announce piece %d to %s: %v", index, s.Peer.String(), err)
	}
	return buf, nil
}

// DownloadPiece fetches a single verified piece over a fresh session.
func (c *Client) DownloadPiece(index int) ([]byte, error) {
	list, err := c.ListPeers()
	if err != nil {
		return nil, err
	}
	peer, err := pickPeer(list)
	if err != nil {
		return nil, err
	}
	s, err := c.openSession(peer)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	return c.downloadPiece(s, index)
}

// DownloadFile fetches every piece in order over one session and
// concatenates them.
func (c *Client) DownloadFile() ([]byte, error) {
	list, err := c.ListPeers()
	if err != nil {
		return nil, err
	}
	peer, err := pickPeer(list)
	if err != nil {
		return nil, err
	}
	s, err := c.openSession(peer)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	buf := make([]byte, 0, c.Torrent.Length)
	for index := 0; index < c.Torrent.PieceCount; index++ {
		piece, err := c.downloadPiece(s, index)
		if err != nil {
			return nil, err
		}
		buf = append(buf, piece...)

		percent := float64(index+1) / float64(c.Torrent.PieceCount) * 100
		log.Infof("(%0.2f%%) Downloaded piece #%d from %s", percent, index, s.Peer.String())
	}
	if int64(len(buf)) != c.Torrent.Length {
		return nil, fmt.Errorf("p2p: downloaded %d bytes, want %d", len(buf), c.Torrent.Length)
	}
	return buf, nil
}
