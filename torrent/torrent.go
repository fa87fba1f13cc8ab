package torrent

import (
	"crypto/rand"
	"fmt"
	"io"
)

type Torrent struct {
	PeerId      [20]byte
	Announce    string
	PieceLength uint32
	Pieces      [][20]byte
	Name        string
	PieceCount  int
	InfoHash    [20]byte
	Length      int64
}

func New(r io.Reader) (*Torrent, error) {
	meta, err := NewInfo(r)
	if err != nil {
		return nil, err
	}
	var peerId [20]byte
	if _, err := rand.Read(peerId[:]); err != nil {
		return nil, err
	}

	pieces, err := splitPieces(meta.Info.Pieces)
	if err != nil {
		return nil, err
	}
	expected := int((meta.Info.Length + int64(meta.Info.PieceLength) - 1) / int64(meta.Info.PieceLength))
	if len(pieces) != expected {
		return nil, fmt.Errorf("torrent: %d piece hashes for %d pieces", len(pieces), expected)
	}

	return &Torrent{
		PeerId:      peerId,
		Announce:    meta.Announce,
		PieceLength: meta.Info.PieceLength,
		Pieces:      pieces,
		Name:        meta.Info.Name,
		InfoHash:    meta.InfoHash,
		PieceCount:  len(pieces),
		Length:      meta.Info.Length,
	}, nil
}

// PieceSize returns the byte length of a piece: the nominal piece length
// for all but the last piece, which carries the remainder when nonzero.
func (t *Torrent) PieceSize(index int) int {
	if index == t.PieceCount-1 {
		if r := t.Length % int64(t.PieceLength); r != 0 {
			return int(r)
		}
	}
	return int(t.PieceLength)
}

func splitPieces(pieces string) ([][20]byte, error) {
	buff := []byte(pieces)
	if len(buff)%20 != 0 {
		return nil, fmt.Errorf("torrent: pieces length %d is not a multiple of 20", len(buff))
	}
	pieceCount := len(buff) / 20
	pieceBuffer := make([][20]byte, pieceCount)
	for i := 0; i < pieceCount; i++ {
		copy(pieceBuffer[i][:], buff[i*20:(i+1)*20])
	}
	return pieceBuffer, nil
}
