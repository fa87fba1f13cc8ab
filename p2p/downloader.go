package p2p

import (
	"bytes"
	"crypto/sha1"
	"fmt"
	"time"

	"github.com/minibit/peers"
)

// MaxBlockSize is the block length requested from peers; only a piece's
// tail block may be shorter.
const MaxBlockSize = 16384

// Downloader drives one unchoked session through a strictly sequential
// block loop: each request is answered before the next is sent.
type Downloader struct {
	Session *peers.Session
}

// DownloadPiece fetches and verifies one piece of the given length.
func (d *Downloader) DownloadPiece(index, length int, hash [20]byte) ([]byte, error) {
	buf := make([]byte, length)

	d.Session.Conn.SetDeadline(time.Now().Add(30 * time.Second))
	defer d.Session.Conn.SetDeadline(time.Time{})

	downloaded := 0
	for downloaded < length {
		blockSize := MaxBlockSize
		if length-downloaded < blockSize {
			blockSize = length - downloaded
		}

		if err := d.Session.SendRequest(index, downloaded, blockSize); err != nil {
			return nil, err
		}
		n, err := d.Session.ReceiveBlock(index, downloaded, buf)
		if err != nil {
			return nil, err
		}
		if n != blockSize {
			return nil, fmt.Errorf("p2p: block at offset %d came back %d bytes, want %d", downloaded, n, blockSize)
		}
		downloaded += n
	}

	if err := checkIntegrity(index, hash, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func checkIntegrity(index int, want [20]byte, buf []byte) error {
	sum := sha1.Sum(buf)
	if !bytes.Equal(sum[:], want[:]) {
		return fmt.Errorf("p2p: piece %d failed integrity check", index)
	}
	return nil
}
