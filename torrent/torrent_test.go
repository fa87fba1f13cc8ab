package torrent_test

import (
	"bytes"
	"crypto/sha1"
	"fmt"
	"strings"
	"testing"

	"github.com/minibit/torrent"
)

// buildTorrent assembles canonical metainfo bytes around the given
// pieces blob.
func buildTorrent(announce string, length, pieceLength int, pieces string) string {
	info := fmt.Sprintf("d6:lengthi%de4:name5:hello12:piece lengthi%de6:pieces%d:%se",
		length, pieceLength, len(pieces), pieces)
	return fmt.Sprintf("d8:announce%d:%s4:info%se", len(announce), announce, info)
}

func pieceHashes(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		for j := 0; j < 20; j++ {
			b.WriteByte(byte(i))
		}
	}
	return b.String()
}

func TestNewProjectsFields(t *testing.T) {
	// 12345 bytes at 512 per piece -> 25 pieces, last one 57 bytes
	file := buildTorrent("http://tracker.example.com/announce", 12345, 512, pieceHashes(25))

	tor, err := torrent.New(strings.NewReader(file))
	if err != nil {
		t.Fatal(err)
	}
	if tor.Announce != "http://tracker.example.com/announce" {
		t.Errorf("wrong announce %q", tor.Announce)
	}
	if tor.Length != 12345 {
		t.Errorf("wrong length %d", tor.Length)
	}
	if tor.PieceLength != 512 {
		t.Errorf("wrong piece length %d", tor.PieceLength)
	}
	if tor.Name != "hello" {
		t.Errorf("wrong name %q", tor.Name)
	}
	if tor.PieceCount != 25 || len(tor.Pieces) != 25 {
		t.Fatalf("wrong piece count %d / %d", tor.PieceCount, len(tor.Pieces))
	}
	for j := 0; j < 20; j++ {
		if tor.Pieces[7][j] != 7 {
			t.Fatalf("piece hash 7 corrupted at byte %d", j)
		}
	}
	var zero [20]byte
	if tor.PeerId == zero {
		t.Error("peer id not generated")
	}
}

func TestInfoHashOverRawBytes(t *testing.T) {
	infoLiteral := fmt.Sprintf("d6:lengthi12345e4:name5:hello12:piece lengthi512e6:pieces%d:%se",
		25*20, pieceHashes(25))
	file := fmt.Sprintf("d8:announce18:http://example.com4:info%se", infoLiteral)

	tor, err := torrent.New(strings.NewReader(file))
	if err != nil {
		t.Fatal(err)
	}
	want := sha1.Sum([]byte(infoLiteral))
	if !bytes.Equal(tor.InfoHash[:], want[:]) {
		t.Errorf("info hash %x does not match sha1 of raw info dict %x", tor.InfoHash, want)
	}
}

func TestPieceSize(t *testing.T) {
	file := buildTorrent("http://example.com", 12345, 512, pieceHashes(25))
	tor, err := torrent.New(strings.NewReader(file))
	if err != nil {
		t.Fatal(err)
	}
	if got := tor.PieceSize(0); got != 512 {
		t.Errorf("piece 0 size %d, want 512", got)
	}
	if got := tor.PieceSize(23); got != 512 {
		t.Errorf("piece 23 size %d, want 512", got)
	}
	if got := tor.PieceSize(24); got != 57 {
		t.Errorf("last piece size %d, want 57", got)
	}

	// exact multiple: last piece is full sized
	file = buildTorrent("http://example.com", 1024, 512, pieceHashes(2))
	tor, err = torrent.New(strings.NewReader(file))
	if err != nil {
		t.Fatal(err)
	}
	if got := tor.PieceSize(1); got != 512 {
		t.Errorf("last piece of exact multiple sized %d, want 512", got)
	}
}

func TestNewRejectsBadMetainfo(t *testing.T) {
	cases := []struct {
		name string
		file string
	}{
		{"ragged pieces", buildTorrent("http://example.com", 12345, 512, "short")},
		{"piece count mismatch", buildTorrent("http://example.com", 12345, 512, pieceHashes(3))},
		{"missing announce", "d4:infod6:lengthi1e12:piece lengthi1e6:pieces20:aaaaaaaaaaaaaaaaaaaaee"},
		{"missing info", "d8:announce18:http://example.come"},
		{"zero length", buildTorrent("http://example.com", 0, 512, "")},
		{"not bencode", "not a torrent at all"},
	}
	for _, tc := range cases {
		if _, err := torrent.New(strings.NewReader(tc.file)); err == nil {
			t.Errorf("%s: expected error, got nil", tc.name)
		}
	}
}
