package torrent

import (
	"crypto/sha1"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"math"

	"github.com/minibit/bencode"
)

var (
	ErrMissingInfo     = errors.New("torrent: missing info dictionary")
	ErrMissingAnnounce = errors.New("torrent: missing announce URL")
)

type Info struct {
	PieceLength uint32
	Pieces      string
	Name        string
	Length      int64
}

type MetaInfo struct {
	Info     Info
	Announce string
	InfoHash [20]byte
}

// NewInfo parses a .torrent stream. Fields are projected out of the
// decoded value tree, and the info hash is SHA-1 over the canonical
// re-encoding of the info sub-tree. Byte strings ride through the codec
// untouched, so for a well-formed file the re-encoding reproduces the
// bytes the file carries.
func NewInfo(r io.Reader) (MetaInfo, error) {
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return MetaInfo{}, fmt.Errorf("torrent: read metainfo: %w", err)
	}
	root, err := bencode.Unmarshal(data)
	if err != nil {
		return MetaInfo{}, fmt.Errorf("torrent: parse metainfo: %w", err)
	}
	dict, ok := root.(map[string]interface{})
	if !ok {
		return MetaInfo{}, fmt.Errorf("torrent: metainfo is not a dictionary")
	}
	announce, ok := dict["announce"].(string)
	if !ok {
		return MetaInfo{}, ErrMissingAnnounce
	}
	infoTree, ok := dict["info"].(map[string]interface{})
	if !ok {
		return MetaInfo{}, ErrMissingInfo
	}

	meta := MetaInfo{Announce: announce}
	if meta.Info, err = projectInfo(infoTree); err != nil {
		return MetaInfo{}, err
	}

	encoded, err := bencode.Encode(infoTree)
	if err != nil {
		return MetaInfo{}, fmt.Errorf("torrent: re-encode info dictionary: %w", err)
	}
	meta.InfoHash = sha1.Sum(encoded)
	return meta, nil
}

func projectInfo(tree map[string]interface{}) (Info, error) {
	length, ok := tree["length"].(int64)
	if !ok {
		return Info{}, fmt.Errorf("torrent: info has no integer length")
	}
	if length <= 0 {
		return Info{}, fmt.Errorf("torrent: non-positive length %d", length)
	}
	pieceLength, ok := tree["piece length"].(int64)
	if !ok {
		return Info{}, fmt.Errorf("torrent: info has no integer piece length")
	}
	if pieceLength <= 0 || pieceLength > math.MaxUint32 {
		return Info{}, fmt.Errorf("torrent: piece length %d out of range", pieceLength)
	}
	pieces, ok := tree["pieces"].(string)
	if !ok {
		return Info{}, fmt.Errorf("torrent: info has no pieces string")
	}
	name, _ := tree["name"].(string) // optional

	return Info{
		PieceLength: uint32(pieceLength),
		Pieces:      pieces,
		Name:        name,
		Length:      length,
	}, nil
}
