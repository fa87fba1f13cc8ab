package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/minibit/bencode"
	"github.com/minibit/p2p"
	"github.com/minibit/peers"
	"github.com/minibit/torrent"
)

const usage = `usage: minibit <command> [arguments]

commands:
  decode <bencoded-string>
  info <torrent-file>
  peers <torrent-file>
  handshake <torrent-file> <ip:port>
  download_piece -o <out> <torrent-file> <index>
  download -o <out> <torrent-file>
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	var err error
	switch command := os.Args[1]; command {
	case "decode":
		err = runDecode(os.Args[2:])
	case "info":
		err = runInfo(os.Args[2:])
	case "peers":
		err = runPeers(os.Args[2:])
	case "handshake":
		err = runHandshake(os.Args[2:])
	case "download_piece":
		err = runDownloadPiece(os.Args[2:])
	case "download":
		err = runDownload(os.Args[2:])
	default:
		err = fmt.Errorf("unknown command: %s", command)
	}
	if err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func openTorrent(path string) (*torrent.Torrent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return torrent.New(f)
}

func runDecode(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("decode wants exactly one bencoded string")
	}
	value, err := bencode.Unmarshal([]byte(args[0]))
	if err != nil {
		return err
	}
	rendered, err := json.Marshal(value)
	if err != nil {
		return err
	}
	fmt.Println(string(rendered))
	return nil
}

func runInfo(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("info wants exactly one torrent file")
	}
	tor, err := openTorrent(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Tracker URL: %s\n", tor.Announce)
	fmt.Printf("Length: %d\n", tor.Length)
	fmt.Printf("Info Hash: %x\n", tor.InfoHash)
	fmt.Printf("Piece Length: %d\n", tor.PieceLength)
	fmt.Println("Piece Hashes:")
	for _, hash := range tor.Pieces {
		fmt.Printf("%x\n", hash)
	}
	return nil
}

func runPeers(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("peers wants exactly one torrent file")
	}
	tor, err := openTorrent(args[0])
	if err != nil {
		return err
	}
	list, err := p2p.New(tor).ListPeers()
	if err != nil {
		return err
	}
	for _, peer := range list {
		fmt.Println(peer.String())
	}
	return nil
}

func runHandshake(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("handshake wants a torrent file and an ip:port")
	}
	tor, err := openTorrent(args[0])
	if err != nil {
		return err
	}
	peer, err := peers.ParseAddr(args[1])
	if err != nil {
		return err
	}
	session, err := p2p.New(tor).Handshake(peer)
	if err != nil {
		return err
	}
	defer session.Close()
	fmt.Printf("Peer ID: %x\n", session.RemoteId)
	return nil
}

func runDownloadPiece(args []string) error {
	fs := flag.NewFlagSet("download_piece", flag.ContinueOnError)
	out := fs.String("o", "", "output file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if *out == "" || len(rest) != 2 {
		return fmt.Errorf("download_piece wants -o <out> <torrent-file> <index>")
	}
	index, err := strconv.Atoi(rest[1])
	if err != nil {
		return fmt.Errorf("bad piece index %q: %w", rest[1], err)
	}
	tor, err := openTorrent(rest[0])
	if err != nil {
		return err
	}
	buf, err := p2p.New(tor).DownloadPiece(index)
	if err != nil {
		return err
	}
	return writeFile(*out, buf)
}

func runDownload(args []string) error {
	fs := flag.NewFlagSet("download", flag.ContinueOnError)
	out := fs.String("o", "", "output file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if *out == "" || len(rest) != 1 {
		return fmt.Errorf("download wants -o <out> <torrent-file>")
	}
	tor, err := openTorrent(rest[0])
	if err != nil {
		return err
	}
	buf, err := p2p.New(tor).DownloadFile()
	if err != nil {
		return err
	}
	if err := writeFile(*out, buf); err != nil {
		return err
	}
	log.Infof("downloaded %s to %s", tor.Name, *out)
	return nil
}

// writeFile publishes the result. Callers invoke it only once the
// download has fully succeeded, so a failed download creates no file; a
// failed write can still leave a truncated file behind.
func writeFile(path string, buf []byte) error {
	outFile, err := os.Create(path)
	if err != nil {
		return err
	}
	defer outFile.Close()
	if _, err := outFile.Write(buf); err != nil {
		return err
	}
	return nil
}
