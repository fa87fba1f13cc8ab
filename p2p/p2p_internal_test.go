package p2p

import (
	"net"
	"testing"

	"github.com/minibit/peers"
)

func TestPickPeer(t *testing.T) {
	first := peers.Peer{IP: net.IPv4(10, 0, 0, 1), Port: 6881}
	second := peers.Peer{IP: net.IPv4(10, 0, 0, 2), Port: 6881}

	if _, err := pickPeer(nil); err == nil {
		t.Error("expected error for empty peer list")
	}

	got, err := pickPeer([]peers.Peer{first})
	if err != nil {
		t.Fatal(err)
	}
	if got.String() != first.String() {
		t.Errorf("single-entry list picked %s, want %s", got.String(), first.String())
	}

	got, err = pickPeer([]peers.Peer{first, second})
	if err != nil {
		t.Fatal(err)
	}
	if got.String() != second.String() {
		t.Errorf("two-entry list picked %s, want %s", got.String(), second.String())
	}
}
