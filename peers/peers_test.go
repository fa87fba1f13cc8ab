package peers_test

import (
	"testing"

	"github.com/minibit/peers"
)

func TestUnmarshalCompactList(t *testing.T) {
	compact := []byte("\xC0\xA8\x00\x01\x1A\xE1\x0A\x00\x00\x02\x1A\xE1")

	list, err := peers.Unmarshal(compact)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 peers, got %d", len(list))
	}
	if got := list[0].String(); got != "192.168.0.1:6881" {
		t.Errorf("peer 0 = %q, want 192.168.0.1:6881", got)
	}
	if got := list[1].String(); got != "10.0.0.2:6881" {
		t.Errorf("peer 1 = %q, want 10.0.0.2:6881", got)
	}
}

func TestUnmarshalEmptyList(t *testing.T) {
	list, err := peers.Unmarshal(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Errorf("expected no peers, got %d", len(list))
	}
}

func TestUnmarshalRaggedList(t *testing.T) {
	if _, err := peers.Unmarshal([]byte{1, 2, 3, 4, 5, 6, 7}); err == nil {
		t.Error("expected error for 7-byte list, got nil")
	}
}

func TestParseAddr(t *testing.T) {
	peer, err := peers.ParseAddr("10.0.0.2:6881")
	if err != nil {
		t.Fatal(err)
	}
	if peer.String() != "10.0.0.2:6881" {
		t.Errorf("round trip produced %q", peer.String())
	}

	for _, bad := range []string{"10.0.0.2", "nothost:x", "10.0.0.2:99999"} {
		if _, err := peers.ParseAddr(bad); err == nil {
			t.Errorf("expected error for %q, got nil", bad)
		}
	}
}
