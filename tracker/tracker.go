package tracker

import (
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/minibit/bencode"
	"github.com/minibit/peers"
	"github.com/minibit/torrent"
)

type Tracker struct {
	RawUrl *url.URL
	Params url.Values
	Client *http.Client
}

// New builds the announce request for a fresh client. The raw info hash
// and peer id bytes ride through url.Values; URL percent-escapes every
// non-unreserved byte of them.
func New(tr *torrent.Torrent, port uint16) (*Tracker, error) {
	base, err := url.Parse(tr.Announce)
	if err != nil {
		return nil, fmt.Errorf("tracker: bad announce URL %q: %w", tr.Announce, err)
	}
	params := url.Values{
		"info_hash":  []string{string(tr.InfoHash[:])},
		"peer_id":    []string{string(tr.PeerId[:])},
		"port":       []string{strconv.Itoa(int(port))},
		"uploaded":   []string{"0"},
		"downloaded": []string{"0"},
		"compact":    []string{"1"},
		"left":       []string{strconv.FormatInt(tr.Length, 10)},
	}

	return &Tracker{
		RawUrl: base,
		Params: params,
		Client: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// URL renders the announce URL. url.Values.Encode writes a space byte as
// '+', so that is rewritten to %20 to keep every escape a percent escape.
func (t *Tracker) URL() string {
	t.RawUrl.RawQuery = strings.ReplaceAll(t.Params.Encode(), "+", "%20")
	return t.RawUrl.String()
}

// GetPeers announces to the tracker and returns the compact peer list
// projected out of the decoded response.
func (t *Tracker) GetPeers() ([]peers.Peer, error) {
	resp, err := t.Client.Get(t.URL())
	if err != nil {
		return nil, fmt.Errorf("tracker: announce: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("tracker: announce returned status %s", resp.Status)
	}
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tracker: read response: %w", err)
	}

	root, err := bencode.Unmarshal(body)
	if err != nil {
		return nil, fmt.Errorf("tracker: decode response: %w", err)
	}
	dict, ok := root.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("tracker: response is not a dictionary")
	}
	compact, ok := dict["peers"].(string)
	if !ok {
		return nil, fmt.Errorf("tracker: response carries no peers")
	}
	if interval, ok := dict["interval"].(int64); ok {
		trackerId, _ := dict["tracker id"].(string)
		log.Debugf("tracker announced interval %ds, tracker id %q", interval, trackerId)
	}

	return peers.Unmarshal([]byte(compact))
}
