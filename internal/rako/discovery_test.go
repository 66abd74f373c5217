package rako

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
)

const discoveryDocument = `<?xml version="1.0" encoding="UTF-8"?>
<rako>
  <rooms>
    <Room id="5">
      <Type>Lights</Type>
      <Title>Kitchen</Title>
      <Channel id="1"><Name>Spots</Name></Channel>
      <Channel id="2"><Name>Worktop</Name></Channel>
    </Room>
    <Room id="9">
      <Type>Blinds</Type>
      <Title>Study</Title>
      <Channel id="1"><Name>Blind</Name></Channel>
    </Room>
    <Room id="12">
      <Type>Lights</Type>
      <Title>Hall</Title>
    </Room>
  </rooms>
</rako>`

// newTestClient points a BridgeClient at an httptest server.
func newTestClient(t *testing.T, srv *httptest.Server) *BridgeClient {
	t.Helper()

	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parsing test server URL: %v", err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("parsing test server port: %v", err)
	}

	client, err := NewBridgeClient(ClientConfig{
		Host:     u.Hostname(),
		HTTPPort: port,
		MAC:      "00:11:22:33:44:55",
		Name:     "Test Bridge",
	})
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}
	return client
}

func collectLights(stream LightStream) ([]Light, error) {
	var lights []Light
	for stream.Scan() {
		lights = append(lights, stream.Light())
	}
	return lights, stream.Err()
}

func TestDiscoverLights(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != discoveryPath {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, discoveryDocument)
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	lights, err := collectLights(client.DiscoverLights(context.Background(), srv.Client()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []Light{
		{Kind: KindRoom, RoomID: 5, RoomTitle: "Kitchen"},
		{Kind: KindChannel, RoomID: 5, ChannelID: 1, RoomTitle: "Kitchen", ChannelName: "Spots"},
		{Kind: KindChannel, RoomID: 5, ChannelID: 2, RoomTitle: "Kitchen", ChannelName: "Worktop"},
		{Kind: KindRoom, RoomID: 12, RoomTitle: "Hall"},
	}

	if len(lights) != len(want) {
		t.Fatalf("discovered %d lights, want %d: %+v", len(lights), len(want), lights)
	}
	for i, w := range want {
		if lights[i] != w {
			t.Errorf("light[%d] = %+v, want %+v", i, lights[i], w)
		}
	}
}

// A document truncated mid-room yields the rooms before the damage and
// then reports a malformed response.
func TestDiscoverLightsTruncatedDocument(t *testing.T) {
	truncated := `<?xml version="1.0"?>
<rako><rooms>
  <Room id="5"><Type>Lights</Type><Title>Kitchen</Title></Room>
  <Room id="6"><Type>Lights</Type><Title>Lounge`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, truncated)
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	lights, err := collectLights(client.DiscoverLights(context.Background(), srv.Client()))

	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("error = %v, want ErrMalformedResponse", err)
	}
	if len(lights) != 1 || lights[0].RoomTitle != "Kitchen" {
		t.Errorf("lights before failure = %+v, want just Kitchen room light", lights)
	}
}

func TestDiscoverLightsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	stream := client.DiscoverLights(context.Background(), srv.Client())

	if stream.Scan() {
		t.Error("Scan() = true on HTTP error, want false")
	}
	if !errors.Is(stream.Err(), ErrMalformedResponse) {
		t.Errorf("error = %v, want ErrMalformedResponse", stream.Err())
	}
}

// Each call to DiscoverLights is an independent pass; an exhausted
// stream stays exhausted.
func TestLightStreamSinglePass(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, discoveryDocument)
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	stream := client.DiscoverLights(context.Background(), srv.Client())

	count := 0
	for stream.Scan() {
		count++
	}
	if count == 0 {
		t.Fatal("first pass discovered nothing")
	}
	if stream.Scan() {
		t.Error("Scan() = true after exhaustion, want false")
	}
}
