package rako

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// discoveryPath is the bridge's configuration document.
const discoveryPath = "/rako.xml"

// roomTypeLights marks rooms that contain controllable lights. Rooms of
// other types (switches, curtains) are not light entities.
const roomTypeLights = "lights"

// LightStream is a lazy, finite, single-pass sequence of discovered
// lights. It follows the bufio.Scanner idiom:
//
//	stream := client.DiscoverLights(ctx, session)
//	for stream.Scan() {
//	    light := stream.Light()
//	    ...
//	}
//	if err := stream.Err(); err != nil { ... }
//
// A stream cannot be restarted; call DiscoverLights again for a fresh pass.
type LightStream interface {
	// Scan advances to the next light. It returns false when the
	// sequence is exhausted or an error occurred.
	Scan() bool

	// Light returns the current light. Valid only after Scan returned true.
	Light() Light

	// Err returns the first error encountered, or nil on clean exhaustion.
	Err() error
}

// xmlRoom mirrors one <Room> element of rako.xml.
type xmlRoom struct {
	ID       int          `xml:"id,attr"`
	Type     string       `xml:"Type"`
	Title    string       `xml:"Title"`
	Channels []xmlChannel `xml:"Channel"`
}

// xmlChannel mirrors one <Channel> element within a room.
type xmlChannel struct {
	ID   int    `xml:"id,attr"`
	Name string `xml:"Name"`
}

// lightScanner streams lights out of a rako.xml document, decoding one
// room at a time so a document truncated partway still yields the rooms
// before the damage.
type lightScanner struct {
	body    io.ReadCloser
	dec     *xml.Decoder
	pending []Light
	cur     Light
	err     error
	done    bool
}

// newLightScanner wraps an open document body.
func newLightScanner(body io.ReadCloser) *lightScanner {
	return &lightScanner{
		body: body,
		dec:  xml.NewDecoder(body),
	}
}

// failedLightStream is returned when discovery cannot even start
// (request build or transport failure before the first byte).
type failedLightStream struct{ err error }

func (s *failedLightStream) Scan() bool   { return false }
func (s *failedLightStream) Light() Light { return Light{} }
func (s *failedLightStream) Err() error   { return s.err }

func (s *lightScanner) Scan() bool {
	if s.err != nil || s.done {
		return false
	}
	for len(s.pending) == 0 {
		if !s.nextRoom() {
			return false
		}
	}
	s.cur = s.pending[0]
	s.pending = s.pending[1:]
	return true
}

func (s *lightScanner) Light() Light { return s.cur }

func (s *lightScanner) Err() error { return s.err }

// nextRoom advances the decoder to the next <Room> element and queues
// its lights: the room aggregate first, then each channel.
func (s *lightScanner) nextRoom() bool {
	for {
		tok, err := s.dec.Token()
		if err != nil {
			s.finish(err)
			return false
		}

		start, ok := tok.(xml.StartElement)
		if !ok || !strings.EqualFold(start.Name.Local, "Room") {
			continue
		}

		var room xmlRoom
		if err := s.dec.DecodeElement(&room, &start); err != nil {
			s.finish(err)
			return false
		}

		// Rooms of unrecognised type are skipped, not errors.
		if !strings.EqualFold(room.Type, roomTypeLights) {
			continue
		}

		s.pending = append(s.pending, Light{
			Kind:      KindRoom,
			RoomID:    room.ID,
			RoomTitle: room.Title,
		})
		for _, ch := range room.Channels {
			s.pending = append(s.pending, Light{
				Kind:        KindChannel,
				RoomID:      room.ID,
				ChannelID:   ch.ID,
				RoomTitle:   room.Title,
				ChannelName: ch.Name,
			})
		}
		return true
	}
}

// finish closes the body and records the terminal condition. io.EOF is
// clean exhaustion; anything else is a malformed document.
func (s *lightScanner) finish(err error) {
	s.done = true
	_ = s.body.Close()
	if errors.Is(err, io.EOF) {
		return
	}
	s.err = fmt.Errorf("%w: %v", ErrMalformedResponse, err)
}

// DiscoverLights fetches rako.xml over the given HTTP session and
// returns a lazy stream of light descriptors: one room light per
// lights-type room, followed by one channel light per channel.
func (c *BridgeClient) DiscoverLights(ctx context.Context, session *http.Client) LightStream {
	url := fmt.Sprintf("http://%s%s", c.httpAddr(), discoveryPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &failedLightStream{err: fmt.Errorf("rako: building discovery request: %w", err)}
	}

	resp, err := session.Do(req)
	if err != nil {
		return &failedLightStream{err: fmt.Errorf("%w: %v", ErrMalformedResponse, err)}
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return &failedLightStream{err: fmt.Errorf("%w: discovery returned status %d", ErrMalformedResponse, resp.StatusCode)}
	}

	return newLightScanner(resp.Body)
}
