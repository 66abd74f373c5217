package rako

import "fmt"

// Rako UDP datagram constants.
const (
	// frameHeader is the first byte of every datagram sent to the bridge.
	frameHeader byte = 0x52

	// statusHeader is the first byte of every datagram received from the
	// bridge in reply to a query.
	statusHeader byte = 0x53

	// ackByte is the single-byte acknowledgement the bridge sends after
	// accepting a command.
	ackByte byte = 0xAC

	// nakByte is the single-byte rejection the bridge sends for a
	// command it cannot execute.
	nakByte byte = 0xAD
)

// Command codes understood by the bridge.
const (
	// cmdSetScene activates a scene (0-4) in a room. Data: [scene].
	cmdSetScene byte = 0x31

	// cmdSetLevel sets a channel's brightness. Data: [brightness].
	cmdSetLevel byte = 0x34
)

// Cache query codes.
const (
	// queryLevels requests the per-channel level cache snapshot.
	queryLevels byte = 0x01

	// queryScenes requests the per-room active scene snapshot.
	queryScenes byte = 0x02
)

// Cache record sizes in query responses.
const (
	levelRecordSize = 5 // roomHi roomLo channel scene level
	sceneRecordSize = 3 // roomHi roomLo scene
)

// encodeCommand builds a command datagram:
//
//	Byte 0:   header (0x52)
//	Byte 1:   payload length (room through data, exclusive of checksum)
//	Byte 2-3: room id (big-endian)
//	Byte 4:   channel id (0 = whole room)
//	Byte 5:   command code
//	Byte 6+:  command data
//	Last:     checksum (two's complement of the byte sum after the header)
func encodeCommand(roomID, channelID int, command byte, data []byte) []byte {
	payloadLen := 4 + len(data)
	frame := make([]byte, 0, 2+payloadLen+1)
	frame = append(frame,
		frameHeader,
		byte(payloadLen),
		byte(roomID>>8), byte(roomID),
		byte(channelID),
		command,
	)
	frame = append(frame, data...)
	frame = append(frame, checksum(frame[1:]))
	return frame
}

// encodeCacheQuery builds a cache snapshot query datagram.
func encodeCacheQuery(query byte) []byte {
	frame := []byte{frameHeader, 0x01, query}
	return append(frame, checksum(frame[1:]))
}

// checksum is the two's complement of the sum of the given bytes, so
// that summing payload plus checksum yields zero modulo 256.
func checksum(payload []byte) byte {
	var sum byte
	for _, b := range payload {
		sum += b
	}
	return -sum
}

// parseStatusPayload validates a status datagram (header, length and
// checksum) and returns its payload: the bytes after the query echo.
func parseStatusPayload(frame []byte) ([]byte, error) {
	if len(frame) < 4 {
		return nil, fmt.Errorf("%w: status frame too short (%d bytes)", ErrMalformedResponse, len(frame))
	}
	if frame[0] != statusHeader {
		return nil, fmt.Errorf("%w: bad status header 0x%02X", ErrMalformedResponse, frame[0])
	}
	length := int(frame[1])
	if len(frame) != 2+length+1 {
		return nil, fmt.Errorf("%w: status length %d does not match frame size %d", ErrMalformedResponse, length, len(frame))
	}
	if checksum(frame[1:len(frame)-1]) != frame[len(frame)-1] {
		return nil, fmt.Errorf("%w: status checksum mismatch", ErrMalformedResponse)
	}
	// Byte 2 echoes the query code; payload follows.
	return frame[3 : len(frame)-1], nil
}

// parseLevelRecords decodes the level cache payload into a LevelCache.
func parseLevelRecords(payload []byte) (LevelCache, error) {
	if len(payload)%levelRecordSize != 0 {
		return LevelCache{}, fmt.Errorf("%w: level payload size %d not a multiple of %d",
			ErrMalformedResponse, len(payload), levelRecordSize)
	}
	cache := NewLevelCache()
	for i := 0; i < len(payload); i += levelRecordSize {
		rec := payload[i : i+levelRecordSize]
		channel := RoomChannel{
			RoomID:    int(rec[0])<<8 | int(rec[1]),
			ChannelID: int(rec[2]),
		}
		cache.Set(channel, int(rec[3]), int(rec[4]))
	}
	return cache, nil
}

// parseSceneRecords decodes the scene cache payload into a SceneCache.
func parseSceneRecords(payload []byte) (SceneCache, error) {
	if len(payload)%sceneRecordSize != 0 {
		return nil, fmt.Errorf("%w: scene payload size %d not a multiple of %d",
			ErrMalformedResponse, len(payload), sceneRecordSize)
	}
	cache := make(SceneCache, len(payload)/sceneRecordSize)
	for i := 0; i < len(payload); i += sceneRecordSize {
		rec := payload[i : i+sceneRecordSize]
		roomID := int(rec[0])<<8 | int(rec[1])
		cache[roomID] = int(rec[2])
	}
	return cache, nil
}
