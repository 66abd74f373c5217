// Package rako implements the client side of the Rako lighting bridge
// protocol: discovery of channel and room lights from the bridge's XML
// document, a snapshot of the bridge's level and scene caches, and the
// UDP commands that set channel brightness or activate room scenes.
//
// The package deliberately stops at the protocol boundary. Entity
// behaviour (optimistic state, availability, retry policy) lives in
// internal/entity; this package only moves bytes and parses documents.
//
// # Protocol Surfaces
//
//   - HTTP: GET /rako.xml returns the bridge configuration document
//     listing rooms and channels. Parsed lazily via a LightStream.
//   - UDP: command datagrams (set level, set scene) and the cache
//     snapshot query, all on the bridge's UDP port (default 9761).
//
// Thread Safety: BridgeClient is safe for concurrent use; each call
// opens its own UDP exchange. LightStream instances are not safe for
// concurrent use and are single-pass.
package rako
