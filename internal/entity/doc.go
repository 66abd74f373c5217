// Package entity wraps discovered Rako lights and scenes as
// platform-facing entities and orchestrates their setup.
//
// A Light entity represents either a single dimmable channel or a whole
// room (driven by scene activation). A Scene entity represents one of
// the four fixed room presets. Commands update local state
// optimistically, publish it immediately, then confirm against the
// bridge under a fixed timeout. Failures never propagate to the
// platform; they flip the entity's availability flag instead, and the
// flag is what consumers watch.
//
// Setup fetches the bridge's cache snapshot once, then consumes the
// discovery stream to build entities. Light setup retries transient
// discovery failures; scene setup does not.
//
// # Command Serialisation
//
// The Dispatcher executes commands for one entity strictly in order,
// so entity state needs no coordination beyond its own mutex. Distinct
// entities run concurrently.
package entity
