// Package server implements the realtime room chat service.
//
// Each room has one in-memory Topic, indexed by the Registry. A Hub runs one
// Session per upgraded WebSocket connection: the session sends the room's
// recent history, then pairs an outbound task that streams topic events to the
// client with an inbound task that persists and publishes the client's
// messages. When either task stops, the other is cancelled.
//
// The HTTP side lives in the Server type, which adds room management endpoints,
// origin checking and caller authentication around the hub.
package server
