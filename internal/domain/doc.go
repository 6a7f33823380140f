// Package domain contains the value types shared by every stage of the
// multiplexed write pipeline.
//
// It has no dependencies on infrastructure (sockets, files, logging).
//
//   - [Stream]: opaque id of one logical stream sharing the connection
//   - [Payload]: one write unit, moved into the socket exactly once
//   - [SessionID]: reconnect-spanning identity of a logical session
//   - [StreamStatus]: per-payload outcome routed back to a reporter
package domain
