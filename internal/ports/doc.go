// Package ports defines the interfaces that connect the pipeline core to its
// infrastructure adapters.
//
//   - [WriteHalf]: the exclusive write side of an established byte stream
//   - [Conn]: a dialed connection that exposes its write half
//   - [Dialer]: establishes connections (tcp, websocket)
//   - [Observer]: receives sender outcomes for metrics
//   - [SessionRepository]: persists the session record across restarts
//
// internal/stage depends only on these interfaces; internal/adapters and
// internal/metrics provide the concrete implementations.
package ports
