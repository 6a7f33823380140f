// Package stage holds the actors that share one connection: the sender, which
// is the only writer on the socket, and the reporters, which own groups of
// streams and route outcomes back to workers.
//
// Producers reach the sender through cloned [SenderTx] handles. The sender
// writes payloads strictly in arrival order, answers every written payload
// with a [StatusEvent] to the reporter named by the event, and on termination
// shuts the socket down before broadcasting a checkpoint [SessionEvent] to
// every reporter in the registry.
package stage
