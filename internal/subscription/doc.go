// Package subscription implements the Subscription Multiplexer component.
//
// The Multiplexer shares one supervised connection between:
//   - a durable trip subscription (at most one), resent after every reconnect
//   - fire-and-forget map-view updates, never replayed
//
// Inbound frames are decoded and published as trip snapshot, trip update,
// trip error, and map update values. Nothing is returned to callers;
// failures surface through those values, the connection state, or logs.
package subscription
