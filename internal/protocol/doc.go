// Package protocol implements the JSON frame codec for the realtime sync
// socket.
//
// Every frame is a JSON object with a "type" discriminator. Outbound
// frames merge their fields at the top level:
//   - subscribe_trip / unsubscribe_trip: partition plus caller params
//   - update_map: categories, partitions, bounds
//
// Inbound frames are decoded into an Inbound value:
//   - initial_trip / update_trip: payload under "data"
//   - map_update: payload under "data", "map_update", or inline
//   - error: text under "message"
package protocol
