package protocol

import (
	"encoding/json"
	"errors"

	"github.com/catenarymaps/spruce-sync/internal/category"
	"github.com/catenarymaps/spruce-sync/internal/tiles"
)

// Errors
var (
	ErrMalformed   = errors.New("malformed frame")
	ErrUnknownType = errors.New("unknown message type")
)

// MessageType is the frame discriminator.
type MessageType string

// Outbound types.
const (
	TypeSubscribeTrip   MessageType = "subscribe_trip"
	TypeUnsubscribeTrip MessageType = "unsubscribe_trip"
	TypeUpdateMap       MessageType = "update_map"
)

// Inbound types.
const (
	TypeInitialTrip MessageType = "initial_trip"
	TypeUpdateTrip  MessageType = "update_trip"
	TypeMapUpdate   MessageType = "map_update"
	TypeError       MessageType = "error"
)

// Envelope keys owned by the codec.
const (
	KeyType      = "type"
	KeyPartition = "partition"
)

// MapViewRequest asks the server for vehicle positions in view.
type MapViewRequest struct {
	Categories []category.Category `json:"categories"`
	Partitions []string            `json:"partitions"`
	Bounds     tiles.LevelBounds   `json:"bounds"`
}

// Inbound is a decoded server frame. Payload is set for trip and map
// frames, Message for error frames.
type Inbound struct {
	Type    MessageType
	Payload json.RawMessage
	Message string
}

// updateMapWire is the wire format for update_map frames.
type updateMapWire struct {
	Type MessageType `json:"type"`
	MapViewRequest
}
