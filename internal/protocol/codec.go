package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/catenarymaps/spruce-sync/internal/category"
)

// partitionKeys mark an envelope that carries a map update inline.
var partitionKeys = []string{"partitions", "chateaus"}

// EncodeSubscribeTrip builds a subscribe_trip frame. Params cannot
// override the type or partition keys.
func EncodeSubscribeTrip(partition string, params map[string]any) ([]byte, error) {
	return encodeTrip(TypeSubscribeTrip, partition, params)
}

// EncodeUnsubscribeTrip builds an unsubscribe_trip frame.
func EncodeUnsubscribeTrip(partition string, params map[string]any) ([]byte, error) {
	return encodeTrip(TypeUnsubscribeTrip, partition, params)
}

// encodeTrip spreads params into the envelope. The type and partition
// keys always carry the codec's values.
func encodeTrip(t MessageType, partition string, params map[string]any) ([]byte, error) {
	msg := make(map[string]any, len(params)+2)
	for k, v := range params {
		msg[k] = v
	}
	msg[KeyType] = t
	msg[KeyPartition] = partition

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", t, err)
	}
	return data, nil
}

// EncodeUpdateMap builds an update_map frame.
func EncodeUpdateMap(req MapViewRequest) ([]byte, error) {
	if req.Categories == nil {
		req.Categories = []category.Category{}
	}
	if req.Partitions == nil {
		req.Partitions = []string{}
	}

	data, err := json.Marshal(updateMapWire{Type: TypeUpdateMap, MapViewRequest: req})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", TypeUpdateMap, err)
	}
	return data, nil
}

// Decode parses a server frame. It returns an error wrapping ErrMalformed
// for invalid JSON and ErrUnknownType for an unrecognized discriminator.
func Decode(data []byte) (Inbound, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if fields == nil {
		return Inbound{}, fmt.Errorf("%w: not an object", ErrMalformed)
	}

	var t MessageType
	if raw, ok := fields[KeyType]; ok {
		if err := json.Unmarshal(raw, &t); err != nil {
			return Inbound{}, fmt.Errorf("%w: type: %v", ErrMalformed, err)
		}
	}

	switch t {
	case TypeInitialTrip, TypeUpdateTrip:
		return Inbound{Type: t, Payload: fields["data"]}, nil

	case TypeMapUpdate:
		payload, err := extractMapUpdate(fields)
		if err != nil {
			return Inbound{}, err
		}
		return Inbound{Type: t, Payload: payload}, nil

	case TypeError:
		return Inbound{Type: t, Message: messageText(fields["message"])}, nil
	}

	return Inbound{}, fmt.Errorf("%w: %q", ErrUnknownType, t)
}

// payloadPath extracts one candidate location of a map update payload.
type payloadPath struct {
	name    string
	extract func(map[string]json.RawMessage) json.RawMessage
}

// mapUpdatePaths are tried in order; the first non-empty candidate wins.
var mapUpdatePaths = []payloadPath{
	{name: "data", extract: field("data")},
	{name: "map_update", extract: field("map_update")},
	{name: "inline", extract: inlinePayload},
}

func field(key string) func(map[string]json.RawMessage) json.RawMessage {
	return func(fields map[string]json.RawMessage) json.RawMessage {
		return fields[key]
	}
}

// inlinePayload returns the envelope without its discriminator when it
// carries a partitions-like key.
func inlinePayload(fields map[string]json.RawMessage) json.RawMessage {
	found := false
	for _, k := range partitionKeys {
		if _, ok := fields[k]; ok {
			found = true
			break
		}
	}
	if !found {
		return nil
	}

	rest := make(map[string]json.RawMessage, len(fields))
	for k, v := range fields {
		if k != KeyType {
			rest[k] = v
		}
	}
	data, err := json.Marshal(rest)
	if err != nil {
		return nil
	}
	return data
}

func extractMapUpdate(fields map[string]json.RawMessage) (json.RawMessage, error) {
	for _, p := range mapUpdatePaths {
		candidate := p.extract(fields)
		if isEmpty(candidate) {
			continue
		}
		payload, err := normalize(candidate)
		if err != nil {
			return nil, fmt.Errorf("%w: map_update %s: %v", ErrMalformed, p.name, err)
		}
		return payload, nil
	}
	return nil, fmt.Errorf("%w: map_update without payload", ErrMalformed)
}

// isEmpty reports whether a candidate carries no usable payload.
func isEmpty(raw json.RawMessage) bool {
	switch string(bytes.TrimSpace(raw)) {
	case "", "null", "{}", "[]", `""`:
		return true
	}
	return false
}

// normalize compacts the payload and sorts the keys of a top-level
// object, so equal payloads compare equal byte-for-byte regardless of
// where they were nested.
func normalize(raw json.RawMessage) (json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil && obj != nil {
		return json.Marshal(obj)
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// messageText returns the error text, falling back to the raw JSON when
// the server sent something other than a string.
func messageText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
