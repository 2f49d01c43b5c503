package subscription

import (
	"encoding/json"
	"errors"
	"log/slog"
	"maps"
	"sync"

	"github.com/catenarymaps/spruce-sync/internal/observable"
	"github.com/catenarymaps/spruce-sync/internal/protocol"
)

// Connection is the supervised socket the Multiplexer sends through.
type Connection interface {
	EnsureConnection()
	Send(data []byte) bool
	Opens() uint64
	OnConnected(fn func()) (remove func())
	OnMessage(fn func(data []byte)) (remove func())
}

// TripSubscription is the active trip detail stream.
type TripSubscription struct {
	Partition string
	Params    map[string]any
}

// Multiplexer routes trip and map-view traffic over one Connection.
type Multiplexer struct {
	conn   Connection
	logger *slog.Logger

	mu     sync.Mutex
	active *TripSubscription

	// sendMu orders trip frames against the resubscribe hook, which runs
	// on the connection's dial goroutine.
	sendMu   sync.Mutex
	sentSub  *TripSubscription
	sentOpen uint64

	tripSnapshot *observable.Value[json.RawMessage]
	tripUpdate   *observable.Value[json.RawMessage]
	tripError    *observable.Value[string]
	mapUpdate    *observable.Value[json.RawMessage]

	removeHook    func()
	removeHandler func()
}

// New creates a Multiplexer and registers its resubscribe hook and
// message handler on conn.
func New(conn Connection, logger *slog.Logger) *Multiplexer {
	if logger == nil {
		logger = slog.Default()
	}

	m := &Multiplexer{
		conn:         conn,
		logger:       logger,
		tripSnapshot: observable.NewValue[json.RawMessage](nil),
		tripUpdate:   observable.NewValue[json.RawMessage](nil),
		tripError:    observable.NewValue(""),
		mapUpdate:    observable.NewValue[json.RawMessage](nil),
	}

	m.removeHook = conn.OnConnected(m.resubscribe)
	m.removeHandler = conn.OnMessage(m.handle)

	return m
}

// TripSnapshot is the latest initial_trip payload.
func (m *Multiplexer) TripSnapshot() *observable.Value[json.RawMessage] { return m.tripSnapshot }

// TripUpdate is the latest update_trip payload.
func (m *Multiplexer) TripUpdate() *observable.Value[json.RawMessage] { return m.tripUpdate }

// TripError is the latest server error text.
func (m *Multiplexer) TripError() *observable.Value[string] { return m.tripError }

// MapUpdate is the latest normalized map_update payload.
func (m *Multiplexer) MapUpdate() *observable.Value[json.RawMessage] { return m.mapUpdate }

// Active returns the current trip subscription, if any.
func (m *Multiplexer) Active() (TripSubscription, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return TripSubscription{}, false
	}
	return TripSubscription{Partition: m.active.Partition, Params: maps.Clone(m.active.Params)}, true
}

// SubscribeTrip replaces the trip subscription and requests the new trip.
// The replaced subscription is not unsubscribed on the wire.
func (m *Multiplexer) SubscribeTrip(partition string, params map[string]any) {
	sub := &TripSubscription{Partition: partition, Params: maps.Clone(params)}

	m.clearTrip()

	m.sendMu.Lock()
	defer m.sendMu.Unlock()

	m.mu.Lock()
	replaced := m.active != nil
	m.active = sub
	m.mu.Unlock()

	m.logger.Info("subscribing trip", "partition", partition, "replaced", replaced)

	m.conn.EnsureConnection()
	// Read before sending: a frame sent while Opens is n went out on
	// connection n, whose hook then has nothing to add.
	opens := m.conn.Opens()
	if m.sendTrip(protocol.TypeSubscribeTrip, sub) {
		m.sentSub = sub
		m.sentOpen = opens
	}
}

// UnsubscribeTrip sends a best-effort unsubscribe for the active trip and
// clears it locally whether or not the frame was sent.
func (m *Multiplexer) UnsubscribeTrip() {
	m.sendMu.Lock()
	m.mu.Lock()
	sub := m.active
	m.active = nil
	m.mu.Unlock()

	if sub != nil {
		m.logger.Info("unsubscribing trip", "partition", sub.Partition)
		m.sendTrip(protocol.TypeUnsubscribeTrip, sub)
	}
	m.sentSub = nil
	m.sendMu.Unlock()

	m.clearTrip()
}

// UpdateMapView sends a map-view request. Nothing is retained; the
// server's next map_update is the only feedback.
func (m *Multiplexer) UpdateMapView(req protocol.MapViewRequest) {
	data, err := protocol.EncodeUpdateMap(req)
	if err != nil {
		m.logger.Error("failed to encode map view", "error", err)
		return
	}

	m.conn.EnsureConnection()
	if !m.conn.Send(data) {
		m.logger.Debug("map view update dropped",
			"categories", len(req.Categories),
			"partitions", len(req.Partitions),
		)
	}
}

// Close unsubscribes the trip and detaches from the connection.
func (m *Multiplexer) Close() {
	m.UnsubscribeTrip()
	m.removeHook()
	m.removeHandler()
}

// resubscribe runs on every connection open. It skips a subscription
// that SubscribeTrip already sent on this connection.
func (m *Multiplexer) resubscribe() {
	m.sendMu.Lock()
	defer m.sendMu.Unlock()

	m.mu.Lock()
	sub := m.active
	m.mu.Unlock()

	if sub == nil {
		return
	}
	if sub == m.sentSub && m.sentOpen == m.conn.Opens() {
		m.logger.Debug("trip already sent on this connection", "partition", sub.Partition)
		return
	}

	m.logger.Info("resubscribing trip after connect", "partition", sub.Partition)
	m.sendTrip(protocol.TypeSubscribeTrip, sub)
}

func (m *Multiplexer) sendTrip(t protocol.MessageType, sub *TripSubscription) bool {
	var (
		data []byte
		err  error
	)
	switch t {
	case protocol.TypeSubscribeTrip:
		data, err = protocol.EncodeSubscribeTrip(sub.Partition, sub.Params)
	default:
		data, err = protocol.EncodeUnsubscribeTrip(sub.Partition, sub.Params)
	}
	if err != nil {
		m.logger.Error("failed to encode trip frame", "type", t, "error", err)
		return false
	}

	if !m.conn.Send(data) {
		m.logger.Debug("trip frame dropped", "type", t, "partition", sub.Partition)
		return false
	}
	return true
}

func (m *Multiplexer) clearTrip() {
	m.tripSnapshot.Set(nil)
	m.tripUpdate.Set(nil)
	m.tripError.Set("")
}

// handle decodes and publishes one inbound frame. Bad frames are logged
// and dropped; the connection stays open.
func (m *Multiplexer) handle(data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		if errors.Is(err, protocol.ErrUnknownType) {
			m.logger.Warn("ignoring unknown message", "error", err)
		} else {
			m.logger.Warn("dropping malformed frame", "error", err, "bytes", len(data))
		}
		return
	}

	switch msg.Type {
	case protocol.TypeInitialTrip:
		m.tripSnapshot.Set(msg.Payload)
	case protocol.TypeUpdateTrip:
		m.tripUpdate.Set(msg.Payload)
	case protocol.TypeMapUpdate:
		m.mapUpdate.Set(msg.Payload)
	case protocol.TypeError:
		m.logger.Error("server error", "message", msg.Message)
		m.tripError.Set(msg.Message)
	}
}
