package recorder

import (
	"encoding/json"

	"github.com/catenarymaps/spruce-sync/internal/observable"
	"github.com/catenarymaps/spruce-sync/internal/protocol"
)

// Source exposes the inbound streams of a subscription multiplexer.
type Source interface {
	TripSnapshot() *observable.Value[json.RawMessage]
	TripUpdate() *observable.Value[json.RawMessage]
	MapUpdate() *observable.Value[json.RawMessage]
	TripError() *observable.Value[string]
}

// Watch records every value published by src until the returned func
// is called. Values present before Watch are recorded once.
func (r *Recorder) Watch(src Source) (stop func()) {
	unsubs := []func(){
		src.TripSnapshot().Subscribe(func(v json.RawMessage) { r.Record(protocol.TypeInitialTrip, v) }),
		src.TripUpdate().Subscribe(func(v json.RawMessage) { r.Record(protocol.TypeUpdateTrip, v) }),
		src.MapUpdate().Subscribe(func(v json.RawMessage) { r.Record(protocol.TypeMapUpdate, v) }),
		src.TripError().Subscribe(func(msg string) {
			if msg == "" {
				return
			}
			payload, err := json.Marshal(map[string]string{"message": msg})
			if err != nil {
				return
			}
			r.Record(protocol.TypeError, payload)
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
