package recorder

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/catenarymaps/spruce-sync/internal/observable"
	"github.com/catenarymaps/spruce-sync/internal/protocol"
)

type fakeDB struct {
	mu       sync.Mutex
	execs    []string
	batches  [][]*pgx.QueuedQuery
	affected int64
	err      error
}

func newFakeDB() *fakeDB {
	return &fakeDB{affected: 1}
}

func (f *fakeDB) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execs = append(f.execs, sql)
	return pgconn.NewCommandTag("CREATE TABLE"), f.err
}

func (f *fakeDB) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, b.QueuedQueries)
	return &fakeResults{affected: f.affected, err: f.err}
}

func (f *fakeDB) rows() []*pgx.QueuedQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*pgx.QueuedQuery
	for _, b := range f.batches {
		out = append(out, b...)
	}
	return out
}

func (f *fakeDB) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

type fakeResults struct {
	affected int64
	err      error
}

func (r *fakeResults) Exec() (pgconn.CommandTag, error) {
	if r.err != nil {
		return pgconn.CommandTag{}, r.err
	}
	if r.affected == 0 {
		return pgconn.NewCommandTag("INSERT 0 0"), nil
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (r *fakeResults) Query() (pgx.Rows, error) { return nil, errors.New("not implemented") }
func (r *fakeResults) QueryRow() pgx.Row         { return nil }
func (r *fakeResults) Close() error              { return nil }

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within 2s")
}

func TestRecorder_EnsureSchema(t *testing.T) {
	db := newFakeDB()
	r := New(DefaultConfig(), uuid.New(), db, nil)

	if err := r.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if len(db.execs) != 1 || db.execs[0] != Schema {
		t.Errorf("execs = %v, want schema statement", db.execs)
	}
}

func TestRecorder_Record_IgnoresEmpty(t *testing.T) {
	r := New(DefaultConfig(), uuid.New(), newFakeDB(), nil)

	if r.Record(protocol.TypeUpdateTrip, nil) {
		t.Error("Record(nil) = true, want false")
	}
	if len(r.frames) != 0 {
		t.Errorf("queued = %d, want 0", len(r.frames))
	}
}

func TestRecorder_Record_DropsWhenFull(t *testing.T) {
	cfg := Config{BatchSize: 2, FlushInterval: time.Hour, BufferSize: 2}
	r := New(cfg, uuid.New(), newFakeDB(), nil)

	payload := json.RawMessage(`{"a":1}`)
	if !r.Record(protocol.TypeMapUpdate, payload) || !r.Record(protocol.TypeMapUpdate, payload) {
		t.Fatal("first two frames should queue")
	}
	if r.Record(protocol.TypeMapUpdate, payload) {
		t.Error("third frame queued into a full buffer")
	}
	if got := r.Stats().Dropped; got != 1 {
		t.Errorf("Dropped = %d, want 1", got)
	}
}

func TestRecorder_FlushOnBatchSize(t *testing.T) {
	db := newFakeDB()
	session := uuid.New()
	cfg := Config{BatchSize: 3, FlushInterval: time.Hour, BufferSize: 10}
	r := New(cfg, session, db, nil)

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer r.Stop(context.Background())

	for i := 0; i < 3; i++ {
		r.Record(protocol.TypeUpdateTrip, json.RawMessage(`{"seq":1}`))
	}

	waitFor(t, func() bool { return db.batchCount() == 1 })

	rows := db.rows()
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	args := rows[0].Arguments
	if args[1] != session {
		t.Errorf("session arg = %v, want %v", args[1], session)
	}
	if args[2] != "update_trip" {
		t.Errorf("kind arg = %v, want update_trip", args[2])
	}
	if args[3] != `{"seq":1}` {
		t.Errorf("payload arg = %v", args[3])
	}
	if rows[0].Arguments[0] == rows[1].Arguments[0] {
		t.Error("frame IDs should be unique")
	}

	waitFor(t, func() bool { return r.Stats().Flushes == 1 })
	if got := r.Stats().Inserts; got != 3 {
		t.Errorf("Inserts = %d, want 3", got)
	}
}

func TestRecorder_FlushOnInterval(t *testing.T) {
	db := newFakeDB()
	cfg := Config{BatchSize: 100, FlushInterval: 20 * time.Millisecond, BufferSize: 100}
	r := New(cfg, uuid.New(), db, nil)

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer r.Stop(context.Background())

	r.Record(protocol.TypeMapUpdate, json.RawMessage(`{"vehicles":{}}`))

	waitFor(t, func() bool { return len(db.rows()) == 1 })
}

func TestRecorder_StopFlushesRemaining(t *testing.T) {
	db := newFakeDB()
	cfg := Config{BatchSize: 100, FlushInterval: time.Hour, BufferSize: 100}
	r := New(cfg, uuid.New(), db, nil)

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	r.Record(protocol.TypeInitialTrip, json.RawMessage(`{"stops":[]}`))
	r.Record(protocol.TypeUpdateTrip, json.RawMessage(`{"delay":30}`))

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.Stop(stopCtx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if got := len(db.rows()); got != 2 {
		t.Errorf("rows after stop = %d, want 2", got)
	}
}

func TestRecorder_Conflicts(t *testing.T) {
	db := newFakeDB()
	db.affected = 0
	r := New(Config{BatchSize: 10, FlushInterval: time.Hour}, uuid.New(), db, nil)

	r.add(frameRow{ID: uuid.New(), Kind: protocol.TypeMapUpdate, Payload: json.RawMessage(`{}`)})
	r.flush(context.Background())

	stats := r.Stats()
	if stats.Conflicts != 1 || stats.Inserts != 0 {
		t.Errorf("stats = %+v, want 1 conflict and 0 inserts", stats)
	}
}

func TestRecorder_InsertError(t *testing.T) {
	db := newFakeDB()
	db.err = errors.New("connection reset")
	r := New(Config{BatchSize: 10, FlushInterval: time.Hour}, uuid.New(), db, nil)

	r.add(frameRow{ID: uuid.New(), Kind: protocol.TypeMapUpdate, Payload: json.RawMessage(`{}`)})
	r.flush(context.Background())

	stats := r.Stats()
	if stats.Errors != 1 || stats.Flushes != 0 {
		t.Errorf("stats = %+v, want 1 error and 0 flushes", stats)
	}
}

type fakeSource struct {
	snapshot *observable.Value[json.RawMessage]
	update   *observable.Value[json.RawMessage]
	mapView  *observable.Value[json.RawMessage]
	tripErr  *observable.Value[string]
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		snapshot: observable.NewValue[json.RawMessage](nil),
		update:   observable.NewValue[json.RawMessage](nil),
		mapView:  observable.NewValue[json.RawMessage](nil),
		tripErr:  observable.NewValue(""),
	}
}

func (s *fakeSource) TripSnapshot() *observable.Value[json.RawMessage] { return s.snapshot }
func (s *fakeSource) TripUpdate() *observable.Value[json.RawMessage]   { return s.update }
func (s *fakeSource) MapUpdate() *observable.Value[json.RawMessage]    { return s.mapView }
func (s *fakeSource) TripError() *observable.Value[string]             { return s.tripErr }

func TestRecorder_Watch(t *testing.T) {
	r := New(Config{BatchSize: 10, FlushInterval: time.Hour, BufferSize: 10}, uuid.New(), newFakeDB(), nil)
	src := newFakeSource()
	src.snapshot.Set(json.RawMessage(`{"trip":"a"}`))

	stop := r.Watch(src)

	// Only the pre-existing snapshot is recorded on subscribe.
	if got := len(r.frames); got != 1 {
		t.Fatalf("queued after Watch = %d, want 1", got)
	}

	src.update.Set(json.RawMessage(`{"delay":5}`))
	src.mapView.Set(json.RawMessage(`{"vehicles":{}}`))
	src.tripErr.Set("trip not found")

	if got := len(r.frames); got != 4 {
		t.Fatalf("queued = %d, want 4", got)
	}

	var kinds []protocol.MessageType
	for len(r.frames) > 0 {
		row := <-r.frames
		kinds = append(kinds, row.Kind)
		if row.Kind == protocol.TypeError && string(row.Payload) != `{"message":"trip not found"}` {
			t.Errorf("error payload = %s", row.Payload)
		}
	}
	want := []protocol.MessageType{protocol.TypeInitialTrip, protocol.TypeUpdateTrip, protocol.TypeMapUpdate, protocol.TypeError}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("kinds[%d] = %s, want %s", i, kinds[i], want[i])
		}
	}

	stop()
	src.update.Set(json.RawMessage(`{"delay":6}`))
	if got := len(r.frames); got != 0 {
		t.Errorf("queued after stop = %d, want 0", got)
	}
}
