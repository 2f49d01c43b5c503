package recorder

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/catenarymaps/spruce-sync/internal/protocol"
)

// Schema creates the frame archive table.
const Schema = `
CREATE TABLE IF NOT EXISTS sync_frames (
	id          UUID PRIMARY KEY,
	session_id  UUID NOT NULL,
	kind        TEXT NOT NULL,
	payload     JSONB NOT NULL,
	received_at TIMESTAMPTZ NOT NULL
)`

const insertFrame = `
	INSERT INTO sync_frames (id, session_id, kind, payload, received_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (id) DO NOTHING`

// DB is the subset of pgxpool.Pool the recorder uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Config holds batching settings.
type Config struct {
	BatchSize     int
	FlushInterval time.Duration
	BufferSize    int
}

// DefaultConfig returns default recorder settings.
func DefaultConfig() Config {
	return Config{
		BatchSize:     500,
		FlushInterval: time.Second,
		BufferSize:    2000,
	}
}

// Metrics tracks recorder activity.
type Metrics struct {
	Inserts   int64
	Conflicts int64
	Errors    int64
	Flushes   int64
	Dropped   int64
}

type frameRow struct {
	ID         uuid.UUID
	Kind       protocol.MessageType
	Payload    json.RawMessage
	ReceivedAt time.Time
}

// Recorder batches frames and writes them to the sync_frames table.
type Recorder struct {
	cfg     Config
	session uuid.UUID
	db      DB
	logger  *slog.Logger

	frames chan frameRow

	batch   []frameRow
	batchMu sync.Mutex
	metrics Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Recorder for one session.
func New(cfg Config, session uuid.UUID, db DB, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	if cfg.BufferSize < cfg.BatchSize {
		cfg.BufferSize = cfg.BatchSize
	}
	return &Recorder{
		cfg:     cfg,
		session: session,
		db:      db,
		logger:  logger,
		frames:  make(chan frameRow, cfg.BufferSize),
		batch:   make([]frameRow, 0, cfg.BatchSize),
	}
}

// EnsureSchema creates the archive table if it does not exist.
func (r *Recorder) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, Schema)
	return err
}

// Record queues a frame. It never blocks; frames are dropped when the
// buffer is full. Empty payloads are ignored.
func (r *Recorder) Record(kind protocol.MessageType, payload json.RawMessage) bool {
	if len(payload) == 0 {
		return false
	}
	row := frameRow{
		ID:         uuid.New(),
		Kind:       kind,
		Payload:    payload,
		ReceivedAt: time.Now(),
	}
	select {
	case r.frames <- row:
		return true
	default:
		r.batchMu.Lock()
		r.metrics.Dropped++
		r.batchMu.Unlock()
		return false
	}
}

// Start begins consuming frames and writing to the database.
func (r *Recorder) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(2)
	go r.consumeLoop()
	go r.flushLoop()

	r.logger.Info("frame recorder started",
		"session_id", r.session,
		"batch_size", r.cfg.BatchSize,
		"flush_interval", r.cfg.FlushInterval,
	)
	return nil
}

// Stop drains queued frames and performs a final flush with ctx.
func (r *Recorder) Stop(ctx context.Context) error {
	r.logger.Info("stopping frame recorder")

	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		r.logger.Warn("frame recorder stop timed out")
	}

drain:
	for {
		select {
		case row := <-r.frames:
			r.add(row)
		default:
			break drain
		}
	}

	r.flush(ctx)
	r.logger.Info("frame recorder stopped")
	return nil
}

// Stats returns current metrics.
func (r *Recorder) Stats() Metrics {
	r.batchMu.Lock()
	defer r.batchMu.Unlock()
	return r.metrics
}

func (r *Recorder) consumeLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case row := <-r.frames:
			if r.add(row) {
				r.flush(r.ctx)
			}
		}
	}
}

func (r *Recorder) flushLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.flush(r.ctx)
		}
	}
}

// add appends to the batch and reports whether it reached BatchSize.
func (r *Recorder) add(row frameRow) bool {
	r.batchMu.Lock()
	defer r.batchMu.Unlock()
	r.batch = append(r.batch, row)
	return len(r.batch) >= r.cfg.BatchSize
}

func (r *Recorder) flush(ctx context.Context) {
	r.batchMu.Lock()
	if len(r.batch) == 0 {
		r.batchMu.Unlock()
		return
	}
	batch := r.batch
	r.batch = make([]frameRow, 0, r.cfg.BatchSize)
	r.batchMu.Unlock()

	start := time.Now()

	conflicts, err := r.batchInsert(ctx, batch)
	if err != nil {
		r.logger.Error("batch insert failed", "error", err, "count", len(batch))
		r.batchMu.Lock()
		r.metrics.Errors++
		r.batchMu.Unlock()
		return
	}

	r.batchMu.Lock()
	r.metrics.Inserts += int64(len(batch) - conflicts)
	r.metrics.Conflicts += int64(conflicts)
	r.metrics.Flushes++
	r.batchMu.Unlock()

	r.logger.Debug("flushed frames",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

func (r *Recorder) batchInsert(ctx context.Context, rows []frameRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(insertFrame, row.ID, r.session, string(row.Kind), string(row.Payload), row.ReceivedAt)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
