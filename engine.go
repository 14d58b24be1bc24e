package notesync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fridgenotes/notesync.go/pkg/backoff"
	"github.com/fridgenotes/notesync.go/pkg/channel"
	"github.com/fridgenotes/notesync.go/pkg/config"
	"github.com/fridgenotes/notesync.go/pkg/connectivity"
	"github.com/fridgenotes/notesync.go/pkg/kv"
	"github.com/fridgenotes/notesync.go/pkg/logger"
	"github.com/fridgenotes/notesync.go/pkg/models"
	"github.com/fridgenotes/notesync.go/pkg/opqueue"
	"github.com/fridgenotes/notesync.go/pkg/state"
	"github.com/fridgenotes/notesync.go/pkg/transport"
)

// Options configures an Engine.
type Options struct {
	// SessionUserID identifies the local user. Reorder broadcasts from
	// other users are ignored during remote merges.
	SessionUserID string

	// Store persists the operation queue. Required.
	Store kv.Store

	// Client executes mutations against the REST boundary. Required.
	Client transport.Client

	// ChannelTransport dials the realtime endpoint. Required.
	ChannelTransport channel.Transport

	// Config supplies tunables; nil loads defaults.
	Config *config.Config

	Logger logger.Logger
}

// Result is the outcome of a mutation handed to Do.
type Result struct {
	// Queued is set when the mutation could not complete synchronously and
	// now waits in the durable queue. The optimistic state is in place, so
	// the UI can show the entity with a pending indicator.
	Queued bool

	// Note is the authoritative server entity after a direct success, when
	// the operation kind produces one.
	Note *models.Note

	// Undo reverts the optimistic apply. On a rejected (non-retryable)
	// failure the engine leaves local state in place and the caller decides
	// whether to pass this to Rollback.
	Undo state.Undo
}

// maxRecentErrors bounds the status error log.
const maxRecentErrors = 20

// Engine is the sync orchestrator: the composition root owning the
// connectivity monitor, durable queue, realtime channel manager, and the
// optimistic state coordinator.
type Engine struct {
	monitor *connectivity.Monitor
	queue   *opqueue.Queue
	channel *channel.Manager
	coord   *state.Coordinator
	client  transport.Client
	timeout time.Duration
	userID  string
	log     logger.Logger

	status statusTracker
}

// New builds an Engine and wires its components together.
func New(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, errors.New("notesync: store is required")
	}
	if opts.Client == nil {
		return nil, errors.New("notesync: transport client is required")
	}
	if opts.ChannelTransport == nil {
		return nil, errors.New("notesync: channel transport is required")
	}

	cfg := opts.Config
	if cfg == nil {
		loaded, err := config.Default()
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	e := &Engine{
		client:  opts.Client,
		timeout: cfg.Transport.Timeout,
		userID:  opts.SessionUserID,
		log:     log,
	}

	e.monitor = connectivity.NewMonitor(cfg.Monitor.SettleDelay, log)

	e.queue = opqueue.New(opts.Store, opqueue.Options{
		Capacity:    cfg.Queue.Capacity,
		MaxAttempts: cfg.Queue.MaxAttempts,
		Backoff: &backoff.Exponential{
			InitialDelay: cfg.Queue.BackoffBase,
			MaxDelay:     cfg.Queue.BackoffMax,
			Multiplier:   2.0,
			Jitter:       true,
			JitterFactor: 0.3,
		},
		Terminal: func(err error) bool { return !transport.Retryable(err) },
		OnDrop:   e.status.record,
		Logger:   log,
	})

	mgr, err := channel.NewManager(channel.Options{
		URL:       cfg.Channel.URL,
		Transport: opts.ChannelTransport,
		Reconnect: &backoff.Exponential{
			InitialDelay: cfg.Channel.ReconnectBase,
			MaxDelay:     cfg.Channel.ReconnectMax,
			Multiplier:   2.0,
			Jitter:       true,
			JitterFactor: 0.3,
			MaxRetries:   cfg.Channel.ReconnectAttempts,
		},
		Logger: log,
	})
	if err != nil {
		return nil, err
	}
	e.channel = mgr

	e.coord = state.NewCoordinator(opts.SessionUserID, log)

	e.monitor.OnRecovery(func() {
		go e.drain(context.Background())
	})
	e.registerRemoteHandlers()

	return e, nil
}

// OpenStore opens the queue store selected by the storage configuration.
func OpenStore(cfg config.StorageConfig) (kv.Store, error) {
	switch cfg.Backend {
	case "sqlite":
		return kv.NewSQLiteStore(cfg.Path)
	default:
		return kv.NewFileStore(cfg.Path)
	}
}

// Monitor exposes the connectivity monitor so the embedding application can
// feed it the runtime's online/offline signal.
func (e *Engine) Monitor() *connectivity.Monitor { return e.monitor }

// Channel exposes the realtime channel manager for room membership and
// presence concerns owned by the UI layer.
func (e *Engine) Channel() *channel.Manager { return e.channel }

// Coordinator exposes the read side of the entity cache.
func (e *Engine) Coordinator() *state.Coordinator { return e.coord }

// Do runs one mutation end to end.
//
// The optimistic change is applied first in every case. Online, the engine
// attempts the transport directly: a success confirms the server entity; a
// retryable failure quietly enqueues the operation (the failure may be
// transient, so "online but request failed" is never treated as a
// rejection); a definitive server rejection is returned immediately with
// the optimistic state left in place — the caller decides whether to pass
// Result.Undo to Rollback. Offline, the operation is enqueued at once and
// Result.Queued is set.
func (e *Engine) Do(ctx context.Context, m state.Mutation) (Result, error) {
	undo, err := e.coord.ApplyOptimistic(&m)
	if err != nil {
		return Result{}, err
	}

	op, err := operationFrom(m)
	if err != nil {
		e.coord.Rollback(undo)
		return Result{}, err
	}

	if !e.monitor.Online() {
		e.queue.Enqueue(op)
		e.log.Debug("notesync: offline, queued operation", "kind", op.Kind, "note_id", op.NoteID)
		return Result{Queued: true, Undo: undo}, nil
	}

	res, err := e.execute(ctx, op)
	if err == nil {
		note := e.applyResult(op, res)
		e.status.touch()
		e.emitLocal(m)
		return Result{Note: note, Undo: undo}, nil
	}

	if transport.Retryable(err) {
		e.queue.Enqueue(op)
		e.log.Warn("notesync: direct attempt failed, queued for retry",
			"kind", op.Kind, "note_id", op.NoteID, "error", err)
		return Result{Queued: true, Undo: undo}, nil
	}

	return Result{Undo: undo}, err
}

// Rollback reverts an optimistic mutation after the caller decided a
// rejection was a real failure.
func (e *Engine) Rollback(u state.Undo) {
	e.coord.Rollback(u)
}

// ForceSync drains the queue now, regardless of connectivity signals.
func (e *Engine) ForceSync(ctx context.Context) error {
	return e.drain(ctx)
}

// ClearQueue discards every pending operation. User-initiated only: the
// queued mutations are lost for good.
func (e *Engine) ClearQueue() {
	e.queue.Clear()
}

// Close releases the monitor and the realtime channel. The queue store is
// owned by the caller.
func (e *Engine) Close() error {
	e.monitor.Close()
	return e.channel.Close()
}

func (e *Engine) drain(ctx context.Context) error {
	e.status.beginSync()
	defer e.status.endSync()

	err := e.queue.Drain(ctx, func(ctx context.Context, op opqueue.Operation) error {
		res, execErr := e.execute(ctx, op)
		if execErr != nil {
			return execErr
		}
		e.applyResult(op, res)
		return nil
	})

	e.status.touch()
	return err
}

// execute runs one transport attempt under the configured timeout. A
// deadline hit is reported as a timeout failure, which the retry path
// treats exactly like a network failure.
func (e *Engine) execute(ctx context.Context, op opqueue.Operation) (json.RawMessage, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	res, err := transport.Dispatch(ctx, e.client, op)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		return nil, transport.NewTimeout(err)
	}
	return res, err
}

// applyResult folds a successful transport response into the coordinator.
func (e *Engine) applyResult(op opqueue.Operation, res json.RawMessage) *models.Note {
	switch op.Kind {
	case opqueue.KindDelete:
		e.coord.Forget(op.NoteID)
		return nil
	case opqueue.KindReorder, opqueue.KindCustom:
		return nil
	default:
		if len(res) == 0 {
			return nil
		}
		var note models.Note
		if err := json.Unmarshal(res, &note); err != nil {
			e.log.Warn("notesync: unparseable server entity in response",
				"kind", op.Kind, "note_id", op.NoteID, "error", err)
			return nil
		}
		e.coord.Confirm(op.NoteID, note)
		return &note
	}
}

// emitLocal broadcasts a confirmed local mutation to other sessions,
// best-effort. Durable delivery is the queue's job, not the channel's.
func (e *Engine) emitLocal(m state.Mutation) {
	var (
		event   string
		payload any
	)

	switch m.Kind {
	case opqueue.KindUpdate:
		event = models.EmitNoteUpdated
		payload = models.NoteUpdatedEvent{NoteID: m.NoteID, UserID: e.userID, Fields: m.Fields}
	case opqueue.KindToggleItem:
		note, ok := e.coord.Get(m.NoteID)
		if !ok {
			return
		}
		completed := false
		for _, item := range note.Items {
			if item.ID == m.ItemID {
				completed = item.Completed
				break
			}
		}
		event = models.EmitItemToggled
		payload = models.ItemToggledEvent{NoteID: m.NoteID, ItemID: m.ItemID, Completed: completed, UserID: e.userID}
	case opqueue.KindReorder:
		event = models.EmitNotesReordered
		payload = models.NotesReorderedEvent{UserID: e.userID, NoteIDs: m.Order}
	default:
		return
	}

	if err := e.channel.Emit(event, payload); err != nil {
		e.log.Debug("notesync: best-effort emit failed", "event", event, "error", err)
	}
}

func (e *Engine) registerRemoteHandlers() {
	channel.OnEvent(e.channel, func(ev models.NoteUpdatedEvent) {
		e.coord.ApplyRemote(ev)
	})
	channel.OnEvent(e.channel, func(ev models.ItemToggledEvent) {
		e.coord.ApplyRemote(ev)
	})
	channel.OnEvent(e.channel, func(ev models.NotesReorderedEvent) {
		e.coord.ApplyRemote(ev)
	})
	channel.OnEvent(e.channel, func(ev models.NoteSharedEvent) {
		e.log.Info("notesync: note shared",
			"note_id", ev.NoteID, "shared_with", ev.SharedWithUserID, "access", ev.AccessLevel)
	})
}

// mutationPayload is the serialized form of a mutation inside a queued
// operation.
type mutationPayload struct {
	Note   *models.Note    `json:"note,omitempty"`
	Fields map[string]any  `json:"fields,omitempty"`
	ItemID string          `json:"item_id,omitempty"`
	Label  *models.Label   `json:"label,omitempty"`
	Order  []string        `json:"order,omitempty"`
	Custom json.RawMessage `json:"custom,omitempty"`
}

func operationFrom(m state.Mutation) (opqueue.Operation, error) {
	payload, err := json.Marshal(mutationPayload{
		Note:   m.Note,
		Fields: m.Fields,
		ItemID: m.ItemID,
		Label:  m.Label,
		Order:  m.Order,
		Custom: m.Payload,
	})
	if err != nil {
		return opqueue.Operation{}, fmt.Errorf("notesync: serialize mutation: %w", err)
	}
	return opqueue.Operation{
		Kind:    m.Kind,
		NoteID:  m.NoteID,
		Payload: payload,
	}, nil
}
