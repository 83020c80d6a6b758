package draft

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"horario/internal/domain/schedule"
)

// Store is the durable store the machine reads from and writes to.
// Publishing is a single WritePublished call.
type Store interface {
	Read(ctx context.Context) (schedule.State, error)
	Write(ctx context.Context, s schedule.State) error
	ReadPublished(ctx context.Context) (schedule.State, error)
	WritePublished(ctx context.Context, s schedule.State) error
}

// Phase is the save/publish lifecycle position.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseSaving     Phase = "saving"
	PhasePublishing Phase = "publishing"
)

// DefaultCooldown is the settle period between a completed save and publish eligibility.
const DefaultCooldown = 2 * time.Second

// Status is the observable, derived view of the machine.
type Status struct {
	Phase       Phase         `json:"phase"`
	Processing  bool          `json:"processing"`
	Operation   string        `json:"operation,omitempty"`
	Dirty       bool          `json:"dirty"`   // draft differs from the published snapshot
	Unsaved     bool          `json:"unsaved"` // draft differs from the last saved draft
	CanPublish  bool          `json:"can_publish"`
	SavedAt     time.Time     `json:"saved_at,omitzero"`
	PublishedAt time.Time     `json:"published_at,omitzero"`
	Week        schedule.Week `json:"week"`
	Rows        int           `json:"rows"`
	Events      int           `json:"events"`
}

// Options configures a Machine. Zero values fall back to defaults.
type Options struct {
	Cooldown   time.Duration
	Now        func() time.Time
	GenerateID func() string
}

// Machine owns the draft and published snapshots.
// One mutating operation runs at a time: the processing flag is a binary
// semaphore over the whole draft, and a second caller gets ErrBusy.
type Machine struct {
	store      Store
	now        func() time.Time
	cooldown   time.Duration
	generateID func() string

	// notifyMu orders deliveries; it is taken before mu, never while holding it.
	notifyMu sync.Mutex

	mu          sync.Mutex
	draft       schedule.State
	published   schedule.State
	persisted   schedule.State // last draft written to (or read from) the store
	hasSaved    bool
	savedAt     time.Time
	publishedAt time.Time
	phase       Phase
	processing  bool
	operation   string
	subs        map[int]func(Status)
	nextSub     int
}

// New creates a machine over store. Call Load before serving requests.
func New(store Store, opts Options) *Machine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.GenerateID == nil {
		opts.GenerateID = func() string { return uuid.New().String() }
	}
	if opts.Cooldown == 0 {
		opts.Cooldown = DefaultCooldown
	}
	return &Machine{
		store:      store,
		now:        opts.Now,
		cooldown:   opts.Cooldown,
		generateID: opts.GenerateID,
		phase:      PhaseIdle,
		subs:       make(map[int]func(Status)),
	}
}

// Load reads the draft and published snapshots from the store.
// A draft without an active week gets the Monday-Friday window containing today.
// PRE: no operation is in flight
// POST: the loaded draft counts as saved; returns *StorageError on read failure
func (m *Machine) Load(ctx context.Context) error {
	if err := m.acquire("load"); err != nil {
		return err
	}
	defer m.release()

	d, err := m.store.Read(ctx)
	if err != nil {
		return &StorageError{Op: "load draft", Err: err}
	}
	p, err := m.store.ReadPublished(ctx)
	if err != nil {
		return &StorageError{Op: "load published", Err: err}
	}

	m.mu.Lock()
	m.persisted = d.Clone()
	if d.Config.CurrentWeek.IsZero() {
		d.Config.CurrentWeek = schedule.WeekContaining(m.now())
	}
	m.draft = d
	m.published = p
	m.hasSaved = true
	m.mu.Unlock()

	slog.Info("draft_loaded", "rows", len(d.Rows), "events", d.EventCount(), "published_rows", len(p.Rows))
	return nil
}

// Draft returns a copy of the working draft.
func (m *Machine) Draft() schedule.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.draft.Clone()
}

// Published returns a copy of the last published snapshot.
func (m *Machine) Published() schedule.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.published.Clone()
}

// Status returns the current derived flags.
func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

// CanPublish reports whether Publish would currently be accepted.
func (m *Machine) CanPublish() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.publishBlockLocked(m.now()) == nil
}

// Subscribe registers fn to receive the status after every change.
// fn runs on the goroutine that made the change and must not block.
// POST: returns a function that removes the subscription
func (m *Machine) Subscribe(fn func(Status)) (cancel func()) {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// Save persists the draft.
// PRE: phase is idle and no operation is processing (ErrBusy otherwise)
// POST: on success the draft is the saved baseline and the publish cooldown restarts;
//
//	on failure returns *StorageError and leaves every flag unchanged
func (m *Machine) Save(ctx context.Context) error {
	m.mu.Lock()
	if m.processing || m.phase != PhaseIdle {
		op := m.operation
		m.mu.Unlock()
		slog.Info("draft_busy", "op", "save", "operation", op)
		return ErrBusy
	}
	m.phase = PhaseSaving
	snap := m.draft.Clone()
	m.mu.Unlock()
	m.notify()

	err := m.store.Write(ctx, snap)

	m.mu.Lock()
	m.phase = PhaseIdle
	if err == nil {
		m.persisted = snap
		m.hasSaved = true
		m.savedAt = m.now()
	}
	m.mu.Unlock()
	m.notify()

	if err != nil {
		slog.Error("draft_save_failed", "err", err)
		return &StorageError{Op: "save", Err: err}
	}
	slog.Info("draft_saved", "rows", len(snap.Rows), "events", snap.EventCount())
	return nil
}

// Publish promotes the saved draft to the published snapshot in one store write.
// PRE: CanPublish holds; otherwise ErrBusy, ErrNotSaved or *CooldownError
// POST: on success returns the new published snapshot; on failure both snapshots are unchanged
func (m *Machine) Publish(ctx context.Context) (schedule.State, error) {
	m.mu.Lock()
	if err := m.publishBlockLocked(m.now()); err != nil {
		m.mu.Unlock()
		slog.Info("draft_publish_rejected", "reason", err.Error())
		return schedule.State{}, err
	}
	m.phase = PhasePublishing
	snap := m.draft.Clone()
	m.mu.Unlock()
	m.notify()

	err := m.store.WritePublished(ctx, snap)

	m.mu.Lock()
	m.phase = PhaseIdle
	if err == nil {
		m.published = snap
		m.publishedAt = m.now()
	}
	m.mu.Unlock()
	m.notify()

	if err != nil {
		slog.Error("draft_publish_failed", "err", err)
		return schedule.State{}, &StorageError{Op: "publish", Err: err}
	}
	slog.Info("draft_published", "rows", len(snap.Rows), "events", snap.EventCount())
	return snap.Clone(), nil
}

// Run executes fn as the single in-flight draft operation.
// The processing flag is held for fn's whole duration; a concurrent Run, Save or
// Publish is refused with ErrBusy. Edits made through the editor before fn fails
// stay in the draft.
func (m *Machine) Run(ctx context.Context, op string, fn func(ctx context.Context, ed *Editor) error) error {
	if err := m.acquire(op); err != nil {
		return err
	}
	m.notify()

	ed := &Editor{m: m, open: true}
	defer func() {
		m.mu.Lock()
		ed.open = false
		m.mu.Unlock()
		m.release()
		m.notify()
	}()
	return fn(ctx, ed)
}

func (m *Machine) acquire(op string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processing || m.phase != PhaseIdle {
		slog.Info("draft_busy", "op", op, "operation", m.operation, "phase", string(m.phase))
		return ErrBusy
	}
	m.processing = true
	m.operation = op
	return nil
}

func (m *Machine) release() {
	m.mu.Lock()
	m.processing = false
	m.operation = ""
	m.mu.Unlock()
}

func (m *Machine) publishBlockLocked(now time.Time) error {
	if m.processing || m.phase != PhaseIdle {
		return ErrBusy
	}
	if !m.hasSaved || !m.draft.Equal(m.persisted) {
		return ErrNotSaved
	}
	if elapsed := now.Sub(m.savedAt); elapsed < m.cooldown {
		return &CooldownError{Remaining: m.cooldown - elapsed}
	}
	return nil
}

func (m *Machine) statusLocked() Status {
	return Status{
		Phase:       m.phase,
		Processing:  m.processing,
		Operation:   m.operation,
		Dirty:       !m.draft.Equal(m.published),
		Unsaved:     !m.draft.Equal(m.persisted),
		CanPublish:  m.publishBlockLocked(m.now()) == nil,
		SavedAt:     m.savedAt,
		PublishedAt: m.publishedAt,
		Week:        m.draft.Config.CurrentWeek,
		Rows:        len(m.draft.Rows),
		Events:      m.draft.EventCount(),
	}
}

// notify delivers the current status to every subscriber.
// INVARIANT: deliveries happen in capture order, so the last status a subscriber sees is current.
// Subscribers must not call back into a mutating operation.
func (m *Machine) notify() {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	m.mu.Lock()
	st := m.statusLocked()
	subs := make([]func(Status), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()
	for _, fn := range subs {
		fn(st)
	}
}
