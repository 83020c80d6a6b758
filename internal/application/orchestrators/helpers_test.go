package orchestrators

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"horario/internal/application/draft"
	"horario/internal/domain/audit"
	"horario/internal/domain/schedule"
)

var fixedTime = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return fixedTime }

// memSnapshotStore is an in-memory draft.Store.
type memSnapshotStore struct {
	mu        sync.Mutex
	draft     schedule.State
	published schedule.State
	writeErr  error
}

func (s *memSnapshotStore) Read(_ context.Context) (schedule.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.Clone(), nil
}

func (s *memSnapshotStore) Write(_ context.Context, st schedule.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.draft = st.Clone()
	return nil
}

func (s *memSnapshotStore) ReadPublished(_ context.Context) (schedule.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.published.Clone(), nil
}

func (s *memSnapshotStore) WritePublished(_ context.Context, st schedule.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.published = st.Clone()
	return nil
}

// mockAuditRecorder collects audit events.
type mockAuditRecorder struct {
	events []audit.Event
}

func (m *mockAuditRecorder) Save(_ context.Context, ev audit.Event) error {
	m.events = append(m.events, ev)
	return nil
}

func testWeek() schedule.Week {
	w, _ := schedule.NewWeek(fixedTime, fixedTime.AddDate(0, 0, 4))
	return w
}

// newTestMachine loads a machine over an in-memory store seeded with initial.
// A zero week in initial is replaced by the 2024-03-04..2024-03-08 window.
func newTestMachine(t *testing.T, initial schedule.State) (*draft.Machine, *memSnapshotStore) {
	t.Helper()
	return buildTestMachine(t, initial, fixedNow)
}

// testClock is a manually advanced clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// newPublishableMachine returns a machine whose draft is saved and past the publish cooldown.
func newPublishableMachine(t *testing.T, initial schedule.State) (*draft.Machine, *memSnapshotStore) {
	t.Helper()
	clk := &testClock{now: fixedTime}
	m, store := buildTestMachine(t, initial, clk.Now)
	if err := m.Save(context.Background()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	clk.Advance(draft.DefaultCooldown + time.Second)
	if !m.CanPublish() {
		t.Fatalf("machine not publishable: %+v", m.Status())
	}
	return m, store
}

func buildTestMachine(t *testing.T, initial schedule.State, now func() time.Time) (*draft.Machine, *memSnapshotStore) {
	t.Helper()
	if initial.Config.CurrentWeek.IsZero() {
		initial.Config.CurrentWeek = testWeek()
	}
	store := &memSnapshotStore{draft: initial}
	n := 0
	m := draft.New(store, draft.Options{
		Now: now,
		GenerateID: func() string {
			n++
			return fmt.Sprintf("gen-%03d", n)
		},
	})
	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return m, store
}
