package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"WerchterMonitor/internal/domain"
)

type sentMessage struct {
	text  string
	photo string
}

type fakeMessenger struct {
	mu       sync.Mutex
	failures int
	attempts int
	resets   int
	closed   int
	sent     []sentMessage
	panicOn  int
	// onSend runs after a send succeeded, outside the lock.
	onSend func()
}

func (m *fakeMessenger) record(msg sentMessage) error {
	if err := m.store(msg); err != nil {
		return err
	}
	m.mu.Lock()
	hook := m.onSend
	m.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func (m *fakeMessenger) store(msg sentMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.attempts++
	if m.panicOn > 0 && m.attempts == m.panicOn {
		panic("boom")
	}
	if m.failures > 0 {
		m.failures--
		return errors.New("network unreachable")
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMessenger) SendText(ctx context.Context, text string) error {
	return m.record(sentMessage{text: text})
}

func (m *fakeMessenger) SendPhoto(ctx context.Context, photoURL, caption string) error {
	return m.record(sentMessage{text: caption, photo: photoURL})
}

func (m *fakeMessenger) Reset() {
	m.mu.Lock()
	m.resets++
	m.mu.Unlock()
}

func (m *fakeMessenger) Close() error {
	m.mu.Lock()
	m.closed++
	m.mu.Unlock()
	return nil
}

// fakeClock never blocks; it records every requested sleep and advances.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	sleeps  []time.Duration
	onSleep func(n int)
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, time.October, 26, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	n := len(c.sleeps)
	hook := c.onSleep
	c.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	return ctx.Err()
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

type fakeSource struct {
	mu    sync.Mutex
	items []domain.Item
	errs  []error
	calls int
}

func (s *fakeSource) Fetch(ctx context.Context) ([]domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return append([]domain.Item(nil), s.items...), nil
}

type memoryPersister struct {
	mu      sync.Mutex
	records map[string]domain.ProcessedRecord
	saves   int
	saveErr error
}

func (m *memoryPersister) Load(ctx context.Context) (map[string]domain.ProcessedRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]domain.ProcessedRecord, len(m.records))
	for k, v := range m.records {
		out[k] = v
	}
	return out, nil
}

func (m *memoryPersister) Save(ctx context.Context, records map[string]domain.ProcessedRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.records = make(map[string]domain.ProcessedRecord, len(records))
	for k, v := range records {
		m.records[k] = v
	}
	return nil
}

type fixedDelay time.Duration

func (d fixedDelay) Next(t time.Time) time.Time { return t.Add(time.Duration(d)) }
