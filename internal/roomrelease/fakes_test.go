package roomrelease

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/saaga0h/jeeves-roomrelease/pkg/mqtt"
	"github.com/saaga0h/jeeves-roomrelease/pkg/postgres"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// manualClock fires timers only when advanced
type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*manualTimer
}

type manualTimer struct {
	clock   *manualClock
	at      time.Time
	seq     int
	fn      func()
	stopped bool
	fired   bool
}

func newManualClock(start time.Time) *manualClock {
	return &manualClock{now: start}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &manualTimer{clock: c, at: c.now.Add(d), seq: c.seq, fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward by d, firing due timers in order
func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()
	c.AdvanceTo(target)
}

// AdvanceTo moves time forward to target, firing due timers in order
func (c *manualClock) AdvanceTo(target time.Time) {
	for {
		c.mu.Lock()
		live := c.timers[:0]
		for _, t := range c.timers {
			if !t.stopped && !t.fired {
				live = append(live, t)
			}
		}
		c.timers = live
		sort.SliceStable(c.timers, func(i, j int) bool {
			if c.timers[i].at.Equal(c.timers[j].at) {
				return c.timers[i].seq < c.timers[j].seq
			}
			return c.timers[i].at.Before(c.timers[j].at)
		})

		if len(c.timers) == 0 || c.timers[0].at.After(target) {
			if target.After(c.now) {
				c.now = target
			}
			c.mu.Unlock()
			return
		}

		next := c.timers[0]
		next.fired = true
		if next.at.After(c.now) {
			c.now = next.at
		}
		c.mu.Unlock()

		next.fn()
	}
}

// fakePort is a scriptable room device
type fakePort struct {
	mu sync.Mutex

	status       map[string]string
	statusErr    map[string]error
	availability string
	booking      BookingInfo
	bookingErr   error
	declineErr   error
	currentID    string

	statusCalls  int
	bookingCalls int
	availCalls   int
	prompts      int
	promptClears int
	lines        []string
	lineClears   int
	sounds       int
	soundStops   int
	declines     []string
}

func newFakePort() *fakePort {
	return &fakePort{
		status: map[string]string{
			MetricActiveCalls:      "0",
			MetricPresence:         "No",
			MetricUltrasound:       "No",
			MetricPeopleCount:      "0",
			MetricSoundLevel:       "30",
			MetricPresentationMode: "Off",
		},
		statusErr:    map[string]error{},
		availability: AvailabilityBookedUntil,
		booking: BookingInfo{
			MeetingID:         "meeting-1",
			SecondsUntilEnd:   "3600",
			SecondsSinceStart: "0",
		},
	}
}

func (p *fakePort) setStatus(metric, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status[metric] = value
}

func (p *fakePort) setMeetingID(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.booking.MeetingID = id
}

func (p *fakePort) GetStatus(ctx context.Context, metric string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statusCalls++
	if err := p.statusErr[metric]; err != nil {
		return "", err
	}
	return p.status[metric], nil
}

func (p *fakePort) ShowPrompt(ctx context.Context, prompt Prompt) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prompts++
	return nil
}

func (p *fakePort) ClearPrompt(ctx context.Context, feedbackID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.promptClears++
	return nil
}

func (p *fakePort) ShowCountdownLine(ctx context.Context, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lines = append(p.lines, text)
	return nil
}

func (p *fakePort) ClearCountdownLine(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lineClears++
	return nil
}

func (p *fakePort) PlaySound(ctx context.Context, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sounds++
	return nil
}

func (p *fakePort) StopSound(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.soundStops++
	return nil
}

func (p *fakePort) GetBooking(ctx context.Context, id string) (*BookingInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bookingCalls++
	if p.bookingErr != nil {
		return nil, p.bookingErr
	}
	b := p.booking
	return &b, nil
}

func (p *fakePort) GetAvailabilityStatus(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.availCalls++
	return p.availability, nil
}

func (p *fakePort) DeclineBooking(ctx context.Context, meetingID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.declines = append(p.declines, meetingID)
	return p.declineErr
}

func (p *fakePort) GetCurrentBookingID(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentID, nil
}

func (p *fakePort) promptCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.prompts
}

func (p *fakePort) declined() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.declines...)
}

// fakeRecorder keeps every recorded event
type fakeRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *fakeRecorder) Record(ctx context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *fakeRecorder) ofType(t EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// fakeRedis is an in-memory subset of Redis
type fakeRedis struct {
	mu      sync.Mutex
	hashes  map[string]map[string]string
	lists   map[string][]string
	ttls    map[string]time.Duration
	pushErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		hashes: make(map[string]map[string]string),
		lists:  make(map[string][]string),
		ttls:   make(map[string]time.Duration),
	}
}

func toString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

func (r *fakeRedis) SetFields(ctx context.Context, key string, values map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.hashes[key]
	if !ok {
		h = make(map[string]string)
		r.hashes[key] = h
	}
	for f, v := range values {
		h[f] = toString(v)
	}
	return nil
}

func (r *fakeRedis) SetFieldTTL(ctx context.Context, key, field string, value interface{}, ttl time.Duration) error {
	if err := r.SetFields(ctx, key, map[string]interface{}{field: value}); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ttls[key] = ttl
	return nil
}

func (r *fakeRedis) Fields(ctx context.Context, key string) (map[string]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string)
	for f, v := range r.hashes[key] {
		out[f] = v
	}
	return out, nil
}

func (r *fakeRedis) PushCapped(ctx context.Context, key string, value interface{}, max int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pushErr != nil {
		return r.pushErr
	}
	l := append([]string{toString(value)}, r.lists[key]...)
	if max > 0 && int64(len(l)) > max {
		l = l[:max]
	}
	r.lists[key] = l
	return nil
}

func (r *fakeRedis) Newest(ctx context.Context, key string, n int64) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l := r.lists[key]
	if n > int64(len(l)) {
		n = int64(len(l))
	}
	return append([]string(nil), l[:n]...), nil
}

func (r *fakeRedis) Ping(ctx context.Context) error { return nil }
func (r *fakeRedis) Close() error                   { return nil }

// fakeMessage is an in-memory MQTT message
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Topic() string   { return m.topic }
func (m *fakeMessage) Payload() []byte { return m.payload }

type published struct {
	topic   string
	payload []byte
}

// fakeMQTT records publishes and lets tests react to them
type fakeMQTT struct {
	mu        sync.Mutex
	published []published
	subs      map[string]mqtt.MessageHandler
	onPublish func(topic string, payload []byte)
}

func newFakeMQTT() *fakeMQTT {
	return &fakeMQTT{subs: make(map[string]mqtt.MessageHandler)}
}

func (m *fakeMQTT) Connect(ctx context.Context) error { return nil }
func (m *fakeMQTT) Disconnect()                       {}
func (m *fakeMQTT) IsConnected() bool                 { return true }

func (m *fakeMQTT) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[topic] = handler
	return nil
}

func (m *fakeMQTT) Publish(topic string, qos byte, retained bool, payload []byte) error {
	m.mu.Lock()
	m.published = append(m.published, published{topic: topic, payload: payload})
	hook := m.onPublish
	m.mu.Unlock()

	if hook != nil {
		hook(topic, payload)
	}
	return nil
}

func (m *fakeMQTT) publishedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.published)
}

// fakePostgres records statements and serves canned history rows
type fakePostgres struct {
	mu         sync.Mutex
	migrations []string
	queries    []string
	args       [][]interface{}
	rows       [][]interface{}
	execErr    error
}

func (p *fakePostgres) Connect(ctx context.Context) error { return nil }
func (p *fakePostgres) Disconnect() error                 { return nil }
func (p *fakePostgres) IsConnected() bool                 { return true }

func (p *fakePostgres) Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queries = append(p.queries, query)
	p.args = append(p.args, args)
	return nil, p.execErr
}

func (p *fakePostgres) Query(ctx context.Context, query string, args ...interface{}) (postgres.Rows, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queries = append(p.queries, query)
	p.args = append(p.args, args)
	if p.execErr != nil {
		return nil, p.execErr
	}
	return &fakeRows{rows: p.rows, pos: -1}, nil
}

func (p *fakePostgres) Migrate(ctx context.Context, statements ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.execErr != nil {
		return p.execErr
	}
	p.migrations = append(p.migrations, statements...)
	return nil
}

func (p *fakePostgres) HealthCheck(ctx context.Context) (*postgres.HealthStatus, error) {
	return &postgres.HealthStatus{Connected: true}, nil
}

// fakeRows serves canned rows
type fakeRows struct {
	rows [][]interface{}
	pos  int
}

func (r *fakeRows) Next() bool {
	r.pos++
	return r.pos < len(r.rows)
}

func (r *fakeRows) Scan(dest ...interface{}) error {
	row := r.rows[r.pos]
	if len(row) != len(dest) {
		return fmt.Errorf("scan: %d columns into %d targets", len(row), len(dest))
	}
	for i, v := range row {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *bool:
			*d = v.(bool)
		case *time.Time:
			*d = v.(time.Time)
		default:
			return fmt.Errorf("scan: unsupported target %T", d)
		}
	}
	return nil
}

func (r *fakeRows) Err() error   { return nil }
func (r *fakeRows) Close() error { return nil }

var errUnreachable = errors.New("bridge unreachable")
