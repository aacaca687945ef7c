package waitlistclient

import (
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/revo-marketplace/waitlist/internal/api/dto"
	"github.com/revo-marketplace/waitlist/internal/domain"
)

// Event is a funnel step reported by the tracker.
type Event = domain.FunnelEvent

const (
	EventFocus   = domain.FunnelFocus
	EventSubmit  = domain.FunnelSubmit
	EventSuccess = domain.FunnelSuccess
	EventError   = domain.FunnelError
)

const (
	defaultDebounce      = 300 * time.Millisecond
	defaultBeaconTimeout = 3 * time.Second
)

type pendingBeacon struct {
	timer *time.Timer
	role  string
}

// Tracker sends fire-and-forget funnel beacons. Repeated calls for the same
// event inside the debounce window collapse into one beacon carrying the last
// role. Focus is reported at most once per tracker.
type Tracker struct {
	endpoint  string
	sessionID string
	debounce  time.Duration

	mu      sync.Mutex
	focused bool
	closed  bool
	pending map[Event]*pendingBeacon
	wg      sync.WaitGroup
}

// NewTracker reports to baseURL's analytics endpoint under sessionID.
// A non-positive debounce uses the default.
func NewTracker(baseURL, sessionID string, debounce time.Duration) *Tracker {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Tracker{
		endpoint:  strings.TrimRight(baseURL, "/") + "/api/analytics/waitlist",
		sessionID: sessionID,
		debounce:  debounce,
		pending:   make(map[Event]*pendingBeacon),
	}
}

// SessionID is the id attached to every beacon.
func (t *Tracker) SessionID() string { return t.sessionID }

// Focus reports the first interaction with the form.
func (t *Tracker) Focus() {
	t.mu.Lock()
	if t.focused {
		t.mu.Unlock()
		return
	}
	t.focused = true
	t.mu.Unlock()
	t.Track(EventFocus, "")
}

// Track schedules a beacon for event after the debounce window.
func (t *Tracker) Track(event Event, role string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}

	if p, ok := t.pending[event]; ok {
		if p.timer.Stop() {
			p.role = role
			p.timer.Reset(t.debounce)
			return
		}
	}

	p := &pendingBeacon{role: role}
	t.wg.Add(1)
	p.timer = time.AfterFunc(t.debounce, func() {
		defer t.wg.Done()
		t.mu.Lock()
		role := p.role
		if t.pending[event] == p {
			delete(t.pending, event)
		}
		t.mu.Unlock()
		t.send(event, role)
	})
	t.pending[event] = p
}

// Close fires pending beacons now and waits for in-flight sends.
func (t *Tracker) Close() {
	t.mu.Lock()
	t.closed = true
	for _, p := range t.pending {
		if p.timer.Stop() {
			p.timer.Reset(0)
		}
	}
	t.mu.Unlock()
	t.wg.Wait()
}

func (t *Tracker) send(event Event, role string) {
	req := dto.FunnelEventRequest{Event: string(event), SessionID: t.sessionID}
	if role != "" {
		req.Role = &role
	}
	// Analytics must never affect the form.
	_, _, _ = fiber.Post(t.endpoint).Timeout(defaultBeaconTimeout).JSON(req).Bytes()
}
