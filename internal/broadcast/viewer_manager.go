package broadcast

import (
	"context"
	"sync"

	"github.com/mira-screenshare/sharer/internal/logging"
)

var log = logging.L("broadcast")

// ViewerState is where a viewer sits in the admission lifecycle.
type ViewerState int

const (
	StatePending ViewerState = iota
	StateViewing
	StateLeft
)

// Viewer is one tracked participant, pending or admitted.
type Viewer struct {
	UUID        string
	DisplayName string
	State       ViewerState
}

// ViewerManager tracks pending and admitted viewers and doubles as an
// interactive Authenticator: authenticating a viewer blocks until an
// operator (or another policy) calls Permit or Decline for that uuid.
type ViewerManager struct {
	mu       sync.Mutex
	pending  map[string]*Viewer
	viewing  map[string]*Viewer
	decision map[string]chan bool
	onUpdate func()
}

func NewViewerManager(onUpdate func()) *ViewerManager {
	if onUpdate == nil {
		onUpdate = func() {}
	}
	return &ViewerManager{
		pending:  make(map[string]*Viewer),
		viewing:  make(map[string]*Viewer),
		decision: make(map[string]chan bool),
		onUpdate: onUpdate,
	}
}

func (m *ViewerManager) PendingViewers() []Viewer {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Viewer, 0, len(m.pending))
	for _, v := range m.pending {
		out = append(out, *v)
	}
	return out
}

func (m *ViewerManager) ViewingViewers() []Viewer {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Viewer, 0, len(m.viewing))
	for _, v := range m.viewing {
		out = append(out, *v)
	}
	return out
}

// Authenticate implements Authenticator: it registers the viewer as pending
// and blocks until Permit/Decline resolves the admission channel, or ctx is
// cancelled. The display name is the name carried in the join request, or
// the viewer's uuid when the request carries none.
func (m *ViewerManager) Authenticate(ctx context.Context, attempt JoinAttempt) (*DeclineReason, error) {
	displayName := attempt.DisplayName
	if displayName == "" {
		displayName = attempt.UUID
	}
	viewer := &Viewer{UUID: attempt.UUID, DisplayName: displayName, State: StatePending}

	ch := make(chan bool, 1)
	m.mu.Lock()
	m.pending[attempt.UUID] = viewer
	m.decision[attempt.UUID] = ch
	m.mu.Unlock()
	m.onUpdate()

	log.Info("viewer awaiting admission", "uuid", attempt.UUID)

	var permitted bool
	select {
	case permitted = <-ch:
	case <-ctx.Done():
		m.mu.Lock()
		delete(m.pending, attempt.UUID)
		delete(m.decision, attempt.UUID)
		m.mu.Unlock()
		return nil, ctx.Err()
	}

	m.mu.Lock()
	delete(m.pending, attempt.UUID)
	delete(m.decision, attempt.UUID)
	if permitted {
		viewer.State = StateViewing
		m.viewing[attempt.UUID] = viewer
	}
	m.mu.Unlock()

	log.Info("viewer admission decided", "uuid", attempt.UUID, "permitted", permitted)

	if !permitted {
		reason := DeclineUserDeclined
		return &reason, nil
	}
	return nil, nil
}

// Admit records a viewer as viewing without the interactive pending step,
// for broadcasts where the password check alone decides admission.
func (m *ViewerManager) Admit(uuid, displayName string) {
	if displayName == "" {
		displayName = uuid
	}
	m.mu.Lock()
	delete(m.pending, uuid)
	delete(m.decision, uuid)
	m.viewing[uuid] = &Viewer{UUID: uuid, DisplayName: displayName, State: StateViewing}
	m.mu.Unlock()
	m.onUpdate()
}

// Permit admits a pending viewer. Returns errNotWaiting if the uuid isn't
// currently pending (already decided, or never requested).
func (m *ViewerManager) Permit(uuid string) error {
	return m.resolve(uuid, true)
}

// Decline refuses a pending viewer.
func (m *ViewerManager) Decline(uuid string) error {
	return m.resolve(uuid, false)
}

func (m *ViewerManager) resolve(uuid string, permit bool) error {
	m.mu.Lock()
	ch, ok := m.decision[uuid]
	m.mu.Unlock()
	if !ok {
		return errNotWaiting
	}
	select {
	case ch <- permit:
	default:
	}
	m.onUpdate()
	return nil
}

// Left removes a viewer from either pending or viewing state, e.g. after a
// leave message or a connection failure.
func (m *ViewerManager) Left(uuid string) {
	m.mu.Lock()
	delete(m.pending, uuid)
	delete(m.viewing, uuid)
	m.mu.Unlock()
	m.onUpdate()
}

// Clear resets all tracked state, used when a broadcast session ends.
func (m *ViewerManager) Clear() {
	m.mu.Lock()
	m.pending = make(map[string]*Viewer)
	m.viewing = make(map[string]*Viewer)
	m.decision = make(map[string]chan bool)
	m.mu.Unlock()
	m.onUpdate()
}
