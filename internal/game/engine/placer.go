package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sevenleaf/ascendant/internal/game/area"
	"github.com/sevenleaf/ascendant/internal/game/session"
)

// InputPlacer bridges participant pointer input to interactive placement
// sessions. The transport layer feeds events with Feed; the skill resolver
// blocks in Place until the caster confirms or cancels. One placement
// session per caster at a time.
type InputPlacer struct {
	mu       sync.Mutex
	inputs   map[string]chan area.Event
	sessions *session.Manager
	timeout  time.Duration
}

// NewInputPlacer creates an InputPlacer. timeout bounds each session; zero
// means no timeout.
func NewInputPlacer(sessions *session.Manager, timeout time.Duration) *InputPlacer {
	return &InputPlacer{
		inputs:   make(map[string]chan area.Event),
		sessions: sessions,
		timeout:  timeout,
	}
}

// Feed delivers one pointer event to the caster's active placement session.
//
// Postcondition: returns an error when no session is active for casterID or
// its input buffer is full.
func (p *InputPlacer) Feed(casterID string, ev area.Event) error {
	p.mu.Lock()
	ch, ok := p.inputs[casterID]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("no active placement for caster %s", casterID)
	}
	select {
	case ch <- ev:
		return nil
	default:
		return fmt.Errorf("placement input buffer full for caster %s", casterID)
	}
}

// Place runs one placement session for req.CasterID, forwarding fed events
// until confirm, cancel, context cancellation, or timeout. Previews are
// broadcast to all participants so everyone sees the shape move.
func (p *InputPlacer) Place(ctx context.Context, req area.Request) (*area.Template, error) {
	in := make(chan area.Event, 8)
	p.mu.Lock()
	if _, busy := p.inputs[req.CasterID]; busy {
		p.mu.Unlock()
		return nil, fmt.Errorf("placement already in progress for caster %s", req.CasterID)
	}
	p.inputs[req.CasterID] = in
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.inputs, req.CasterID)
		p.mu.Unlock()
	}()

	// area.Place blocks on a bare channel; the proxy goroutine imposes the
	// context and timeout by closing it, which Place treats as a cancel.
	proxy := make(chan area.Event)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(proxy)
		var expired <-chan time.Time
		if p.timeout > 0 {
			timer := time.NewTimer(p.timeout)
			defer timer.Stop()
			expired = timer.C
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-expired:
				return
			case <-done:
				return
			case ev := <-in:
				select {
				case proxy <- ev:
					if ev.Kind == area.EventConfirm || ev.Kind == area.EventCancel {
						return
					}
				case <-done:
					return
				}
			}
		}
	}()

	return area.Place(req, proxy, p.preview)
}

// preview pushes the candidate shape to every participant.
func (p *InputPlacer) preview(t *area.Template) {
	if p.sessions == nil {
		return
	}
	data, err := json.Marshal(map[string]any{
		"kind":      "placement_preview",
		"caster_id": t.CasterID,
		"shape":     string(t.Shape),
		"origin_x":  t.Origin.X,
		"origin_y":  t.Origin.Y,
		"direction": t.Direction,
	})
	if err != nil {
		return
	}
	p.sessions.Broadcast(data)
}
