package humanoid

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xkilldash9x/marionette/api/schemas"
)

// mockExecutor records every dispatched event without touching a browser.
// Sleeps are recorded, not performed, so tests run instantly.
type mockExecutor struct {
	mu          sync.Mutex
	mouseEvents []schemas.MouseEventData
	keys        []string
	structured  []schemas.KeyEventData
	sleeps      []time.Duration
	geometry    map[string]*schemas.ElementGeometry
	geometryErr error
}

func newMockExecutor() *mockExecutor {
	return &mockExecutor{geometry: map[string]*schemas.ElementGeometry{}}
}

func (m *mockExecutor) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sleeps = append(m.sleeps, d)
	return nil
}

func (m *mockExecutor) DispatchMouseEvent(ctx context.Context, data schemas.MouseEventData) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mouseEvents = append(m.mouseEvents, data)
	return nil
}

func (m *mockExecutor) SendKeys(ctx context.Context, keys string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, keys)
	return nil
}

func (m *mockExecutor) DispatchStructuredKey(ctx context.Context, data schemas.KeyEventData) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.structured = append(m.structured, data)
	// Fold named editing keys into the key stream so typedText can replay
	// their effect.
	if data.Key == "Backspace" {
		m.keys = append(m.keys, KeyBackspace)
	}
	return nil
}

func (m *mockExecutor) GetElementGeometry(ctx context.Context, selector string) (*schemas.ElementGeometry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.geometryErr != nil {
		return nil, m.geometryErr
	}
	geo, ok := m.geometry[selector]
	if !ok {
		return nil, fmt.Errorf("no geometry registered for %q", selector)
	}
	copied := *geo
	return &copied, nil
}

func (m *mockExecutor) recordedMouse() []schemas.MouseEventData {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]schemas.MouseEventData, len(m.mouseEvents))
	copy(out, m.mouseEvents)
	return out
}

func (m *mockExecutor) recordedKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// typedText replays the recorded key stream, honoring backspaces, to
// reconstruct what would land in the input field.
func (m *mockExecutor) typedText() string {
	var out []rune
	for _, k := range m.recordedKeys() {
		for _, r := range k {
			if string(r) == KeyBackspace {
				if len(out) > 0 {
					out = out[:len(out)-1]
				}
				continue
			}
			out = append(out, r)
		}
	}
	return string(out)
}
