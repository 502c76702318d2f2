package humanoid

import (
	"context"
	"time"

	"github.com/xkilldash9x/marionette/api/schemas"
)

// Executor is the low-level surface the simulation drives. The browser layer
// implements it over CDP; tests implement it with recorders.
type Executor interface {
	Sleep(ctx context.Context, d time.Duration) error
	DispatchMouseEvent(ctx context.Context, data schemas.MouseEventData) error
	SendKeys(ctx context.Context, keys string) error
	DispatchStructuredKey(ctx context.Context, data schemas.KeyEventData) error
	GetElementGeometry(ctx context.Context, selector string) (*schemas.ElementGeometry, error)
}

// Controller is the high-level interaction surface the browser session
// drives. Humanoid implements it; session tests substitute recorders.
type Controller interface {
	SetPosition(pos Vector2D)
	MoveTo(ctx context.Context, selector string) error
	MoveToPoint(ctx context.Context, target Vector2D) error
	Click(ctx context.Context, selector string) error
	ClickPoint(ctx context.Context, target Vector2D) error
	Type(ctx context.Context, selector, text string) error
	ScrollBy(ctx context.Context, deltaY float64) error
	ScrollToElement(ctx context.Context, selector string) error
	Pause(ctx context.Context, meanMs, stdDevMs float64) error
}

var _ Controller = (*Humanoid)(nil)

// ControlKey constants for keys sent through SendKeys.
const (
	KeyBackspace = "\b"
	KeyEnter     = "\r"
	KeyTab       = "\t"
)
