package backend

import (
	"context"
	"encoding/base64"
	"net/http"

	"github.com/xkilldash9x/marionette/api/schemas"
)

// NextStep asks the agent service what an autonomous session should do
// next, given the current screenshot and the steps taken so far.
func (c *Client) NextStep(ctx context.Context, sessionID, goal, currentURL string, screenshot []byte, history []schemas.ScenarioStep) (schemas.AgentDecision, error) {
	req := schemas.AgentRequest{
		SessionID:        sessionID,
		Goal:             goal,
		ScreenshotBase64: base64.StdEncoding.EncodeToString(screenshot),
		CurrentURL:       currentURL,
		StepIndex:        len(history),
		History:          history,
	}

	var decision schemas.AgentDecision
	_, err := c.do(ctx, http.MethodPost, "/api/v1/agent/next-step", req, &decision)
	return decision, err
}
