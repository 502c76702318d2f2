package backend

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/xkilldash9x/marionette/api/schemas"
	"github.com/xkilldash9x/marionette/internal/config"
)

// VisionClient resolves natural-language element descriptions against a
// screenshot via the vision service. It satisfies actions.VisionLocator.
type VisionClient struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewVisionClient builds a client, or returns nil when no vision service is
// configured so callers can treat vision as absent.
func NewVisionClient(cfg config.VisionConfig, logger *zap.Logger) *VisionClient {
	if cfg.BaseURL == "" {
		return nil
	}
	return &VisionClient{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.RequestTimeout},
		logger:  logger,
	}
}

// Locate sends the screenshot and description and returns the located
// element's viewport coordinates.
func (v *VisionClient) Locate(ctx context.Context, screenshot []byte, description string) (schemas.VisionResult, error) {
	payload := schemas.VisionRequest{
		ScreenshotBase64: base64.StdEncoding.EncodeToString(screenshot),
		Description:      description,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return schemas.VisionResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/api/v1/vision/find-element", bytes.NewReader(raw))
	if err != nil {
		return schemas.VisionResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.http.Do(req)
	if err != nil {
		return schemas.VisionResult{}, fmt.Errorf("vision request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return schemas.VisionResult{}, fmt.Errorf("vision service returned status %d", resp.StatusCode)
	}

	var result schemas.VisionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return schemas.VisionResult{}, fmt.Errorf("decode vision response: %w", err)
	}
	return result, nil
}
