package captcha

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/marionette/api/schemas"
)

// fakePage implements Inspector over a mutable selector set.
type fakePage struct {
	mu        sync.Mutex
	selectors map[string]bool
	url       string
	probeErr  error
}

func newFakePage(url string, selectors ...string) *fakePage {
	p := &fakePage{selectors: map[string]bool{}, url: url}
	for _, s := range selectors {
		p.selectors[s] = true
	}
	return p
}

func (p *fakePage) HasSelector(ctx context.Context, selector string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.probeErr != nil {
		return false, p.probeErr
	}
	return p.selectors[selector], nil
}

func (p *fakePage) CurrentURL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

func (p *fakePage) clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.selectors = map[string]bool{}
	p.url = "https://example.com/home"
}

func TestDetectRecognizesChallengeFamilies(t *testing.T) {
	cases := []struct {
		name     string
		page     *fakePage
		wantType schemas.ChallengeType
		wantConf float64
	}{
		{"recaptcha iframe", newFakePage("https://example.com", `iframe[src*="recaptcha"]`), schemas.ChallengeRecaptcha, 0.9},
		{"recaptcha widget", newFakePage("https://example.com", `.g-recaptcha`), schemas.ChallengeRecaptcha, 0.9},
		{"hcaptcha widget", newFakePage("https://example.com", `.h-captcha`), schemas.ChallengeHCaptcha, 0.9},
		{"cloudflare form", newFakePage("https://example.com", `#challenge-form`), schemas.ChallengeCloudflare, 0.9},
		{"cloudflare url", newFakePage("https://example.com/cdn-cgi/challenge-platform/h"), schemas.ChallengeCloudflare, 0.5},
		{"generic class", newFakePage("https://example.com", `[class*="captcha"]`), schemas.ChallengeGeneric, 0.5},
		{"generic url", newFakePage("https://example.com/verify-captcha"), schemas.ChallengeGeneric, 0.5},
	}

	d := NewDetector(zap.NewNop())
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			det, err := d.Detect(context.Background(), tc.page)
			require.NoError(t, err)
			require.True(t, det.Detected)
			assert.Equal(t, tc.wantType, det.Type)
			assert.Equal(t, tc.wantConf, det.Confidence)
			assert.NotEmpty(t, det.Signal)
		})
	}
}

func TestDetectCleanPage(t *testing.T) {
	d := NewDetector(zap.NewNop())
	det, err := d.Detect(context.Background(), newFakePage("https://example.com/home"))
	require.NoError(t, err)
	assert.False(t, det.Detected)
	assert.Empty(t, det.Type)
}

func TestDetectPropagatesProbeErrors(t *testing.T) {
	page := newFakePage("https://example.com")
	page.probeErr = errors.New("target closed")

	d := NewDetector(zap.NewNop())
	_, err := d.Detect(context.Background(), page)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target closed")
}

// stubResolver resolves or fails on command, optionally limited to one
// challenge family.
type stubResolver struct {
	name  string
	only  schemas.ChallengeType
	err   error
	calls int
}

func (s *stubResolver) Name() string { return s.name }
func (s *stubResolver) CanHandle(t schemas.ChallengeType) bool {
	return s.only == "" || s.only == t
}
func (s *stubResolver) Resolve(ctx context.Context, page Inspector, det schemas.CaptchaDetection) error {
	s.calls++
	return s.err
}

func TestChainStopsAtFirstSuccess(t *testing.T) {
	first := &stubResolver{name: "first", err: errors.New("nope")}
	second := &stubResolver{name: "second"}
	third := &stubResolver{name: "third"}

	chain := NewChain(zap.NewNop(), first, second, third)
	res, err := chain.Resolve(context.Background(), newFakePage("u"), schemas.CaptchaDetection{Type: schemas.ChallengeGeneric})

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "second", res.Method)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
	assert.Zero(t, third.calls)
}

func TestChainExhaustionReturnsErrUnresolved(t *testing.T) {
	chain := NewChain(zap.NewNop(), &stubResolver{name: "a", err: errors.New("x")})
	res, err := chain.Resolve(context.Background(), newFakePage("u"), schemas.CaptchaDetection{Type: schemas.ChallengeRecaptcha})

	require.ErrorIs(t, err, ErrUnresolved)
	assert.False(t, res.Success)
	assert.Contains(t, err.Error(), "recaptcha")
}

func TestChainPrependRunsFirst(t *testing.T) {
	fallback := &stubResolver{name: "fallback"}
	priority := &stubResolver{name: "priority"}

	chain := NewChain(zap.NewNop(), fallback).Prepend(priority)
	res, err := chain.Resolve(context.Background(), newFakePage("u"), schemas.CaptchaDetection{})

	require.NoError(t, err)
	assert.Equal(t, "priority", res.Method)
	assert.Zero(t, fallback.calls)
}

func TestChainSkipsIncapableResolvers(t *testing.T) {
	specialized := &stubResolver{name: "cf-only", only: schemas.ChallengeCloudflare}
	generic := &stubResolver{name: "generic"}

	chain := NewChain(zap.NewNop(), specialized, generic)
	res, err := chain.Resolve(context.Background(), newFakePage("u"), schemas.CaptchaDetection{Type: schemas.ChallengeHCaptcha})

	require.NoError(t, err)
	assert.Equal(t, "generic", res.Method)
	assert.Zero(t, specialized.calls)
}

func TestWaitResolverSucceedsWhenChallengeClears(t *testing.T) {
	page := newFakePage("https://example.com", `#cf-challenge-running`)
	d := NewDetector(zap.NewNop())

	w := NewWaitResolver(d, 5*time.Second)
	w.interval = 10 * time.Millisecond

	go func() {
		time.Sleep(30 * time.Millisecond)
		page.clear()
	}()

	err := w.Resolve(context.Background(), page, schemas.CaptchaDetection{Type: schemas.ChallengeCloudflare})
	assert.NoError(t, err)
}

func TestWaitResolverTimesOut(t *testing.T) {
	page := newFakePage("https://example.com", `#challenge-form`)
	d := NewDetector(zap.NewNop())

	w := NewWaitResolver(d, 50*time.Millisecond)
	w.interval = 10 * time.Millisecond

	err := w.Resolve(context.Background(), page, schemas.CaptchaDetection{Type: schemas.ChallengeCloudflare})
	require.ErrorIs(t, err, ErrUnresolved)
}
