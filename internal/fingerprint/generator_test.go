package fingerprint

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/marionette/api/schemas"
)

func newTestGenerator(seed int64) *Generator {
	return NewWithRng(rand.New(rand.NewSource(seed)))
}

func TestGenerateScreenMatchesViewport(t *testing.T) {
	g := newTestGenerator(1)
	vp := schemas.Viewport{Width: 1366, Height: 768}

	for i := 0; i < 200; i++ {
		fp := g.Generate(vp)
		require.Equal(t, vp.Width, fp.Screen.Width)
		require.Equal(t, vp.Height, fp.Screen.Height)
		require.Equal(t, 24, fp.Screen.ColorDepth)
	}
}

func TestGenerateGPUPairNeverMismatched(t *testing.T) {
	// Build the set of valid pairs straight from the preset table, then
	// verify every draw lands on one of them.
	valid := map[string]string{}
	for _, p := range presets {
		for _, gp := range p.gpus {
			valid[gp.renderer] = gp.vendor
		}
	}

	g := newTestGenerator(2)
	for i := 0; i < 500; i++ {
		fp := g.Generate(schemas.Viewport{Width: 1920, Height: 1080})
		vendor, ok := valid[fp.WebGLRenderer]
		require.True(t, ok, "unknown renderer %q", fp.WebGLRenderer)
		require.Equal(t, vendor, fp.WebGLVendor)
	}
}

func TestGenerateUserAgentMatchesPlatform(t *testing.T) {
	g := newTestGenerator(3)
	for i := 0; i < 300; i++ {
		fp := g.Generate(schemas.Viewport{Width: 1280, Height: 720})
		switch fp.Platform {
		case "Win32":
			assert.Contains(t, fp.UserAgent, "Windows NT 10.0")
			assert.Equal(t, "Windows", fp.CHPlatform)
		case "MacIntel":
			assert.Contains(t, fp.UserAgent, "Macintosh")
			assert.Equal(t, "macOS", fp.CHPlatform)
		case "Linux x86_64":
			assert.Contains(t, fp.UserAgent, "X11; Linux")
			assert.Equal(t, "Linux", fp.CHPlatform)
		default:
			t.Fatalf("unexpected platform %q", fp.Platform)
		}
		assert.Contains(t, fp.UserAgent, "Chrome/"+chromeVersion)
		assert.Equal(t, chromeVersion, fp.BrowserVersion)
	}
}

func TestGenerateHardwareWithinPresetRanges(t *testing.T) {
	coreSet := map[int]bool{}
	for _, p := range presets {
		for _, c := range p.cores {
			coreSet[c] = true
		}
	}
	memSet := map[int]bool{}
	for _, m := range memoryChoices {
		memSet[m.gib] = true
	}

	g := newTestGenerator(4)
	for i := 0; i < 300; i++ {
		fp := g.Generate(schemas.Viewport{Width: 1920, Height: 1080})
		assert.True(t, coreSet[fp.HardwareConcurrency], "cores %d not in table", fp.HardwareConcurrency)
		assert.True(t, memSet[fp.DeviceMemory], "memory %d not in table", fp.DeviceMemory)
		assert.NotEmpty(t, fp.Fonts)
		assert.NotZero(t, fp.CanvasSeed)
		assert.NotZero(t, fp.AudioSeed)
	}
}

func TestGenerateSeedsVaryAcrossDraws(t *testing.T) {
	g := newTestGenerator(5)
	seen := map[uint32]bool{}
	for i := 0; i < 50; i++ {
		fp := g.Generate(schemas.Viewport{Width: 1920, Height: 1080})
		seen[fp.CanvasSeed] = true
	}
	assert.Greater(t, len(seen), 40, "canvas seeds should be effectively unique")
}

func TestGenerateDeterministicUnderFixedSeed(t *testing.T) {
	a := newTestGenerator(42).Generate(schemas.Viewport{Width: 1920, Height: 1080})
	b := newTestGenerator(42).Generate(schemas.Viewport{Width: 1920, Height: 1080})
	assert.Equal(t, a, b)
}

func TestPresetWeightsFavorWindows(t *testing.T) {
	g := newTestGenerator(6)
	win := 0
	const draws = 2000
	for i := 0; i < draws; i++ {
		fp := g.Generate(schemas.Viewport{Width: 1920, Height: 1080})
		if strings.Contains(fp.UserAgent, "Windows") {
			win++
		}
	}
	// Windows presets carry 75 of 100 weight; allow generous slack.
	assert.Greater(t, win, draws/2)
}
