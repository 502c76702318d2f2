// Package fingerprint produces self-consistent forged device identities.
//
// One fingerprint is generated per browser context from a weighted random
// choice among desktop-class OS/GPU presets, then independently randomized
// (core count, memory, noise seeds) so that no two sessions are
// bit-identical even under the same preset. The preset table is immutable
// after startup and safe for unsynchronized concurrent reads.
package fingerprint

import (
	"math/rand"
	"sync"
	"time"

	"github.com/xkilldash9x/marionette/api/schemas"
)

// chromeVersion is the browser release every preset's user agent claims.
// Keep the major version current; anti-bot vendors score stale versions.
const chromeVersion = "126.0.0.0"

// gpuPair keeps the WebGL vendor and renderer strings together so they can
// never be mismatched across GPU families.
type gpuPair struct {
	vendor   string
	renderer string
}

// preset is one coherent OS/hardware family.
type preset struct {
	// weight biases selection toward the most common real-world configs.
	weight int

	platform          string
	vendor            string
	userAgent         string
	chPlatform        string
	chPlatformVersion string
	architecture      string
	bitness           string

	gpus  []gpuPair
	cores []int
	fonts []string
}

var windowsFonts = []string{
	"Arial", "Arial Black", "Calibri", "Cambria", "Comic Sans MS", "Consolas",
	"Courier New", "Georgia", "Impact", "Lucida Console", "Microsoft Sans Serif",
	"Segoe UI", "Tahoma", "Times New Roman", "Trebuchet MS", "Verdana",
}

var macFonts = []string{
	"American Typewriter", "Arial", "Avenir", "Courier New", "Futura",
	"Geneva", "Georgia", "Gill Sans", "Helvetica", "Helvetica Neue",
	"Lucida Grande", "Menlo", "Monaco", "San Francisco", "Times New Roman", "Verdana",
}

var linuxFonts = []string{
	"Cantarell", "DejaVu Sans", "DejaVu Sans Mono", "DejaVu Serif",
	"Liberation Mono", "Liberation Sans", "Liberation Serif", "Noto Sans",
	"Noto Serif", "Ubuntu", "Ubuntu Mono",
}

// presets is ordered by prevalence; the weighted draw walks this slice.
var presets = []preset{
	{
		weight:            40,
		platform:          "Win32",
		vendor:            "Google Inc.",
		userAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/" + chromeVersion + " Safari/537.36",
		chPlatform:        "Windows",
		chPlatformVersion: "10.0.0",
		architecture:      "x86",
		bitness:           "64",
		gpus: []gpuPair{
			{"Google Inc. (NVIDIA)", "ANGLE (NVIDIA, NVIDIA GeForce RTX 3060 Direct3D11 vs_5_0 ps_5_0, D3D11)"},
			{"Google Inc. (NVIDIA)", "ANGLE (NVIDIA, NVIDIA GeForce GTX 1660 Direct3D11 vs_5_0 ps_5_0, D3D11)"},
			{"Google Inc. (NVIDIA)", "ANGLE (NVIDIA, NVIDIA GeForce RTX 4070 Direct3D11 vs_5_0 ps_5_0, D3D11)"},
		},
		cores: []int{8, 12, 16},
		fonts: windowsFonts,
	},
	{
		weight:            25,
		platform:          "Win32",
		vendor:            "Google Inc.",
		userAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/" + chromeVersion + " Safari/537.36",
		chPlatform:        "Windows",
		chPlatformVersion: "10.0.0",
		architecture:      "x86",
		bitness:           "64",
		gpus: []gpuPair{
			{"Google Inc. (Intel)", "ANGLE (Intel, Intel(R) UHD Graphics 630 Direct3D11 vs_5_0 ps_5_0, D3D11)"},
			{"Google Inc. (Intel)", "ANGLE (Intel, Intel(R) Iris(R) Xe Graphics Direct3D11 vs_5_0 ps_5_0, D3D11)"},
		},
		cores: []int{4, 8, 12},
		fonts: windowsFonts,
	},
	{
		weight:            10,
		platform:          "Win32",
		vendor:            "Google Inc.",
		userAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/" + chromeVersion + " Safari/537.36",
		chPlatform:        "Windows",
		chPlatformVersion: "10.0.0",
		architecture:      "x86",
		bitness:           "64",
		gpus: []gpuPair{
			{"Google Inc. (AMD)", "ANGLE (AMD, AMD Radeon RX 6600 Direct3D11 vs_5_0 ps_5_0, D3D11)"},
			{"Google Inc. (AMD)", "ANGLE (AMD, AMD Radeon(TM) Graphics Direct3D11 vs_5_0 ps_5_0, D3D11)"},
		},
		cores: []int{6, 8, 16},
		fonts: windowsFonts,
	},
	{
		weight:            15,
		platform:          "MacIntel",
		vendor:            "Google Inc.",
		userAgent:         "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/" + chromeVersion + " Safari/537.36",
		chPlatform:        "macOS",
		chPlatformVersion: "14.5.0",
		architecture:      "arm",
		bitness:           "64",
		gpus: []gpuPair{
			{"Google Inc. (Apple)", "ANGLE (Apple, ANGLE Metal Renderer: Apple M2, Unspecified Version)"},
			{"Google Inc. (Apple)", "ANGLE (Apple, ANGLE Metal Renderer: Apple M1 Pro, Unspecified Version)"},
		},
		cores: []int{8, 10, 12},
		fonts: macFonts,
	},
	{
		weight:            10,
		platform:          "Linux x86_64",
		vendor:            "Google Inc.",
		userAgent:         "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/" + chromeVersion + " Safari/537.36",
		chPlatform:        "Linux",
		chPlatformVersion: "6.8.0",
		architecture:      "x86",
		bitness:           "64",
		gpus: []gpuPair{
			{"Google Inc. (Intel)", "ANGLE (Intel, Mesa Intel(R) UHD Graphics 620 (KBL GT2), OpenGL 4.6)"},
			{"Google Inc. (Intel)", "ANGLE (Intel, Mesa Intel(R) Iris(R) Plus Graphics (ICL GT2), OpenGL 4.6)"},
		},
		cores: []int{4, 8},
		fonts: linuxFonts,
	},
}

// memoryChoices is the navigator.deviceMemory candidate set in GiB, weighted
// toward the mid-range configurations real traffic shows.
var memoryChoices = []struct {
	gib    int
	weight int
}{
	{4, 2},
	{8, 5},
	{16, 3},
	{32, 1},
}

// Generator draws fingerprints. It owns its RNG; there is no package-level
// mutable state.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a Generator seeded from the clock.
func New() *Generator {
	return NewWithRng(rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewWithRng creates a Generator with an injected RNG for deterministic tests.
func NewWithRng(rng *rand.Rand) *Generator {
	return &Generator{rng: rng}
}

// Generate produces one internally consistent device identity. Screen
// dimensions always match the requested viewport, the GPU vendor/renderer
// strings are always a matched pair, and the user agent matches the chosen
// OS family.
func (g *Generator) Generate(viewport schemas.Viewport) schemas.Fingerprint {
	g.mu.Lock()
	defer g.mu.Unlock()

	p := g.pickPreset()
	gpu := p.gpus[g.rng.Intn(len(p.gpus))]

	fp := schemas.Fingerprint{
		Platform:            p.platform,
		UserAgent:           p.userAgent,
		Vendor:              p.vendor,
		HardwareConcurrency: p.cores[g.rng.Intn(len(p.cores))],
		DeviceMemory:        g.pickMemory(),
		Screen: schemas.Screen{
			Width:      viewport.Width,
			Height:     viewport.Height,
			ColorDepth: 24,
		},
		WebGLVendor:       gpu.vendor,
		WebGLRenderer:     gpu.renderer,
		Fonts:             p.fonts,
		CanvasSeed:        g.rng.Uint32(),
		AudioSeed:         g.rng.Uint32(),
		CHPlatform:        p.chPlatform,
		CHPlatformVersion: p.chPlatformVersion,
		Architecture:      p.architecture,
		Bitness:           p.bitness,
		BrowserVersion:    chromeVersion,
	}

	// A zero seed would disable the noise patch's PRNG; nudge it.
	if fp.CanvasSeed == 0 {
		fp.CanvasSeed = 1
	}
	if fp.AudioSeed == 0 {
		fp.AudioSeed = 1
	}
	return fp
}

func (g *Generator) pickPreset() preset {
	total := 0
	for _, p := range presets {
		total += p.weight
	}
	n := g.rng.Intn(total)
	for _, p := range presets {
		if n < p.weight {
			return p
		}
		n -= p.weight
	}
	return presets[0]
}

func (g *Generator) pickMemory() int {
	total := 0
	for _, m := range memoryChoices {
		total += m.weight
	}
	n := g.rng.Intn(total)
	for _, m := range memoryChoices {
		if n < m.weight {
			return m.gib
		}
		n -= m.weight
	}
	return memoryChoices[1].gib
}
