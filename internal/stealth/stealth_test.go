package stealth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/marionette/api/schemas"
)

func testFingerprint() schemas.Fingerprint {
	return schemas.Fingerprint{
		Platform:            "Win32",
		UserAgent:           "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
		Vendor:              "Google Inc.",
		HardwareConcurrency: 8,
		DeviceMemory:        16,
		Screen:              schemas.Screen{Width: 1920, Height: 1080, ColorDepth: 24},
		WebGLVendor:         "Google Inc. (NVIDIA)",
		WebGLRenderer:       "ANGLE (NVIDIA, NVIDIA GeForce RTX 3060 Direct3D11 vs_5_0 ps_5_0, D3D11)",
		Fonts:               []string{"Arial", "Segoe UI", "Tahoma"},
		CanvasSeed:          12345,
		AudioSeed:           67890,
		CHPlatform:          "Windows",
		CHPlatformVersion:   "10.0.0",
		Architecture:        "x86",
		Bitness:             "64",
		BrowserVersion:      "126.0.0.0",
	}
}

func TestBuildSubstitutesAllPlaceholders(t *testing.T) {
	script := Build(testFingerprint())

	assert.NotContains(t, script, "{{", "unsubstituted placeholder left in script")
	assert.Contains(t, script, "Google Inc. (NVIDIA)")
	assert.Contains(t, script, "GeForce RTX 3060")
	assert.Contains(t, script, "12345")
	assert.Contains(t, script, "67890")
	assert.Contains(t, script, "1920")
	assert.Contains(t, script, "1080")
}

func TestBuildMaskRunsFirst(t *testing.T) {
	script := Build(testFingerprint())

	maskIdx := strings.Index(script, "__mask")
	webdriverIdx := strings.Index(script, "Navigator.prototype.webdriver")
	pluginIdx := strings.Index(script, "navigator, 'plugins'")
	require.GreaterOrEqual(t, maskIdx, 0)
	require.Greater(t, webdriverIdx, maskIdx)
	require.Greater(t, pluginIdx, webdriverIdx)
}

func TestBuildPatchesErrorStacks(t *testing.T) {
	script := Build(testFingerprint())

	assert.Contains(t, script, "prepareStackTrace")
	assert.Contains(t, script, "__puppeteer_evaluation_script__")
}

func TestBuildInjectsFontList(t *testing.T) {
	script := Build(testFingerprint())

	assert.Contains(t, script, "FontFaceSet")
	assert.Contains(t, script, `"Segoe UI"`)
	assert.NotContains(t, script, "{{FONTS}}")
}

func TestBuildEmptyFontListStillValid(t *testing.T) {
	fp := testFingerprint()
	fp.Fonts = nil

	script := Build(fp)
	assert.Contains(t, script, "([] || [])")
}

func TestBuildMaskHelperHiddenAndRemoved(t *testing.T) {
	script := Build(testFingerprint())

	// Installed non-enumerable, torn down after the last snippet.
	assert.Contains(t, script, "enumerable: false")
	cleanup := strings.LastIndex(script, "delete window.__mask")
	require.GreaterOrEqual(t, cleanup, 0)
	assert.NotContains(t, script[cleanup+len("delete window.__mask"):], "__mask",
		"no snippet may use the helper after teardown")
}

func TestBuildWrapsSnippetsInTryCatch(t *testing.T) {
	script := Build(testFingerprint())

	opens := strings.Count(script, "(function() { try {")
	closes := strings.Count(script, "} catch (e) {} })();")
	assert.Equal(t, len(snippetChain), opens)
	assert.Equal(t, opens, closes)
}

func TestBuildDistinctSeedsProduceDistinctScripts(t *testing.T) {
	a := testFingerprint()
	b := testFingerprint()
	b.CanvasSeed = 99999

	assert.NotEqual(t, Build(a), Build(b))
}

func TestApplyTaskOrdering(t *testing.T) {
	tasks := Apply(testFingerprint(), "de-DE", "Europe/Berlin", zaptest.NewLogger(t))

	// Automation override, UA, concurrency, focus, script, headers, then the
	// optional timezone and locale overrides.
	require.Len(t, tasks, 8)
}

func TestApplySkipsEmptyLocaleAndTimezone(t *testing.T) {
	tasks := Apply(testFingerprint(), "", "", zaptest.NewLogger(t))
	require.Len(t, tasks, 6)
}

func TestClientHintsMajorVersion(t *testing.T) {
	md := clientHints(testFingerprint())

	require.Len(t, md.Brands, 3)
	assert.Equal(t, "126", md.Brands[1].Version)
	assert.Equal(t, "126.0.0.0", md.FullVersionList[1].Version)
	assert.Equal(t, "Windows", md.Platform)
	assert.False(t, md.Mobile)
}

func TestAcceptLanguage(t *testing.T) {
	assert.Equal(t, "en-US,en;q=0.9", acceptLanguage("en-US"))
	assert.Equal(t, "de-DE,de;q=0.9", acceptLanguage("de-DE"))
	assert.Equal(t, "en-US,en;q=0.9", acceptLanguage(""))
	assert.Equal(t, "fr", acceptLanguage("fr"))
}
