// Package stealth masks the automation signals headless Chrome exposes,
// combining CDP-level emulation overrides with an injected script chain that
// rewrites the JS surfaces anti-bot vendors probe.
package stealth

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/marionette/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// snippetChain is the injection order. The toString mask must run first
// because every later snippet registers its patches with it.
var snippetChain = []string{
	snippetMaskToString,
	snippetWebdriver,
	snippetErrorStack,
	snippetPlugins,
	snippetChrome,
	snippetPermissions,
	snippetWebGL,
	snippetNavigator,
	snippetScreen,
	snippetFonts,
	snippetWebRTC,
	snippetCanvas,
	snippetAudio,
	snippetCleanup,
}

// Build assembles the full injection script for a fingerprint. Each snippet
// is isolated in a try/catch IIFE so one broken patch cannot take down the
// rest, and all placeholder tokens are substituted from the fingerprint.
func Build(fp schemas.Fingerprint) string {
	var b strings.Builder
	for _, s := range snippetChain {
		b.WriteString("(function() { try {\n")
		b.WriteString(s)
		b.WriteString("\n} catch (e) {} })();\n")
	}

	fonts, err := json.Marshal(fp.Fonts)
	if err != nil || fp.Fonts == nil {
		fonts = []byte("[]")
	}

	r := strings.NewReplacer(
		"{{WEBGL_VENDOR}}", fp.WebGLVendor,
		"{{WEBGL_RENDERER}}", fp.WebGLRenderer,
		"{{VENDOR}}", fp.Vendor,
		"{{DEVICE_MEMORY}}", fmt.Sprintf("%d", fp.DeviceMemory),
		"{{SCREEN_WIDTH}}", fmt.Sprintf("%d", fp.Screen.Width),
		"{{SCREEN_HEIGHT}}", fmt.Sprintf("%d", fp.Screen.Height),
		"{{COLOR_DEPTH}}", fmt.Sprintf("%d", fp.Screen.ColorDepth),
		"{{CANVAS_SEED}}", fmt.Sprintf("%d", fp.CanvasSeed),
		"{{AUDIO_SEED}}", fmt.Sprintf("%d", fp.AudioSeed),
		"{{FONTS}}", string(fonts),
	)
	return r.Replace(b.String())
}

// Apply constructs the CDP task sequence that arms a fresh browser context
// with the fingerprint before any navigation. Locale and timezone come from
// the session profile rather than the fingerprint because they follow the
// proxy geography, not the forged hardware.
func Apply(fp schemas.Fingerprint, locale, timezone string, logger *zap.Logger) chromedp.Tasks {
	logger.Debug("applying stealth overrides",
		zap.String("platform", fp.Platform),
		zap.String("renderer", fp.WebGLRenderer),
		zap.String("timezone", timezone),
	)

	script := Build(fp)

	tasks := chromedp.Tasks{
		// Clears navigator.webdriver at the engine level.
		emulation.SetAutomationOverride(false),

		emulation.SetUserAgentOverride(fp.UserAgent).
			WithPlatform(fp.Platform).
			WithAcceptLanguage(acceptLanguage(locale)).
			WithUserAgentMetadata(clientHints(fp)),

		emulation.SetHardwareConcurrencyOverride(int64(fp.HardwareConcurrency)),

		// Headless windows never hold focus; sites check document.hasFocus
		// before serving media.
		emulation.SetFocusEmulationEnabled(true),

		chromedp.ActionFunc(func(ctx context.Context) error {
			if _, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx); err != nil {
				return fmt.Errorf("inject stealth script: %w", err)
			}
			return nil
		}),

		network.SetExtraHTTPHeaders(network.Headers{
			"Accept-Language": acceptLanguage(locale),
		}),
	}

	if timezone != "" {
		tasks = append(tasks, emulation.SetTimezoneOverride(timezone))
	}
	if locale != "" {
		tasks = append(tasks, emulation.SetLocaleOverride().WithLocale(locale))
	}
	return tasks
}

// clientHints mirrors the Sec-CH-UA headers Chrome would send for the forged
// identity. The brand list includes the GREASE entry real Chrome emits.
func clientHints(fp schemas.Fingerprint) *emulation.UserAgentMetadata {
	major := fp.BrowserVersion
	if i := strings.IndexByte(major, '.'); i > 0 {
		major = major[:i]
	}
	return &emulation.UserAgentMetadata{
		Brands: []*emulation.UserAgentBrandVersion{
			{Brand: "Not/A)Brand", Version: "8"},
			{Brand: "Chromium", Version: major},
			{Brand: "Google Chrome", Version: major},
		},
		FullVersionList: []*emulation.UserAgentBrandVersion{
			{Brand: "Not/A)Brand", Version: "8.0.0.0"},
			{Brand: "Chromium", Version: fp.BrowserVersion},
			{Brand: "Google Chrome", Version: fp.BrowserVersion},
		},
		Platform:        fp.CHPlatform,
		PlatformVersion: fp.CHPlatformVersion,
		Architecture:    fp.Architecture,
		Bitness:         fp.Bitness,
		Model:           "",
		Mobile:          false,
	}
}

func acceptLanguage(locale string) string {
	if locale == "" {
		locale = "en-US"
	}
	lang := locale
	if i := strings.IndexByte(lang, '-'); i > 0 {
		lang = lang[:i]
	}
	if lang == locale {
		return locale
	}
	return fmt.Sprintf("%s,%s;q=0.9", locale, lang)
}
