package stealth

// JS snippets injected through Page.addScriptToEvaluateOnNewDocument before
// any page script runs. {{PLACEHOLDER}} tokens are substituted per session by
// Build. Each snippet is wrapped in its own try/catch IIFE by Build so a
// failure in one patch cannot unwind the rest of the chain.
//
// Properties already overridden at the CDP level are not duplicated here:
//   navigator.webdriver            -> Emulation.setAutomationOverride
//   navigator.userAgent/platform   -> Emulation.setUserAgentOverride
//   navigator.hardwareConcurrency  -> Emulation.setHardwareConcurrencyOverride
//   document.hasFocus()            -> Emulation.setFocusEmulationEnabled

// snippetMaskToString must run first: it installs __mask, which later
// snippets use to make their patched functions report [native code].
const snippetMaskToString = `
const patched = new Map();
const nativeToString = Function.prototype.toString;
const fakeToString = function toString() {
  if (patched.has(this)) return patched.get(this);
  return nativeToString.call(this);
};
patched.set(fakeToString, 'function toString() { [native code] }');
Function.prototype.toString = fakeToString;
Object.defineProperty(window, '__mask', {
  value: function(fn, name) {
    patched.set(fn, 'function ' + (name || fn.name || '') + '() { [native code] }');
  },
  writable: false, enumerable: false, configurable: true,
});`

// snippetWebdriver scrubs what SetAutomationOverride leaves behind: the
// prototype accessor that keeps 'webdriver' visible to the in operator and
// enumeration, and driver-injected globals.
const snippetWebdriver = `
if ('webdriver' in Navigator.prototype) {
  delete Navigator.prototype.webdriver;
}
if ('webdriver' in navigator) {
  Object.defineProperty(navigator, 'webdriver', { get: () => undefined, configurable: true });
}
for (const key of Object.keys(window)) {
  if (key.startsWith('cdc_') || key.startsWith('$cdc_') || key.startsWith('$wdc_')) {
    try { delete window[key]; } catch (e) {}
  }
}
delete document.__webdriver_evaluate;
delete document.__driver_evaluate;
delete document.__selenium_unwrapped;`

// snippetErrorStack filters injected-script frames out of error stacks.
// Sites throw inside patched functions and inspect err.stack for frames
// whose source names the evaluation harness.
const snippetErrorStack = `
const tainted = ['__puppeteer_evaluation_script__', 'pptr:', '__playwright', 'UtilityScript.', 'devtools://'];
const clean = function(src) {
  return !tainted.some(m => src.includes(m));
};
Error.prepareStackTrace = function prepareStackTrace(err, frames) {
  let header = String(err.name || 'Error');
  if (err.message) header += ': ' + err.message;
  const lines = frames
    .filter(f => clean(String(f.getFileName() || f.getEvalOrigin() || '')))
    .map(f => '    at ' + f.toString());
  return [header].concat(lines).join('\n');
};
window.__mask(Error.prepareStackTrace, 'prepareStackTrace');`

// snippetPlugins backfills the empty navigator.plugins headless Chrome ships.
const snippetPlugins = `
const defs = [
  { name: 'PDF Viewer', filename: 'internal-pdf-viewer', desc: 'Portable Document Format' },
  { name: 'Chrome PDF Viewer', filename: 'internal-pdf-viewer', desc: 'Portable Document Format' },
  { name: 'Chromium PDF Viewer', filename: 'internal-pdf-viewer', desc: 'Portable Document Format' },
];
const mimeFor = function(plugin) {
  const mime = Object.create(MimeType.prototype);
  Object.defineProperties(mime, {
    type: { get: () => 'application/pdf', enumerable: true },
    suffixes: { get: () => 'pdf', enumerable: true },
    description: { get: () => plugin.description, enumerable: true },
    enabledPlugin: { get: () => plugin, enumerable: true },
  });
  return mime;
};
const plugins = defs.map(function(d) {
  const plugin = Object.create(Plugin.prototype);
  Object.defineProperties(plugin, {
    name: { get: () => d.name, enumerable: true },
    filename: { get: () => d.filename, enumerable: true },
    description: { get: () => d.desc, enumerable: true },
    length: { get: () => 1, enumerable: true },
  });
  const mime = mimeFor(plugin);
  Object.defineProperty(plugin, 0, { get: () => mime });
  plugin.item = function item(i) { return i === 0 ? mime : null; };
  plugin.namedItem = function namedItem(n) { return n === 'application/pdf' ? mime : null; };
  window.__mask(plugin.item, 'item');
  window.__mask(plugin.namedItem, 'namedItem');
  return plugin;
});
const arr = Object.create(PluginArray.prototype);
Object.defineProperty(arr, 'length', { get: () => plugins.length, enumerable: true });
plugins.forEach(function(p, i) {
  Object.defineProperty(arr, i, { get: () => p });
  Object.defineProperty(arr, p.name, { get: () => p });
});
arr.item = function item(i) { return plugins[i] || null; };
arr.namedItem = function namedItem(n) { return plugins.find(p => p.name === n) || null; };
arr.refresh = function refresh() {};
arr[Symbol.iterator] = function*() { yield* plugins; };
window.__mask(arr.item, 'item');
window.__mask(arr.namedItem, 'namedItem');
window.__mask(arr.refresh, 'refresh');
Object.defineProperty(navigator, 'plugins', { get: () => arr, configurable: true });`

// snippetChrome restores the window.chrome surface extensions probe for.
const snippetChrome = `
if (!window.chrome || !window.chrome.runtime) {
  const makeTimes = function() {
    const t = Date.now() / 1000;
    return {
      commitLoadTime: t, connectionInfo: 'h2', finishDocumentLoadTime: t,
      finishLoadTime: t, firstPaintAfterLoadTime: 0, firstPaintTime: t,
      navigationType: 'Other', npnNegotiatedProtocol: 'h2',
      requestTime: t - 0.1, startLoadTime: t - 0.1,
      wasAlternateProtocolAvailable: false, wasFetchedViaSpdy: true,
      wasNpnNegotiated: true,
    };
  };
  window.chrome = {
    app: { isInstalled: false },
    runtime: {
      connect: () => ({ onMessage: { addListener: () => {} }, postMessage: () => {}, disconnect: () => {} }),
      sendMessage: () => {},
      onMessage: { addListener: () => {}, removeListener: () => {} },
    },
    loadTimes: makeTimes,
    csi: () => ({ onloadT: Date.now(), pageT: Math.random() * 1000 + 100, startE: Date.now() - 200, tran: 15 }),
  };
  window.__mask(window.chrome.loadTimes, 'loadTimes');
  window.__mask(window.chrome.csi, 'csi');
}`

// snippetPermissions hides the headless tell where notification permission
// queries resolve to denied without a prompt.
const snippetPermissions = `
if (window.Permissions && Permissions.prototype.query) {
  const origQuery = Permissions.prototype.query;
  Permissions.prototype.query = function query(desc) {
    if (desc && desc.name === 'notifications') {
      return Promise.resolve({ state: Notification.permission === 'denied' ? 'denied' : 'prompt', onchange: null });
    }
    return origQuery.call(this, desc);
  };
  window.__mask(Permissions.prototype.query, 'query');
}`

// snippetWebGL reports the fingerprint's GPU strings for the unmasked
// vendor (0x9245) and renderer (0x9246) debug parameters.
const snippetWebGL = `
const patchGL = function(proto) {
  if (!proto) return;
  const orig = proto.getParameter;
  proto.getParameter = function getParameter(p) {
    if (p === 37445) return '{{WEBGL_VENDOR}}';
    if (p === 37446) return '{{WEBGL_RENDERER}}';
    return orig.call(this, p);
  };
  window.__mask(proto.getParameter, 'getParameter');
};
patchGL(window.WebGLRenderingContext && WebGLRenderingContext.prototype);
patchGL(window.WebGL2RenderingContext && WebGL2RenderingContext.prototype);`

// snippetNavigator pins the navigator fields the UA override does not cover.
const snippetNavigator = `
Object.defineProperty(navigator, 'deviceMemory', { get: () => {{DEVICE_MEMORY}}, configurable: true });
Object.defineProperty(navigator, 'vendor', { get: () => '{{VENDOR}}', configurable: true });
Object.defineProperty(navigator, 'maxTouchPoints', { get: () => 0, configurable: true });`

// snippetScreen aligns screen metrics with the emulated viewport.
const snippetScreen = `
Object.defineProperty(screen, 'width', { get: () => {{SCREEN_WIDTH}}, configurable: true });
Object.defineProperty(screen, 'height', { get: () => {{SCREEN_HEIGHT}}, configurable: true });
Object.defineProperty(screen, 'availWidth', { get: () => {{SCREEN_WIDTH}}, configurable: true });
Object.defineProperty(screen, 'availHeight', { get: () => {{SCREEN_HEIGHT}} - 40, configurable: true });
Object.defineProperty(screen, 'colorDepth', { get: () => {{COLOR_DEPTH}}, configurable: true });
Object.defineProperty(screen, 'pixelDepth', { get: () => {{COLOR_DEPTH}}, configurable: true });
Object.defineProperty(window, 'outerWidth', { get: () => {{SCREEN_WIDTH}}, configurable: true });
Object.defineProperty(window, 'outerHeight', { get: () => {{SCREEN_HEIGHT}} - 40, configurable: true });`

// snippetFonts answers font availability probes from the fingerprint's font
// list so the set of installed fonts matches the forged platform.
const snippetFonts = `
const available = ({{FONTS}} || []).map(f => f.toLowerCase());
if (window.FontFaceSet && FontFaceSet.prototype.check) {
  const origCheck = FontFaceSet.prototype.check;
  FontFaceSet.prototype.check = function check(font, text) {
    const m = /(?:[\d.]+(?:px|pt|em|rem)\s+)?['"]?([^'",]+)['"]?\s*$/.exec(String(font || ''));
    if (m && available.includes(m[1].trim().toLowerCase())) return true;
    return origCheck.call(this, font, text);
  };
  window.__mask(FontFaceSet.prototype.check, 'check');
}`

// snippetWebRTC strips STUN/TURN servers so peer connections cannot leak the
// real egress address behind a proxy.
const snippetWebRTC = `
if (window.RTCPeerConnection) {
  const OrigRTC = window.RTCPeerConnection;
  const WrappedRTC = function RTCPeerConnection(config, constraints) {
    if (config && config.iceServers) config.iceServers = [];
    return new OrigRTC(config, constraints);
  };
  WrappedRTC.prototype = OrigRTC.prototype;
  window.RTCPeerConnection = WrappedRTC;
  window.__mask(WrappedRTC, 'RTCPeerConnection');
}`

// snippetCanvas perturbs canvas readback with a seeded xorshift PRNG so the
// canvas hash is stable within a session but unique across sessions.
const snippetCanvas = `
let seed = ({{CANVAS_SEED}} >>> 0) || 1;
const next = function() {
  seed ^= seed << 13; seed ^= seed >>> 17; seed ^= seed << 5;
  return seed >>> 0;
};
const perturb = function(canvas, ctx) {
  if (!ctx || canvas.width <= 0 || canvas.height <= 0) return;
  try {
    const w = Math.min(canvas.width, 24);
    const img = ctx.getImageData(0, 0, w, 1);
    const d = img.data;
    for (let i = 0; i < d.length; i += 4) {
      d[i] = Math.max(0, Math.min(255, d[i] + (next() % 3) - 1));
      d[i + 2] = Math.max(0, Math.min(255, d[i + 2] + (next() % 3) - 1));
    }
    ctx.putImageData(img, 0, 0);
  } catch (e) {}
};
const origToDataURL = HTMLCanvasElement.prototype.toDataURL;
HTMLCanvasElement.prototype.toDataURL = function toDataURL() {
  perturb(this, this.getContext('2d'));
  return origToDataURL.apply(this, arguments);
};
window.__mask(HTMLCanvasElement.prototype.toDataURL, 'toDataURL');
const origToBlob = HTMLCanvasElement.prototype.toBlob;
HTMLCanvasElement.prototype.toBlob = function toBlob() {
  perturb(this, this.getContext('2d'));
  return origToBlob.apply(this, arguments);
};
window.__mask(HTMLCanvasElement.prototype.toBlob, 'toBlob');`

// snippetAudio adds sub-audible noise to audio analysis buffers, seeded
// independently from the canvas patch.
const snippetAudio = `
let seed = ({{AUDIO_SEED}} >>> 0) || 1;
const next = function() {
  seed ^= seed << 13; seed ^= seed >>> 17; seed ^= seed << 5;
  return seed >>> 0;
};
const noise = function() { return (next() / 0xFFFFFFFF - 0.5) * 1e-5; };
const touched = new WeakSet();
if (window.AudioBuffer) {
  const origChannel = AudioBuffer.prototype.getChannelData;
  AudioBuffer.prototype.getChannelData = function getChannelData(ch) {
    const buf = origChannel.call(this, ch);
    if (!touched.has(buf)) {
      touched.add(buf);
      for (let i = 0; i < buf.length; i += 100) buf[i] += noise();
    }
    return buf;
  };
  window.__mask(AudioBuffer.prototype.getChannelData, 'getChannelData');
}
if (window.AnalyserNode) {
  const origFreq = AnalyserNode.prototype.getFloatFrequencyData;
  AnalyserNode.prototype.getFloatFrequencyData = function getFloatFrequencyData(arr) {
    origFreq.call(this, arr);
    for (let i = 0; i < arr.length; i++) arr[i] += noise();
  };
  window.__mask(AnalyserNode.prototype.getFloatFrequencyData, 'getFloatFrequencyData');
}`

// snippetCleanup runs last and removes the shared mask helper so no global
// betrays the chain. Patches registered earlier keep working because the
// toString map captures them by closure.
const snippetCleanup = `
delete window.__mask;`
