package humanoid

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/xkilldash9x/marionette/api/schemas"
)

// keyboardNeighbors maps characters to adjacent QWERTY keys for typo
// simulation.
var keyboardNeighbors = map[rune]string{
	'1': "2q", '2': "13wq", '3': "24we", '4': "35er", '5': "46rt", '6': "57ty",
	'7': "68yu", '8': "79ui", '9': "80io", '0': "9op",
	'q': "wa1s", 'w': "qase23", 'e': "wsdr34", 'r': "edft45", 't': "rfgy56",
	'y': "tghu67", 'u': "yhji78", 'i': "ujko89", 'o': "iklp90", 'p': "ol0",
	'a': "qwsz", 's': "awedxz", 'd': "serfcx", 'f': "drtgvc", 'g': "ftyhbv",
	'h': "gyujnb", 'j': "huikmn", 'k': "jiolm", 'l': "kop",
	'z': "asx", 'x': "zsdc", 'c': "xdfv", 'v': "cfgb", 'b': "vghn", 'n': "bhjm", 'm': "njk",
}

// commonNgrams are letter pairs and triples typed faster than average.
var commonNgrams = map[string]bool{
	"th": true, "he": true, "in": true, "er": true, "an": true, "re": true,
	"es": true, "on": true, "st": true, "nt": true,
	"the": true, "and": true, "ing": true, "ion": true, "tio": true,
}

// Type clicks the element to focus it and types the text word by word,
// bursting inside words and pausing between them. Typos occur at the
// persona's rate and are usually noticed and backspaced.
func (h *Humanoid) Type(ctx context.Context, selector, text string) error {
	if err := h.Click(ctx, selector); err != nil {
		return fmt.Errorf("focus %q: %w", selector, err)
	}
	if err := h.Pause(ctx, 200, 80); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.updateFatigue(float64(len(text)) * 0.05)

	words := strings.Split(text, " ")
	for wi, word := range words {
		runes := []rune(word)
		for i := 0; i < len(runes); i++ {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err := h.typeRune(ctx, runes, i); err != nil {
				return err
			}
		}

		if wi < len(words)-1 {
			// Inter-word pause scales with the length of the word ahead.
			pauseMs := 100 + float64(len(words[wi+1]))*5 + h.rng.Float64()*80
			if err := h.executor.Sleep(ctx, time.Duration(pauseMs)*time.Millisecond); err != nil {
				return err
			}
			if err := h.sendString(ctx, " "); err != nil {
				return err
			}
		}
	}
	return nil
}

// typeRune emits one character with its inter-key pause, possibly detouring
// through a typo-and-correction. Caller holds the lock.
func (h *Humanoid) typeRune(ctx context.Context, runes []rune, i int) error {
	if err := h.keyPause(ctx, runes, i); err != nil {
		return err
	}

	char := runes[i]
	if h.rng.Float64() < h.dynamicConfig.TypoRate {
		made, err := h.typoDetour(ctx, char)
		if err != nil {
			return err
		}
		if made {
			return nil
		}
	}

	return h.sendString(ctx, string(char))
}

// typoDetour types an adjacent key instead of char; with the persona's
// correction probability it then pauses, backspaces and types the intended
// key. Returns false when the character has no neighbors to mistype.
// Caller holds the lock.
func (h *Humanoid) typoDetour(ctx context.Context, char rune) (bool, error) {
	neighbors, ok := keyboardNeighbors[unicode.ToLower(char)]
	if !ok || len(neighbors) == 0 {
		return false, nil
	}

	wrong := rune(neighbors[h.rng.Intn(len(neighbors))])
	if unicode.IsUpper(char) {
		wrong = unicode.ToUpper(wrong)
	}
	if err := h.sendString(ctx, string(wrong)); err != nil {
		return true, err
	}

	if h.rng.Float64() >= h.dynamicConfig.TypoCorrectionProbability {
		// Typo goes unnoticed; the intended character still follows.
		return false, nil
	}

	// Recognition pause before the fix.
	noticeMs := h.dynamicConfig.KeyPauseMeanMs*1.8 + h.rng.NormFloat64()*h.dynamicConfig.KeyPauseStdDevMs
	if err := h.executor.Sleep(ctx, clampDelay(noticeMs, h.dynamicConfig.KeyPauseMinMs)); err != nil {
		return true, err
	}
	if err := h.pressControlKey(ctx, "Backspace"); err != nil {
		return true, err
	}
	if err := h.sendString(ctx, string(char)); err != nil {
		return true, err
	}
	return true, nil
}

// pressControlKey emits a named control key as a structured down/up pair so
// the browser sees a real key event rather than synthesized text. Caller
// holds the lock.
func (h *Humanoid) pressControlKey(ctx context.Context, key string) error {
	if err := h.executor.DispatchStructuredKey(ctx, schemas.KeyEventData{Key: key}); err != nil {
		return err
	}
	dwell := h.dynamicConfig.KeyHoldMean + h.rng.NormFloat64()*h.dynamicConfig.KeyHoldStdDev
	return h.executor.Sleep(ctx, clampDelay(dwell, 20.0))
}

// sendString dispatches keys followed by the key dwell time. Caller holds
// the lock.
func (h *Humanoid) sendString(ctx context.Context, keys string) error {
	if err := h.executor.SendKeys(ctx, keys); err != nil {
		return err
	}
	dwell := h.dynamicConfig.KeyHoldMean + h.rng.NormFloat64()*h.dynamicConfig.KeyHoldStdDev
	return h.executor.Sleep(ctx, clampDelay(dwell, 20.0))
}

// keyPause sleeps the inter-key delay, shortened for common n-grams and
// stretched by fatigue. Caller holds the lock.
func (h *Humanoid) keyPause(ctx context.Context, runes []rune, index int) error {
	cfg := h.dynamicConfig
	mean := cfg.KeyPauseMeanMs
	minMs := cfg.KeyPauseMinMs

	ngram := 1.0
	if index > 1 && commonNgrams[strings.ToLower(string(runes[index-2:index+1]))] {
		ngram = cfg.KeyPauseNgramFactor
	} else if index > 0 && commonNgrams[strings.ToLower(string(runes[index-1:index+1]))] {
		ngram = cfg.KeyPauseNgramFactor
	}
	mean *= ngram
	minMs *= ngram

	// Sentences breathe: the key after a comma or period comes slower.
	if index > 0 && unicode.IsPunct(runes[index-1]) {
		mean *= cfg.KeyPausePunctFactor
		minMs *= cfg.KeyPausePunctFactor
	}

	mean *= 1.0 + h.fatigueLevel*0.3

	delay := clampDelay(mean+h.rng.NormFloat64()*cfg.KeyPauseStdDevMs, minMs)
	h.recoverFatigue(delay)
	return h.executor.Sleep(ctx, delay)
}

func clampDelay(ms, minMs float64) time.Duration {
	return time.Duration(math.Max(minMs, ms)) * time.Millisecond
}
