package humanoid

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/marionette/api/schemas"
)

func registerInput(exec *mockExecutor, selector string) {
	exec.geometry[selector] = &schemas.ElementGeometry{
		X: 100, Y: 100, Width: 300, Height: 40, TagName: "INPUT", Visible: true,
	}
}

func TestTypeProducesExactTextWithoutTypos(t *testing.T) {
	exec := newMockExecutor()
	registerInput(exec, "#q")
	h := NewTest(exec, 10)

	h.mu.Lock()
	h.baseConfig.TypoRate = 0
	h.dynamicConfig.TypoRate = 0
	h.mu.Unlock()

	const text = "hello there world"
	require.NoError(t, h.Type(context.Background(), "#q", text))

	assert.Equal(t, text, exec.typedText())
}

func TestTypeWithAlwaysCorrectedTyposStillProducesExactText(t *testing.T) {
	exec := newMockExecutor()
	registerInput(exec, "#q")
	h := NewTest(exec, 11)

	h.mu.Lock()
	h.baseConfig.TypoRate = 1.0
	h.dynamicConfig.TypoRate = 1.0
	h.baseConfig.TypoCorrectionProbability = 1.0
	h.dynamicConfig.TypoCorrectionProbability = 1.0
	// Pin fatigue scaling so applyFatigue cannot drag TypoRate down.
	h.baseConfig.FatigueIncreaseRate = 0
	h.mu.Unlock()

	const text = "the quick brown fox"
	require.NoError(t, h.Type(context.Background(), "#q", text))

	assert.Equal(t, text, exec.typedText())

	// With a certain typo on every eligible key, backspaces must appear.
	backspaces := 0
	for _, k := range exec.recordedKeys() {
		if k == KeyBackspace {
			backspaces++
		}
	}
	assert.Greater(t, backspaces, 0)
}

func TestTypeClicksToFocusFirst(t *testing.T) {
	exec := newMockExecutor()
	registerInput(exec, "#q")
	h := NewTest(exec, 12)

	h.mu.Lock()
	h.dynamicConfig.TypoRate = 0
	h.mu.Unlock()

	require.NoError(t, h.Type(context.Background(), "#q", "hi"))

	var press, release bool
	for _, ev := range exec.recordedMouse() {
		switch ev.Type {
		case schemas.MousePress:
			press = true
		case schemas.MouseRelease:
			release = true
		}
	}
	assert.True(t, press, "typing must click the field before sending keys")
	assert.True(t, release)
}

func TestTypeFailsWhenElementMissing(t *testing.T) {
	exec := newMockExecutor()
	h := NewTest(exec, 13)

	err := h.Type(context.Background(), "#missing", "text")
	require.Error(t, err)
	assert.Empty(t, exec.recordedKeys())
}

func TestKeyPauseRespectsMinimum(t *testing.T) {
	exec := newMockExecutor()
	h := NewTest(exec, 14)

	h.mu.Lock()
	defer h.mu.Unlock()

	for i := 0; i < 50; i++ {
		require.NoError(t, h.keyPause(context.Background(), []rune("abcdef"), 3))
	}

	minDelay := clampDelay(0, h.dynamicConfig.KeyPauseMinMs*h.dynamicConfig.KeyPauseNgramFactor)
	for _, d := range exec.sleeps {
		assert.GreaterOrEqual(t, d, minDelay)
	}
}

func TestKeyPauseStretchesAfterPunctuation(t *testing.T) {
	exec := newMockExecutor()
	h := NewTest(exec, 16)

	h.mu.Lock()
	defer h.mu.Unlock()

	for i := 0; i < 50; i++ {
		require.NoError(t, h.keyPause(context.Background(), []rune("a.b"), 2))
	}

	minDelay := clampDelay(0, h.dynamicConfig.KeyPauseMinMs*h.dynamicConfig.KeyPausePunctFactor)
	for _, d := range exec.sleeps {
		assert.GreaterOrEqual(t, d, minDelay)
	}
}

func TestTypoCorrectionUsesStructuredBackspace(t *testing.T) {
	exec := newMockExecutor()
	registerInput(exec, "#q")
	h := NewTest(exec, 17)

	h.mu.Lock()
	h.baseConfig.TypoRate = 1.0
	h.dynamicConfig.TypoRate = 1.0
	h.baseConfig.TypoCorrectionProbability = 1.0
	h.dynamicConfig.TypoCorrectionProbability = 1.0
	h.baseConfig.FatigueIncreaseRate = 0
	h.mu.Unlock()

	require.NoError(t, h.Type(context.Background(), "#q", "hello"))

	require.NotEmpty(t, exec.structured)
	for _, ev := range exec.structured {
		assert.Equal(t, "Backspace", ev.Key)
	}
}

func TestTypoDetourSkipsCharactersWithoutNeighbors(t *testing.T) {
	exec := newMockExecutor()
	h := NewTest(exec, 15)

	h.mu.Lock()
	made, err := h.typoDetour(context.Background(), 'é')
	h.mu.Unlock()

	require.NoError(t, err)
	assert.False(t, made)
	assert.Empty(t, exec.recordedKeys())
}
