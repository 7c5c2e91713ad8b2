package downstream

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStderrBuffer_AddTrimsAndSkipsBlankLines(t *testing.T) {
	b := newStderrBuffer()
	b.add("  hello  ")
	b.add("")
	b.add("   ")
	b.add("world")

	assert.Equal(t, []string{"hello", "world"}, b.snapshot())
}

func TestStderrBuffer_CapsAtMaxLines(t *testing.T) {
	b := newStderrBuffer()
	for i := 0; i < maxStderrLines+50; i++ {
		b.add(fmt.Sprintf("line-%d", i))
	}

	lines := b.snapshot()
	assert.Len(t, lines, maxStderrLines)
	assert.Equal(t, "line-50", lines[0], "oldest lines beyond the cap are dropped")
	assert.Equal(t, fmt.Sprintf("line-%d", maxStderrLines+49), lines[len(lines)-1])
}

func TestStderrBuffer_ClearEmptiesInPlace(t *testing.T) {
	b := newStderrBuffer()
	b.add("one")
	b.add("two")

	b.clear()
	assert.Empty(t, b.snapshot())

	b.add("three")
	assert.Equal(t, []string{"three"}, b.snapshot())
}

func TestStderrBuffer_SnapshotIsIsolatedFromFutureWrites(t *testing.T) {
	b := newStderrBuffer()
	b.add("one")

	snap := b.snapshot()
	b.add("two")

	assert.Equal(t, []string{"one"}, snap, "snapshot must not observe writes made after it was taken")
	assert.Equal(t, []string{"one", "two"}, b.snapshot())
}
