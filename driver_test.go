package uidriver

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFocusedWindow(t *testing.T) {
	out := `  mCurrentFocus=Window{4ac9063 u0 com.android.settings/com.android.settings.Settings}
  mFocusedApp=AppWindowToken{...}`
	pkg, err := parseFocusedWindow(out)
	assert.NoError(t, err)
	assert.Equal(t, "com.android.settings", pkg)
}

func TestParseFocusedWindowSystemWindow(t *testing.T) {
	out := `  mCurrentFocus=Window{1234abc u0 StatusBar}`
	pkg, err := parseFocusedWindow(out)
	assert.NoError(t, err)
	assert.Equal(t, "StatusBar", pkg)
}

func TestParseFocusedWindowNone(t *testing.T) {
	_, err := parseFocusedWindow("  mCurrentFocus=null")
	assert.Error(t, err)
}

func TestByBounds(t *testing.T) {
	rect := image.Rect(0, 100, 720, 900)
	f := ByBounds(rect)

	obj, err := f.Find(nil)
	assert.NoError(t, err)
	assert.Equal(t, rect, obj.Bounds())
	assert.Equal(t, "ByBounds((0,100)-(720,900))", f.String())
}
