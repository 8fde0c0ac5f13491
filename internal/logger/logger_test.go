package logger

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfo_Success_Warn_Error_WriteTag(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	Info("TAG", "info message")
	Success("TAG", "done")
	Warn("TAG", "careful")
	Error("TAG", "broken")

	out := buf.String()
	assert.Contains(t, out, "tag=TAG")
	assert.Contains(t, out, "info message")
	assert.Contains(t, out, "status=ok")
	assert.Contains(t, out, "careful")
	assert.Contains(t, out, "broken")
}

func TestDebug_HiddenUntilLevelChanged(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer func() {
		SetOutput(os.Stdout)
		SetLevel("info")
	}()

	Debug("TAG", "hidden")
	assert.NotContains(t, buf.String(), "hidden")

	SetLevel("debug")
	Debug("TAG", "visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestSetLevel_UnknownKeepsLevel(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	SetLevel("loud")
	Info("TAG", "still info")
	assert.Contains(t, buf.String(), "still info")
}

func TestBannerSectionStats(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	Banner("v1.0.0")
	Banner("")
	Section("Test")
	Stats("key", 42)

	out := buf.String()
	assert.Contains(t, out, "version=v1.0.0")
	assert.Contains(t, out, "version=dev")
	assert.Contains(t, out, "--- Test ---")
	assert.Contains(t, out, "key=42")
}
