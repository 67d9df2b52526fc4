package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestGetLoggerFallsBackToGlobal(t *testing.T) {
	if got := GetLogger(context.Background()); got.Logger != L.Logger {
		t.Error("GetLogger() should fall back to the global logger")
	}
}

func TestWithLogger(t *testing.T) {
	custom := logrus.NewEntry(logrus.New()).WithField("component", "walker")
	ctx := WithLogger(context.Background(), custom)

	got := G(ctx)
	if got.Data["component"] != "walker" {
		t.Errorf("G(ctx) fields = %v, want component=walker", got.Data)
	}
}

func TestSetLogLevel(t *testing.T) {
	defer L.Logger.SetLevel(L.Logger.GetLevel())

	if err := SetLogLevel("debug"); err != nil {
		t.Fatalf("SetLogLevel(debug) error = %v", err)
	}
	if L.Logger.GetLevel() != logrus.DebugLevel {
		t.Errorf("level = %v, want debug", L.Logger.GetLevel())
	}
	if err := SetLogLevel("loud"); err == nil {
		t.Error("SetLogLevel(loud) expected error, got nil")
	}
}

func TestSetLogFormatJSON(t *testing.T) {
	var buf bytes.Buffer
	oldOut := L.Logger.Out
	oldLevel := L.Logger.GetLevel()
	defer func() {
		SetLogOutput(oldOut)
		SetLogFormat("text")
		L.Logger.SetLevel(oldLevel)
	}()

	SetLogOutput(&buf)
	SetLogFormat("json")
	L.Logger.SetLevel(logrus.InfoLevel)

	L.WithField("path", "skills/foo").Info("listing")

	out := buf.String()
	if !strings.Contains(out, `"message":"listing"`) {
		t.Errorf("json output missing message field: %s", out)
	}
	if !strings.Contains(out, `"path":"skills/foo"`) {
		t.Errorf("json output missing path field: %s", out)
	}
}
