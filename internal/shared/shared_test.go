package shared

import (
	"bytes"
	"testing"

	"github.com/charmbracelet/log"
)

func TestShared(t *testing.T) {
	t.Run("NewLogger", func(t *testing.T) {
		t.Run("writes to the provided writer", func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := NewLogger(buf)
			logger.Info("hello")

			if !bytes.Contains(buf.Bytes(), []byte("hello")) {
				t.Errorf("expected log output, got %q", buf.String())
			}
		})

		t.Run("with nil writer does not panic", func(t *testing.T) {
			logger := NewLogger(nil)
			if logger == nil {
				t.Fatal("expected a logger")
			}
		})
	})

	t.Run("WithLogger attaches fields", func(t *testing.T) {
		buf := &bytes.Buffer{}
		logger := WithLogger(NewLogger(buf), "run_id", "abc123")
		logger.Info("tick")

		if !bytes.Contains(buf.Bytes(), []byte("abc123")) {
			t.Errorf("expected run_id in output, got %q", buf.String())
		}
	})

	t.Run("SetLogLevel filters output", func(t *testing.T) {
		buf := &bytes.Buffer{}
		logger := NewLogger(buf)
		SetLogLevel(logger, log.ErrorLevel)
		logger.Info("quiet")

		if buf.Len() != 0 {
			t.Errorf("expected no output below error level, got %q", buf.String())
		}
	})

	t.Run("GenerateID returns unique ids", func(t *testing.T) {
		a, b := GenerateID(), GenerateID()
		if a == b {
			t.Error("expected distinct ids")
		}
		if len(a) != 36 {
			t.Errorf("expected a uuid string, got %q", a)
		}
	})
}
