package log

import (
	"bytes"
	"testing"

	"github.com/shoenig/test"
)

func TestNewWriterLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriter(&buf, false)
	logger.Debug().Msg("hidden")
	test.EqOp(t, 0, buf.Len())

	logger.Info().Str("devnode", "/dev/sda").Msg("adding watch")
	test.StrContains(t, buf.String(), "adding watch")
	test.StrContains(t, buf.String(), "/dev/sda")
}

func TestNewWriterDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriter(&buf, true)
	logger.Debug().Int("wd", 3).Msg("removing watch")
	test.StrContains(t, buf.String(), "removing watch")
}
