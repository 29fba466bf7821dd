package logging_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mmpost/pkg/utils/logging"
)

func TestParseLogLevel(t *testing.T) {
	testCases := []struct {
		input string
		level slog.Level
		fail  bool
	}{
		{input: "debug", level: slog.LevelDebug},
		{input: "INFO", level: slog.LevelInfo},
		{input: "", level: slog.LevelInfo},
		{input: "warning", level: slog.LevelWarn},
		{input: "error", level: slog.LevelError},
		{input: "verbose", fail: true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			level, err := logging.ParseLogLevel(tc.input)
			if tc.fail {
				gt.Error(t, err)
				return
			}
			gt.NoError(t, err)
			gt.Equal(t, tc.level, level)
		})
	}
}

func TestParseFormat(t *testing.T) {
	f, err := logging.ParseFormat("json")
	gt.NoError(t, err)
	gt.Equal(t, logging.FormatJSON, f)

	f, err = logging.ParseFormat("")
	gt.NoError(t, err)
	gt.Equal(t, logging.FormatAuto, f)

	_, err = logging.ParseFormat("xml")
	gt.Error(t, err)
}

func TestNewLoggerAutoWritesJSONToBuffer(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(slog.LevelInfo, &buf, logging.FormatAuto)
	logger.Debug("hidden")
	logger.Info("delivered", "post_id", "p1")

	var record map[string]string
	gt.NoError(t, json.Unmarshal(buf.Bytes(), &record)).Required()
	gt.Equal(t, "delivered", record["msg"])
	gt.Equal(t, "p1", record["post_id"])
}
