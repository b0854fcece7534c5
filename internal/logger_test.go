package internal

import (
	"abcpay/entity"
	"abcpay/services"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type channelDatabase struct {
	written chan services.Data
}

func (d *channelDatabase) WriteLogMessage(_ context.Context, data services.Data) error {
	d.written <- data
	return nil
}

func TestLogger_JSONRecords(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, "json", "payments", false, nil)

	logger.Debug("hidden")
	logger.Error("send", errors.New("refused"))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "ERROR", record["level"])
	assert.Equal(t, "send", record["msg"])
	assert.Equal(t, "payments", record["category"])
	assert.Equal(t, "refused", record["error"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestLogger_ChildAndDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, "text", "internal", true, nil).Child("transport")

	logger.Debug("request body")

	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.Contains(t, buf.String(), "category=transport")
}

func TestLogger_MirrorsToDatabase(t *testing.T) {
	database := &channelDatabase{written: make(chan services.Data, 1)}
	logger := NewLoggerTo(&bytes.Buffer{}, "text", "server", false, database)

	logger.Warn("http status 500")

	select {
	case data := <-database.written:
		message, ok := data.(*entity.LogMessage)
		require.True(t, ok)
		assert.Equal(t, "warn", message.Level)
		assert.Equal(t, "server", message.Category)
		assert.Equal(t, "http status 500", message.Text)
		assert.Equal(t, "log_message", message.DataType())
	case <-time.After(time.Second):
		t.Fatal("log message not written")
	}
}

func TestLogger_MirrorKeepsOrderAndDrainsOnClose(t *testing.T) {
	database := &channelDatabase{written: make(chan services.Data, 8)}
	logger := NewLoggerTo(&bytes.Buffer{}, "text", "internal", false, database)
	child := logger.Child("transport")

	logger.Info("first")
	child.Warn("second")
	logger.Error("third", errors.New("refused"))
	logger.Close()

	require.Len(t, database.written, 3)
	var texts []string
	for i := 0; i < 3; i++ {
		texts = append(texts, (<-database.written).(*entity.LogMessage).Text)
	}
	assert.Equal(t, []string{"first", "second", "third"}, texts)

	child.Info("after close")
	logger.Close()
	assert.Empty(t, database.written)
}

func TestSecret(t *testing.T) {
	assert.Equal(t, "28123***", secret("281234567890123456"))
	assert.Equal(t, "***", secret("2812"))
	assert.Equal(t, "?", secret(""))
}
