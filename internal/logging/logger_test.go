package logging

import (
	"errors"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitializeSilentByDefault(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "")
	require.NoError(t, Initialize(""))
	assert.False(t, GetLogger().Core().Enabled(zapcore.ErrorLevel))
}

func TestInitializeReadsEnv(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "warn")
	require.NoError(t, Initialize(""))
	assert.True(t, GetLogger().Core().Enabled(zapcore.WarnLevel))
	assert.False(t, GetLogger().Core().Enabled(zapcore.InfoLevel))
	SetLogger(nil)
}

func TestDiscoveryHelpers(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	defer SetLogger(nil)

	LogInterfaces("run-1", []InterfaceInfo{
		{Name: "eth0", Local: net.ParseIP("192.168.1.20"), Broadcast: net.ParseIP("192.168.1.255")},
	})
	LogProbeFailure("run-1", "onvif", "192.168.1.20", "239.255.255.250:3702", errors.New("network is unreachable"))
	LogParseRejection("run-1", "hikvision", "192.168.1.64", errors.New("missing MAC"))

	assert.Equal(t, 1, logs.FilterMessage("Interfaces enumerated").Len())
	assert.Equal(t, 1, logs.FilterMessage("Interface enumerated").Len())

	failures := logs.FilterMessage("Probe transmission failed").All()
	require.Len(t, failures, 1)
	assert.Equal(t, zapcore.WarnLevel, failures[0].Level)
	assert.Equal(t, "239.255.255.250:3702", failures[0].ContextMap()["to"])

	rejections := logs.FilterMessage("Response rejected").All()
	require.Len(t, rejections, 1)
	assert.Equal(t, "192.168.1.64", rejections[0].ContextMap()["host"])
}

func TestDumps(t *testing.T) {
	assert.Equal(t, "", hexDump(nil))
	assert.Equal(t, "414243", hexDump([]byte("ABC")))
	assert.Equal(t, "A.C", asciiDump([]byte{'A', 0x00, 'C'}))

	long := make([]byte, 300)
	assert.True(t, strings.HasSuffix(hexDump(long), "..."))
	assert.Len(t, asciiDump(long), 256)
}
