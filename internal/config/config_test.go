package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danmuck/gatewatch/internal/testutil/testlog"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gatewatch.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadOverlaysOnlyDefinedKeys(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, `
[gateway]
address = " 10.0.0.5:7001 "

[heartbeat]
interval = "2s"

[orders]
max_orders = 50

[kafka]
brokers = ["k1:9092", "k2:9092"]
topic = "gatewatch.orders"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, "10.0.0.5:7001", cfg.Gateway.Address)
	assert.Equal(t, def.Gateway.Session, cfg.Gateway.Session)
	assert.Equal(t, 2*time.Second, cfg.Heartbeat.Interval.Duration)
	assert.Equal(t, def.Heartbeat.Tolerance, cfg.Heartbeat.Tolerance)
	assert.Equal(t, 50, cfg.Orders.MaxOrders)
	assert.Equal(t, 30*time.Second, cfg.Orders.CorrelationWindow.Duration)
	assert.True(t, cfg.Kafka.Enabled())
	assert.False(t, cfg.Redis.Enabled())

	engine := cfg.EngineConfig()
	assert.Equal(t, 50, engine.MaxOrders)
	assert.Equal(t, 2*time.Second, cfg.MonitorConfig().Interval)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, "[http]\naddr = \":9500\"\n")
	t.Setenv("GATEWATCH_HTTP_ADDR", ":9600")
	t.Setenv("GATEWATCH_REDIS_ADDR", "localhost:6379")
	t.Setenv("GATEWATCH_REDIS_CHANNEL", "gatewatch.liveness")
	t.Setenv("GATEWATCH_HEARTBEAT_TOLERANCE", "250ms")
	t.Setenv("GATEWATCH_KAFKA_BROKERS", "a:9092,b:9092")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9600", cfg.HTTP.Addr)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, 250*time.Millisecond, cfg.Heartbeat.Tolerance.Duration)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.False(t, cfg.Kafka.Enabled(), "brokers alone do not enable kafka")
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	testlog.Start(t)
	cases := map[string]string{
		"negative bound":  "[orders]\nmax_orders = -1\n",
		"zero interval":   "[heartbeat]\ninterval = \"0s\"\n",
		"long session":    "[gateway]\nsession = \"ELEVENCHARS\"\n",
		"topic no broker": "[kafka]\ntopic = \"t\"\n",
		"unknown key":     "[gateway]\nadress = \"typo\"\n",
		"bad duration":    "[orders]\ncorrelation_window = \"soon\"\n",
		"no source":       "[gateway]\naddress = \"\"\n",
	}
	for name, body := range cases {
		_, err := Load(writeConfig(t, body))
		assert.Error(t, err, name)
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestTemplateLoadsBackToDefaults(t *testing.T) {
	testlog.Start(t)
	tmpl, err := Template()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(tmpl, "# gatewatch"))
	assert.Contains(t, tmpl, "correlation_window")

	path := filepath.Join(t.TempDir(), "gatewatch.toml")
	require.NoError(t, WriteTemplate(path, false))
	assert.Error(t, WriteTemplate(path, false), "existing file must not be overwritten")
	require.NoError(t, WriteTemplate(path, true))

	cfg, err := Load(path)
	require.NoError(t, err)
	def := Default()
	assert.Equal(t, def.Gateway, cfg.Gateway)
	assert.Equal(t, def.Heartbeat, cfg.Heartbeat)
	assert.Equal(t, def.Orders, cfg.Orders)
	assert.Equal(t, def.HTTP, cfg.HTTP)
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestLoadDotEnv(t *testing.T) {
	testlog.Start(t)
	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("GATEWATCH_ORDERS_MAX_ORDERS=77\n"), 0o600))
	t.Setenv("GATEWATCH_ORDERS_MAX_ORDERS", "")
	require.NoError(t, os.Unsetenv("GATEWATCH_ORDERS_MAX_ORDERS"))
	require.NoError(t, LoadDotEnv(path))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 77, cfg.Orders.MaxOrders)
}
