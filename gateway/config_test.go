package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcx/gatesvr/config"
	"github.com/lcx/gatesvr/net"
	"github.com/lcx/gatesvr/tracing"
	"github.com/lcx/gatesvr/utils"
)

func testConfig() *Config {
	return &Config{
		NodeAddr: "1.1.10.1",
		Password: "pw",
		Loops:    net.LoopGroupCfg{Loops: 2, TaskQueueLimit: 1024},
		Logic:    net.TCPTransportCfg{Addr: "127.0.0.1:0", IdleTimeout: 30, SendBufferSize: 1 << 20},
		Client:   net.WSTransportCfg{Addr: "127.0.0.1:0", Path: "/ws", IdleTimeout: 30, SendQueueSize: 64},
		Admin:    AdminCfg{Addr: "127.0.0.1:0"},
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := testConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, utils.NodeAddr{Area: 1, Set: 1, Func: 10, Inst: 1}, cfg.Node())
	assert.Equal(t, int64(1<<27|1<<23|10<<15|1), cfg.NodeID())
	assert.Equal(t, ConfigName, cfg.GetName())

	cases := map[string]func(c *Config){
		"node":      func(c *Config) { c.NodeAddr = "1.1" },
		"password":  func(c *Config) { c.Password = "" },
		"loops":     func(c *Config) { c.Loops.Loops = -1 },
		"logic":     func(c *Config) { c.Logic.Addr = "" },
		"client":    func(c *Config) { c.Client.Path = "ws" },
		"consul":    func(c *Config) { c.Consul.Address = "127.0.0.1:8500" },
		"sendBuf":   func(c *Config) { c.Logic.SendBufferSize = 10 },
		"sendQueue": func(c *Config) { c.Client.SendQueueSize = 0 },
		"tracing":   func(c *Config) { c.Tracing = tracing.Cfg{Enabled: true, SampleRatio: 2, Exporter: tracing.ExporterStdout} },
	}
	for name, mutate := range cases {
		c := testConfig()
		mutate(c)
		assert.Error(t, c.Validate(), name)
	}
}

func TestSampleConfigLoads(t *testing.T) {
	cm := config.NewConfigManager()
	defer cm.Close()
	cm.SetBasePath("../configs")

	cfg := &Config{}
	require.NoError(t, cm.LoadConfig(ConfigName, cfg))
	assert.Equal(t, "/ws", cfg.Client.Path)
	assert.False(t, cfg.Consul.Enabled())
	assert.Equal(t, 50, cfg.Client.RecvRate)
	assert.False(t, cfg.Tracing.Enabled)
	assert.Equal(t, tracing.ExporterStdout, cfg.Tracing.Exporter)
}

func TestRejectStaticChanges(t *testing.T) {
	base := testConfig()

	ok := testConfig()
	ok.Password = "other"
	ok.Logic.RecvRate = 10
	ok.Client.RecvRate = 5
	assert.NoError(t, rejectStaticChanges(base, ok))

	for name, mutate := range map[string]func(c *Config){
		"node":    func(c *Config) { c.NodeAddr = "1.1.10.2" },
		"loops":   func(c *Config) { c.Loops.Loops = 8 },
		"logic":   func(c *Config) { c.Logic.Addr = "127.0.0.1:1" },
		"client":  func(c *Config) { c.Client.Path = "/other" },
		"admin":   func(c *Config) { c.Admin.Addr = "" },
		"tracing": func(c *Config) { c.Tracing.Enabled = true },
	} {
		c := testConfig()
		mutate(c)
		assert.Error(t, rejectStaticChanges(base, c), name)
	}
}
