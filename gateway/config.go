// Package gateway wires the gateway's loops, transports and registries
// together and serves its admin endpoints.
package gateway

import (
	"errors"
	"fmt"

	"github.com/lcx/gatesvr/config"
	"github.com/lcx/gatesvr/discovery"
	"github.com/lcx/gatesvr/net"
	"github.com/lcx/gatesvr/tracing"
	"github.com/lcx/gatesvr/utils"
)

// ConfigName is the yaml file the gateway loads, gatesvr.yaml.
const ConfigName = "gatesvr"

type AdminCfg struct {
	Addr string `mapstructure:"addr"`
}

// Config is the gateway configuration. Only Password and the receive
// rates are applied on reload; other changes need a restart.
type Config struct {
	// NodeAddr is the gateway's own area.set.func.inst address.
	NodeAddr string `mapstructure:"nodeAddr"`
	// Password is the secret logic servers present in LOGIN.
	Password string              `mapstructure:"password"`
	Loops    net.LoopGroupCfg    `mapstructure:"loops"`
	Logic    net.TCPTransportCfg `mapstructure:"logic"`
	Client   net.WSTransportCfg  `mapstructure:"client"`
	Admin    AdminCfg            `mapstructure:"admin"`
	Consul   discovery.ConsulCfg `mapstructure:"consul"`
	Tracing  tracing.Cfg         `mapstructure:"tracing"`

	node utils.NodeAddr
}

var _ config.Config = (*Config)(nil)

func (c *Config) GetName() string {
	return ConfigName
}

func (c *Config) Validate() error {
	node, err := utils.ParseNodeAddr(c.NodeAddr)
	if err != nil {
		return err
	}
	if c.Password == "" {
		return errors.New("password cannot be empty")
	}
	if err = c.Loops.Validate(); err != nil {
		return fmt.Errorf("loops: %w", err)
	}
	if err = c.Logic.Validate(); err != nil {
		return fmt.Errorf("logic: %w", err)
	}
	if err = c.Client.Validate(); err != nil {
		return fmt.Errorf("client: %w", err)
	}
	if err = c.Consul.Validate(); err != nil {
		return fmt.Errorf("consul: %w", err)
	}
	if err = c.Tracing.Validate(); err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	c.node = node
	return nil
}

// Node is the parsed NodeAddr; valid after Validate.
func (c *Config) Node() utils.NodeAddr {
	return c.node
}

// NodeID is the packed node address reported to logic servers.
func (c *Config) NodeID() int64 {
	return int64(c.node.Pack())
}

// rejectStaticChanges is the reload hook refusing edits that need a
// restart.
func rejectStaticChanges(oldVal, newVal config.Config) error {
	o, ok1 := oldVal.(*Config)
	n, ok2 := newVal.(*Config)
	if !ok1 || !ok2 {
		return fmt.Errorf("unexpected config type %T", newVal)
	}
	switch {
	case o.NodeAddr != n.NodeAddr:
		return errors.New("nodeAddr is not reloadable")
	case o.Loops != n.Loops:
		return errors.New("loops is not reloadable")
	case o.Logic.Addr != n.Logic.Addr:
		return errors.New("logic.addr is not reloadable")
	case o.Client.Addr != n.Client.Addr || o.Client.Path != n.Client.Path:
		return errors.New("client listener is not reloadable")
	case o.Admin != n.Admin:
		return errors.New("admin is not reloadable")
	case o.Tracing != n.Tracing:
		return errors.New("tracing is not reloadable")
	}
	return nil
}
