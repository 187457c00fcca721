// Package discovery registers the gateway's logic-server listener in consul
// so logic servers can find it.
package discovery

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/consul/api"

	"github.com/lcx/gatesvr/log"
	"github.com/lcx/gatesvr/metrics"
)

// ConsulCfg configures the registration. Registration is skipped when
// Address is empty.
type ConsulCfg struct {
	Address     string   `mapstructure:"address"`
	ServiceName string   `mapstructure:"serviceName"`
	ServiceID   string   `mapstructure:"serviceID"`
	Tags        []string `mapstructure:"tags"`
	// Advertise is the host:port logic servers dial.
	Advertise string `mapstructure:"advertise"`
	// TTLSec is the health-check TTL; the check is refreshed at a third of it.
	TTLSec uint32 `mapstructure:"ttlSec"`
	// DeregisterAfterSec removes the service after it stayed critical this long.
	DeregisterAfterSec uint32 `mapstructure:"deregisterAfterSec"`
}

func (c *ConsulCfg) Enabled() bool {
	return c != nil && c.Address != ""
}

func (c *ConsulCfg) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if c.ServiceName == "" {
		return fmt.Errorf("serviceName cannot be empty")
	}
	if _, _, err := splitHostPort(c.Advertise); err != nil {
		return fmt.Errorf("advertise: %w", err)
	}
	if c.TTLSec < 3 {
		return fmt.Errorf("ttlSec must be at least 3")
	}
	return nil
}

func splitHostPort(addr string) (string, int, error) {
	host, p, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(p)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("invalid port %q", p)
	}
	return host, port, nil
}

// Registrar keeps one service registered with a TTL check while it runs.
type Registrar struct {
	cfg    *ConsulCfg
	client *api.Client
	id     string
	meta   map[string]string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRegistrar builds a registrar; meta is attached to the service.
func NewRegistrar(cfg *ConsulCfg, meta map[string]string) (*Registrar, error) {
	ccfg := api.DefaultConfig()
	ccfg.Address = cfg.Address
	client, err := api.NewClient(ccfg)
	if err != nil {
		return nil, fmt.Errorf("consul client: %w", err)
	}
	id := cfg.ServiceID
	if id == "" {
		id = cfg.ServiceName + "-" + cfg.Advertise
	}
	return &Registrar{cfg: cfg, client: client, id: id, meta: meta}, nil
}

func (r *Registrar) ServiceID() string {
	return r.id
}

func (r *Registrar) checkID() string {
	return "service:" + r.id
}

// Register registers the service, marks it passing and keeps refreshing
// the TTL until Deregister.
func (r *Registrar) Register(ctx context.Context) error {
	host, port, err := splitHostPort(r.cfg.Advertise)
	if err != nil {
		return err
	}
	ttl := time.Duration(r.cfg.TTLSec) * time.Second
	check := &api.AgentServiceCheck{
		CheckID: r.checkID(),
		TTL:     ttl.String(),
	}
	if r.cfg.DeregisterAfterSec > 0 {
		check.DeregisterCriticalServiceAfter = (time.Duration(r.cfg.DeregisterAfterSec) * time.Second).String()
	}

	reg := &api.AgentServiceRegistration{
		ID:      r.id,
		Name:    r.cfg.ServiceName,
		Tags:    r.cfg.Tags,
		Address: host,
		Port:    port,
		Meta:    r.meta,
		Check:   check,
	}
	opts := api.ServiceRegisterOpts{}.WithContext(ctx)
	if err = r.client.Agent().ServiceRegisterOpts(reg, opts); err != nil {
		metrics.IncrCounterWithDimGroup("discovery", "register_total", 1, metrics.Dimension{"result": "error"})
		return fmt.Errorf("consul register %s: %w", r.id, err)
	}
	metrics.IncrCounterWithDimGroup("discovery", "register_total", 1, metrics.Dimension{"result": "ok"})
	log.Info().Str("service", r.cfg.ServiceName).Str("id", r.id).Str("addr", r.cfg.Advertise).Msg("registered in consul")

	r.pass()

	hbCtx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.wg.Add(1)
	go r.heartbeat(hbCtx, ttl/3)
	return nil
}

func (r *Registrar) pass() {
	if err := r.client.Agent().UpdateTTL(r.checkID(), "ok", api.HealthPassing); err != nil {
		metrics.IncrCounterWithGroup("discovery", "ttl_update_error_total", 1)
		log.Warn().Str("id", r.id).Err(err).Msg("consul ttl update failed")
	}
}

func (r *Registrar) heartbeat(ctx context.Context, period time.Duration) {
	defer r.wg.Done()
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.pass()
		}
	}
}

// Deregister stops the heartbeat and removes the service.
func (r *Registrar) Deregister() error {
	if r.cancel != nil {
		r.cancel()
		r.wg.Wait()
		r.cancel = nil
	}
	if err := r.client.Agent().ServiceDeregister(r.id); err != nil {
		return fmt.Errorf("consul deregister %s: %w", r.id, err)
	}
	log.Info().Str("id", r.id).Msg("deregistered from consul")
	return nil
}
