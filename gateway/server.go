package gateway

import (
	"context"
	"errors"
	"fmt"
	stdnet "net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/lcx/gatesvr/client"
	"github.com/lcx/gatesvr/config"
	"github.com/lcx/gatesvr/discovery"
	"github.com/lcx/gatesvr/log"
	"github.com/lcx/gatesvr/logicserver"
	"github.com/lcx/gatesvr/net"
	"github.com/lcx/gatesvr/tracing"
)

// Server is a running gateway.
type Server struct {
	cfg    atomic.Pointer[Config]
	secret atomic.Pointer[string]

	loops    *net.LoopGroup
	registry *logicserver.Registry
	clients  *client.Manager

	logic  *net.TCPTransport
	client *net.WSTransport

	admin         *http.Server
	adminListener stdnet.Listener
	registrar     *discovery.Registrar
	tracing       *tracing.Provider
}

var _ config.ConfigChangeListener = (*Server)(nil)

// New builds a gateway from a validated config.
func New(cfg *Config) *Server {
	s := &Server{
		loops:    net.NewLoopGroup(&cfg.Loops),
		registry: logicserver.NewRegistry(),
		clients:  client.NewManager(),
	}
	s.cfg.Store(cfg)
	pw := cfg.Password
	s.secret.Store(&pw)

	logicCfg := cfg.Logic
	clientCfg := cfg.Client
	s.logic = net.NewTCPTransport(&logicCfg)
	s.client = net.NewWSTransport(&clientCfg)
	return s
}

// Start brings up loops, transports, admin and consul registration. On
// error everything already started is stopped.
func (s *Server) Start(ctx context.Context) (err error) {
	cfg := s.cfg.Load()
	s.loops.Start()
	defer func() {
		if err != nil {
			_ = s.Stop(context.Background())
		}
	}()

	if s.tracing, err = tracing.New(&cfg.Tracing); err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	deps := &logicserver.Deps{
		Registry: s.registry,
		Clients:  s.clients,
		Secret:   s.Secret,
		NodeID:   cfg.NodeID(),
		Tracer:   s.tracing.TracerProvider(),
	}
	if err = s.logic.Start(net.TransportOption{Loops: s.loops, Factory: logicserver.NewSessionFactory(deps)}); err != nil {
		return fmt.Errorf("logic transport: %w", err)
	}
	if err = s.client.Start(net.TransportOption{Loops: s.loops, Factory: client.NewSessionFactory(s.clients, s.registry)}); err != nil {
		return fmt.Errorf("client transport: %w", err)
	}

	if cfg.Admin.Addr != "" {
		if s.adminListener, err = stdnet.Listen("tcp", cfg.Admin.Addr); err != nil {
			return fmt.Errorf("admin listen: %w", err)
		}
		s.admin = &http.Server{Handler: s.AdminHandler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := s.admin.Serve(s.adminListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("admin serve")
			}
		}()
		log.Info().Str("addr", s.adminListener.Addr().String()).Msg("admin listening")
	}

	if cfg.Consul.Enabled() {
		meta := map[string]string{"node": cfg.Node().String()}
		if s.registrar, err = discovery.NewRegistrar(&cfg.Consul, meta); err != nil {
			return err
		}
		if err = s.registrar.Register(ctx); err != nil {
			s.registrar = nil
			return err
		}
	}

	log.Info().Str("node", cfg.Node().String()).Int("loops", s.loops.Len()).Msg("gateway started")
	return nil
}

// Stop deregisters, stops accepting, closes every connection, drains
// the loops and flushes pending spans.
func (s *Server) Stop(ctx context.Context) error {
	var errs []error
	if s.registrar != nil {
		errs = append(errs, s.registrar.Deregister())
		s.registrar = nil
	}
	if s.admin != nil {
		errs = append(errs, s.admin.Shutdown(ctx))
		s.admin = nil
	}
	errs = append(errs, s.client.Stop(), s.logic.Stop())
	s.loops.Stop()
	if s.tracing != nil {
		errs = append(errs, s.tracing.Shutdown(ctx))
		s.tracing = nil
	}
	log.Info().Msg("gateway stopped")
	return errors.Join(errs...)
}

// OnConfigChanged applies a reloaded gatesvr config: the login password
// and the receive rates.
func (s *Server) OnConfigChanged(configName string, newConfig, _ config.Config) error {
	if configName != ConfigName {
		return nil
	}
	cfg, ok := newConfig.(*Config)
	if !ok {
		return fmt.Errorf("unexpected config type %T", newConfig)
	}
	pw := cfg.Password
	s.secret.Store(&pw)
	s.logic.Reload(cfg.Logic.RecvRate, cfg.Logic.RecvBurst)
	s.client.Reload(cfg.Client.RecvRate)
	s.cfg.Store(cfg)
	log.Info().Int("logicRecvRate", cfg.Logic.RecvRate).Int("clientRecvRate", cfg.Client.RecvRate).Msg("gateway config reloaded")
	return nil
}

// Secret is the current logic-server login password.
func (s *Server) Secret() string {
	return *s.secret.Load()
}

func (s *Server) Registry() *logicserver.Registry {
	return s.registry
}

func (s *Server) Clients() *client.Manager {
	return s.clients
}

func (s *Server) LogicAddr() stdnet.Addr {
	return s.logic.Addr()
}

func (s *Server) ClientAddr() stdnet.Addr {
	return s.client.Addr()
}

func (s *Server) AdminAddr() stdnet.Addr {
	if s.adminListener == nil {
		return nil
	}
	return s.adminListener.Addr()
}

// Run loads gatesvr.yaml through cm, starts the gateway and keeps it
// subscribed to reloads until ctx is done.
func Run(ctx context.Context, cm config.ConfigManager) error {
	cfg := &Config{}
	if err := cm.LoadConfig(ConfigName, cfg); err != nil {
		return err
	}
	cm.RegisterHook(ConfigName, rejectStaticChanges)

	srv := New(cfg)
	if err := srv.Start(ctx); err != nil {
		return err
	}
	cm.AddChangeListener(srv)
	defer cm.RemoveChangeListener(srv)

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(stopCtx)
}
