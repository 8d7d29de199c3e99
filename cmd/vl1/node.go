package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Sudo-Ivan/vl1-go/internal/config"
	"github.com/Sudo-Ivan/vl1-go/internal/storage"
	"github.com/Sudo-Ivan/vl1-go/pkg/common"
	"github.com/Sudo-Ivan/vl1-go/pkg/cryptography"
	"github.com/Sudo-Ivan/vl1-go/pkg/debug"
	"github.com/Sudo-Ivan/vl1-go/pkg/interfaces"
	"github.com/Sudo-Ivan/vl1-go/pkg/metrics"
	"github.com/Sudo-Ivan/vl1-go/pkg/packet"
	"github.com/Sudo-Ivan/vl1-go/pkg/transport"
	testutils "github.com/Sudo-Ivan/vl1-go/test-utilities"
)

type node struct {
	cfg         *common.VL1Config
	registry    *prometheus.Registry
	transport   *transport.Transport
	interceptor *testutils.PacketInterceptor
}

// newNode loads the config, peer keys and paths and registers every
// enabled interface. Interfaces are not started.
func newNode() (*node, error) {
	cfg, err := config.InitConfig(options.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize config: %w", err)
	}
	applyLogging(cfg.LogLevel)
	debug.Log(debug.DEBUG_INFO, "Configuration loaded", "path", cfg.ConfigPath)

	if cfg.Address == "" {
		return nil, errors.New("no local address configured")
	}
	local, err := packet.ParseAddress(cfg.Address)
	if err != nil {
		return nil, err
	}

	keyStorage, err := storage.NewManager(cfg.KeyDir)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m := metrics.New(registry)

	keys := transport.NewStaticKeyStore()
	t := transport.NewTransport(cfg, local, keys, m)

	for addr, peer := range cfg.Peers {
		peerAddr, err := packet.ParseAddress(addr)
		if err != nil {
			return nil, err
		}
		kp, err := keyStorage.LoadKeyPair(peer.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("peer %s: %w", addr, err)
		}
		if err := keys.Add(peerAddr, kp); err != nil {
			return nil, fmt.Errorf("peer %s: %w", addr, err)
		}
		if peer.Endpoint != "" {
			ifaceName := peer.Interface
			if ifaceName == "" {
				ifaceName = defaultInterface(cfg)
			}
			t.Paths().UpdatePath(peerAddr, ifaceName, peer.Endpoint, 0)
		}
		debug.Log(debug.DEBUG_VERBOSE, "Loaded peer", "address", addr, "endpoint", peer.Endpoint)
	}

	n := &node{cfg: cfg, registry: registry, transport: t}
	if options.InterceptOutput != "" {
		n.interceptor, err = testutils.NewPacketInterceptor(options.InterceptOutput)
		if err != nil {
			return nil, err
		}
		debug.Log(debug.DEBUG_INFO, "Intercepting units", "output", options.InterceptOutput)
	}

	for name, ifaceCfg := range cfg.Interfaces {
		if !ifaceCfg.Enabled {
			continue
		}
		iface, err := interfaces.FromConfig(name, ifaceCfg)
		if err != nil {
			_ = n.close()
			return nil, err
		}
		if n.interceptor != nil {
			iface = n.interceptor.Wrap(iface)
		}
		if err := t.RegisterInterface(name, iface); err != nil {
			_ = n.close()
			return nil, err
		}
	}

	return n, nil
}

func (n *node) close() error {
	err := n.transport.Close()
	if n.interceptor != nil {
		if cerr := n.interceptor.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// defaultInterface is the first enabled interface by name, used for peers
// that do not name one.
func defaultInterface(cfg *common.VL1Config) string {
	names := make([]string, 0, len(cfg.Interfaces))
	for name, iface := range cfg.Interfaces {
		if iface.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

func (n *node) start() error {
	for name := range n.cfg.Interfaces {
		iface, err := n.transport.GetInterface(name)
		if err != nil {
			continue
		}
		if err := iface.Start(); err != nil {
			return fmt.Errorf("start %s: %w", name, err)
		}
	}
	return nil
}

type NodeCommand struct {
	Echo bool `long:"echo" description:"Send every delivered payload back to its source"`
}

func (c *NodeCommand) Execute(args []string) error {
	n, err := newNode()
	if err != nil {
		return err
	}
	debug.Log(debug.DEBUG_INFO, "Starting VL1 node", "address", n.transport.LocalAddress(),
		"relay", n.cfg.Relay, "hardware_aes", cryptography.HardwareAES())

	t := n.transport
	t.SetDeliveryHandler(func(h packet.Header, payload []byte, path string) {
		debug.Log(debug.DEBUG_INFO, "Delivered packet", "src", h.Src, "path", path, "size", len(payload))
		if c.Echo {
			if err := t.SendTo(h.Src, payload); err != nil {
				debug.Log(debug.DEBUG_ERROR, "Echo failed", "dest", h.Src, "error", err)
			}
		}
	})

	if err := n.start(); err != nil {
		_ = n.close()
		return err
	}

	var metricsServer *http.Server
	if n.cfg.MetricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(n.registry, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{
			Addr:              n.cfg.MetricsListen,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				debug.Log(debug.DEBUG_ERROR, "Metrics server failed", "error", err)
			}
		}()
		debug.Log(debug.DEBUG_INFO, "Serving metrics", "listen", n.cfg.MetricsListen)
	}

	// Reassemblers only sweep when a unit arrives on their path. The
	// ticker expires entries on paths that have gone quiet.
	ticker := time.NewTicker(n.cfg.FragmentExpiration())
	defer ticker.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			t.Sweep()
		case <-sigChan:
			debug.Log(debug.DEBUG_INFO, "Shutting down...")
			if metricsServer != nil {
				_ = metricsServer.Close()
			}
			return n.close()
		}
	}
}

type SendCommand struct {
	Dest string `long:"dest" description:"Destination VL1 address; must be a configured peer" required:"true"`
	In   string `short:"i" long:"in" description:"Payload file (default stdin)"`
}

func (c *SendCommand) Execute(args []string) error {
	n, err := newNode()
	if err != nil {
		return err
	}
	defer n.close()

	dest, err := packet.ParseAddress(c.Dest)
	if err != nil {
		return err
	}
	payload, err := readInput(c.In)
	if err != nil {
		return err
	}
	if err := n.start(); err != nil {
		return err
	}
	if err := n.transport.SendTo(dest, payload); err != nil {
		return err
	}
	debug.Log(debug.DEBUG_INFO, "Sent payload", "dest", dest, "size", len(payload))
	return nil
}
