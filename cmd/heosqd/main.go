package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mikey-austin/heosq/internal/adapters/clock"
	"github.com/mikey-austin/heosq/internal/adapters/mqttserver"
	"github.com/mikey-austin/heosq/internal/adapters/registry"
	"github.com/mikey-austin/heosq/internal/core"
	"github.com/mikey-austin/heosq/internal/heosqd"
	devicesim "github.com/mikey-austin/heosq/internal/modules/device_sim"
	embeddedmqtt "github.com/mikey-austin/heosq/internal/modules/embedded_mqtt"
	queuemgr "github.com/mikey-austin/heosq/internal/modules/queue_mgr"
	"github.com/mikey-austin/heosq/pkg/hq"
)

func main() {
	var (
		configPath  string
		broker      string
		identity    string
		topicBase   string
		logLevel    string
		logFormat   string
		moduleOnly  string
		printConfig bool
		dryRun      bool
	)

	defaultConfig, err := heosqd.DefaultConfigPath()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	flag.StringVar(&configPath, "config", defaultConfig, "config file path")
	flag.StringVar(&broker, "broker", "", "MQTT broker URL override")
	flag.StringVar(&identity, "identity", "", "server identity override")
	flag.StringVar(&topicBase, "topic-base", "", "topic base override")
	flag.StringVar(&logLevel, "log-level", "", "log level override")
	flag.StringVar(&logFormat, "log-format", "", "log format override (text|json)")
	flag.StringVar(&moduleOnly, "module", "", "limit to a single module")
	flag.BoolVar(&printConfig, "print-config", false, "print resolved config and exit")
	flag.BoolVar(&dryRun, "dry-run", false, "validate config and exit")
	flag.Parse()

	cfg, err := heosqd.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	applyOverrides(&cfg, broker, identity, topicBase, logLevel, logFormat)

	if printConfig {
		fmt.Fprintf(os.Stdout, "broker=%s identity=%s topic_base=%s log_level=%s log_format=%s devices=%d\n",
			cfg.Server.Broker, cfg.Server.Identity, cfg.Server.TopicBase, cfg.Server.LogLevel, cfg.Server.LogFormat, len(cfg.Devices))
		return
	}
	if dryRun {
		return
	}

	logger := heosqd.NewLogger(cfg.Server.LogLevel, cfg.Server.LogFormat)
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	skipEmbedded := false
	if moduleOnly != "embedded_mqtt" && cfg.Modules.EmbeddedMQTT.Enabled && cfg.Server.Broker == embeddedBrokerURL(cfg) {
		if err := startEmbeddedBroker(ctx, cfg, logger, cancel); err != nil {
			logger.Error("embedded mqtt failed", zap.Error(err))
			os.Exit(1)
		}
		skipEmbedded = true
	}

	if cfg.Server.Broker == "" && !(moduleOnly == "embedded_mqtt" && cfg.Modules.EmbeddedMQTT.Enabled) {
		logger.Error("broker is required")
		os.Exit(1)
	}
	logger.Info("heosqd starting",
		zap.String("broker", cfg.Server.Broker),
		zap.String("identity", cfg.Server.Identity),
		zap.String("topic_base", cfg.Server.TopicBase),
		zap.Int("devices", len(cfg.Devices)),
		zap.Strings("modules", enabledModules(cfg)),
	)

	var conn *mqttserver.Conn
	if moduleOnly != "embedded_mqtt" {
		conn, err = mqttserver.Connect(mqttserver.Options{
			BrokerURL: cfg.Server.Broker,
			ClientID:  fmt.Sprintf("heosqd-%d", time.Now().UnixNano()),
			Username:  cfg.Server.Auth.User,
			Password:  cfg.Server.Auth.Pass,
			TLSCA:     cfg.Server.TLS.CA,
			TLSCert:   cfg.Server.TLS.Cert,
			TLSKey:    cfg.Server.TLS.Key,
			Timeout:   2 * time.Second,
			Logger:    logger,
			Trace:     cfg.Server.MQTTTrace,
		})
		if err != nil {
			logger.Error("mqtt connection failed", zap.Error(err))
			os.Exit(1)
		}
		defer conn.Disconnect()
	}

	modules, cleanup, err := buildModules(cfg, conn, logger, moduleOnly, skipEmbedded)
	if err != nil {
		logger.Error("failed to build modules", zap.Error(err))
		os.Exit(1)
	}
	defer cleanup()

	supervisor := heosqd.Supervisor{Logger: logger}
	if err := supervisor.Run(ctx, modules); err != nil {
		logger.Error("supervisor error", zap.Error(err))
		os.Exit(1)
	}
}

func applyOverrides(cfg *heosqd.Config, broker string, identity string, topicBase string, logLevel string, logFormat string) {
	if broker != "" {
		cfg.Server.Broker = broker
	}
	if identity != "" {
		cfg.Server.Identity = identity
	}
	if topicBase != "" {
		cfg.Server.TopicBase = topicBase
	}
	if logLevel != "" {
		cfg.Server.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.Server.LogFormat = logFormat
	}
	if cfg.Server.TopicBase == "" {
		cfg.Server.TopicBase = hq.BaseTopic
	}
	if cfg.Server.Broker == "" && cfg.Modules.EmbeddedMQTT.Enabled {
		cfg.Server.Broker = embeddedBrokerURL(*cfg)
	}
}

func buildModules(cfg heosqd.Config, conn *mqttserver.Conn, logger *zap.Logger, moduleOnly string, skipEmbedded bool) ([]heosqd.ModuleRunner, func(), error) {
	modules := []heosqd.ModuleRunner{}
	cleanup := func() {}

	if cfg.Modules.EmbeddedMQTT.Enabled && !skipEmbedded {
		if moduleOnly == "" || moduleOnly == "embedded_mqtt" {
			mod, err := embeddedmqtt.NewModule(logger.With(zap.String("module", "embedded_mqtt")), embeddedmqtt.Config{
				Listen:         cfg.Modules.EmbeddedMQTT.Listen,
				AllowAnonymous: cfg.Modules.EmbeddedMQTT.AllowAnonymous,
				Username:       cfg.Modules.EmbeddedMQTT.Username,
				Password:       cfg.Modules.EmbeddedMQTT.Password,
				TLSCA:          cfg.Modules.EmbeddedMQTT.TLSCA,
				TLSCert:        cfg.Modules.EmbeddedMQTT.TLSCert,
				TLSKey:         cfg.Modules.EmbeddedMQTT.TLSKey,
			})
			if err != nil {
				return nil, cleanup, err
			}
			modules = append(modules, heosqd.ModuleRunner{Name: "embedded_mqtt", Run: mod.Run})
		}
	}

	if cfg.Modules.DeviceSim.Enabled {
		if moduleOnly == "" || moduleOnly == "device_sim" {
			devices := make([]devicesim.DeviceConfig, 0, len(cfg.Modules.DeviceSim.Devices))
			for _, device := range cfg.Modules.DeviceSim.Devices {
				devices = append(devices, devicesim.DeviceConfig{
					Listen: device.Listen,
					PID:    device.PID,
					Name:   device.Name,
					Tracks: device.Tracks,
				})
			}
			mod, err := devicesim.NewModule(logger.With(zap.String("module", "device_sim")), devicesim.Config{Devices: devices})
			if err != nil {
				return nil, cleanup, err
			}
			modules = append(modules, heosqd.ModuleRunner{Name: "device_sim", Run: mod.Run})
		}
	}

	if cfg.Modules.QueueMgr.Enabled {
		if moduleOnly == "" || moduleOnly == "queue_mgr" {
			entries := make([]registry.DeviceEntry, 0, len(cfg.Devices))
			for _, device := range cfg.Devices {
				entries = append(entries, registry.DeviceEntry{
					ID:      device.ID,
					Name:    device.Name,
					Host:    device.Host,
					PID:     device.PID,
					Aliases: device.Aliases,
				})
			}
			reg, err := registry.New(registry.Options{
				Devices:        entries,
				DialTimeout:    time.Duration(cfg.Modules.QueueMgr.DialTimeoutMS) * time.Millisecond,
				CommandTimeout: time.Duration(cfg.Modules.QueueMgr.CommandTimeoutMS) * time.Millisecond,
				Log:            logger.With(zap.String("module", "queue_mgr")),
			})
			if err != nil {
				return nil, cleanup, err
			}
			cleanup = func() { reg.Close() }

			serviceLog := logger.With(zap.String("module", "queue_mgr"))
			service := &core.Service{
				Resolver: core.Resolver{Directory: reg, Log: serviceLog},
				Log:      serviceLog,
			}
			mod, err := queuemgr.NewModule(serviceLog, conn, service, clock.Clock{}, queuemgr.Config{
				ServiceID: cfg.Modules.QueueMgr.ServiceID,
				Name:      cfg.Modules.QueueMgr.Name,
				TopicBase: cfg.Server.TopicBase,
			})
			if err != nil {
				return nil, cleanup, err
			}
			modules = append(modules, heosqd.ModuleRunner{Name: "queue_mgr", Run: mod.Run})
		}
	}

	if moduleOnly != "" && len(modules) == 0 {
		return nil, cleanup, errors.New("no modules enabled")
	}
	return modules, cleanup, nil
}

func enabledModules(cfg heosqd.Config) []string {
	out := []string{}
	if cfg.Modules.EmbeddedMQTT.Enabled {
		out = append(out, "embedded_mqtt")
	}
	if cfg.Modules.DeviceSim.Enabled {
		out = append(out, "device_sim")
	}
	if cfg.Modules.QueueMgr.Enabled {
		out = append(out, "queue_mgr")
	}
	return out
}

func embeddedBrokerURL(cfg heosqd.Config) string {
	listen := cfg.Modules.EmbeddedMQTT.Listen
	if listen == "" {
		listen = "127.0.0.1:1883"
	}
	tlsEnabled := cfg.Modules.EmbeddedMQTT.TLSCert != "" || cfg.Modules.EmbeddedMQTT.TLSKey != "" || cfg.Modules.EmbeddedMQTT.TLSCA != ""
	return embeddedmqtt.BrokerURL(listen, tlsEnabled)
}

func startEmbeddedBroker(ctx context.Context, cfg heosqd.Config, logger *zap.Logger, cancel context.CancelFunc) error {
	mod, err := embeddedmqtt.NewModule(logger.With(zap.String("module", "embedded_mqtt")), embeddedmqtt.Config{
		Listen:         cfg.Modules.EmbeddedMQTT.Listen,
		AllowAnonymous: cfg.Modules.EmbeddedMQTT.AllowAnonymous,
		Username:       cfg.Modules.EmbeddedMQTT.Username,
		Password:       cfg.Modules.EmbeddedMQTT.Password,
		TLSCA:          cfg.Modules.EmbeddedMQTT.TLSCA,
		TLSCert:        cfg.Modules.EmbeddedMQTT.TLSCert,
		TLSKey:         cfg.Modules.EmbeddedMQTT.TLSKey,
	})
	if err != nil {
		return err
	}
	go func() {
		if err := mod.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("embedded mqtt exited", zap.Error(err))
			cancel()
		}
	}()

	listen := cfg.Modules.EmbeddedMQTT.Listen
	if listen == "" {
		listen = "127.0.0.1:1883"
	}
	return waitForListen(listen, 3*time.Second)
}

func waitForListen(listen string, timeout time.Duration) error {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return err
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	addr := net.JoinHostPort(host, port)
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("embedded mqtt not ready at %s", addr)
}
