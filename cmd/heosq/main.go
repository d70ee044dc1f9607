package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/user"
	"time"

	"github.com/spf13/cobra"

	"github.com/mikey-austin/heosq/internal/adapters/clock"
	"github.com/mikey-austin/heosq/internal/adapters/config"
	"github.com/mikey-austin/heosq/internal/adapters/idgen"
	"github.com/mikey-austin/heosq/internal/adapters/mqtt"
	"github.com/mikey-austin/heosq/internal/adapters/output"
	"github.com/mikey-austin/heosq/internal/client"
	"github.com/mikey-austin/heosq/internal/core"
	"github.com/mikey-austin/heosq/pkg/hq"
)

const defaultService = "queue-mgr"

type app struct {
	client  *client.Client
	printer output.Printer
	targets []string
	timeout time.Duration
}

func main() {
	root := &cobra.Command{
		Use:           "heosq",
		Short:         "HEOS queue manager CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var (
		broker    string
		topicBase string
		identity  string
		service   string
		targets   []string
		timeout   time.Duration
		jsonOut   bool
		tlsCA     string
		tlsCert   string
		tlsKey    string
		userOpt   string
		passOpt   string
	)

	root.PersistentFlags().StringVarP(&broker, "broker", "b", "", "MQTT broker URL")
	root.PersistentFlags().StringVar(&topicBase, "topic-base", hq.BaseTopic, "MQTT topic base")
	root.PersistentFlags().StringVarP(&identity, "identity", "i", "", "caller identity")
	root.PersistentFlags().StringVarP(&service, "service", "s", "", "queue manager service id")
	root.PersistentFlags().StringSliceVarP(&targets, "target", "d", nil, "device selector (id, name, alias or all; repeatable)")
	root.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 30*time.Second, "command timeout")
	root.PersistentFlags().BoolVarP(&jsonOut, "json", "j", false, "output json")
	root.PersistentFlags().StringVar(&tlsCA, "tls-ca", "", "TLS CA path")
	root.PersistentFlags().StringVar(&tlsCert, "tls-cert", "", "TLS cert path")
	root.PersistentFlags().StringVar(&tlsKey, "tls-key", "", "TLS key path")
	root.PersistentFlags().StringVar(&userOpt, "user", "", "MQTT username")
	root.PersistentFlags().StringVar(&passOpt, "pass", "", "MQTT password")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if broker == "" {
			broker = cfg.Broker
		}
		if topicBase == hq.BaseTopic && cfg.TopicBase != "" {
			topicBase = cfg.TopicBase
		}
		if service == "" {
			service = cfg.Service
		}
		if service == "" {
			service = defaultService
		}
		if len(targets) == 0 {
			targets = cfg.Defaults.Targets
		}
		if len(targets) == 0 {
			targets = []string{core.SelectorAll}
		}
		identity = defaultIdentity(identity, cfg.Identity)
		if broker == "" {
			return &core.CLIError{Code: core.ExitUsage, Msg: "broker is required (set --broker or config)"}
		}

		mqttClient, err := mqtt.NewClient(mqtt.Options{
			BrokerURL: broker,
			ClientID:  fmt.Sprintf("heosq-%s", idgen.Generator{}.NewID()),
			Username:  userOpt,
			Password:  passOpt,
			TLSCA:     tlsCA,
			TLSCert:   tlsCert,
			TLSKey:    tlsKey,
			TopicBase: topicBase,
			Timeout:   timeout,
		})
		if err != nil {
			return core.WrapError(core.ExitRuntime, "mqtt connection failed", err)
		}

		cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, &app{
			client: &client.Client{
				Broker:   mqttClient,
				IDGen:    idgen.Generator{},
				Clock:    clock.Clock{},
				Identity: identity,
				Service:  service,
			},
			printer: output.ForFormat(format(jsonOut)),
			targets: targets,
			timeout: timeout,
		}))
		return nil
	}

	root.AddCommand(playersCommand())
	root.AddCommand(queueCommand())
	root.AddCommand(servicesCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(core.ExitCode(err))
	}
}

type appKey struct{}

func fromContext(cmd *cobra.Command) *app {
	val := cmd.Context().Value(appKey{})
	if val == nil {
		return nil
	}
	return val.(*app)
}

func withTimeout(a *app) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), a.timeout)
}

func format(jsonOut bool) string {
	if jsonOut {
		return "json"
	}
	return "human"
}

func defaultIdentity(flagVal string, cfgVal string) string {
	if flagVal != "" {
		return flagVal
	}
	if cfgVal != "" {
		return cfgVal
	}
	usr, _ := user.Current()
	host, _ := os.Hostname()
	if usr != nil && host != "" {
		return fmt.Sprintf("%s@%s", usr.Username, host)
	}
	if host != "" {
		return host
	}
	return "heosq-unknown"
}

func servicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "services",
		Short: "List connected queue manager services",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(app)
			defer cancel()

			services, err := app.client.Services(ctx)
			if err != nil {
				return err
			}
			if len(services) == 0 {
				return errors.New("no services found")
			}
			return app.printer.Print(services)
		},
	}
}
