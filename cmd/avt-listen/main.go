package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rmacdonaldsmith/upnpevents/internal/controller"
	"github.com/rmacdonaldsmith/upnpevents/internal/metrics"
	"github.com/rmacdonaldsmith/upnpevents/pkg/dispatch"
	"github.com/rmacdonaldsmith/upnpevents/pkg/lastchange"
)

const (
	appName    = "avt-listen"
	appVersion = "0.1.0"
)

// options collects command line flags
type options struct {
	configFile       string
	device           string
	bindHost         string
	port             int
	advertiseHost    string
	subscribeTimeout time.Duration
	requestedTimeout time.Duration
	renewInterval    time.Duration
	metricsListen    string
	logLevel         string
	jsonLogs         bool
}

func main() {
	if err := newRootCommand(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand(out io.Writer) *cobra.Command {
	return newCommand(out, &options{})
}

func newCommand(out io.Writer, opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   appName,
		Short: "Subscribe to a media renderer's AVTransport events and print them",
		Long: `avt-listen subscribes to the AVTransport event source of a UPnP media
renderer, runs an HTTP callback listener for its notifications and prints the
attributes of every LastChange event it receives.`,
		Version:       appVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := buildConfig(cmd, opts)
			if err != nil {
				return err
			}
			log, err := newLogger(cmd.ErrOrStderr(), opts.logLevel, opts.jsonLogs)
			if err != nil {
				return err
			}
			return run(config, log, out)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configFile, "config", "", "YAML configuration file")
	flags.StringVar(&opts.device, "device", "", "IP address of the device to subscribe to")
	flags.StringVar(&opts.bindHost, "host", "", "Interface to bind the callback listener to (empty for all)")
	flags.IntVar(&opts.port, "port", controller.DefaultPort, "Callback listener port")
	flags.StringVar(&opts.advertiseHost, "advertise", "", "Host to put in the callback URL instead of the detected local address")
	flags.DurationVar(&opts.subscribeTimeout, "timeout", controller.DefaultSubscribeTimeout, "Timeout for subscription requests")
	flags.DurationVar(&opts.requestedTimeout, "subscription-timeout", 0, "Subscription lifetime to request from the device (0 lets the device choose)")
	flags.DurationVar(&opts.renewInterval, "renew", 0, "Renew the subscription at this interval (0 disables renewal)")
	flags.StringVar(&opts.metricsListen, "metrics-listen", "", "Address to serve prometheus metrics on (empty disables)")
	flags.StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flags.BoolVar(&opts.jsonLogs, "json", false, "Emit JSON logs instead of console output")

	return cmd
}

// buildConfig loads the config file, if any, and applies explicitly set flags on top
func buildConfig(cmd *cobra.Command, opts *options) (*controller.Config, error) {
	config := controller.NewConfig("")
	if opts.configFile != "" {
		loaded, err := controller.LoadConfig(opts.configFile)
		if err != nil {
			return nil, err
		}
		config = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("device") || config.DeviceAddress == "" {
		config.DeviceAddress = opts.device
	}
	if flags.Changed("host") {
		config.BindHost = opts.bindHost
	}
	if flags.Changed("port") {
		config.Port = opts.port
	}
	if flags.Changed("advertise") {
		config.AdvertiseHost = opts.advertiseHost
	}
	if flags.Changed("timeout") {
		config.SubscribeTimeout = opts.subscribeTimeout
	}
	if flags.Changed("subscription-timeout") {
		config.RequestedTimeout = opts.requestedTimeout
	}
	if flags.Changed("renew") {
		config.RenewInterval = opts.renewInterval
	}
	if flags.Changed("metrics-listen") {
		config.MetricsListen = opts.metricsListen
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w (use --device or --config)", err)
	}
	return config, nil
}

func newLogger(w io.Writer, level string, jsonLogs bool) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if !jsonLogs {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

func run(config *controller.Config, log zerolog.Logger, out io.Writer) error {
	log.Info().Str("version", appVersion).Str("device", config.DeviceAddress).Msgf("starting %s", appName)

	var collector metrics.Collector = metrics.NewNoopCollector()
	if config.MetricsListen != "" {
		collector = metrics.NewPrometheusCollector(nil)
		metricsServer := metrics.NewServer(log, config.MetricsListen, nil)
		metricsServer.Start()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(ctx); err != nil {
				log.Warn().Err(err).Msg("metrics server shutdown failed")
			}
		}()
	}

	ctrl, err := controller.New(config, controller.WithLogger(log), controller.WithMetrics(collector))
	if err != nil {
		return err
	}
	if err := ctrl.Register(printHandler(out)); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	if err := ctrl.Run(ctx); err != nil {
		return err
	}
	log.Info().Msg("stopped")
	return nil
}

// printHandler writes one line per notification
func printHandler(out io.Writer) dispatch.Handler {
	return dispatch.HandlerFunc(func(ctx context.Context, attrs lastchange.AttributeSet) error {
		state, ok := attrs.Get("TransportState")
		if ok {
			_, err := fmt.Fprintf(out, "%s %s\n", state, attrs)
			return err
		}
		_, err := fmt.Fprintln(out, attrs)
		return err
	})
}
