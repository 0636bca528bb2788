// SPDX-FileCopyrightText: 2023 The srtla-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// srtla_rec is the SRTLA receiver. It aggregates the links of SRTLA senders
// and forwards their streams to a SRT server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	"github.com/dtn7/srtla-go/pkg/discovery"
	"github.com/dtn7/srtla-go/pkg/history"
	"github.com/dtn7/srtla-go/pkg/receiver"
	"github.com/dtn7/srtla-go/pkg/status"
)

// version is overwritten at build time by -ldflags "-X main.version=...".
var version = "0.1.0"

// journalBuffer is the number of events queued for the history journal.
const journalBuffer = 256

// cliOptions are the command line flags.
type cliOptions struct {
	autoReconnect       bool
	noAutoReconnect     bool
	logErrors           bool
	reconnectIntervalMs uint
	configFile          string
}

func newRootCmd() *cobra.Command {
	var opts cliOptions

	cmd := &cobra.Command{
		Use:   "srtla_rec [flags] SRTLA_LISTEN_PORT SRT_HOST SRT_PORT",
		Short: "SRTLA receiver",
		Long: `srtla_rec receives the links of SRTLA senders on a single UDP port,
merges each sender's links into a group and forwards the stream to a SRT server.`,
		Version:       version,
		Args:          cobra.ExactArgs(3),
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, args)
		},
	}
	cmd.SetVersionTemplate("{{.Version}}\n")
	bindFlags(cmd, &opts)

	return cmd
}

func bindFlags(cmd *cobra.Command, opts *cliOptions) {
	flags := cmd.Flags()
	flags.BoolVar(&opts.autoReconnect, "auto-reconnect", false, "Keep groups while the SRT server is unreachable and reconnect (default)")
	flags.BoolVar(&opts.noAutoReconnect, "no-auto-reconnect", false, "Remove groups whose SRT server connection failed")
	flags.BoolVar(&opts.logErrors, "log-errors", false, "Include socket errors in log messages")
	flags.UintVar(&opts.reconnectIntervalMs, "reconnect-interval-ms", uint(receiver.DefaultConfig().ReconnectBase/time.Millisecond), "Base interval between reconnection attempts")
	flags.StringVarP(&opts.configFile, "config", "c", "", "Optional TOML configuration file")
	cmd.MarkFlagsMutuallyExclusive("auto-reconnect", "no-auto-reconnect")
}

// parsePort parses a UDP port in the range 1 to 65535.
func parsePort(s string) (uint16, error) {
	port, err := strconv.ParseUint(s, 10, 16)
	if err != nil || port == 0 {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	return uint16(port), nil
}

// receiverConfig merges the defaults, the configuration file and the flags.
func receiverConfig(cmd *cobra.Command, opts cliOptions, file tomlConfig) (receiver.Config, error) {
	conf := receiver.DefaultConfig()
	file.Receiver.apply(&conf)

	if opts.noAutoReconnect {
		conf.AutoReconnect = false
	} else if opts.autoReconnect {
		conf.AutoReconnect = true
	}

	if opts.logErrors {
		conf.LogErrors = true
	}

	if cmd.Flags().Changed("reconnect-interval-ms") {
		conf.ReconnectBase = time.Duration(opts.reconnectIntervalMs) * time.Millisecond
		if conf.ReconnectBase > conf.ReconnectMax {
			conf.ReconnectMax = conf.ReconnectBase
		}
	}

	return conf, conf.Validate()
}

func run(cmd *cobra.Command, opts cliOptions, args []string) error {
	listenPort, err := parsePort(args[0])
	if err != nil {
		return err
	}
	srtPort, err := parsePort(args[2])
	if err != nil {
		return err
	}

	var file tomlConfig
	if opts.configFile != "" {
		if file, err = parseConfig(opts.configFile); err != nil {
			return fmt.Errorf("parsing configuration: %w", err)
		}
		applyLogging(file.Logging)
	} else {
		applyLogging(logConf{})
	}

	conf, err := receiverConfig(cmd, opts, file)
	if err != nil {
		return err
	}

	// Past this point errors are no usage errors.
	cmd.SilenceUsage = true

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.configFile != "" {
		if watcher, watchErr := watchConfig(opts.configFile); watchErr != nil {
			log.WithError(watchErr).Warn("Failed to watch configuration file")
		} else {
			defer watcher.Close()
		}
	}

	srtAddr, err := receiver.ResolveDownstream(ctx, args[1], srtPort, conf.HandshakeTimeout)
	if err != nil {
		return err
	}

	r, err := receiver.Listen(conf, listenPort, srtAddr)
	if err != nil {
		return err
	}
	defer r.Close()

	log.WithFields(log.Fields{
		"listen":         r.Addr(),
		"srt":            srtAddr,
		"auto-reconnect": conf.AutoReconnect,
	}).Info("Started SRTLA receiver")

	svc, err := startServices(file, r, listenPort)
	if err != nil {
		return err
	}
	defer svc.Close()

	return r.Run(ctx)
}

// services are the optional parts around the Receiver.
type services struct {
	hub       *status.Hub
	http      *http.Server
	store     *history.Store
	discovery *discovery.Manager

	journal chan receiver.Event
	fanning bool
	wg      sync.WaitGroup
}

func startServices(file tomlConfig, r *receiver.Receiver, listenPort uint16) (svc *services, err error) {
	svc = &services{}
	defer func() {
		if err != nil {
			svc.Close()
			svc = nil
		}
	}()

	if file.History.Store != "" {
		if svc.store, err = history.Open(file.History.Store); err != nil {
			return
		}

		svc.journal = make(chan receiver.Event, journalBuffer)
		svc.wg.Add(1)
		go func() {
			defer svc.wg.Done()
			svc.store.Journal(svc.journal, time.Duration(file.History.Retention))
		}()
	}

	var (
		statusListener net.Listener
		statusPort     uint
	)
	if file.Status.Listen != "" {
		if statusListener, err = net.Listen("tcp", file.Status.Listen); err != nil {
			err = fmt.Errorf("status API: %w", err)
			return
		}
		if addr, ok := statusListener.Addr().(*net.TCPAddr); ok {
			statusPort = uint(addr.Port)
		}
	}

	if file.Discovery.IPv4 || file.Discovery.IPv6 {
		name := file.Discovery.Name
		if name == "" {
			name, _ = os.Hostname()
		}

		interval := time.Duration(file.Discovery.Interval) * time.Second
		if interval == 0 {
			interval = 10 * time.Second
		}

		svc.discovery, err = discovery.NewManager(discovery.Announcement{
			Name:       name,
			Version:    version,
			Port:       uint(listenPort),
			StatusPort: statusPort,
		}, interval, file.Discovery.IPv4, file.Discovery.IPv6)
		if err != nil {
			if statusListener != nil {
				_ = statusListener.Close()
			}
			return
		}
	}

	if statusListener != nil {
		svc.hub = status.NewHub()
		opts := status.Options{Source: r, Hub: svc.hub}
		if svc.store != nil {
			opts.History = svc.store
		}
		if svc.discovery != nil {
			opts.Peers = svc.discovery
		}

		svc.http = &http.Server{Handler: status.NewServer(mux.NewRouter(), opts)}

		go func() {
			if err := svc.http.Serve(statusListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Warn("Status API errored")
			}
		}()
		log.WithField("listen", statusListener.Addr()).Info("Started status API")
	}

	svc.fanning = true
	svc.wg.Add(1)
	go svc.fanOut(r.Events())

	return
}

// fanOut distributes the Receiver's events until its Run has returned.
func (svc *services) fanOut(events <-chan receiver.Event) {
	defer svc.wg.Done()
	if svc.journal != nil {
		defer close(svc.journal)
	}

	for e := range events {
		log.WithField("event", e).Debug("Receiver event")

		if svc.hub != nil {
			svc.hub.Publish(e)
		}

		if svc.journal != nil {
			select {
			case svc.journal <- e:
			default:
				log.WithField("event", e).Warn("History journal is too slow, dropping event")
			}
		}
	}
}

// Close all services. The Receiver's Run must have returned before.
func (svc *services) Close() {
	if svc.http != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		if err := svc.http.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("Shutting down status API errored")
		}
		cancel()
	}
	if svc.hub != nil {
		svc.hub.Close()
	}
	if svc.discovery != nil {
		svc.discovery.Close()
	}

	if !svc.fanning && svc.journal != nil {
		close(svc.journal)
	}
	svc.wg.Wait()

	if svc.store != nil {
		if err := svc.store.Close(); err != nil {
			log.WithError(err).Warn("Closing history store errored")
		}
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.WithError(err).Fatal("srtla_rec failed")
	}
}
