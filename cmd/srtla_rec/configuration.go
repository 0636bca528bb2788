// SPDX-FileCopyrightText: 2023 The srtla-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"

	"github.com/dtn7/srtla-go/pkg/receiver"
)

// tomlConfig describes the TOML-configuration.
type tomlConfig struct {
	Logging   logConf
	Receiver  receiverConf
	Status    statusConf
	History   historyConf
	Discovery discoveryConf
}

// logConf describes the Logging-configuration block.
type logConf struct {
	Level        string
	ReportCaller bool `toml:"report-caller"`
	Format       string
}

// receiverConf describes the Receiver-configuration block. Unset values keep
// their defaults.
type receiverConf struct {
	MaxGroups        int      `toml:"max-groups"`
	MaxLinksPerGroup int      `toml:"max-links-per-group"`
	CleanupPeriod    duration `toml:"cleanup-period"`
	GroupTimeout     duration `toml:"group-timeout"`
	LinkTimeout      duration `toml:"link-timeout"`
	ReconnectMax     duration `toml:"reconnect-max"`
	HandshakeTimeout duration `toml:"handshake-timeout"`
	EventBuffer      int      `toml:"event-buffer"`
}

// statusConf describes the Status-configuration block. An empty Listen
// address disables the status API.
type statusConf struct {
	Listen string
}

// historyConf describes the History-configuration block. An empty Store
// disables the journal.
type historyConf struct {
	Store     string
	Retention duration
}

// discoveryConf describes the Discovery-configuration block.
type discoveryConf struct {
	Name     string
	IPv4     bool
	IPv6     bool
	Interval uint
}

// duration is a time.Duration written as a string, e.g., "3s".
type duration time.Duration

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	if parsed < 0 {
		return fmt.Errorf("negative duration %v", parsed)
	}
	*d = duration(parsed)
	return nil
}

// parseConfig reads a TOML configuration file.
func parseConfig(filename string) (conf tomlConfig, err error) {
	var meta toml.MetaData
	if meta, err = toml.DecodeFile(filename, &conf); err != nil {
		return
	}

	for _, key := range meta.Undecoded() {
		log.WithField("key", key.String()).Warn("Unknown configuration key")
	}
	return
}

// apply the configured values to a receiver.Config.
func (rc receiverConf) apply(conf *receiver.Config) {
	setInt := func(dst *int, v int) {
		if v != 0 {
			*dst = v
		}
	}
	setDuration := func(dst *time.Duration, v duration) {
		if v != 0 {
			*dst = time.Duration(v)
		}
	}

	setInt(&conf.MaxGroups, rc.MaxGroups)
	setInt(&conf.MaxLinksPerGroup, rc.MaxLinksPerGroup)
	setInt(&conf.EventBuffer, rc.EventBuffer)

	setDuration(&conf.CleanupPeriod, rc.CleanupPeriod)
	setDuration(&conf.GroupTimeout, rc.GroupTimeout)
	setDuration(&conf.LinkTimeout, rc.LinkTimeout)
	setDuration(&conf.ReconnectMax, rc.ReconnectMax)
	setDuration(&conf.HandshakeTimeout, rc.HandshakeTimeout)
}

// applyLogging configures logrus' standard logger.
func applyLogging(conf logConf) {
	if conf.Level != "" {
		if lvl, err := log.ParseLevel(conf.Level); err != nil {
			log.WithFields(log.Fields{
				"level":    conf.Level,
				"error":    err,
				"provided": "panic,fatal,error,warn,info,debug,trace",
			}).Warn("Failed to set log level. Please select one of the provided ones")
		} else {
			log.SetLevel(lvl)
		}
	}

	log.SetReportCaller(conf.ReportCaller)

	switch conf.Format {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000",
		})

	case "json":
		log.SetFormatter(&log.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})

	default:
		log.WithField("format", conf.Format).Warn("Unknown logging format")
	}
}

// configWatcher re-applies the Logging-configuration block whenever the
// configuration file is written.
type configWatcher struct {
	filename string
	watcher  *fsnotify.Watcher
	done     chan struct{}
}

func watchConfig(filename string) (*configWatcher, error) {
	abs, err := filepath.Abs(filename)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Editors tend to replace files instead of writing them. Watching the
	// directory catches both.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	cw := &configWatcher{
		filename: abs,
		watcher:  watcher,
		done:     make(chan struct{}),
	}
	go cw.handle()

	return cw, nil
}

func (cw *configWatcher) handle() {
	defer close(cw.done)

	for {
		select {
		case e, ok := <-cw.watcher.Events:
			if !ok {
				return
			}

			if filepath.Clean(e.Name) != cw.filename || e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			conf, err := parseConfig(cw.filename)
			if err != nil {
				log.WithError(err).WithField("file", cw.filename).Warn("Failed to reload configuration")
				continue
			}

			applyLogging(conf.Logging)
			log.WithField("file", cw.filename).Info("Reloaded logging configuration")

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			log.WithError(err).Warn("fsnotify errored")
		}
	}
}

// Close the watcher and wait for its goroutine.
func (cw *configWatcher) Close() error {
	err := cw.watcher.Close()
	<-cw.done
	return err
}
