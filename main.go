// streammux concatenates a set of bidirectional byte streams into a
// programmable mesh in which framed GNSS messages are routed between
// streams through named muxes.
//
// Startup sequence:
//  1. Parse the command line into stream/mux specs and optional API/report
//     settings.
//  2. Build and validate the Stream/Mux collection.
//  3. Wire the Router's read/state observers.
//  4. If a control API is configured, start it; if an API or report file is
//     configured, start the 1 Hz status publisher.
//  5. Start every Stream's transport; if any fails to start, shut down and
//     exit with status 1.
//  6. Run the Router's main loop until SIGINT/SIGTERM or a stream closes
//     unexpectedly.
//  7. Shut down in order: status publisher, control API, then every Stream
//     in declaration order.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/oinkzwurgl/streammux/api"
	"github.com/oinkzwurgl/streammux/config"
	"github.com/oinkzwurgl/streammux/core"
	"github.com/oinkzwurgl/streammux/logger"
	"github.com/oinkzwurgl/streammux/router"
	"github.com/oinkzwurgl/streammux/status"
)

// version/copyright/license are placeholder strings overridden at build
// time via -ldflags "-X main.version=...".
var (
	version   = "0.0.0-dev"
	copyright = "Copyright (c) flipflip's StreamMux contributors"
	license   = "MIT"
)

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprint(os.Stderr, config.Usage())
		os.Exit(1)
	}
	if cfg.Help {
		fmt.Fprint(os.Stdout, config.Usage())
		os.Exit(0)
	}
	if cfg.Version {
		fmt.Printf("streammux %s\n%s\n%s\n", version, copyright, license)
		os.Exit(0)
	}

	log := logger.New(cfg.LogLevel)
	log.Noticef("flipflip's StreamMux, version %s, PID %d", version, os.Getpid())
	log.Info(copyright)
	log.Info(license)

	coll, err := core.Build(cfg.StreamSpecs, cfg.MuxSpecs)
	if err != nil {
		log.Errorf("configuration error: %v", err)
		os.Exit(1)
	}
	for _, s := range coll.Streams {
		log.Infof("stream %s: type=%s mode=%s filter_read=%q filter_write=%q",
			s.Name, s.T.GetType(), s.T.GetMode(), s.FilterRead.String(), s.FilterWrite.String())
	}
	for _, m := range coll.Muxes {
		log.Infof("mux %s: %s -> %s filter_fwd=%q filter_rev=%q",
			m.Name, m.Src.Name, m.Dst.Name, m.FilterFwd.String(), m.FilterRev.String())
	}

	r := router.New(coll, log, func(streamName string) {
		log.Errorf("stream %s closed unexpectedly; shutting down", streamName)
	})
	r.WireObservers()

	var apiServer *api.Server
	apiSpec, apiEnabled, err := config.ParseAPISpec(cfg.APISpec)
	if err != nil {
		log.Errorf("configuration error: %v", err)
		os.Exit(1)
	}
	if apiEnabled {
		apiServer = api.New(coll, log, apiSpec.Prefix, cfg.AssetsPath, api.VersionInfo{
			Api: "version", Version: version, Copyright: copyright, License: license,
		})
		go func() {
			if err := apiServer.ListenAndServe(apiSpec.Addr); err != nil {
				log.Errorf("control API server error: %v", err)
			}
		}()
	}

	var statusPub *status.Publisher
	if apiEnabled || cfg.ReportPath != "" {
		var broadcast func(status.Snapshot)
		if apiServer != nil {
			broadcast = apiServer.SetSnapshot
		}
		statusPub = status.New(coll, log, cfg.ReportPath, broadcast, func() bool {
			return log.Level() == logger.LevelDebug
		})
		statusPub.Start()
	}

	startOK := true
	for _, s := range coll.Streams {
		if err := s.T.Start(); err != nil {
			log.Errorf("stream %s: failed to start: %v", s.Name, err)
			startOK = false
		}
	}
	if !startOK {
		if statusPub != nil {
			statusPub.Stop()
		}
		if apiServer != nil {
			apiServer.Stop()
		}
		r.StopStreams()
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Noticef("received signal %s; shutting down", sig)
		r.Abort()
	}()

	r.Run()

	if statusPub != nil {
		statusPub.Stop()
	}
	if apiServer != nil {
		apiServer.Stop()
	}
	r.StopStreams()

	if reason := r.FatalReason(); reason != "" {
		log.Errorf("exiting: stream %s closed unexpectedly", reason)
		os.Exit(1)
	}
	log.Notice("streammux shut down cleanly")
}
