// teamchat-dev is the in-memory development backend: the chat REST API
// plus the websocket push stream, with prometheus metrics on the side.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Mikemike8/teamchat/devserver"
)

var (
	flagAddr           = flag.String("addr", "127.0.0.1:8000", "server address, ip:port")
	flagSeed           = flag.Bool("seed", false, "preload a demo channel and greeting message")
	flagDisableMetrics = flag.Bool("disable-metrics", false, "disable prometheus metrics")
)

func main() {
	flag.Parse()

	// NOTE: os.Exit() does not call defers.
	os.Exit(run())
}

func run() int {
	defer glog.Flush()

	if err := validateAddr(*flagAddr); err != nil {
		return errorf("--addr: %v", err)
	}

	backend := devserver.New()
	if *flagSeed {
		channelID := backend.Seed()
		glog.Infof("seeded demo data, channel id: %s", channelID)
	}

	mux := http.NewServeMux()
	mux.Handle("/", backend.Handler())
	if !*flagDisableMetrics {
		mux.Handle("/metrics", promhttp.HandlerFor(
			prometheus.DefaultGatherer,
			promhttp.HandlerOpts{},
		))
	}

	srv := &http.Server{Addr: *flagAddr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	glog.Infof("teamchat dev backend listening on %s", *flagAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errorf("serve: %v", err)
		}
	case sig := <-sigCh:
		glog.Infof("received signal `%s`, stopping", sig.String())
		backend.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return errorf("shutdown: %v", err)
		}
	}

	glog.Info("teamchat dev backend exited")
	return 0
}

func validateAddr(s string) error {
	ips, _, err := net.SplitHostPort(s)
	if err != nil {
		return fmt.Errorf("error split host port from `%s`: %v", s, err)
	}
	if ip := net.ParseIP(ips); ip == nil {
		return fmt.Errorf("error parse IP from host `%s`", ips)
	}
	return nil
}

func errorf(format string, args ...interface{}) int {
	glog.Errorf(format, args...)
	return 1
}
