package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof"
	"os"
	"runtime"
	"time"

	"github.com/cbeuw/linewire/internal/proto"
	"github.com/cbeuw/linewire/internal/server"
	log "github.com/sirupsen/logrus"
)

var version string

const logLevelEnv = "LINEWIRE_LOG_LEVEL"

// echo answers every request with the request itself, streamed bodies included
var echo = proto.NewServiceFunc(func() (proto.Service, error) {
	return proto.ServiceFunc(func(ctx context.Context, req proto.Line) (proto.Line, error) {
		return req, nil
	}), nil
})

func setLogLevel(verbosity string) {
	if env := os.Getenv(logLevelEnv); env != "" {
		verbosity = env
	}
	lvl, err := log.ParseLevel(verbosity)
	if err != nil {
		log.Fatal(err)
	}
	log.SetLevel(lvl)
}

func main() {
	var config string

	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})

	flag.StringVar(&config, "c", "server.json", "config: path to the configuration file or its content")
	askVersion := flag.Bool("v", false, "Print the version number")
	printUsage := flag.Bool("h", false, "Print this message")
	pprofAddr := flag.String("d", "", "debug use: ip:port to be listened by pprof profiler")
	verbosity := flag.String("verbosity", "info", "verbosity level, overridden by "+logLevelEnv)
	flag.Parse()

	if *askVersion {
		fmt.Printf("lw-server %s", version)
		return
	}
	if *printUsage {
		flag.Usage()
		return
	}
	setLogLevel(*verbosity)

	if *pprofAddr != "" {
		runtime.SetBlockProfileRate(5)
		go func() {
			log.Info(http.ListenAndServe(*pprofAddr, nil))
		}()
		log.Infof("pprof listening on %v", *pprofAddr)
	}

	sta, err := server.InitState(time.Now)
	if err != nil {
		log.Fatalf("unable to initialise server state: %v", err)
	}
	err = sta.ParseConfig(config)
	if err != nil {
		log.Fatalf("Configuration file error: %v", err)
	}
	defer sta.Close()

	if sta.ConfigPath() != "" {
		done := make(chan struct{})
		defer close(done)
		if err := server.WatchConfig(sta, done); err != nil {
			log.Warnf("config changes will not be picked up: %v", err)
		}
	}

	if sta.AdminAddr != "" {
		go func() {
			log.Infof("Admin API listening on %v", sta.AdminAddr)
			log.Error(http.ListenAndServe(sta.AdminAddr, server.AdminHandler(sta)))
		}()
	}

	serveWebSocket := func() {
		log.Infof("Listening for websocket on %v", sta.WebSocketAddr)
		log.Error(http.ListenAndServe(sta.WebSocketAddr, server.WebSocketHandler(sta, echo)))
	}

	listen := func(bindAddr net.Addr) {
		listener, err := net.Listen("tcp", bindAddr.String())
		log.Infof("Listening on %v", bindAddr)
		if err != nil {
			log.Fatal(err)
		}
		if err = server.Serve(listener, sta, echo); err != nil {
			log.Error(err)
		}
	}

	if len(sta.BindAddr) == 0 {
		serveWebSocket()
		return
	}
	if sta.WebSocketAddr != "" {
		go serveWebSocket()
	}
	for i, addr := range sta.BindAddr {
		if i != len(sta.BindAddr)-1 {
			go listen(addr)
		} else {
			// we block the main goroutine here so it doesn't quit
			listen(addr)
		}
	}
}
