package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net"
	"os"

	"github.com/cbeuw/linewire/internal/client"
	"github.com/cbeuw/linewire/internal/proto"
	log "github.com/sirupsen/logrus"
)

var version string

const logLevelEnv = "LINEWIRE_LOG_LEVEL"

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

func printResponse(resp proto.Line) error {
	if !resp.IsStream() {
		fmt.Println(resp.Text)
		return nil
	}
	chunks, err := resp.Body.Collect()
	for _, chunk := range chunks {
		fmt.Println(chunk)
	}
	return err
}

func main() {
	var config string
	var remoteHost string
	var remotePort string
	var protocol string

	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})
	log.SetOutput(os.Stderr)

	flag.StringVar(&config, "c", "", "config: path to the configuration file or options separated with semicolons")
	flag.StringVar(&remoteHost, "s", "", "remoteHost: IP of the server")
	flag.StringVar(&remotePort, "p", "", "remotePort: port of the server")
	flag.StringVar(&protocol, "protocol", "", "protocol: line, streaming or multiplex")
	askVersion := flag.Bool("v", false, "Print the version number")
	printUsage := flag.Bool("h", false, "Print this message")
	verbosity := flag.String("verbosity", "info", "verbosity level, overridden by "+logLevelEnv)
	flag.Parse()

	if *askVersion {
		fmt.Printf("lw-client %s", version)
		return
	}
	if *printUsage {
		flag.Usage()
		return
	}
	setLogLevel(*verbosity)

	raw := new(client.RawConfig)
	if config != "" {
		var err error
		raw, err = client.ParseConfig(config)
		if err != nil {
			log.Fatal(err)
		}
	}

	// commandline arguments overrides the config
	if remoteHost != "" {
		raw.RemoteHost = remoteHost
	}
	if remotePort != "" {
		raw.RemotePort = remotePort
	}
	if protocol != "" {
		raw.Protocol = protocol
	}

	remote, err := raw.ProcessRawConfig()
	if err != nil {
		log.Fatal(err)
	}

	conn, err := client.Connect(context.Background(), remote, &net.Dialer{})
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		resp, err := conn.Call(context.Background(), proto.Once(scanner.Text()))
		if err != nil {
			log.Error(err)
			select {
			case <-conn.Done():
				return
			default:
				continue
			}
		}
		if err = printResponse(resp); err != nil {
			log.Error(err)
		}
	}
}
