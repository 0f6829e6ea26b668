package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Vehicle link modes.
const (
	linkSerial   = "serial"
	linkSim      = "sim"
	linkDisabled = "disabled"
)

// options are the command-line settings. Every flag takes its default from a
// FIELDPILOT_* environment variable when one is set.
type options struct {
	Config    string
	Waypoints string
	Listen    string
	GRPC      string

	ScanAddr string
	PCAP     string
	PCAPPort int

	Link     string
	Port     string
	BaudRate int

	MarkerAddr string
	DBPath     string
	LogDir     string
	MDNS       bool
	Debug      bool
	LogEvery   time.Duration
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return d
		}
	}
	return def
}

func parseFlags(fs *flag.FlagSet, args []string) (options, error) {
	var o options
	fs.StringVar(&o.Config, "config", envString("FIELDPILOT_CONFIG", "config/tuning.defaults.json"), "Tuning config file (.json, .yaml)")
	fs.StringVar(&o.Waypoints, "waypoints", envString("FIELDPILOT_WAYPOINTS", ""), "Waypoint CSV file, overrides waypoint_path")
	fs.StringVar(&o.Listen, "listen", envString("FIELDPILOT_LISTEN", ":8080"), "Monitor HTTP listen address")
	fs.StringVar(&o.GRPC, "grpc", envString("FIELDPILOT_GRPC", ""), "gRPC health listen address (empty to disable)")

	fs.StringVar(&o.ScanAddr, "scan-addr", envString("FIELDPILOT_SCAN_ADDR", ":2368"), "UDP address receiving range scans")
	fs.StringVar(&o.PCAP, "pcap", envString("FIELDPILOT_PCAP", ""), "Replay scans from a pcap file instead of listening")
	fs.IntVar(&o.PCAPPort, "pcap-port", envInt("FIELDPILOT_PCAP_PORT", 2368), "UDP port of scan datagrams in the pcap (0 for any)")

	fs.StringVar(&o.Link, "link", envString("FIELDPILOT_LINK", linkSerial), "Vehicle link: serial, sim or disabled")
	fs.StringVar(&o.Port, "port", envString("FIELDPILOT_PORT", "/dev/ttyACM0"), "Vehicle serial port")
	fs.IntVar(&o.BaudRate, "baud", envInt("FIELDPILOT_BAUD", 115200), "Vehicle serial baud rate")

	fs.StringVar(&o.MarkerAddr, "marker-addr", envString("FIELDPILOT_MARKER_ADDR", ""), "host:port receiving lookahead markers (empty to disable)")
	fs.StringVar(&o.DBPath, "db", envString("FIELDPILOT_DB", "fieldpilot.db"), "Run history sqlite database (empty to disable)")
	fs.StringVar(&o.LogDir, "log-dir", envString("FIELDPILOT_LOG_DIR", ""), "Directory for CSV tick and trajectory logs (empty to disable)")
	fs.BoolVar(&o.MDNS, "mdns", envBool("FIELDPILOT_MDNS", false), "Advertise the monitor over mDNS")
	fs.BoolVar(&o.Debug, "debug", envBool("FIELDPILOT_DEBUG", false), "Enable debug logging")
	fs.DurationVar(&o.LogEvery, "log-interval", envDuration("FIELDPILOT_LOG_INTERVAL", time.Minute), "Interval between traffic statistics logs")

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	switch o.Link {
	case linkSerial, linkSim, linkDisabled:
	default:
		return o, fmt.Errorf("unknown link mode %q: want serial, sim or disabled", o.Link)
	}
	if o.Listen == "" {
		return o, fmt.Errorf("listen address is required")
	}
	if o.Link == linkSerial && o.Port == "" {
		return o, fmt.Errorf("serial port is required for the serial link")
	}
	return o, nil
}
