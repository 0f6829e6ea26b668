// Command planner runs the potential-field local planner against a live (or
// replayed) range-scan feed and drives the vehicle over its serial link.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"math"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/banshee-data/fieldpilot/internal/config"
	"github.com/banshee-data/fieldpilot/internal/db"
	"github.com/banshee-data/fieldpilot/internal/discovery"
	"github.com/banshee-data/fieldpilot/internal/monitoring"
	"github.com/banshee-data/fieldpilot/internal/planner/l4drive"
	"github.com/banshee-data/fieldpilot/internal/planner/monitor"
	"github.com/banshee-data/fieldpilot/internal/planner/network"
	"github.com/banshee-data/fieldpilot/internal/planner/pipeline"
	"github.com/banshee-data/fieldpilot/internal/planner/telemetry"
	"github.com/banshee-data/fieldpilot/internal/planner/waypoints"
	"github.com/banshee-data/fieldpilot/internal/serialmux"
	"github.com/banshee-data/fieldpilot/internal/version"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("failed to load .env: %v", err)
	}
	opts, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("invalid flags: %v", err)
	}
	monitoring.SetDebug(opts.Debug)
	log.Printf("starting %s", version.String())

	tuning, err := config.LoadTuningConfig(opts.Config)
	if err != nil {
		log.Fatalf("failed to load tuning config: %v", err)
	}
	if opts.Waypoints != "" {
		tuning.WaypointPath = &opts.Waypoints
	}
	if err := tuning.RequireStartup(); err != nil {
		log.Fatalf("%v", err)
	}
	path, err := waypoints.LoadPathFile(tuning.GetWaypointPath(), tuning.GetWaypointDelimiter())
	if err != nil {
		log.Fatalf("failed to load waypoints: %v", err)
	}
	log.Printf("loaded %d waypoints (%.1f m loop) from %s", path.Len(), path.Length(), tuning.GetWaypointPath())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, tuning, path); err != nil {
		log.Fatalf("planner: %v", err)
	}
	log.Print("planner stopped")
}

// startPose places the simulated vehicle on the first waypoint facing the
// second.
func startPose(path waypoints.Path) waypoints.Pose {
	p0 := path.At(0)
	p1 := path.At(1 % path.Len())
	return waypoints.Pose{X: p0[0], Y: p0[1], Heading: math.Atan2(p1[1]-p0[1], p1[0]-p0[0])}
}

func openLink(ctx context.Context, opts options, tuning *config.TuningConfig, path waypoints.Path) (serialmux.SerialMuxInterface, error) {
	switch opts.Link {
	case linkSim:
		veh := serialmux.NewSimulatedVehicle(startPose(path), tuning.GetWheelbase())
		veh.Start(ctx, 20*time.Millisecond)
		log.Printf("driving a simulated vehicle")
		return serialmux.NewSerialMux(veh), nil
	case linkDisabled:
		log.Printf("vehicle link disabled; commands are discarded")
		return serialmux.NewDisabledSerialMux(), nil
	default:
		m, err := serialmux.NewRealSerialMux(opts.Port, serialmux.PortOptions{BaudRate: opts.BaudRate})
		if err != nil {
			return nil, fmt.Errorf("failed to open vehicle port %s: %w", opts.Port, err)
		}
		return m, nil
	}
}

func listenPort(address string) (int, error) {
	_, p, err := net.SplitHostPort(address)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(p)
}

func run(ctx context.Context, opts options, tuning *config.TuningConfig, path waypoints.Path) error {
	loopCfg, err := pipeline.ConfigFromTuning(tuning)
	if err != nil {
		return err
	}
	inputs := pipeline.NewInputs(nil)

	link, err := openLink(ctx, opts, tuning, path)
	if err != nil {
		return err
	}
	defer link.Close()
	vehicle := serialmux.NewVehicleLink(link, inputs)

	// Sinks outlive ctx so the records of the last tick reach disk.
	sinkCtx, stopSinks := context.WithCancel(context.Background())
	defer stopSinks()

	var wg sync.WaitGroup
	spawn := func(name string, f func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := f(); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("%s: %v", name, err)
			}
			monitoring.Debugf("%s routine terminated", name)
		}()
	}

	spawn("serial monitor", func() error { return link.Monitor(ctx) })
	spawn("vehicle link", func() error { return vehicle.Run(ctx) })

	scanStats := &network.ScanStats{}
	if opts.PCAP != "" {
		spawn("pcap replay", func() error {
			return network.ReadPCAPFile(ctx, opts.PCAP, opts.PCAPPort, inputs, scanStats)
		})
	} else {
		listener := network.NewUDPListener(network.UDPListenerConfig{
			Address:     opts.ScanAddr,
			LogInterval: opts.LogEvery,
			Handler:     inputs,
			Stats:       scanStats,
		})
		spawn("scan listener", func() error { return listener.Start(ctx) })
	}

	var markers *network.MarkerForwarder
	if opts.MarkerAddr != "" {
		host, port, err := net.SplitHostPort(opts.MarkerAddr)
		if err != nil {
			return fmt.Errorf("invalid marker address: %w", err)
		}
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid marker port: %w", err)
		}
		markers, err = network.NewMarkerForwarder(host, p, opts.LogEvery)
		if err != nil {
			return err
		}
		defer markers.Close()
		markers.Start(ctx)
	}

	var (
		ticks    []pipeline.TelemetrySink
		poses    []pipeline.TrajectorySink
		database *db.DB
		recorder *db.Recorder
		runID    string
	)
	if opts.DBPath != "" {
		database, err = db.NewDB(opts.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open run database: %w", err)
		}
		defer database.Close()
		cfgJSON, err := json.Marshal(tuning)
		if err != nil {
			return fmt.Errorf("failed to encode tuning: %w", err)
		}
		r, err := database.StartRun(ctx, db.Run{
			Version:       version.Version,
			WaypointPath:  tuning.GetWaypointPath(),
			WaypointCount: path.Len(),
			ConfigJSON:    string(cfgJSON),
		})
		if err != nil {
			return err
		}
		runID = r.ID
		log.Printf("recording run %s to %s", runID, database.Path())
		recorder = db.NewRecorder(database, runID)
		ticks = append(ticks, recorder)
		poses = append(poses, recorder)
		spawn("run recorder", func() error { return recorder.Run(sinkCtx) })
	}

	if opts.LogDir != "" {
		logs, err := telemetry.Create(opts.LogDir, time.Now())
		if err != nil {
			return err
		}
		defer func() {
			if err := logs.Close(); err != nil {
				log.Printf("failed to close CSV logs: %v", err)
			}
		}()
		ticks = append(ticks, logs.Ticks)
		poses = append(poses, logs.Trajectory)
		spawn("csv flusher", func() error {
			t := time.NewTicker(time.Second)
			defer t.Stop()
			for {
				select {
				case <-sinkCtx.Done():
					return nil
				case <-t.C:
					if err := logs.Flush(); err != nil {
						return err
					}
				}
			}
		})
	}

	history := monitor.NewHistory()
	stream := monitor.NewStream()
	loop := pipeline.NewLoop(loopCfg, path, inputs, nil, pipeline.Sinks{
		Command:    vehicle,
		Marker:     markers,
		Telemetry:  telemetrySink(ticks...),
		Trajectory: trajectorySink(poses...),
		Laps:       recorder,
		Observers:  []pipeline.TickObserver{history, stream},
	})

	health := monitor.NewHealth(inputs, tuning.GetStaleScanTimeout(), nil)
	spawn("health", func() error {
		health.Run(ctx, 100*time.Millisecond)
		return nil
	})
	if opts.GRPC != "" {
		spawn("grpc health", func() error { return health.ServeGRPC(ctx, opts.GRPC) })
	}

	server := monitor.NewWebServer(monitor.WebServerConfig{
		Address: opts.Listen,
		Loop:    loop,
		Tuning:  tuning,
		History: history,
		Stream:  stream,
		Health:  health,
		Routes: func(mux *http.ServeMux) {
			link.AttachAdminRoutes(mux)
			if database != nil {
				if err := database.AttachAdminRoutes(mux); err != nil {
					log.Printf("failed to attach database admin routes: %v", err)
				}
			}
		},
	})
	spawn("http server", func() error { return server.Start(ctx) })

	if opts.MDNS {
		port, err := listenPort(opts.Listen)
		if err != nil {
			return fmt.Errorf("cannot advertise %q: %w", opts.Listen, err)
		}
		adv := discovery.NewAdvertiser("", port, "ws=/ws", "health=/health")
		spawn("mdns", func() error { return adv.Run(ctx) })
	}

	loopErr := loop.Run(ctx)

	if err := vehicle.SendDrive(l4drive.Command{}); err != nil {
		log.Printf("failed to send stop command: %v", err)
	}
	stopSinks()
	wg.Wait()

	scanStats.LogStats()
	st := loop.State()
	log.Printf("loop finished: %d ticks, %d planned, %d skipped", st.Ticks, st.Planned, st.Skipped)
	if database != nil {
		if err := database.FinishRun(context.Background(), runID, time.Now()); err != nil {
			log.Printf("failed to finish run %s: %v", runID, err)
		}
	}
	return loopErr
}
