package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/gray-logic-nhc2/internal/controller"
	"github.com/nerrad567/gray-logic-nhc2/internal/device"
	"github.com/nerrad567/gray-logic-nhc2/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-nhc2/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-nhc2/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-nhc2/internal/infrastructure/metrics"
	"github.com/nerrad567/gray-logic-nhc2/migrations"
)

var errConnectionLost = errors.New("connection to controller lost")

func runWatch(ctx context.Context, a *app, args []string) error {
	fs := a.newFlagSet("watch")
	className := fs.String("class", "", "only print devices of this class")
	uuid := fs.String("uuid", "", "only print this device")
	duration := fs.Duration("duration", 0, "stop after this long (0 runs until interrupted)")
	wait := fs.Duration("timeout", defaultWait, "how long to wait for the device list")
	if err := parse(fs, args); err != nil {
		return err
	}

	var class device.Class
	if *className != "" {
		c, err := device.ParseClass(*className)
		if err != nil {
			return fmt.Errorf("%w: %w", errUsage, err)
		}
		class = c
	}
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	var (
		m   *metrics.Collectors
		reg *prometheus.Registry
	)
	if a.cfg.Metrics.Enabled {
		reg = prometheus.NewRegistry()
		m = metrics.New(reg)
	}

	s, err := newSession(a, m)
	if err != nil {
		return err
	}
	defer s.close()

	if reg != nil {
		ready := func() bool { return s.ctrl.State() == controller.Connected }
		if err := metrics.Serve(ctx, a.cfg.Metrics.Listen, reg, ready, a.log); err != nil {
			return err
		}
	}

	sinks, err := openSinks(ctx, a, s)
	if err != nil {
		return err
	}
	defer sinks.close()

	filter := watchFilter{class: class, uuid: *uuid}
	s.registry.AddListener(func(e device.Entity, cause device.Cause) {
		if filter.match(e) {
			printChange(a.stdout, e, cause)
		}
	})

	lost := make(chan struct{})
	var lostOnce sync.Once
	connected := false
	var mu sync.Mutex
	s.ctrl.OnStateChange(func(st controller.State) {
		mu.Lock()
		defer mu.Unlock()
		switch st {
		case controller.Connected:
			connected = true
		case controller.Disconnected:
			if connected {
				lostOnce.Do(func() { close(lost) })
			}
		}
	})

	if err := s.connect(ctx, *wait); err != nil {
		return err
	}
	for _, e := range selectEntities(s.registry, class, "") {
		if filter.match(e) {
			printChange(a.stdout, e, device.CauseSnapshot)
		}
	}

	select {
	case <-ctx.Done():
		return nil
	case <-lost:
		return errConnectionLost
	}
}

type watchFilter struct {
	class device.Class
	uuid  string
}

func (f watchFilter) match(e device.Entity) bool {
	if f.class != "" && e.Class() != f.class {
		return false
	}
	return f.uuid == "" || e.UUID() == f.uuid
}

func printChange(w io.Writer, e device.Entity, cause device.Cause) {
	fmt.Fprintf(w, "%s %-10s %s\n", time.Now().Format(time.TimeOnly), cause, e)
}

// sinks are the optional change recorders of a watch session.
type sinks struct {
	db       *database.DB
	recorder *device.HistoryRecorder
	influx   *influxdb.Client
	log      *logging.Logger
}

// openSinks attaches the configured history and telemetry recorders to the
// session's registry.
func openSinks(ctx context.Context, a *app, s *session) (*sinks, error) {
	out := &sinks{log: a.log}

	if a.cfg.History.Enabled {
		db, err := database.Open(database.Config{
			Path:        a.cfg.History.Path,
			BusyTimeout: a.cfg.History.BusyTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("opening history database: %w", err)
		}
		if err := db.Migrate(ctx, migrations.FS); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		out.db = db
		out.recorder = device.NewHistoryRecorder(
			device.NewSQLiteHistoryRepository(db.DB),
			a.cfg.History.Retention,
			a.log,
		)
		s.registry.AddListener(out.recorder.Listen)
		a.log.Info("state history enabled", "path", db.Path())
	}

	if a.cfg.InfluxDB.Enabled {
		client, err := influxdb.Connect(ctx, a.cfg.InfluxDB, a.cfg.Controller.Host)
		if err != nil {
			out.close()
			return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		client.SetOnError(func(err error) {
			a.log.Error("InfluxDB write error", "error", err)
		})
		out.influx = client

		s.registry.AddListener(func(e device.Entity, cause device.Cause) {
			client.WriteDeviceState(influxdb.DeviceState{
				UUID:   e.UUID(),
				Class:  string(e.Class()),
				Name:   e.Name(),
				Cause:  string(cause),
				Fields: e.State(),
			})
		})
		s.ctrl.OnStateChange(func(st controller.State) {
			client.WriteConnectionState(st.String())
		})
		a.log.Info("InfluxDB telemetry enabled",
			"url", a.cfg.InfluxDB.URL,
			"bucket", a.cfg.InfluxDB.Bucket,
		)
	}
	return out, nil
}

// close stops recording. The history recorder drains before its database
// is closed.
func (s *sinks) close() {
	if s.recorder != nil {
		s.recorder.Close()
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.log.Error("error closing history database", "error", err)
		}
	}
	if s.influx != nil {
		if err := s.influx.Close(); err != nil {
			s.log.Error("error closing InfluxDB", "error", err)
		}
	}
}
