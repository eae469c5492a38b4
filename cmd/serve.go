package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/awygle/udptherbone/datarecording"
	"github.com/awygle/udptherbone/etherbone"
	"github.com/awygle/udptherbone/monitoring"
	"github.com/awygle/udptherbone/pipeline"
	"github.com/awygle/udptherbone/seriallink"
	"github.com/awygle/udptherbone/sim/hooking"
	"github.com/awygle/udptherbone/sim/id"
	"github.com/awygle/udptherbone/slip"
	"github.com/awygle/udptherbone/stream"
	"github.com/awygle/udptherbone/tracing"
	"github.com/awygle/udptherbone/udp"
)

// diagnosticPositions are the hook positions where input is dropped or
// rejected.
var diagnosticPositions = []*hooking.HookPos{
	slip.HookPosIllegalEscape,
	udp.HookPosDiscard,
	udp.HookPosOverflow,
	udp.HookPosProtocolError,
	etherbone.HookPosViolation,
	stream.HookPosSinkViolation,
}

type serveCmd struct {
	*app

	device string
	baud   int
}

func newServeCmd(a *app) *cobra.Command {
	s := &serveCmd{app: a}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the bridge on a serial port until interrupted.",
		Args:  cobra.NoArgs,
		RunE:  s.run,
	}

	cmd.Flags().StringVar(&s.device, "device", "",
		"serial device, overriding the configuration")
	cmd.Flags().IntVar(&s.baud, "baud", 0,
		"baud rate, overriding the configuration")

	return cmd
}

func (s *serveCmd) serialConfig() seriallink.Config {
	device := s.cfg.Serial.Device
	if s.device != "" {
		device = s.device
	}

	cfg := seriallink.DefaultConfig(device)
	cfg.Baud = s.cfg.Serial.Baud
	cfg.ReadTimeout = time.Duration(s.cfg.Serial.ReadTimeoutMS) * time.Millisecond

	if s.baud > 0 {
		cfg.Baud = s.baud
	}

	return cfg
}

func (s *serveCmd) logTracer() *tracing.LogTracer {
	t := tracing.NewLogTracer(s.logger)
	for _, pos := range diagnosticPositions {
		t.WithLevel(pos, zerolog.WarnLevel)
	}

	t.WithLevel(etherbone.HookPosResponse, zerolog.DebugLevel)

	return t
}

func (s *serveCmd) run(cmd *cobra.Command, _ []string) error {
	serialCfg := s.serialConfig()

	port, err := seriallink.Open(serialCfg)
	if err != nil {
		return err
	}
	defer port.Close()

	counts := tracing.NewCountTracer()
	b := pipeline.MakeBuilder().
		WithConfig(s.cfg).
		WithTracer(counts).
		WithTracer(s.logTracer())

	if s.cfg.Recording.Enabled {
		var finish func()

		b, finish = s.startRecording(b, serialCfg)
		defer finish()
	}

	var monitor *monitoring.Monitor
	if s.cfg.Monitor.Enabled {
		monitor = s.newMonitor(counts)
		b = b.WithTracer(recordProgress(monitor))
	}

	server := b.BuildServer("Bridge", port)

	if monitor != nil {
		err = s.startMonitor(monitor, server)
		if err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	s.logger.Info().
		Str("device", serialCfg.Device).
		Int("baud", serialCfg.Baud).
		Msg("serving")

	err = server.Serve(ctx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	d := server.Device
	s.logger.Info().
		Uint64("steps", server.Domain.Steps()).
		Uint64("received", server.Link.Received()).
		Uint64("transmitted", server.Link.Transmitted()).
		Uint64("illegal_escapes", d.Unframer.ErrorCount()).
		Uint64("discards", d.Depacketizer.TotalDiscards()).
		Uint64("violations", d.Bridge.TotalViolations()).
		Uint64("records", d.Bridge.RecordsExecuted()).
		Uint64("bus_transactions", d.Slave.Transactions()).
		Uint64("overflows", d.Packetizer.Overflows()).
		Msg("stopped")

	return err
}

func (s *serveCmd) startRecording(
	b pipeline.Builder,
	serialCfg seriallink.Config,
) (pipeline.Builder, func()) {
	// Recorded IDs must not collide with those of earlier recordings.
	id.UseParallel()

	recorder := datarecording.New(s.cfg.Recording.Path)

	exec := datarecording.NewExecRecorder(recorder)
	exec.Start()
	exec.Set("Serial Device", serialCfg.Device)
	exec.Set("Baud", strconv.Itoa(serialCfg.Baud))
	exec.Set("Device Address", s.cfg.Device.IP.String())
	exec.Set("Bus Width", strconv.Itoa(s.cfg.Bus.DataWidth))

	db := tracing.NewDBTracer(recorder).Only(diagnosticPositions...)

	finish := func() {
		exec.End()
		db.Terminate()

		err := recorder.Close()
		if err != nil {
			s.logger.Error().Err(err).Msg("close recording")
		}
	}

	return b.WithTracer(db), finish
}

func (s *serveCmd) newMonitor(counts *tracing.CountTracer) *monitoring.Monitor {
	m := monitoring.NewMonitor().
		WithPortNumber(s.cfg.Monitor.Port).
		WithLogger(s.logger)
	m.RegisterCounts(counts)

	return m
}

// recordProgress creates the monitor's records bar. A record is in progress
// once its bus cycles are done and finished once its response is sent.
func recordProgress(m *monitoring.Monitor) *monitoring.ProgressTracer {
	bar := m.CreateProgressBar("Records", 0)

	return monitoring.NewProgressTracer(bar,
		etherbone.HookPosRecordDone, etherbone.HookPosResponse)
}

func (s *serveCmd) startMonitor(
	m *monitoring.Monitor,
	server *pipeline.Server,
) error {
	m.RegisterEngine(server.Engine)
	m.RegisterDomain(server.Domain)

	url, err := m.StartServer()
	if err != nil {
		return err
	}

	if s.cfg.Monitor.OpenBrowser {
		m.OpenBrowser(url)
	}

	return nil
}
