// Command osc-replay records, replays and synthesizes OSC contact data.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/okian/patpat/internal/replay"
	"github.com/okian/patpat/pkg/logger"
)

// Default configuration constants.
const (
	defaultPort     = 9001
	defaultTimeout  = 20 * time.Second
	defaultPeriod   = 2 * time.Second
	defaultInterval = 50 * time.Millisecond
)

var errUsage = errors.New("usage")

type options struct {
	mode     string
	ip       string
	port     int
	name     string
	delay    time.Duration
	timeout  time.Duration
	filter   string
	params   string
	period   time.Duration
	interval time.Duration
	verbose  bool
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			os.Stderr.WriteString(err.Error() + "\n")
			os.Exit(2)
		}
		return
	}

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if opts.verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		logger.Get().Error(ctx, "osc-replay failed", logger.Error(err))
		stop()
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("osc-replay", flag.ContinueOnError)
	fs.StringVar(&o.ip, "ip", "", "OSC ip to listen on (rec) or send to (play, sweep)")
	fs.IntVar(&o.port, "port", defaultPort, "OSC port")
	fs.StringVar(&o.name, "name", "recording.json", "Recording file to write (rec) or read (play)")
	fs.DurationVar(&o.delay, "delay", 0, "Wait before starting")
	fs.DurationVar(&o.timeout, "timeout", defaultTimeout, "Stop recording after this long (rec) or the sweep length (sweep)")
	fs.StringVar(&o.filter, "filter", "", "Only keep OSC paths containing this string")
	fs.StringVar(&o.params, "params", "p0,p1", "Comma separated parameter names (sweep)")
	fs.DurationVar(&o.period, "period", defaultPeriod, "Rise and fall time of one parameter (sweep)")
	fs.DurationVar(&o.interval, "interval", defaultInterval, "Spacing between frames (sweep)")
	fs.BoolVar(&o.verbose, "verbose", false, "Log every message")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), `OSC record and replay tool

Usage:
  osc-replay [options] rec|play|sweep

Examples:
  # Record 30s of avatar contacts sent to the engine port
  osc-replay -timeout 30s -filter /avatar/ -name shoulder.json rec

  # Replay them against a running engine
  osc-replay -ip 127.0.0.1 -name shoulder.json play

  # Sweep contact across three receivers for 10s
  osc-replay -ip 127.0.0.1 -params c0,c1,c2 -timeout 10s sweep

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return o, fmt.Errorf("%w: expected exactly one mode", errUsage)
	}
	o.mode = fs.Arg(0)
	switch o.mode {
	case "rec", "play", "sweep":
	default:
		return o, fmt.Errorf("%w: unknown mode %q", errUsage, o.mode)
	}
	return o, nil
}

func run(ctx context.Context, o options) error {
	if o.delay > 0 {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(o.delay):
		}
	}
	switch o.mode {
	case "rec":
		return record(ctx, o)
	case "play":
		samples, err := replay.Load(o.name)
		if err != nil {
			return err
		}
		return play(ctx, o, samples)
	default:
		samples, err := replay.Sweep(replay.SweepConfig{
			Params:   strings.Split(o.params, ","),
			Duration: o.timeout,
			Period:   o.period,
			Interval: o.interval,
		})
		if err != nil {
			return err
		}
		return play(ctx, o, samples)
	}
}

func record(ctx context.Context, o options) error {
	conn, err := net.ListenPacket("udp", net.JoinHostPort(o.ip, strconv.Itoa(o.port)))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	samples, err := replay.NewRecorder(replay.WithFilter(o.filter)).Record(ctx, conn)
	if err != nil {
		return err
	}
	if err := replay.Save(o.name, samples); err != nil {
		return err
	}
	logger.Get().Info(ctx, "recording saved", logger.String("file", o.name), logger.Int("samples", len(samples)))
	return nil
}

func play(ctx context.Context, o options, samples []replay.Sample) error {
	host := o.ip
	if host == "" {
		host = "127.0.0.1"
	}
	to, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, strconv.Itoa(o.port)))
	if err != nil {
		return fmt.Errorf("resolve target: %w", err)
	}
	conn, err := net.ListenPacket("udp", ":0")
	if err != nil {
		return fmt.Errorf("open socket: %w", err)
	}
	defer func() { _ = conn.Close() }()

	_, err = replay.NewPlayer(replay.WithFilter(o.filter)).Play(ctx, conn, to, samples)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
