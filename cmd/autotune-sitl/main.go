// Command autotune-sitl drives the autotune core against a scripted
// pilot-demand waveform and a crude first-order rate plant, with no
// hardware involved. It is the integration harness for scenarios S1-S6
// and doubles as a runnable demo: point it at a scenario file and watch
// gains converge over the structured log.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fwautotune/pkg/airframe"
	"fwautotune/pkg/autotune"
	"fwautotune/pkg/clock"
	"fwautotune/pkg/errors"
	"fwautotune/pkg/gains"
	"fwautotune/pkg/log"
	"fwautotune/pkg/metrics"
	"fwautotune/pkg/paramstore"
	"fwautotune/pkg/ratepid"
	"fwautotune/pkg/reactor"
	"fwautotune/pkg/telemetry"
)

func main() {
	scenarioPath := flag.String("scenario", "", "path to a scenario config file (required)")
	duration := flag.Duration("duration", 30*time.Second, "how long to run the SITL loop")
	paramsDir := flag.String("params-dir", "", "directory for file-backed gain persistence (empty = in-memory only)")
	metricsAddr := flag.String("metrics-addr", "", "address to serve Prometheus metrics on (empty = disabled)")
	wsAddr := flag.String("ws-addr", "", "address to serve the ground-station websocket on (empty = disabled)")
	seed := flag.Int64("seed", 1, "seed for the stick-profile noise generator")
	flag.Parse()

	logger := log.New("autotune-sitl")
	log.ConfigureFromEnv(logger)

	if *scenarioPath == "" {
		logger.Error("missing required -scenario flag")
		os.Exit(2)
	}

	if err := run(logger, *scenarioPath, *duration, *paramsDir, *metricsAddr, *wsAddr, *seed); err != nil {
		logger.WithError(err).Error("sitl run failed")
		os.Exit(1)
	}
}

func run(logger *log.Logger, scenarioPath string, duration time.Duration, paramsDir, metricsAddr, wsAddr string, seed int64) error {
	sc, err := airframe.LoadScenario(scenarioPath)
	if err != nil {
		return fmt.Errorf("load scenario: %w", err)
	}

	autoMetrics := metrics.NewAutotuneMetrics()
	sinks := telemetry.Multi{telemetry.NewLogSink(logger), telemetry.NewMetricsSink(autoMetrics)}

	var metricsServer *metrics.MetricsServer
	if metricsAddr != "" {
		metricsServer = metrics.NewMetricsServer(autoMetrics, metricsAddr)
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.WithError(err).Error("metrics server stopped")
			}
		}()
		defer metricsServer.Shutdown(context.Background())
	}

	var broadcaster *telemetry.WSBroadcaster
	if wsAddr != "" {
		broadcaster = telemetry.NewWSBroadcaster(logger)
		sinks = append(sinks, broadcaster)
		go serveWebsocket(logger, wsAddr, broadcaster)
	}

	clk := clock.NewSystem()
	scheduler := autotune.FixedScheduler(sc.LoopRateHz)
	rng := rand.New(rand.NewSource(seed))

	roll := newAxisRig(logger, gains.Roll, sc, sc.Roll, &sc.Airframe, clk, scheduler, sinks, paramsDir, rng)
	pitch := newAxisRig(logger, gains.Pitch, sc, sc.Pitch, &sc.Airframe, clk, scheduler, sinks, paramsDir, rng)

	roll.tuner.Start()
	pitch.tuner.Start()
	logger.WithField("loop_rate_hz", sc.LoopRateHz).Info("sitl started")

	dt := time.Duration(float64(time.Second) / float64(sc.LoopRateHz))
	r := reactor.New()

	var elapsed time.Duration
	tick := func(eventtime float64) float64 {
		roll.step(float32(dt.Seconds()))
		pitch.step(float32(dt.Seconds()))
		elapsed += dt
		if elapsed >= duration {
			r.End()
			return reactor.NEVER
		}
		return eventtime + dt.Seconds()
	}
	r.RegisterTimer(tick, reactor.NOW)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.Run()
	go func() {
		<-ctx.Done()
		r.End()
	}()
	r.Wait()

	roll.tuner.Stop()
	pitch.tuner.Stop()
	logger.Info("sitl finished")
	return nil
}

// axisRig bundles one axis's plant, rate controller, demand generator
// and tuner — everything the main loop needs to step once per tick.
type axisRig struct {
	axis  gains.Axis
	pid   *ratepid.RateController
	tuner *autotune.Tuner
	stick airframe.StickProfile
	plant *firstOrderPlant
	rng   *rand.Rand

	airframe *airframe.Params
	elapsedS float32
}

func newAxisRig(logger *log.Logger, axis gains.Axis, sc airframe.Scenario, seed airframe.GainSeed, af *airframe.Params, clk clock.Source, scheduler autotune.Scheduler, sink autotune.Sink, paramsDir string, rng *rand.Rand) *axisRig {
	store := newStore(logger, paramsDir, axis)

	pid := ratepid.NewRateController(ratepid.RateControllerConfig{
		Store:     store,
		Prefix:    axis.String() + ".",
		FF:        seed.FF,
		P:         seed.P,
		I:         seed.I,
		D:         seed.D,
		IMAX:      seed.IMAX,
		SlewLimit: seed.SlewLimit,
	})

	slot := autotune.GainsSlot{
		Tau:     paramstore.NewParamF32(store, axis.String()+".tau", seed.Tau),
		RMaxPos: paramstore.NewParamI16(store, axis.String()+".rmax_pos", seed.RMaxPos),
		RMaxNeg: paramstore.NewParamI16(store, axis.String()+".rmax_neg", seed.RMaxNeg),
	}

	tuner := autotune.New(slot, axis, af, pid, clk, scheduler, sink)

	return &axisRig{
		axis:     axis,
		pid:      pid,
		tuner:    tuner,
		stick:    sc.Stick,
		plant:    newFirstOrderPlant(0.08),
		rng:      rng,
		airframe: af,
	}
}

func newStore(logger *log.Logger, dir string, axis gains.Axis) paramstore.Store {
	if dir == "" {
		return paramstore.NewMemoryStore()
	}
	path := dir + "/" + axis.String() + ".params"
	store, err := paramstore.LoadFileStore(path)
	if err != nil {
		// fall back to memory rather than aborting the run over a
		// persistence-layer problem.
		logger.WithError(errors.PersistenceError(axis.String(), err)).Warn("falling back to in-memory gain store")
		return paramstore.NewMemoryStore()
	}
	return store
}

// step advances the plant, the rate PID, and the autotune core by dt
// seconds, using the scripted stick profile to drive the target rate.
func (r *axisRig) step(dt float32) {
	r.elapsedS += dt
	target := r.stickTarget()

	output := r.pid.Update(dt, target, r.plant.rate)
	r.plant.step(dt, output)

	attLimit := r.airframe.AttitudeLimitDeg(r.axis)
	var angleErrDeg float32
	if target != 0 {
		sign := float32(1)
		if target < 0 {
			sign = -1
		}
		angleErrDeg = sign * attLimit * 0.8
	}

	r.tuner.Update(r.pid.PidInfo(), 1.0, angleErrDeg)
}

// stickTarget evaluates the scripted square-wave demand at the rig's
// current elapsed time, with additive uniform noise.
func (r *axisRig) stickTarget() float32 {
	if r.stick.PeriodS <= 0 {
		return 0
	}
	phase := r.elapsedS - r.stick.PeriodS*float32(int(r.elapsedS/r.stick.PeriodS))
	noise := float32(0)
	if r.stick.NoiseDegS > 0 {
		noise = (r.rng.Float32()*2 - 1) * r.stick.NoiseDegS
	}
	if phase < r.stick.PeriodS*r.stick.DutyCycle {
		return r.stick.StepDegS + noise
	}
	return noise
}

// firstOrderPlant is a minimal rate-loop stand-in: the output drives an
// acceleration toward itself with time constant tau, giving the rate
// controller something with realistic lag and overshoot dynamics to
// react to.
type firstOrderPlant struct {
	tau  float32
	rate float32
}

func newFirstOrderPlant(tau float32) *firstOrderPlant {
	return &firstOrderPlant{tau: tau}
}

func (p *firstOrderPlant) step(dt, output float32) {
	if p.tau <= 0 {
		p.rate = output
		return
	}
	p.rate += (output - p.rate) * dt / p.tau
}

// serveWebsocket runs an HTTP server exposing the broadcaster's upgrade
// handler at /ws for ground-station clients to connect to.
func serveWebsocket(logger *log.Logger, addr string, b *telemetry.WSBroadcaster) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", b.HandleUpgrade)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.WithError(err).Error("websocket server stopped")
	}
}
