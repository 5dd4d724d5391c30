package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	persistlog "sortbot.ai/internal/persistence/log"
	"sortbot.ai/internal/sim/tuning"
	"sortbot.ai/internal/sim/world"
	"sortbot.ai/internal/transport/observer"
)

func main() {
	// Optional .env; SORTBOT_* variables become flag defaults.
	envErr := godotenv.Load()

	var (
		configPath = flag.String("config", envStr("SORTBOT_CONFIG", "./configs/arena.yaml"), "arena config path (empty: built-in defaults)")
		dataDir    = flag.String("data", envStr("SORTBOT_DATA", "./data"), "runtime data directory")
		runID      = flag.String("run_id", "", "run id (default: random uuid)")
		seed       = flag.Int64("seed", 0, "override the configured seed")
		addr       = flag.String("addr", envStr("SORTBOT_ADDR", ""), "observer http listen address (empty to disable)")
		paceMS     = flag.Int("pace_ms", envInt("SORTBOT_PACE_MS", -1), "delay between frames while observed (-1: config render.frame_interval_ms)")
		hold       = flag.Bool("hold", envBool("SORTBOT_HOLD", false), "keep the observer server up after the run until interrupted")
		disableDB  = flag.Bool("disable_db", envBool("SORTBOT_DISABLE_DB", false), "disable the sqlite run index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[sortbot] ", log.LstdFlags|log.Lmicroseconds)
	if envErr != nil && !os.IsNotExist(envErr) {
		logger.Printf(".env: %v", envErr)
	}

	tune, err := tuning.Load(strings.TrimSpace(*configPath))
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if flagSet("seed") {
		tune.Seed = *seed
	}
	if *paceMS >= 0 {
		tune.Render.FrameIntervalMs = *paceMS
	}

	id := strings.TrimSpace(*runID)
	if id == "" {
		id = uuid.New().String()
	}
	runDir := filepath.Join(*dataDir, "runs", id)
	if err := tuning.Save(filepath.Join(runDir, "run.yaml"), tune); err != nil {
		logger.Fatalf("write run manifest: %v", err)
	}

	w, err := world.New(tune)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}
	w.SetLogger(logger)

	frameLog := persistlog.NewFrameLogger(runDir)
	sinks := world.MultiSink{frameLog}

	// Optional read-model index (does not affect the run).
	idx, err := openRuntimeIndex(*dataDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index: %v", err)
	}
	if idx != nil {
		if err := idx.BeginRun(id, tune); err != nil {
			logger.Printf("index: begin run: %v", err)
		}
		sinks = append(sinks, idx.FrameSink(id))
	}

	ctx, cancel := signalContext()
	defer cancel()

	var (
		obs *observer.Server
		srv *http.Server
	)
	var sink world.FrameSink = sinks
	if a := strings.TrimSpace(*addr); a != "" {
		obs = observer.NewServer(id, w, logger)
		sinks = append(sinks, obs)
		sink = newPacedSink(ctx, sinks, time.Duration(tune.Render.FrameIntervalMs)*time.Millisecond)
		srv = &http.Server{
			Addr:              a,
			Handler:           obs.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Printf("observer listening on %s", a)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Printf("observer: %v", err)
			}
		}()
	}
	w.SetSink(sink)

	logger.Printf("run %s: seed=%d items=%d dir=%s", id, tune.Seed, tune.TotalItems(), runDir)
	res, runErr := w.Run(ctx)

	if err := frameLog.Close(); err != nil {
		logger.Printf("frame log: %v", err)
	}
	if idx != nil {
		idx.RecordRun(id, res)
		if st := idx.Stats(); st.DropFrameTotal > 0 || st.DropDeliveryTotal > 0 {
			logger.Printf("index dropped frames=%d deliveries=%d", st.DropFrameTotal, st.DropDeliveryTotal)
		}
		if err := idx.Close(); err != nil {
			logger.Printf("index: close: %v", err)
		}
	}
	if err := writeResult(filepath.Join(runDir, "result.json"), res); err != nil {
		logger.Printf("write result: %v", err)
	}
	if obs != nil {
		obs.Close()
		if *hold && runErr == nil {
			logger.Printf("run finished; holding observer until interrupted")
			<-ctx.Done()
		}
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(ctx2)
		cancel2()
	}

	if runErr != nil {
		logger.Printf("run %s %s: %v", id, res.Status, runErr)
		cancel()
		os.Exit(1)
	}
	logger.Printf("run %s %s: delivered=%d steps=%d frames=%d digest=%s",
		id, res.Status, res.Delivered, res.Steps, res.Frames, res.FinalDigest)
}

func writeResult(path string, res world.Result) error {
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func flagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
