package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"sortbot.ai/internal/persistence/indexdb"
	persistlog "sortbot.ai/internal/persistence/log"
	"sortbot.ai/internal/sim/tuning"
	"sortbot.ai/internal/sim/world"
)

func main() {
	var (
		runDir = flag.String("run", "", "run dir containing run.yaml and frames-*.jsonl.zst")
		dbPath = flag.String("db", "", "sqlite run index to cross-check (optional)")
	)
	flag.Parse()

	if *runDir == "" {
		fmt.Fprintln(os.Stderr, "missing -run")
		os.Exit(2)
	}

	res, err := verifyRun(*runDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}

	if *dbPath != "" {
		if err := checkIndex(*dbPath, filepath.Base(filepath.Clean(*runDir)), res); err != nil {
			fmt.Fprintln(os.Stderr, "index:", err)
			os.Exit(1)
		}
	}
	fmt.Printf("replay ok: checked=%d frames delivered=%d steps=%d digest=%s\n", res.Frames, res.Delivered, res.Steps, res.FinalDigest)
}

// verifyRun re-runs the manifest and compares every frame digest with the log.
func verifyRun(runDir string) (world.Result, error) {
	tune, err := tuning.Load(filepath.Join(runDir, "run.yaml"))
	if err != nil {
		return world.Result{}, err
	}

	var logged []persistlog.FrameLogEntry
	if err := persistlog.ScanFrames(runDir, func(e persistlog.FrameLogEntry) error {
		logged = append(logged, e)
		return nil
	}); err != nil {
		return world.Result{}, err
	}

	w, err := world.New(tune)
	if err != nil {
		return world.Result{}, err
	}
	w.SetSink(world.FrameSinkFunc(func(f world.Frame) error {
		if f.Seq >= uint64(len(logged)) {
			return fmt.Errorf("frame %d missing from log (%d entries)", f.Seq, len(logged))
		}
		want := logged[f.Seq]
		if want.Seq != f.Seq {
			return fmt.Errorf("log out of order: entry %d has seq %d", f.Seq, want.Seq)
		}
		if want.Digest != f.Digest {
			return fmt.Errorf("digest mismatch at frame %d (tick %d %s): got=%s want=%s", f.Seq, f.Tick, f.Kind, f.Digest, want.Digest)
		}
		return nil
	}))
	res, err := w.Run(context.Background())
	if err != nil {
		return res, err
	}
	if res.Frames != uint64(len(logged)) {
		return res, fmt.Errorf("log has %d frames, replay produced %d", len(logged), res.Frames)
	}

	recorded, err := readResult(filepath.Join(runDir, "result.json"))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return res, err
	case recorded.FinalDigest != res.FinalDigest:
		return res, fmt.Errorf("result.json digest=%s replay=%s", recorded.FinalDigest, res.FinalDigest)
	}
	return res, nil
}

func readResult(path string) (world.Result, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return world.Result{}, err
	}
	var r world.Result
	if err := json.Unmarshal(b, &r); err != nil {
		return world.Result{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return r, nil
}

func checkIndex(dbPath, runID string, res world.Result) error {
	idx, err := indexdb.OpenSQLite(dbPath)
	if err != nil {
		return err
	}
	defer idx.Close()
	row, err := idx.LookupRun(context.Background(), runID)
	if err != nil {
		return err
	}
	if row.FinalDigest != res.FinalDigest {
		return fmt.Errorf("run %s indexed digest=%s replay=%s", runID, row.FinalDigest, res.FinalDigest)
	}
	return nil
}
