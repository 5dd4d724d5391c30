package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"sortbot.ai/internal/persistence/indexdb"
)

func openRuntimeIndex(dataDir string, disableDB bool) (*indexdb.SQLiteIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("SORTBOT_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(filepath.Join(dataDir, "index", "runs.sqlite"))
	default:
		return nil, fmt.Errorf("unknown SORTBOT_INDEX_BACKEND=%q", backend)
	}
}
