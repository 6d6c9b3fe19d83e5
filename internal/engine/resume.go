package engine

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"strings"

	"go.uber.org/zap"
)

// ProcessedIDs is the read-only set of record IDs that a prior run
// already recorded as successful. It is frozen before the dispatcher
// starts.
type ProcessedIDs map[string]struct{}

// LoadProcessedIDs reads the prior success-output file line by line
// and reconstructs the processed-ID set. A missing file is not an
// error: it simply yields an empty set (first run). Individual
// parse errors are warned and skipped; they never abort loading.
func LoadProcessedIDs(log *zap.SugaredLogger, path, idKey, rerunKey string) (ProcessedIDs, error) {
	ids := make(ProcessedIDs)

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return ids, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			log.Warnw("resume: failed to parse success-file line, skipping", "line", lineNum, "error", err)
			continue
		}

		idVal, ok := rec[idKey]
		if !ok {
			continue
		}
		id, ok := idVal.(string)
		if !ok || id == "" {
			continue
		}

		if rerunKey != "" {
			if _, forced := rec[rerunKey]; forced {
				continue
			}
		}

		ids[id] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	log.Infow("resume: loaded processed-id set", "path", path, "count", len(ids))
	return ids, nil
}
