package engine

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
)

// SelectTasks streams the input file line by line, parses each line
// as a JSON object, and filters out records already present in
// processed. A missing input file is a terminal error: the caller
// reports it and aborts the run with zero tasks. Line numbering
// starts at 1. The full filtered list is materialized up front.
func SelectTasks(log *zap.SugaredLogger, path, idKey string, processed ProcessedIDs) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInputMissing, path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var tasks []Record
	seen := make(map[string]struct{})
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			log.Warnw("selector: blank line, skipping", "line", lineNum)
			continue
		}

		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			log.Warnw("selector: failed to parse input line, skipping", "line", lineNum, "error", err)
			continue
		}

		idVal, ok := rec[idKey]
		id, isStr := idVal.(string)
		if !ok || !isStr || id == "" {
			log.Warnw("selector: record missing id, skipping", "line", lineNum, "id_key", idKey)
			continue
		}

		if _, dup := seen[id]; dup {
			log.Warnw("selector: duplicate id within input file", "id", id, "line", lineNum)
		}
		seen[id] = struct{}{}

		if _, done := processed[id]; done {
			continue
		}

		tasks = append(tasks, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	log.Infow("selector: filtered tasks", "path", path, "count", len(tasks))
	return tasks, nil
}
