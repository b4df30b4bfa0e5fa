// Package persistence provides the C12 durable stores for plans, exit
// rules, OCO pairs, and the append-only event log (§6.4). Grounded on the
// teacher's internal/data/store.go file-backed JSON layout, rewritten to
// write every record through a temp-file-then-rename so a crash mid-write
// never leaves a truncated record behind -- the teacher's direct
// os.WriteFile calls in SaveOHLCV/saveMetadata do not give that guarantee.
package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/silverline-labs/tradeengine/pkg/types"
)

// FileStore is a directory of one JSON file per keyed record, each written
// atomically, plus an append-only events.log file.
type FileStore struct {
	mu     sync.Mutex
	logger *zap.Logger
	dir    string
}

// NewFileStore creates the backing directories (plans/, exit_rules/,
// oco_pairs/) under dir; events.log is created by the first AppendEvent.
func NewFileStore(logger *zap.Logger, dir string) (*FileStore, error) {
	fs := &FileStore{logger: logger.Named("persistence"), dir: dir}
	for _, sub := range []string{"plans", "exit_rules", "oco_pairs"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return nil, fmt.Errorf("persistence: create %s: %w", sub, err)
		}
	}
	return fs, nil
}

// writeAtomic marshals v and writes it to path via a temp file in the same
// directory followed by an atomic rename.
func writeAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// SavePlan persists a Plan record keyed by plan_id (§6.4).
func (fs *FileStore) SavePlan(p types.Plan) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return writeAtomic(filepath.Join(fs.dir, "plans", p.PlanID+".json"), p)
}

// LoadPlans reloads every persisted plan, used at startup.
func (fs *FileStore) LoadPlans() ([]types.Plan, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return loadAll[types.Plan](filepath.Join(fs.dir, "plans"))
}

// SaveExitRule persists an ExitRule keyed by ticket.
func (fs *FileStore) SaveExitRule(ticket uint64, rule types.ExitRule) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return writeAtomic(filepath.Join(fs.dir, "exit_rules", fmt.Sprintf("%d.json", ticket)), rule)
}

// LoadExitRules reloads every persisted exit rule keyed by ticket.
func (fs *FileStore) LoadExitRules() (map[uint64]types.ExitRule, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	rules, err := loadAll[types.ExitRule](filepath.Join(fs.dir, "exit_rules"))
	if err != nil {
		return nil, err
	}
	out := make(map[uint64]types.ExitRule, len(rules))
	for _, r := range rules {
		out[r.Ticket] = r
	}
	return out, nil
}

// SaveOCOPair persists an OCOPair keyed by group_id.
func (fs *FileStore) SaveOCOPair(p types.OCOPair) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return writeAtomic(filepath.Join(fs.dir, "oco_pairs", p.GroupID+".json"), p)
}

// LoadOCOPairs reloads every persisted OCO pair.
func (fs *FileStore) LoadOCOPairs() ([]types.OCOPair, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return loadAll[types.OCOPair](filepath.Join(fs.dir, "oco_pairs"))
}

// AppendEvent appends one JSON-line record to the events log. Not
// rename-atomic (the log is append-only by design): each append is a single
// write of one line, and the file is closed after every call without an
// explicit fsync.
func (fs *FileStore) AppendEvent(e types.Event) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	f, err := os.OpenFile(filepath.Join(fs.dir, "events.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = f.Write(data)
	return err
}

func loadAll[T any](dir string) ([]T, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
