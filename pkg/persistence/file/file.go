// Package file provides file-based persistence for workflows, queued events
// and run logs. Each record is one JSON file under a per-collection
// directory.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dukex/shopflow/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root         string
	workflowRepo *WorkflowRepository
	queueRepo    *QueueRepository
	logRepo      *LogRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:         cleanRoot,
		workflowRepo: NewWorkflowRepository(cleanRoot),
		queueRepo:    NewQueueRepository(cleanRoot),
		logRepo:      NewLogRepository(cleanRoot),
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return fp.workflowRepo
}

func (fp *Persistence) QueueRepository() persistence.QueueRepository {
	return fp.queueRepo
}

func (fp *Persistence) LogRepository() persistence.LogRepository {
	return fp.logRepo
}

// collection reads and writes one JSON file per record. Callers serialize
// read-modify-write sequences with mu.
type collection[T any] struct {
	dir string
	mu  sync.Mutex
}

func newCollection[T any](root, name string) *collection[T] {
	return &collection[T]{dir: path.Join(root, name)}
}

func (c *collection[T]) file(id string) string {
	return filepath.Clean(path.Join(c.dir, filepath.Base(id)+".json"))
}

// load returns nil without error when the record does not exist.
func (c *collection[T]) load(id string) (*T, error) {
	body, err := os.ReadFile(c.file(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to read %s: %w", id, err)
	}

	var record T

	err = json.Unmarshal(body, &record)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", id, err)
	}

	return &record, nil
}

func (c *collection[T]) all() ([]*T, error) {
	jsonFiles, err := fs.Glob(os.DirFS(c.dir), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", c.dir, err)
	}

	records := make([]*T, 0, len(jsonFiles))

	for _, name := range jsonFiles {
		record, err := c.load(strings.TrimSuffix(name, ".json"))
		if err != nil {
			return nil, err
		}

		if record != nil {
			records = append(records, record)
		}
	}

	return records, nil
}

func (c *collection[T]) write(id string, record *T) error {
	err := os.MkdirAll(c.dir, 0750)
	if err != nil {
		return fmt.Errorf("failed to create %s directory: %w", c.dir, err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", id, err)
	}

	tmp := c.file(id) + ".tmp"

	err = os.WriteFile(tmp, data, 0600)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", id, err)
	}

	return os.Rename(tmp, c.file(id))
}

// remove reports whether a record was deleted.
func (c *collection[T]) remove(id string) (bool, error) {
	err := os.Remove(c.file(id))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("failed to delete %s: %w", id, err)
	}

	return true, nil
}

// removeWhere deletes every record matching match and returns the count.
func (c *collection[T]) removeWhere(id func(*T) string, match func(*T) bool) (int, error) {
	records, err := c.all()
	if err != nil {
		return 0, err
	}

	deleted := 0

	for _, record := range records {
		if !match(record) {
			continue
		}

		ok, err := c.remove(id(record))
		if err != nil {
			return deleted, err
		}

		if ok {
			deleted++
		}
	}

	return deleted, nil
}
