package engine

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/nimbusnet/rugengine/errors"
	"github.com/nimbusnet/rugengine/logger"
)

// DirectoryDebugStore treats a filesystem directory as the debug store: one
// file per debugged tenant or router, named by id, whose contents are the
// reason. A global flag is a file literally named "global". This lets an
// operator toggle debug mode by dropping a file, independent of any COMMAND
// event, matching ignored_router_directory from the configuration surface.
type DirectoryDebugStore struct {
	dir string

	mu      sync.RWMutex
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewDirectoryDebugStore creates the directory if missing and returns a
// store backed by it. Call Watch to pick up out-of-band file changes.
func NewDirectoryDebugStore(dir string) (*DirectoryDebugStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create debug directory %s", dir)
	}
	return &DirectoryDebugStore{dir: dir}, nil
}

// Watch starts an fsnotify watch on the directory so external changes are
// picked up without restarting the process. It is optional: callers that
// only dispatch COMMAND events for debug toggling need not call it.
func (s *DirectoryDebugStore) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create debug directory watcher")
	}
	if err := w.Add(s.dir); err != nil {
		w.Close()
		return errors.Wrapf(err, "failed to watch debug directory %s", s.dir)
	}

	s.mu.Lock()
	s.watcher = w
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		for {
			select {
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				logger.Debugw("debug directory change observed", "file", event.Name, "op", event.Op.String())
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warnw("debug directory watcher error", "error", err)
			case <-s.done:
				return
			}
		}
	}()

	return nil
}

// Close stops the watcher, if one is running.
func (s *DirectoryDebugStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher == nil {
		return nil
	}
	close(s.done)
	err := s.watcher.Close()
	s.watcher = nil
	return err
}

func (s *DirectoryDebugStore) read(name string) (bool, string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if os.IsNotExist(err) {
		return false, "", nil
	}
	if err != nil {
		return false, "", errors.Wrapf(err, "failed to read debug file %s", name)
	}
	return true, string(data), nil
}

func (s *DirectoryDebugStore) write(name, reason string) error {
	return errors.Wrapf(os.WriteFile(filepath.Join(s.dir, name), []byte(reason), 0644), "failed to write debug file %s", name)
}

func (s *DirectoryDebugStore) remove(name string) error {
	err := os.Remove(filepath.Join(s.dir, name))
	if os.IsNotExist(err) {
		return nil
	}
	return errors.Wrapf(err, "failed to remove debug file %s", name)
}

func (s *DirectoryDebugStore) GlobalDebug() (bool, string, error) {
	return s.read("global")
}

func (s *DirectoryDebugStore) TenantInDebug(tenantID uuid.UUID) (bool, string, error) {
	return s.read(tenantID.String())
}

func (s *DirectoryDebugStore) RouterInDebug(routerID uuid.UUID) (bool, string, error) {
	return s.read(routerID.String())
}

func (s *DirectoryDebugStore) TenantsInDebug() ([]DebugEntry, error) {
	return s.listEntries()
}

func (s *DirectoryDebugStore) RoutersInDebug() ([]DebugEntry, error) {
	return s.listEntries()
}

// listEntries returns every id-named file in the directory. Both tenant and
// router flags live in the same directory namespace, distinguished only by
// which id space the caller looks them up in.
func (s *DirectoryDebugStore) listEntries() ([]DebugEntry, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list debug directory %s", s.dir)
	}
	var result []DebugEntry
	for _, e := range entries {
		if e.IsDir() || e.Name() == "global" {
			continue
		}
		id, err := uuid.Parse(e.Name())
		if err != nil {
			continue
		}
		_, reason, err := s.read(e.Name())
		if err != nil {
			continue
		}
		result = append(result, DebugEntry{ID: id, Reason: reason})
	}
	return result, nil
}

func (s *DirectoryDebugStore) EnableGlobalDebug(reason string) error {
	return s.write("global", reason)
}

func (s *DirectoryDebugStore) DisableGlobalDebug() error {
	return s.remove("global")
}

func (s *DirectoryDebugStore) EnableTenantDebug(tenantID uuid.UUID, reason string) error {
	return s.write(tenantID.String(), reason)
}

func (s *DirectoryDebugStore) DisableTenantDebug(tenantID uuid.UUID) error {
	return s.remove(tenantID.String())
}

func (s *DirectoryDebugStore) EnableRouterDebug(routerID uuid.UUID, reason string) error {
	return s.write(routerID.String(), reason)
}

func (s *DirectoryDebugStore) DisableRouterDebug(routerID uuid.UUID) error {
	return s.remove(routerID.String())
}
