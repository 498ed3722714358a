package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sys/unix"
)

// counterFileName is the sidecar file holding the monotonic per-entity
// counter, stored as decimal ASCII.
const counterFileName = "_next_id.txt"

// idAllocator hands out strictly increasing positive integer ids for one
// entity. It combines an in-process mutex (cheap, covers the common case of
// a single rserv process) with an OS advisory flock on the counter file
// (covers cooperating processes on the same host).
type idAllocator struct {
	mu   sync.Mutex
	path string
}

func newIDAllocator(entityDir string) *idAllocator {
	return &idAllocator{path: filepath.Join(entityDir, counterFileName)}
}

// next reads the current counter, increments it, persists it under an
// exclusive flock, and returns the new value. Concurrent allocators
// serialise through both the mutex and the lock; correctness does not
// depend on either alone.
func (a *idAllocator) next() (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	f, err := os.OpenFile(a.path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open id counter: %w", err)
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return 0, fmt.Errorf("lock id counter: %w", err)
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	current, err := readCounter(f)
	if err != nil {
		return 0, err
	}

	next := current + 1
	if err := writeCounter(f, next); err != nil {
		return 0, err
	}
	return next, nil
}

// peek returns the current counter value without advancing it, under a
// shared flock.
func (a *idAllocator) peek() (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	f, err := os.OpenFile(a.path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open id counter: %w", err)
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_SH); err != nil {
		return 0, fmt.Errorf("lock id counter: %w", err)
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	return readCounter(f)
}

// bump advances the counter to at least id, used so a subsequent POST after
// a PUT-at-id never collides with a client-specified value.
func (a *idAllocator) bump(id int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	f, err := os.OpenFile(a.path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("open id counter: %w", err)
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("lock id counter: %w", err)
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	current, err := readCounter(f)
	if err != nil {
		return err
	}
	if id <= current {
		return nil
	}
	return writeCounter(f, id)
}

func readCounter(f *os.File) (int, error) {
	if _, err := f.Seek(0, 0); err != nil {
		return 0, err
	}
	buf := make([]byte, 32)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return 0, nil
	}
	text := strings.TrimSpace(string(buf[:n]))
	if text == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("corrupt id counter %s: %w", f.Name(), err)
	}
	return v, nil
}

func writeCounter(f *os.File, v int) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	_, err := f.WriteString(strconv.Itoa(v))
	return err
}
