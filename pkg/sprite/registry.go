// Package sprite tracks the renderer process backing each on-screen image.
// Every sprite key owns at most one live process; redrawing a key spawns the
// replacement first and then kills the previous process so the image never
// disappears in between.
package sprite

import (
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"gitlab.com/tinyland/lab/status-overlay/pkg/render"
)

// Key identifies a sprite.
type Key string

// HUD sprite keys.
const (
	Backdrop Key = "backdrop"
	Battery  Key = "battery"
	Percent  Key = "percent"
)

const digitPrefix = "digit"

// DigitKey returns the key of the i-th digit counted from the right.
func DigitKey(i int) Key {
	return Key(digitPrefix + strconv.Itoa(i))
}

// DigitIndex reports the index of a digit key.
func DigitIndex(k Key) (int, bool) {
	s, ok := strings.CutPrefix(string(k), digitPrefix)
	if !ok || s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Registry maps sprite keys to renderer processes. It is safe for concurrent
// use; draws of the same key are serialized, draws of different keys are not.
type Registry struct {
	renderer render.Renderer
	base     render.Options
	pause    time.Duration
	logger   *slog.Logger

	mu    sync.Mutex
	procs map[Key]render.Process
	locks map[Key]*sync.Mutex
}

// Options configures a Registry.
type Options struct {
	// Base supplies the display id and background for every spawn.
	Base render.Options

	// FlickerPause is slept after each spawn before the previous process for
	// the key is killed.
	FlickerPause time.Duration

	Logger *slog.Logger
}

// NewRegistry returns an empty registry drawing through renderer.
func NewRegistry(renderer render.Renderer, opts Options) *Registry {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Registry{
		renderer: renderer,
		base:     opts.Base,
		pause:    opts.FlickerPause,
		logger:   opts.Logger,
		procs:    make(map[Key]render.Process),
		locks:    make(map[Key]*sync.Mutex),
	}
}

// Show draws image at (x, y) on layer and registers it under key,
// terminating whatever was registered there before.
func (r *Registry) Show(key Key, image string, layer, x, y int) (render.Process, error) {
	opts := r.base.At(x, y)
	opts.Layer = layer
	return r.ShowWith(key, image, opts)
}

// ShowWith is Show with explicit renderer options.
func (r *Registry) ShowWith(key Key, image string, opts render.Options) (render.Process, error) {
	kl := r.keyLock(key)
	kl.Lock()
	defer kl.Unlock()

	proc, err := r.Spawn(image, opts)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	prev := r.procs[key]
	r.procs[key] = proc
	r.mu.Unlock()

	if prev != nil {
		r.terminate(key, prev)
	}
	return proc, nil
}

// Spawn draws image without registering the process. The caller owns the
// returned handle.
func (r *Registry) Spawn(image string, opts render.Options) (render.Process, error) {
	proc, err := r.renderer.Spawn(image, opts)
	if err != nil {
		return nil, err
	}
	if r.pause > 0 {
		time.Sleep(r.pause)
	}
	return proc, nil
}

// Base returns the options every spawn starts from.
func (r *Registry) Base() render.Options {
	return r.base
}

// Hide terminates the process registered under key and forgets the key.
// It reports whether the key was registered.
func (r *Registry) Hide(key Key) bool {
	kl := r.keyLock(key)
	kl.Lock()
	defer kl.Unlock()

	r.mu.Lock()
	proc, ok := r.procs[key]
	delete(r.procs, key)
	r.mu.Unlock()

	if ok {
		r.terminate(key, proc)
	}
	return ok
}

// HideAll terminates every registered process. Keys stay registered so the
// next draw replaces them in place. Returns the number of processes signalled.
func (r *Registry) HideAll() int {
	r.mu.Lock()
	snapshot := make(map[Key]render.Process, len(r.procs))
	for k, p := range r.procs {
		snapshot[k] = p
	}
	r.mu.Unlock()

	for k, p := range snapshot {
		r.terminate(k, p)
	}
	return len(snapshot)
}

// Has reports whether key is registered.
func (r *Registry) Has(key Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.procs[key]
	return ok
}

// Get returns the process registered under key.
func (r *Registry) Get(key Key) (render.Process, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.procs[key]
	return p, ok
}

// Keys returns the registered keys in sorted order.
func (r *Registry) Keys() []Key {
	r.mu.Lock()
	keys := make([]Key, 0, len(r.procs))
	for k := range r.procs {
		keys = append(keys, k)
	}
	r.mu.Unlock()

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Len returns the number of registered keys.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.procs)
}

// keyLock returns the mutex serializing draws of key.
func (r *Registry) keyLock(key Key) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[key]
	if !ok {
		l = &sync.Mutex{}
		r.locks[key] = l
	}
	return l
}

func (r *Registry) terminate(key Key, p render.Process) {
	if err := p.Terminate(); err != nil {
		r.logger.Warn("failed to terminate sprite", "key", key, "pid", p.Pid(), "err", err)
	}
}
