// SPDX-License-Identifier: EPL-2.0

package source

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ik5/audrender/drm"
	"github.com/ik5/audrender/logger"
)

// Options are passed to extractors when a file is opened.
type Options struct {
	Drm    *drm.SessionManager
	Logger logger.Logger
}

// QueueOptions converts o into queue options.
func (o Options) QueueOptions() []QueueOption {
	return []QueueOption{WithSessionManager(o.Drm), WithLogger(o.Logger)}
}

// OpenFunc opens a file as a SampleStream.
type OpenFunc func(path string, opts Options) (SampleStream, error)

// Registry maps file extensions (without dot, lower case) to extractors.
type Registry struct {
	openers map[string]OpenFunc

	mtx *sync.Mutex
}

func NewRegistry() *Registry {
	return &Registry{
		openers: make(map[string]OpenFunc),
		mtx:     &sync.Mutex{},
	}
}

func (r *Registry) Register(ext string, open OpenFunc) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	r.openers[normalizeExt(ext)] = open
}

func (r *Registry) Get(ext string) (OpenFunc, bool) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	open, ok := r.openers[normalizeExt(ext)]
	return open, ok
}

// Extensions returns the registered extensions in sorted order.
func (r *Registry) Extensions() []string {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	exts := make([]string, 0, len(r.openers))
	for ext := range r.openers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Open picks the extractor for path by its extension.
func (r *Registry) Open(path string, opts Options) (SampleStream, error) {
	ext := filepath.Ext(path)
	open, ok := r.Get(ext)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownExtension, ext)
	}
	s, err := open(path, opts)
	if err != nil {
		return nil, err
	}
	logger.OrNoop(opts.Logger).WithComponent("source").Debug("Source opened: %s", path)
	return s, nil
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
