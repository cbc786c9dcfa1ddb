// SPDX-License-Identifier: EPL-2.0

package renderer

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ik5/audrender/decoder"
	"github.com/ik5/audrender/drm"
	"github.com/ik5/audrender/media"
)

const registryName = "auto"

// Registry holds decoder families by name.
//
// A Registry is itself a DecoderFamily that dispatches every format to the
// first registered family handling it, so one renderer can follow a stream
// whose format moves between codecs.
type Registry struct {
	families map[string]DecoderFamily
	order    []string

	mtx *sync.Mutex
}

func NewRegistry() *Registry {
	return &Registry{
		families: make(map[string]DecoderFamily),
		mtx:      &sync.Mutex{},
	}
}

// Register adds f under its name, replacing a family of the same name.
// Families are consulted by ForFormat in registration order.
func (r *Registry) Register(f DecoderFamily) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	name := f.Name()
	if _, ok := r.families[name]; !ok {
		r.order = append(r.order, name)
	}
	r.families[name] = f
}

func (r *Registry) Get(name string) (DecoderFamily, bool) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	f, ok := r.families[name]
	return f, ok
}

// Names returns the registered family names, sorted.
func (r *Registry) Names() []string {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	names := append([]string(nil), r.order...)
	sort.Strings(names)
	return names
}

// ForFormat returns the first family that handles f. When none does, the
// error wraps ErrNoFamily and reports the best support level seen.
func (r *Registry) ForFormat(f *media.Format) (DecoderFamily, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	best := FormatUnsupportedType
	for _, name := range r.order {
		fam := r.families[name]
		support := fam.SupportsFormat(f)
		if support == FormatHandled {
			return fam, nil
		}
		if support > best {
			best = support
		}
	}

	return nil, fmt.Errorf("%w: %s (%s)", ErrNoFamily, f, best)
}

// Name reports the dispatching family name.
func (r *Registry) Name() string { return registryName }

// SupportsFormat returns the best support level of the registered families.
func (r *Registry) SupportsFormat(f *media.Format) FormatSupport {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	best := FormatUnsupportedType
	for _, name := range r.order {
		best = max(best, r.families[name].SupportsFormat(f))
	}
	return best
}

func (r *Registry) CreateDecoder(f *media.Format, crypto drm.CryptoContext) (decoder.Decoder, error) {
	fam, err := r.ForFormat(f)
	if err != nil {
		return nil, err
	}
	d, err := fam.CreateDecoder(f, crypto)
	if err != nil {
		return nil, err
	}
	return &dispatched{Decoder: d, family: fam}, nil
}

func (r *Registry) OutputFormat(d decoder.Decoder) *media.Format {
	if dd, ok := d.(*dispatched); ok {
		return dd.family.OutputFormat(dd.Decoder)
	}
	return nil
}

// CanKeepCodec keeps the decoder only when both formats go to the same family
// and that family can keep it.
func (r *Registry) CanKeepCodec(old, next *media.Format) bool {
	oldFam, err := r.ForFormat(old)
	if err != nil {
		return false
	}
	nextFam, err := r.ForFormat(next)
	if err != nil || oldFam.Name() != nextFam.Name() {
		return false
	}
	return oldFam.CanKeepCodec(old, next)
}

// dispatched remembers which family created a decoder.
type dispatched struct {
	decoder.Decoder
	family DecoderFamily
}
