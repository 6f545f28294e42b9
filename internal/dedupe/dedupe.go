package dedupe

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospector/internal/model"
)

// ErrNoIdentity is returned when a lead carries no usable identity
// fields. It is not a store failure and callers may skip the lead.
var ErrNoIdentity = eris.New("dedupe: lead has no usable identity fields")

// FingerprintStore persists fingerprints across runs. RecordFingerprint
// must be atomic: when two callers race on the same fingerprint, exactly
// one observes admitted=true.
type FingerprintStore interface {
	RecordFingerprint(ctx context.Context, fingerprint string) (admitted bool, err error)
}

// Deduper decides whether a lead is new. It combines an in-run guard with
// the persistent store, so duplicates inside a single run never touch the
// database twice.
type Deduper struct {
	store FingerprintStore
	fp    *Fingerprinter

	mu   sync.Mutex
	seen map[string]struct{}
}

// New creates a Deduper backed by the given store.
func New(store FingerprintStore, fp *Fingerprinter) *Deduper {
	return &Deduper{
		store: store,
		fp:    fp,
		seen:  make(map[string]struct{}),
	}
}

// Admit computes the lead's identity components and reports whether the
// lead is new. The strongest component is written back onto the lead as
// its fingerprint; all components are registered as duplicate guards, so
// a name-only record still collides with an earlier record that carried
// the same name alongside a phone or website. A store error is returned
// wrapped; callers treat it as fatal because continuing without dedup
// would poison the dataset.
func (d *Deduper) Admit(ctx context.Context, lead *model.Lead) (bool, error) {
	keys := d.fp.Components(lead)
	if len(keys) == 0 {
		return false, ErrNoIdentity
	}
	lead.Fingerprint = keys[0]

	d.mu.Lock()
	dup := false
	for _, k := range keys {
		if _, ok := d.seen[k]; ok {
			dup = true
			break
		}
	}
	if !dup {
		for _, k := range keys {
			d.seen[k] = struct{}{}
		}
	}
	d.mu.Unlock()
	if dup {
		return false, nil
	}

	admitted := true
	for _, k := range keys {
		ok, err := d.store.RecordFingerprint(ctx, k)
		if err != nil {
			return false, eris.Wrap(err, "dedupe: record fingerprint")
		}
		if !ok {
			admitted = false
		}
	}
	return admitted, nil
}
