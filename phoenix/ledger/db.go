// Package ledger stores unspent notes by index and the set of spent
// nullifiers.
package ledger

import (
	"fmt"
	"math"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/hashicorp/go-multierror"
	"github.com/kysee/phoenix/phoenix/common"
	"github.com/kysee/phoenix/phoenix/merkle"
	"github.com/kysee/phoenix/phoenix/note"
	"github.com/kysee/phoenix/phoenix/transaction"
	"github.com/rs/zerolog"
)

// Batch is a set of writes applied as a unit.
type Batch struct {
	// Notes are stamped with their index.
	Notes      []*note.Note
	Nullifiers []common.Nullifier
}

// Backend persists committed batches.
type Backend interface {
	Load() ([]*note.Note, []common.Nullifier, error)
	Commit(b *Batch) error
	Close() error
}

// Db holds the notes and the nullifiers in two independent regions. A call
// that finds a region held fails with common.ErrLockContention instead of
// waiting.
type Db struct {
	notesMu sync.Mutex
	notes   map[common.Idx]*note.Note

	nullifiersMu sync.Mutex
	nullifiers   map[common.Nullifier]struct{}

	tree    *merkle.Tree
	backend Backend
	log     zerolog.Logger
}

var _ transaction.NoteFetcher = (*Db)(nil)

func New(opts ...Option) (*Db, error) {
	db := &Db{
		notes:      make(map[common.Idx]*note.Note),
		nullifiers: make(map[common.Nullifier]struct{}),
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(db)
	}

	if db.backend != nil {
		notes, nullifiers, err := db.backend.Load()
		if err != nil {
			return nil, fmt.Errorf("ledger: load backend: %w", err)
		}
		for i, n := range notes {
			if n.Idx() != common.Idx(i) {
				return nil, fmt.Errorf("ledger: note index gap at %d", i)
			}
		}
		db.apply(&Batch{Notes: notes, Nullifiers: nullifiers})
		db.log.Info().Int("notes", len(notes)).Int("nullifiers", len(nullifiers)).Msg("ledger loaded")
	}
	return db, nil
}

func (db *Db) lockNotes() error {
	if !db.notesMu.TryLock() {
		db.log.Debug().Msg("notes region contended")
		return common.ErrLockContention
	}
	return nil
}

func (db *Db) lockNullifiers() error {
	if !db.nullifiersMu.TryLock() {
		db.log.Debug().Msg("nullifiers region contended")
		return common.ErrLockContention
	}
	return nil
}

// lockAll acquires both regions, notes first.
func (db *Db) lockAll() (func(), error) {
	if err := db.lockNotes(); err != nil {
		return nil, err
	}
	if err := db.lockNullifiers(); err != nil {
		db.notesMu.Unlock()
		return nil, err
	}
	return func() {
		db.nullifiersMu.Unlock()
		db.notesMu.Unlock()
	}, nil
}

// nextIdx must be called with the notes region held.
func (db *Db) nextIdx(pending int) common.Idx {
	n := uint64(len(db.notes)) + uint64(pending)
	if n == math.MaxUint64 {
		db.log.Fatal().Msg("note index space exhausted")
	}
	return common.Idx(n)
}

// commit persists b and then applies it. Regions touched by b must be held.
func (db *Db) commit(b *Batch) error {
	if db.backend != nil {
		if err := db.backend.Commit(b); err != nil {
			return fmt.Errorf("ledger: commit: %w", err)
		}
	}
	db.apply(b)
	return nil
}

func (db *Db) apply(b *Batch) {
	for _, n := range b.Notes {
		db.notes[n.Idx()] = n
		if db.tree != nil {
			db.tree.Push(n.Commitment())
		}
	}
	for _, nf := range b.Nullifiers {
		db.nullifiers[nf] = struct{}{}
	}
}

// StoreTransactionItem spends an input, inserting its validated nullifier,
// or stores an output note and returns its index. ok is false for inputs.
func (db *Db) StoreTransactionItem(it *transaction.Item) (common.Idx, bool, error) {
	if it.Utxo() == transaction.Output {
		idx, err := db.StoreUnspentNote(it.Note())
		return idx, err == nil, err
	}

	nf := it.Nullifier()
	if err := it.Note().ValidateNullifier(nf); err != nil {
		return 0, false, err
	}
	if err := db.lockNullifiers(); err != nil {
		return 0, false, err
	}
	defer db.nullifiersMu.Unlock()

	return 0, false, db.commit(&Batch{Nullifiers: []common.Nullifier{nf}})
}

// StoreUnspentNote stamps n with the next sequential index and stores a copy.
func (db *Db) StoreUnspentNote(n *note.Note) (common.Idx, error) {
	if err := db.lockNotes(); err != nil {
		return 0, err
	}
	defer db.notesMu.Unlock()

	n = n.Clone()
	n.SetIdx(db.nextIdx(0))
	if err := db.commit(&Batch{Notes: []*note.Note{n}}); err != nil {
		return 0, err
	}
	return n.Idx(), nil
}

// validate checks everything stage needs without touching the store.
func validate(tx *transaction.Transaction) error {
	if tx == nil {
		return fmt.Errorf("%w: nil transaction", common.ErrInvalidParameters)
	}
	if err := validateFee(tx.Fee()); err != nil {
		return err
	}
	for _, it := range tx.Inputs() {
		if err := it.Note().ValidateNullifier(it.Nullifier()); err != nil {
			return err
		}
	}
	return nil
}

// validateFee requires a transparent output, the only fee that yields a
// stored note with a public value.
func validateFee(fee *transaction.Item) error {
	if fee == nil || fee.Utxo() != transaction.Output || fee.Note().Variant() != note.Transparent {
		return common.ErrFeeOutput
	}
	return nil
}

// stage appends the effects of tx to b: the fee note first, then each item
// in declaration order. Both regions must be held.
func (db *Db) stage(tx *transaction.Transaction, b *Batch) []common.Idx {
	var idxs []common.Idx
	add := func(n *note.Note) {
		n.SetIdx(db.nextIdx(len(b.Notes)))
		b.Notes = append(b.Notes, n)
		idxs = append(idxs, n.Idx())
	}

	add(tx.Fee().Note())
	for _, it := range tx.Items() {
		if it.Utxo() == transaction.Input {
			b.Nullifiers = append(b.Nullifiers, it.Nullifier())
			continue
		}
		add(it.Note())
	}
	return idxs
}

// Store applies the effects of tx as a unit and returns the indices of the
// stored notes, the fee first. Nothing is stored on error.
func (db *Db) Store(tx *transaction.Transaction) ([]common.Idx, error) {
	if err := validate(tx); err != nil {
		return nil, err
	}
	db.log.Trace().Msgf("Storing tx %s", tx)

	unlock, err := db.lockAll()
	if err != nil {
		return nil, err
	}
	defer unlock()

	var b Batch
	idxs := db.stage(tx, &b)
	if err := db.commit(&b); err != nil {
		return nil, err
	}
	db.log.Debug().Int("notes", len(b.Notes)).Int("nullifiers", len(b.Nullifiers)).Msg("stored tx")
	return idxs, nil
}

// StoreBulkTransactions stores txs as a single unit. Validation failures of
// every transaction are reported together.
func (db *Db) StoreBulkTransactions(txs []*transaction.Transaction) ([]common.Idx, error) {
	var result *multierror.Error
	for i, tx := range txs {
		if err := validate(tx); err != nil {
			result = multierror.Append(result, fmt.Errorf("tx %d: %w", i, err))
			continue
		}
		db.log.Trace().Msgf("Storing tx %s", tx)
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}

	unlock, err := db.lockAll()
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		b    Batch
		idxs []common.Idx
	)
	for _, tx := range txs {
		idxs = append(idxs, db.stage(tx, &b)...)
	}
	if err := db.commit(&b); err != nil {
		return nil, err
	}
	return idxs, nil
}

// FetchNote returns a copy of the note at idx.
func (db *Db) FetchNote(idx common.Idx) (*note.Note, error) {
	if err := db.lockNotes(); err != nil {
		return nil, err
	}
	defer db.notesMu.Unlock()

	n, ok := db.notes[idx]
	if !ok {
		return nil, fmt.Errorf("%w: note %d", common.ErrNotFound, idx)
	}
	return n.Clone(), nil
}

// FetchNullifier reports whether nf has been spent.
func (db *Db) FetchNullifier(nf common.Nullifier) (bool, error) {
	if err := db.lockNullifiers(); err != nil {
		return false, err
	}
	defer db.nullifiersMu.Unlock()

	_, ok := db.nullifiers[nf]
	return ok, nil
}

// FilterAllNotes calls fn on a copy of every note in index order and
// collects what it keeps. It is O(n).
func (db *Db) FilterAllNotes(fn func(n *note.Note) (*note.Note, bool)) ([]*note.Note, error) {
	if err := db.lockNotes(); err != nil {
		return nil, err
	}
	defer db.notesMu.Unlock()

	var out []*note.Note
	for i := 0; i < len(db.notes); i++ {
		if kept, ok := fn(db.notes[common.Idx(i)].Clone()); ok {
			out = append(out, kept)
		}
	}
	return out, nil
}

// Len returns the number of stored notes.
func (db *Db) Len() (int, error) {
	if err := db.lockNotes(); err != nil {
		return 0, err
	}
	defer db.notesMu.Unlock()
	return len(db.notes), nil
}

// Root returns the commitment tree root, zero without a tree.
func (db *Db) Root() fr.Element {
	if db.tree == nil {
		return fr.Element{}
	}
	return db.tree.Root()
}

// Opening returns the membership proof of the note at idx. It is nil when
// the ledger has no commitment tree; inputs then carry the zero root, which
// is what Root reports.
func (db *Db) Opening(idx common.Idx) (*merkle.Opening, error) {
	if db.tree == nil {
		return nil, nil
	}
	return db.tree.Opening(uint64(idx))
}

func (db *Db) Close() error {
	if db.backend == nil {
		return nil
	}
	return db.backend.Close()
}
