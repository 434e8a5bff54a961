// Package wallet discovers the notes a key owns in a ledger.
package wallet

import (
	"fmt"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards/eddsa"
	"github.com/holiman/uint256"
	"github.com/kysee/phoenix/phoenix/common"
	"github.com/kysee/phoenix/phoenix/crypto"
	"github.com/kysee/phoenix/phoenix/note"
	"github.com/kysee/phoenix/phoenix/transaction"
	"github.com/rs/zerolog"
)

// Source is the part of the ledger a wallet reads.
type Source interface {
	FilterAllNotes(fn func(n *note.Note) (*note.Note, bool)) ([]*note.Note, error)
	FetchNullifier(nf common.Nullifier) (bool, error)
}

// Owned is an unspent note with its value and blinding factor.
type Owned struct {
	Note     *note.Note
	Value    *uint256.Int
	Blinding fr.Element
}

type Wallet struct {
	Address string

	sk  *eddsa.PrivateKey
	log zerolog.Logger

	mu    sync.RWMutex
	owned []*Owned
}

type Option func(*Wallet)

func WithLogger(l zerolog.Logger) Option {
	return func(w *Wallet) {
		w.log = l.With().Str("module", "wallet").Logger()
	}
}

func New(sk *eddsa.PrivateKey, opts ...Option) *Wallet {
	w := &Wallet{
		Address: note.Pub2Addr(&sk.PublicKey),
		sk:      sk,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Generate creates a wallet with a fresh key.
func Generate(opts ...Option) (*Wallet, error) {
	sk, err := crypto.NewKey()
	if err != nil {
		return nil, err
	}
	return New(sk, opts...), nil
}

func (w *Wallet) PublicKey() *eddsa.PublicKey {
	pk := w.sk.PublicKey
	return &pk
}

// Sync replaces the known notes with every unspent note of src owned by the
// wallet key and returns how many were found.
func (w *Wallet) Sync(src Source) (int, error) {
	k := note.SplitSecret(w.sk)

	mine, err := src.FilterAllNotes(func(n *note.Note) (*note.Note, bool) {
		return n, n.IsOwnedBy(&w.sk.PublicKey)
	})
	if err != nil {
		return 0, err
	}

	found := make([]*Owned, 0, len(mine))
	for _, n := range mine {
		value, blinding, err := n.Decrypt(w.sk)
		if err != nil {
			w.log.Debug().Uint64("idx", uint64(n.Idx())).Err(err).Msg("skip note")
			continue
		}
		found = append(found, &Owned{Note: n, Value: value, Blinding: blinding})
	}

	// the notes region is released before nullifiers are checked
	unspent := found[:0]
	for _, o := range found {
		spent, err := src.FetchNullifier(o.Note.Nullifier(k))
		if err != nil {
			return 0, err
		}
		if spent {
			w.log.Debug().Uint64("idx", uint64(o.Note.Idx())).Msg("note already spent")
			continue
		}
		unspent = append(unspent, o)
	}

	w.mu.Lock()
	w.owned = unspent
	w.mu.Unlock()
	return len(unspent), nil
}

// Balance is the sum of the values of the unspent notes.
func (w *Wallet) Balance() *uint256.Int {
	w.mu.RLock()
	defer w.mu.RUnlock()

	ret := uint256.NewInt(0)
	for _, o := range w.owned {
		ret.Add(ret, o.Value)
	}
	return ret
}

// Spendable returns the unspent notes found by the last Sync in index order.
func (w *Wallet) Spendable() []*Owned {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]*Owned(nil), w.owned...)
}

// Input builds a transaction input spending o, taking the membership
// opening from fetcher.
func (w *Wallet) Input(fetcher transaction.NoteFetcher, o *Owned) (*transaction.Item, error) {
	opening, err := fetcher.Opening(o.Note.Idx())
	if err != nil {
		return nil, fmt.Errorf("wallet: opening of note %d: %w", o.Note.Idx(), err)
	}
	return transaction.NewInput(o.Note, opening, w.sk)
}
