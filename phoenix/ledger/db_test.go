package ledger

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/holiman/uint256"
	"github.com/kysee/phoenix/phoenix/common"
	"github.com/kysee/phoenix/phoenix/crypto"
	"github.com/kysee/phoenix/phoenix/merkle"
	"github.com/kysee/phoenix/phoenix/note"
	"github.com/kysee/phoenix/phoenix/transaction"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func newNote(t require.TestingT, value uint64) *note.Note {
	sk, err := crypto.NewKey()
	require.NoError(t, err)
	n, _, err := note.NewTransparent(&sk.PublicKey, uint256.NewInt(value))
	require.NoError(t, err)
	return n
}

func spend(t *testing.T) *transaction.Item {
	t.Helper()
	sk, err := crypto.NewKey()
	require.NoError(t, err)
	n, _, err := note.NewTransparent(&sk.PublicKey, uint256.NewInt(50))
	require.NoError(t, err)
	it, err := transaction.NewInput(n, nil, sk)
	require.NoError(t, err)
	return it
}

func output(t *testing.T, value uint64) *transaction.Item {
	t.Helper()
	sk, err := crypto.NewKey()
	require.NoError(t, err)
	it, err := transaction.NewObfuscatedOutput(&sk.PublicKey, uint256.NewInt(value))
	require.NoError(t, err)
	return it
}

func txWith(t *testing.T, outputs ...uint64) *transaction.Transaction {
	t.Helper()
	tx := transaction.New()
	require.NoError(t, tx.PushInput(spend(t)))
	for _, v := range outputs {
		require.NoError(t, tx.PushOutput(output(t, v)))
	}
	return tx
}

func TestStoreUnspentNoteMonotonic(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		db, err := New()
		require.NoError(rt, err)

		count := rapid.IntRange(1, 8).Draw(rt, "count")
		for i := 0; i < count; i++ {
			idx, err := db.StoreUnspentNote(newNote(rt, uint64(i)))
			require.NoError(rt, err)
			require.Equal(rt, common.Idx(i), idx)

			if rapid.Bool().Draw(rt, "fetch") {
				n, err := db.FetchNote(idx)
				require.NoError(rt, err)
				require.Equal(rt, idx, n.Idx())
			}
		}
		l, err := db.Len()
		require.NoError(rt, err)
		require.Equal(rt, count, l)
	})
}

func TestStoreTransactionItem(t *testing.T) {
	db, err := New()
	require.NoError(t, err)

	idx, ok, err := db.StoreTransactionItem(output(t, 3))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, common.Idx(0), idx)

	in := spend(t)
	_, ok, err = db.StoreTransactionItem(in)
	require.NoError(t, err)
	require.False(t, ok)

	spent, err := db.FetchNullifier(in.Nullifier())
	require.NoError(t, err)
	require.True(t, spent)

	spent, err = db.FetchNullifier(common.Nullifier{1})
	require.NoError(t, err)
	require.False(t, spent)
}

func TestDoubleSpendIsASet(t *testing.T) {
	db, err := New()
	require.NoError(t, err)

	nf := common.Nullifier{7}
	first := transaction.OpaqueInput(nf, merkle.NewTree().Root())
	second := transaction.OpaqueInput(nf, merkle.NewTree().Root())

	_, _, err = db.StoreTransactionItem(first)
	require.NoError(t, err)

	spent, err := db.FetchNullifier(second.Nullifier())
	require.NoError(t, err)
	require.True(t, spent, "collision is visible before the second store")

	_, _, err = db.StoreTransactionItem(second)
	require.NoError(t, err)
	require.Len(t, db.nullifiers, 1)
}

func TestStoreOrdersFeeFirst(t *testing.T) {
	db, err := New()
	require.NoError(t, err)
	_, err = db.StoreUnspentNote(newNote(t, 1))
	require.NoError(t, err)

	tx := txWith(t, 10, 20)
	idxs, err := db.Store(tx)
	require.NoError(t, err)
	require.Equal(t, []common.Idx{1, 2, 3}, idxs)

	fee, err := db.FetchNote(1)
	require.NoError(t, err)
	hf, hn := tx.Fee().Hash(), fee.Hash()
	require.True(t, hf.Equal(&hn))

	for i, out := range tx.Outputs() {
		n, err := db.FetchNote(common.Idx(2 + i))
		require.NoError(t, err)
		ho, hs := out.Hash(), n.Hash()
		require.True(t, ho.Equal(&hs))
	}

	spent, err := db.FetchNullifier(tx.Inputs()[0].Nullifier())
	require.NoError(t, err)
	require.True(t, spent)
}

func TestFeeBoundary(t *testing.T) {
	require.ErrorIs(t, validateFee(output(t, 1)), common.ErrFeeOutput)
	require.ErrorIs(t, validateFee(spend(t)), common.ErrFeeOutput)
	require.ErrorIs(t, validateFee(nil), common.ErrFeeOutput)
	require.NoError(t, validateFee(transaction.DefaultOutput()))

	// a hidden fee cannot be attached, so a stored transaction always yields
	// the fee note first
	tx := txWith(t, 10)
	require.ErrorIs(t, tx.SetFee(output(t, 1)), common.ErrFeeOutput)

	db, err := New()
	require.NoError(t, err)
	idxs, err := db.Store(tx)
	require.NoError(t, err)
	fee, err := db.FetchNote(idxs[0])
	require.NoError(t, err)
	require.Equal(t, note.Transparent, fee.Variant())

	_, err = db.Store(nil)
	require.ErrorIs(t, err, common.ErrInvalidParameters)
	l, err := db.Len()
	require.NoError(t, err)
	require.Equal(t, len(idxs), l)
}

func TestLockContention(t *testing.T) {
	db, err := New()
	require.NoError(t, err)

	db.notesMu.Lock()
	_, err = db.StoreUnspentNote(newNote(t, 1))
	require.ErrorIs(t, err, common.ErrLockContention)
	_, err = db.FetchNote(0)
	require.ErrorIs(t, err, common.ErrLockContention)
	_, err = db.FilterAllNotes(func(n *note.Note) (*note.Note, bool) { return n, true })
	require.ErrorIs(t, err, common.ErrLockContention)

	// the nullifier region is independent
	_, err = db.FetchNullifier(common.Nullifier{1})
	require.NoError(t, err)
	db.notesMu.Unlock()

	tx := txWith(t, 5)
	db.nullifiersMu.Lock()
	_, err = db.Store(tx)
	require.ErrorIs(t, err, common.ErrLockContention)
	db.nullifiersMu.Unlock()

	l, err := db.Len()
	require.NoError(t, err)
	require.Zero(t, l, "a contended store leaves no notes behind")

	_, err = db.Store(tx)
	require.NoError(t, err)
}

type failingBackend struct{ commits int }

func (f *failingBackend) Load() ([]*note.Note, []common.Nullifier, error) { return nil, nil, nil }
func (f *failingBackend) Commit(*Batch) error {
	f.commits++
	return errors.New("disk full")
}
func (f *failingBackend) Close() error { return nil }

func TestStoreIsAtomicOnBackendFailure(t *testing.T) {
	backend := &failingBackend{}
	db, err := New(WithBackend(backend))
	require.NoError(t, err)

	tx := txWith(t, 5, 6)
	_, err = db.Store(tx)
	require.Error(t, err)
	require.Equal(t, 1, backend.commits)

	l, err := db.Len()
	require.NoError(t, err)
	require.Zero(t, l)
	spent, err := db.FetchNullifier(tx.Inputs()[0].Nullifier())
	require.NoError(t, err)
	require.False(t, spent)
}

func TestStoreBulkTransactions(t *testing.T) {
	db, err := New()
	require.NoError(t, err)

	txs := []*transaction.Transaction{txWith(t, 1), txWith(t, 2, 3)}
	idxs, err := db.StoreBulkTransactions(txs)
	require.NoError(t, err)
	require.Equal(t, []common.Idx{0, 1, 2, 3, 4}, idxs)

	_, err = db.StoreBulkTransactions([]*transaction.Transaction{txWith(t, 9), nil, nil})
	require.ErrorIs(t, err, common.ErrInvalidParameters)
	require.Contains(t, err.Error(), "tx 1")
	require.Contains(t, err.Error(), "tx 2")

	l, err := db.Len()
	require.NoError(t, err)
	require.Equal(t, 5, l)
}

func TestFilterAllNotesOrdered(t *testing.T) {
	db, err := New()
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		_, err := db.StoreUnspentNote(newNote(t, uint64(i)))
		require.NoError(t, err)
	}

	even, err := db.FilterAllNotes(func(n *note.Note) (*note.Note, bool) {
		return n, n.Value().Uint64()%2 == 0
	})
	require.NoError(t, err)
	require.Len(t, even, 3)
	for i, n := range even {
		require.Equal(t, common.Idx(2*i), n.Idx())
	}

	_, err = db.FetchNote(6)
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestCommitmentTree(t *testing.T) {
	db, err := New()
	require.NoError(t, err)
	root := db.Root()
	require.True(t, root.IsZero())
	o, err := db.Opening(0)
	require.NoError(t, err)
	require.Nil(t, o)

	tree := merkle.NewTree()
	db, err = New(WithCommitmentTree(tree))
	require.NoError(t, err)

	idxs, err := db.Store(txWith(t, 4))
	require.NoError(t, err)
	require.Equal(t, 2, tree.Len())

	root = db.Root()
	for _, idx := range idxs {
		o, err := db.Opening(idx)
		require.NoError(t, err)
		require.True(t, o.Verify())
		got := o.RootScalar()
		require.True(t, got.Equal(&root))

		n, err := db.FetchNote(idx)
		require.NoError(t, err)
		leaf, err := o.Leaf()
		require.NoError(t, err)
		c := n.Commitment()
		require.True(t, leaf.Equal(&c))
	}
}

func TestBoltBackendReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger", "phoenix.db")

	backend, err := OpenBoltBackend(path)
	require.NoError(t, err)
	db, err := New(WithBackend(backend))
	require.NoError(t, err)

	tx := txWith(t, 8, 9)
	idxs, err := db.Store(tx)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	backend, err = OpenBoltBackend(path)
	require.NoError(t, err)
	tree := merkle.NewTree()
	db, err = New(WithBackend(backend), WithCommitmentTree(tree))
	require.NoError(t, err)
	defer db.Close()

	l, err := db.Len()
	require.NoError(t, err)
	require.Equal(t, len(idxs), l)
	require.Equal(t, len(idxs), tree.Len())

	for i, out := range tx.Outputs() {
		n, err := db.FetchNote(idxs[1+i])
		require.NoError(t, err)
		ho, hs := out.Hash(), n.Hash()
		require.True(t, ho.Equal(&hs))
	}
	spent, err := db.FetchNullifier(tx.Inputs()[0].Nullifier())
	require.NoError(t, err)
	require.True(t, spent)

	idx, err := db.StoreUnspentNote(newNote(t, 1))
	require.NoError(t, err)
	require.Equal(t, common.Idx(len(idxs)), idx, "indices continue after reload")
}

func TestRoundTripThroughLedger(t *testing.T) {
	// spending a stored note by position through the rpc path
	db, err := New(WithCommitmentTree(merkle.NewTree()))
	require.NoError(t, err)

	sk, err := crypto.NewKey()
	require.NoError(t, err)
	n, _, err := note.NewObfuscated(&sk.PublicKey, uint256.NewInt(12))
	require.NoError(t, err)
	idx, err := db.StoreUnspentNote(n)
	require.NoError(t, err)

	stored, err := db.FetchNote(idx)
	require.NoError(t, err)
	opening, err := db.Opening(idx)
	require.NoError(t, err)
	it, err := transaction.NewInput(stored, opening, sk)
	require.NoError(t, err)

	root := db.Root()
	got := it.MerkleRoot()
	require.True(t, got.Equal(&root))
}
