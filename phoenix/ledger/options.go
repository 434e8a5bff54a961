package ledger

import (
	"github.com/kysee/phoenix/phoenix/merkle"
	"github.com/rs/zerolog"
)

type Option func(*Db)

func WithLogger(l zerolog.Logger) Option {
	return func(db *Db) {
		db.log = l.With().Str("module", "ledger").Logger()
	}
}

// WithCommitmentTree makes the ledger push every stored note commitment to
// tree and serve roots and openings from it.
func WithCommitmentTree(tree *merkle.Tree) Option {
	return func(db *Db) {
		db.tree = tree
	}
}

// WithBackend persists every commit through b. State is loaded from b when
// the ledger is created.
func WithBackend(b Backend) Option {
	return func(db *Db) {
		db.backend = b
	}
}
