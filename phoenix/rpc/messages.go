// Package rpc defines the external message schema of transactions. Messages
// are RLP encoded.
package rpc

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/kysee/phoenix/phoenix/common"
)

// TransactionInput references a note to spend. Sk is only set on requests
// asking a node to build and prove a transaction.
type TransactionInput struct {
	Pos        uint64
	Sk         []byte
	Nullifier  []byte
	MerkleRoot []byte
}

// TransactionOutput carries an encoded note. Value and Blinding open the
// note commitment and are empty when not disclosed.
type TransactionOutput struct {
	Note     []byte
	Value    []byte
	Blinding []byte
}

type Transaction struct {
	Inputs         []*TransactionInput
	Outputs        []*TransactionOutput
	Fee            *TransactionOutput `rlp:"nil"`
	Crossover      *TransactionOutput `rlp:"nil"`
	ContractOutput *TransactionOutput `rlp:"nil"`
	Proofs         [][]byte
	Data           []byte
}

func (tx *Transaction) Bytes() ([]byte, error) {
	return rlp.EncodeToBytes(tx)
}

func Decode(b []byte) (*Transaction, error) {
	tx := new(Transaction)
	if err := rlp.DecodeBytes(b, tx); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidParameters, err)
	}
	return tx, nil
}
