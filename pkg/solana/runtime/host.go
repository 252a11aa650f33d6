package runtime

import (
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
)

// Rent parameters of the default cluster configuration.
const (
	accountStorageOverhead = 128
	lamportsPerByteYear    = 3480
	exemptionThreshold     = 2
)

// AccountInfo is the view of one account handed to a program. Programs
// mutate Data in place; the host decides whether the mutation commits.
type AccountInfo struct {
	Key        solana.PublicKey
	Owner      solana.PublicKey
	Lamports   uint64
	Data       []byte
	IsSigner   bool
	IsWritable bool
}

// DataIsEmpty reports whether the account holds no data yet.
func (a *AccountInfo) DataIsEmpty() bool {
	return len(a.Data) == 0
}

func (a *AccountInfo) clone() *AccountInfo {
	c := *a
	if a.Data != nil {
		c.Data = append([]byte(nil), a.Data...)
	}
	return &c
}

// Seeds are the inputs of one derived signing capability: the namespace
// seeds followed by the single bump byte.
type Seeds [][]byte

// Host is what a program may ask of the ledger during one invocation.
type Host interface {
	// ProgramID is the id of the program being invoked.
	ProgramID() solana.PublicKey
	// Now returns the current unix timestamp.
	Now() int64
	// MinimumBalance returns the rent exempt balance for dataLen bytes.
	MinimumBalance(dataLen int) uint64
	// CreateAccount allocates space bytes at to, funded by from and owned by
	// owner. A derived address proves it may be created by passing seeds.
	CreateAccount(from, to *AccountInfo, space, lamports uint64, owner solana.PublicKey, signers ...Seeds) error
	// TokenAccount decodes a token custody account.
	TokenAccount(acct *AccountInfo) (*token.Account, error)
	// Mint decodes a token mint.
	Mint(acct *AccountInfo) (*token.Mint, error)
	// Transfer moves amount tokens from one custody account to another.
	// authority must own from, either by signature or by derived seeds.
	Transfer(from, to, authority *AccountInfo, amount uint64, signers ...Seeds) error
}

// Program is the entrypoint of an on-ledger program.
type Program func(host Host, accounts []*AccountInfo, data []byte) error

// MinimumBalance returns the rent exempt balance for an account of dataLen
// bytes.
func MinimumBalance(dataLen int) uint64 {
	return uint64(accountStorageOverhead+dataLen) * lamportsPerByteYear * exemptionThreshold
}
