package runtime

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
)

// Bank is an in-process ledger. It stores accounts, verifies transaction
// signatures and runs registered programs. Transactions are serialized by a
// single lock and commit all of their effects or none.
type Bank struct {
	mu       sync.Mutex
	accounts map[solana.PublicKey]*AccountInfo
	programs map[solana.PublicKey]Program
	clock    func() time.Time
	offset   time.Duration
	slot     uint64
}

// BankOption configures a Bank.
type BankOption func(*Bank)

// WithClock replaces the wall clock used for Now.
func WithClock(clock func() time.Time) BankOption {
	return func(b *Bank) {
		b.clock = clock
	}
}

// NewBank creates an empty ledger.
func NewBank(opts ...BankOption) *Bank {
	b := &Bank{
		accounts: make(map[solana.PublicKey]*AccountInfo),
		programs: make(map[solana.PublicKey]Program),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// RegisterProgram makes program invocable under id.
func (b *Bank) RegisterProgram(id solana.PublicKey, program Program) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.programs[id] = program
}

// Now returns the ledger's unix timestamp.
func (b *Bank) Now() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.now()
}

func (b *Bank) now() int64 {
	return b.clock().Add(b.offset).Unix()
}

// Warp moves the ledger clock forward by d.
func (b *Bank) Warp(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.offset += d
}

// Slot returns the number of committed transactions.
func (b *Bank) Slot() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.slot
}

// LatestBlockhash returns a hash that changes with every committed slot.
func (b *Bank) LatestBlockhash() solana.Hash {
	b.mu.Lock()
	defer b.mu.Unlock()
	var raw [8]byte
	binary.LittleEndian.PutUint64(raw[:], b.slot)
	return solana.Hash(sha256.Sum256(raw[:]))
}

// Account returns a copy of the stored account.
func (b *Bank) Account(key solana.PublicKey) (*AccountInfo, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	acct, ok := b.accounts[key]
	if !ok {
		return nil, false
	}
	return acct.clone(), true
}

// SetAccount stores acct as is, replacing any previous state.
func (b *Bank) SetAccount(acct *AccountInfo) {
	b.mu.Lock()
	defer b.mu.Unlock()
	stored := acct.clone()
	stored.IsSigner, stored.IsWritable = false, false
	b.accounts[acct.Key] = stored
}

// Airdrop credits lamports to a system account, creating it if needed.
func (b *Bank) Airdrop(key solana.PublicKey, lamports uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	acct, ok := b.accounts[key]
	if !ok {
		acct = &AccountInfo{Key: key, Owner: solana.SystemProgramID}
		b.accounts[key] = acct
	}
	if acct.Lamports+lamports < acct.Lamports {
		return ErrArithmeticOverflow
	}
	acct.Lamports += lamports
	return nil
}

// CreateMint stores an initialized mint with the given decimals.
func (b *Bank) CreateMint(address, authority solana.PublicKey, decimals uint8) error {
	data, err := EncodeMint(&token.Mint{
		MintAuthority: &authority,
		Decimals:      decimals,
		IsInitialized: true,
	})
	if err != nil {
		return err
	}
	return b.storeNew(&AccountInfo{
		Key:      address,
		Owner:    solana.TokenProgramID,
		Lamports: MinimumBalance(MintSize),
		Data:     data,
	})
}

// CreateTokenAccount stores an empty token account for mint, owned by owner.
func (b *Bank) CreateTokenAccount(address, mint, owner solana.PublicKey) error {
	b.mu.Lock()
	mintAcct, ok := b.accounts[mint]
	b.mu.Unlock()
	if !ok || !mintAcct.Owner.Equals(solana.TokenProgramID) {
		return fmt.Errorf("mint %s: %w", mint, ErrUninitializedAccount)
	}
	data, err := EncodeTokenAccount(&token.Account{
		Mint:  mint,
		Owner: owner,
		State: token.Initialized,
	})
	if err != nil {
		return err
	}
	return b.storeNew(&AccountInfo{
		Key:      address,
		Owner:    solana.TokenProgramID,
		Lamports: MinimumBalance(TokenAccountSize),
		Data:     data,
	})
}

// MintTo credits amount tokens to a token account and the mint's supply.
func (b *Bank) MintTo(address solana.PublicKey, amount uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	acct, ok := b.accounts[address]
	if !ok {
		return ErrUninitializedAccount
	}
	state, err := DecodeTokenAccount(acct.Data)
	if err != nil {
		return err
	}
	mintAcct, ok := b.accounts[state.Mint]
	if !ok {
		return ErrUninitializedAccount
	}
	mint, err := DecodeMint(mintAcct.Data)
	if err != nil {
		return err
	}
	if state.Amount+amount < state.Amount || mint.Supply+amount < mint.Supply {
		return ErrArithmeticOverflow
	}
	state.Amount += amount
	mint.Supply += amount
	if acct.Data, err = EncodeTokenAccount(state); err != nil {
		return err
	}
	mintAcct.Data, err = EncodeMint(mint)
	return err
}

// TokenBalance returns the amount held by a token account.
func (b *Bank) TokenBalance(address solana.PublicKey) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	acct, ok := b.accounts[address]
	if !ok {
		return 0, ErrUninitializedAccount
	}
	state, err := DecodeTokenAccount(acct.Data)
	if err != nil {
		return 0, err
	}
	return state.Amount, nil
}

func (b *Bank) storeNew(acct *AccountInfo) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if existing, ok := b.accounts[acct.Key]; ok && !existing.DataIsEmpty() {
		return fmt.Errorf("account %s: %w", acct.Key, ErrAccountAlreadyInitialized)
	}
	b.accounts[acct.Key] = acct
	return nil
}

// TransactionMeta describes a committed transaction. Token balances cover
// every token account the transaction references, read under the same lock
// as the commit.
type TransactionMeta struct {
	Slot              uint64
	PreTokenBalances  map[solana.PublicKey]uint64
	PostTokenBalances map[solana.PublicKey]uint64
}

// TokenBalance returns the balance of account before and after the
// transaction.
func (m *TransactionMeta) TokenBalance(account solana.PublicKey) (pre, post uint64, ok bool) {
	pre, okPre := m.PreTokenBalances[account]
	post, okPost := m.PostTokenBalances[account]
	return pre, post, okPre && okPost
}

// ProcessTransaction verifies tx and executes its instructions in order.
// Any failure leaves the ledger exactly as it was before the call.
func (b *Bank) ProcessTransaction(tx *solana.Transaction) error {
	_, err := b.ExecuteTransaction(tx)
	return err
}

// ExecuteTransaction is ProcessTransaction returning the metadata of the
// committed transaction.
func (b *Bank) ExecuteTransaction(tx *solana.Transaction) (*TransactionMeta, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	msg := &tx.Message
	if err := verifySignatures(tx); err != nil {
		return nil, err
	}

	working := make(map[solana.PublicKey]*AccountInfo, len(msg.AccountKeys))
	for i, key := range msg.AccountKeys {
		acct, ok := b.accounts[key]
		if ok {
			acct = acct.clone()
		} else {
			acct = &AccountInfo{Key: key, Owner: solana.SystemProgramID}
		}
		acct.IsSigner = isSigner(msg, i)
		acct.IsWritable = isWritable(msg, i)
		working[key] = acct
	}
	pre := tokenBalances(msg.AccountKeys, working)

	now := b.now()
	for n, ci := range msg.Instructions {
		if int(ci.ProgramIDIndex) >= len(msg.AccountKeys) {
			return nil, fmt.Errorf("instruction %d: %w", n, ErrNotEnoughAccountKeys)
		}
		programID := msg.AccountKeys[ci.ProgramIDIndex]
		program, ok := b.programs[programID]
		if !ok {
			return nil, fmt.Errorf("instruction %d: program %s: %w", n, programID, ErrIncorrectProgramID)
		}

		infos := make([]*AccountInfo, 0, len(ci.Accounts))
		for _, idx := range ci.Accounts {
			if int(idx) >= len(msg.AccountKeys) {
				return nil, fmt.Errorf("instruction %d: %w", n, ErrNotEnoughAccountKeys)
			}
			infos = append(infos, working[msg.AccountKeys[idx]])
		}

		before := snapshot(infos)
		inv := &invocation{
			programID: programID,
			now:       now,
			touched:   make(map[solana.PublicKey]bool),
		}
		if err := program(inv, infos, ci.Data); err != nil {
			return nil, fmt.Errorf("instruction %d: %w", n, err)
		}
		if err := checkModifications(programID, before, infos, inv.touched); err != nil {
			return nil, fmt.Errorf("instruction %d: %w", n, err)
		}
	}

	for key, acct := range working {
		if acct.DataIsEmpty() && acct.Lamports == 0 {
			if _, ok := b.accounts[key]; !ok {
				continue
			}
		}
		stored := acct.clone()
		stored.IsSigner, stored.IsWritable = false, false
		b.accounts[key] = stored
	}
	b.slot++
	return &TransactionMeta{
		Slot:              b.slot,
		PreTokenBalances:  pre,
		PostTokenBalances: tokenBalances(msg.AccountKeys, working),
	}, nil
}

func tokenBalances(keys []solana.PublicKey, accounts map[solana.PublicKey]*AccountInfo) map[solana.PublicKey]uint64 {
	out := make(map[solana.PublicKey]uint64)
	for _, key := range keys {
		acct := accounts[key]
		if acct == nil || !acct.Owner.Equals(solana.TokenProgramID) {
			continue
		}
		if state, err := DecodeTokenAccount(acct.Data); err == nil {
			out[key] = state.Amount
		}
	}
	return out
}

func verifySignatures(tx *solana.Transaction) error {
	msg := &tx.Message
	required := int(msg.Header.NumRequiredSignatures)
	if required == 0 || len(tx.Signatures) != required || len(msg.AccountKeys) < required {
		return ErrMissingRequiredSignature
	}
	if err := tx.VerifySignatures(); err != nil {
		return fmt.Errorf("%v: %w", err, ErrMissingRequiredSignature)
	}
	return nil
}

func isSigner(msg *solana.Message, index int) bool {
	return index < int(msg.Header.NumRequiredSignatures)
}

func isWritable(msg *solana.Message, index int) bool {
	signers := int(msg.Header.NumRequiredSignatures)
	if index < signers {
		return index < signers-int(msg.Header.NumReadonlySignedAccounts)
	}
	return index < len(msg.AccountKeys)-int(msg.Header.NumReadonlyUnsignedAccounts)
}

type accountState struct {
	owner    solana.PublicKey
	lamports uint64
	data     []byte
}

func snapshot(infos []*AccountInfo) map[solana.PublicKey]accountState {
	out := make(map[solana.PublicKey]accountState, len(infos))
	for _, acct := range infos {
		out[acct.Key] = accountState{
			owner:    acct.Owner,
			lamports: acct.Lamports,
			data:     append([]byte(nil), acct.Data...),
		}
	}
	return out
}

// checkModifications enforces that only writable accounts change and that a
// program only writes the data of accounts it owns, unless the host itself
// made the change on the program's behalf.
func checkModifications(programID solana.PublicKey, before map[solana.PublicKey]accountState, infos []*AccountInfo, touched map[solana.PublicKey]bool) error {
	for _, acct := range infos {
		prev := before[acct.Key]
		changed := !prev.owner.Equals(acct.Owner) || prev.lamports != acct.Lamports || !bytes.Equal(prev.data, acct.Data)
		if !changed {
			continue
		}
		if !acct.IsWritable {
			return fmt.Errorf("account %s: %w", acct.Key, ErrReadonlyDataModified)
		}
		if touched[acct.Key] {
			continue
		}
		if !prev.owner.Equals(programID) {
			return fmt.Errorf("account %s: %w", acct.Key, ErrInvalidAccountOwner)
		}
	}
	return nil
}
