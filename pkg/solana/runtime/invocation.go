package runtime

import (
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
)

// invocation is the Host given to a program for one instruction.
type invocation struct {
	programID solana.PublicKey
	now       int64
	touched   map[solana.PublicKey]bool
}

func (iv *invocation) ProgramID() solana.PublicKey {
	return iv.programID
}

func (iv *invocation) Now() int64 {
	return iv.now
}

func (iv *invocation) MinimumBalance(dataLen int) uint64 {
	return MinimumBalance(dataLen)
}

func (iv *invocation) CreateAccount(from, to *AccountInfo, space, lamports uint64, owner solana.PublicKey, signers ...Seeds) error {
	if !from.IsSigner {
		return ErrMissingRequiredSignature
	}
	if !to.IsSigner && !iv.signedBy(to.Key, signers) {
		return ErrMissingRequiredSignature
	}
	if !from.IsWritable || !to.IsWritable {
		return ErrInvalidArgument
	}
	if !to.DataIsEmpty() || to.Lamports != 0 || !to.Owner.Equals(solana.SystemProgramID) {
		return ErrAccountAlreadyInitialized
	}
	if from.Lamports < lamports {
		return ErrInsufficientFunds
	}
	from.Lamports -= lamports
	to.Lamports = lamports
	to.Data = make([]byte, space)
	to.Owner = owner
	iv.touched[from.Key] = true
	iv.touched[to.Key] = true
	return nil
}

func (iv *invocation) TokenAccount(acct *AccountInfo) (*token.Account, error) {
	if !acct.Owner.Equals(solana.TokenProgramID) {
		return nil, ErrInvalidAccountOwner
	}
	state, err := DecodeTokenAccount(acct.Data)
	if err != nil {
		return nil, err
	}
	if state.State != token.Initialized {
		return nil, ErrUninitializedAccount
	}
	return state, nil
}

func (iv *invocation) Mint(acct *AccountInfo) (*token.Mint, error) {
	if !acct.Owner.Equals(solana.TokenProgramID) {
		return nil, ErrInvalidAccountOwner
	}
	mint, err := DecodeMint(acct.Data)
	if err != nil {
		return nil, err
	}
	if !mint.IsInitialized {
		return nil, ErrUninitializedAccount
	}
	return mint, nil
}

func (iv *invocation) Transfer(from, to, authority *AccountInfo, amount uint64, signers ...Seeds) error {
	src, err := iv.TokenAccount(from)
	if err != nil {
		return err
	}
	dst, err := iv.TokenAccount(to)
	if err != nil {
		return err
	}
	if !src.Mint.Equals(dst.Mint) {
		return ErrInvalidAccountData
	}
	if !src.Owner.Equals(authority.Key) {
		return ErrInvalidAccountOwner
	}
	if !authority.IsSigner && !iv.signedBy(authority.Key, signers) {
		return ErrMissingRequiredSignature
	}
	if !from.IsWritable || !to.IsWritable {
		return ErrInvalidArgument
	}
	if src.Amount < amount {
		return ErrInsufficientFunds
	}
	if from.Key.Equals(to.Key) {
		return nil
	}
	if dst.Amount+amount < dst.Amount {
		return ErrArithmeticOverflow
	}
	src.Amount -= amount
	dst.Amount += amount

	srcData, err := EncodeTokenAccount(src)
	if err != nil {
		return err
	}
	dstData, err := EncodeTokenAccount(dst)
	if err != nil {
		return err
	}
	from.Data, to.Data = srcData, dstData
	iv.touched[from.Key] = true
	iv.touched[to.Key] = true
	return nil
}

// signedBy reports whether one of the seed sets derives key under the
// invoking program.
func (iv *invocation) signedBy(key solana.PublicKey, signers []Seeds) bool {
	for _, seeds := range signers {
		addr, err := solana.CreateProgramAddress(seeds, iv.programID)
		if err == nil && addr.Equals(key) {
			return true
		}
	}
	return false
}
