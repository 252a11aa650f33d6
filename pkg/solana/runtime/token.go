package runtime

import (
	"bytes"
	"encoding/binary"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
)

// Layout sizes of the token program accounts.
const (
	TokenAccountSize = 165
	MintSize         = 82
)

// DecodeTokenAccount reads a token account in the token program layout.
func DecodeTokenAccount(data []byte) (*token.Account, error) {
	if len(data) != TokenAccountSize {
		return nil, ErrInvalidAccountData
	}
	dec := bin.NewBinDecoder(data)
	var acct token.Account
	var err error
	if acct.Mint, err = readKey(dec); err != nil {
		return nil, ErrInvalidAccountData
	}
	if acct.Owner, err = readKey(dec); err != nil {
		return nil, ErrInvalidAccountData
	}
	if acct.Amount, err = dec.ReadUint64(binary.LittleEndian); err != nil {
		return nil, ErrInvalidAccountData
	}
	if acct.Delegate, err = readOptionalKey(dec); err != nil {
		return nil, ErrInvalidAccountData
	}
	state, err := dec.ReadUint8()
	if err != nil {
		return nil, ErrInvalidAccountData
	}
	acct.State = token.AccountState(state)
	tag, err := dec.ReadUint32(binary.LittleEndian)
	if err != nil {
		return nil, ErrInvalidAccountData
	}
	native, err := dec.ReadUint64(binary.LittleEndian)
	if err != nil {
		return nil, ErrInvalidAccountData
	}
	if tag == 1 {
		acct.IsNative = &native
	}
	if acct.DelegatedAmount, err = dec.ReadUint64(binary.LittleEndian); err != nil {
		return nil, ErrInvalidAccountData
	}
	if acct.CloseAuthority, err = readOptionalKey(dec); err != nil {
		return nil, ErrInvalidAccountData
	}
	return &acct, nil
}

// EncodeTokenAccount writes a token account in the token program layout.
func EncodeTokenAccount(acct *token.Account) ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBinEncoder(buf)
	if err := enc.WriteBytes(acct.Mint[:], false); err != nil {
		return nil, err
	}
	if err := enc.WriteBytes(acct.Owner[:], false); err != nil {
		return nil, err
	}
	if err := enc.WriteUint64(acct.Amount, binary.LittleEndian); err != nil {
		return nil, err
	}
	if err := writeOptionalKey(enc, acct.Delegate); err != nil {
		return nil, err
	}
	if err := enc.WriteUint8(uint8(acct.State)); err != nil {
		return nil, err
	}
	var tag uint32
	var native uint64
	if acct.IsNative != nil {
		tag, native = 1, *acct.IsNative
	}
	if err := enc.WriteUint32(tag, binary.LittleEndian); err != nil {
		return nil, err
	}
	if err := enc.WriteUint64(native, binary.LittleEndian); err != nil {
		return nil, err
	}
	if err := enc.WriteUint64(acct.DelegatedAmount, binary.LittleEndian); err != nil {
		return nil, err
	}
	if err := writeOptionalKey(enc, acct.CloseAuthority); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeMint reads a mint in the token program layout.
func DecodeMint(data []byte) (*token.Mint, error) {
	if len(data) != MintSize {
		return nil, ErrInvalidAccountData
	}
	dec := bin.NewBinDecoder(data)
	var mint token.Mint
	var err error
	if mint.MintAuthority, err = readOptionalKey(dec); err != nil {
		return nil, ErrInvalidAccountData
	}
	if mint.Supply, err = dec.ReadUint64(binary.LittleEndian); err != nil {
		return nil, ErrInvalidAccountData
	}
	if mint.Decimals, err = dec.ReadUint8(); err != nil {
		return nil, ErrInvalidAccountData
	}
	initialized, err := dec.ReadUint8()
	if err != nil {
		return nil, ErrInvalidAccountData
	}
	mint.IsInitialized = initialized == 1
	if mint.FreezeAuthority, err = readOptionalKey(dec); err != nil {
		return nil, ErrInvalidAccountData
	}
	return &mint, nil
}

// EncodeMint writes a mint in the token program layout.
func EncodeMint(mint *token.Mint) ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBinEncoder(buf)
	if err := writeOptionalKey(enc, mint.MintAuthority); err != nil {
		return nil, err
	}
	if err := enc.WriteUint64(mint.Supply, binary.LittleEndian); err != nil {
		return nil, err
	}
	if err := enc.WriteUint8(mint.Decimals); err != nil {
		return nil, err
	}
	var initialized uint8
	if mint.IsInitialized {
		initialized = 1
	}
	if err := enc.WriteUint8(initialized); err != nil {
		return nil, err
	}
	if err := writeOptionalKey(enc, mint.FreezeAuthority); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func readKey(dec *bin.Decoder) (solana.PublicKey, error) {
	raw, err := dec.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return solana.PublicKeyFromBytes(raw), nil
}

// COption<Pubkey>: u32 tag followed by the key, present or not.
func readOptionalKey(dec *bin.Decoder) (*solana.PublicKey, error) {
	tag, err := dec.ReadUint32(binary.LittleEndian)
	if err != nil {
		return nil, err
	}
	key, err := readKey(dec)
	if err != nil {
		return nil, err
	}
	if tag == 0 {
		return nil, nil
	}
	return &key, nil
}

func writeOptionalKey(enc *bin.Encoder, key *solana.PublicKey) error {
	var tag uint32
	var raw solana.PublicKey
	if key != nil {
		tag, raw = 1, *key
	}
	if err := enc.WriteUint32(tag, binary.LittleEndian); err != nil {
		return err
	}
	return enc.WriteBytes(raw[:], false)
}
