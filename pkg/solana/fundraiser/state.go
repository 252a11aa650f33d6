package fundraiser

import (
	"bytes"
	"encoding/binary"
	"math/bits"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"fundraiser/pkg/solana/runtime"
)

// Record sizes. Both layouts are packed, little endian and fixed width.
const (
	CampaignSize    = 32 + 32 + 8 + 8 + 8 + 8 + 1
	ContributorSize = 32 + 8 + 1
)

// Contribution bounds, in basis points of the campaign goal.
const (
	MaxContributionBps = 1_000
	BpsScaler          = 10_000
)

// Campaign is the per-maker record describing the goal, deadline and
// progress of one fundraiser.
type Campaign struct {
	Maker           solana.PublicKey
	MintToRaise     solana.PublicKey
	AmountToRaise   uint64
	CurrentAmount   uint64
	TimeStarted     int64
	DurationSeconds uint64
	Bump            uint8
}

func (c Campaign) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteBytes(c.Maker[:], false); err != nil {
		return err
	}
	if err := enc.WriteBytes(c.MintToRaise[:], false); err != nil {
		return err
	}
	if err := enc.WriteUint64(c.AmountToRaise, binary.LittleEndian); err != nil {
		return err
	}
	if err := enc.WriteUint64(c.CurrentAmount, binary.LittleEndian); err != nil {
		return err
	}
	if err := enc.WriteInt64(c.TimeStarted, binary.LittleEndian); err != nil {
		return err
	}
	if err := enc.WriteUint64(c.DurationSeconds, binary.LittleEndian); err != nil {
		return err
	}
	return enc.WriteUint8(c.Bump)
}

func (c *Campaign) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	if c.Maker, err = readKey(dec); err != nil {
		return err
	}
	if c.MintToRaise, err = readKey(dec); err != nil {
		return err
	}
	if c.AmountToRaise, err = dec.ReadUint64(binary.LittleEndian); err != nil {
		return err
	}
	if c.CurrentAmount, err = dec.ReadUint64(binary.LittleEndian); err != nil {
		return err
	}
	if c.TimeStarted, err = dec.ReadInt64(binary.LittleEndian); err != nil {
		return err
	}
	if c.DurationSeconds, err = dec.ReadUint64(binary.LittleEndian); err != nil {
		return err
	}
	c.Bump, err = dec.ReadUint8()
	return err
}

// DecodeCampaign parses a campaign record. The backing storage must be
// exactly CampaignSize bytes.
func DecodeCampaign(data []byte) (*Campaign, error) {
	if len(data) != CampaignSize {
		return nil, runtime.ErrInvalidAccountData
	}
	var c Campaign
	if err := c.UnmarshalWithDecoder(bin.NewBinDecoder(data)); err != nil {
		return nil, runtime.ErrInvalidAccountData
	}
	return &c, nil
}

// Encode returns the record in its storage layout.
func (c *Campaign) Encode() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, CampaignSize))
	if err := c.MarshalWithEncoder(bin.NewBinEncoder(buf)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Store writes the record into an allocated account.
func (c *Campaign) Store(acct *runtime.AccountInfo) error {
	if len(acct.Data) != CampaignSize {
		return runtime.ErrInvalidAccountData
	}
	data, err := c.Encode()
	if err != nil {
		return runtime.ErrInvalidAccountData
	}
	copy(acct.Data, data)
	return nil
}

// GoalReached reports whether the raised amount covers the goal.
func (c *Campaign) GoalReached() bool {
	return c.CurrentAmount >= c.AmountToRaise
}

// Expired reports whether the campaign duration has elapsed at now.
func (c *Campaign) Expired(now int64) bool {
	elapsed := now - c.TimeStarted
	if elapsed < 0 {
		return false
	}
	return uint64(elapsed) >= c.DurationSeconds
}

// EndsAt is the unix time from which the campaign counts as expired.
func (c *Campaign) EndsAt() int64 {
	end := c.TimeStarted + int64(c.DurationSeconds)
	if c.DurationSeconds > uint64(1<<63-1) || end < c.TimeStarted {
		return 1<<63 - 1
	}
	return end
}

// MaxContribution is the largest single deposit the campaign accepts.
func (c *Campaign) MaxContribution() uint64 {
	hi, lo := bits.Mul64(c.AmountToRaise, MaxContributionBps)
	q, _ := bits.Div64(hi, lo, BpsScaler)
	return q
}

// AddRaised adds amount to the raised total, leaving it untouched on
// overflow.
func (c *Campaign) AddRaised(amount uint64) error {
	sum, carry := bits.Add64(c.CurrentAmount, amount, 0)
	if carry != 0 {
		return runtime.ErrArithmeticOverflow
	}
	c.CurrentAmount = sum
	return nil
}

// SubRaised removes amount from the raised total, leaving it untouched on
// underflow.
func (c *Campaign) SubRaised(amount uint64) error {
	diff, borrow := bits.Sub64(c.CurrentAmount, amount, 0)
	if borrow != 0 {
		return runtime.ErrArithmeticOverflow
	}
	c.CurrentAmount = diff
	return nil
}

// Contributor tracks the live, unwithdrawn deposit of one contributor.
type Contributor struct {
	Contributor solana.PublicKey
	Amount      uint64
	Bump        uint8
}

func (c Contributor) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteBytes(c.Contributor[:], false); err != nil {
		return err
	}
	if err := enc.WriteUint64(c.Amount, binary.LittleEndian); err != nil {
		return err
	}
	return enc.WriteUint8(c.Bump)
}

func (c *Contributor) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	if c.Contributor, err = readKey(dec); err != nil {
		return err
	}
	if c.Amount, err = dec.ReadUint64(binary.LittleEndian); err != nil {
		return err
	}
	c.Bump, err = dec.ReadUint8()
	return err
}

// DecodeContributor parses a contributor record. The backing storage must
// be exactly ContributorSize bytes.
func DecodeContributor(data []byte) (*Contributor, error) {
	if len(data) != ContributorSize {
		return nil, runtime.ErrInvalidAccountData
	}
	var c Contributor
	if err := c.UnmarshalWithDecoder(bin.NewBinDecoder(data)); err != nil {
		return nil, runtime.ErrInvalidAccountData
	}
	return &c, nil
}

// Encode returns the record in its storage layout.
func (c *Contributor) Encode() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, ContributorSize))
	if err := c.MarshalWithEncoder(bin.NewBinEncoder(buf)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Store writes the record into an allocated account.
func (c *Contributor) Store(acct *runtime.AccountInfo) error {
	if len(acct.Data) != ContributorSize {
		return runtime.ErrInvalidAccountData
	}
	data, err := c.Encode()
	if err != nil {
		return runtime.ErrInvalidAccountData
	}
	copy(acct.Data, data)
	return nil
}

// Deposit adds amount to the contributor's claim, leaving it untouched on
// overflow.
func (c *Contributor) Deposit(amount uint64) error {
	sum, carry := bits.Add64(c.Amount, amount, 0)
	if carry != 0 {
		return runtime.ErrArithmeticOverflow
	}
	c.Amount = sum
	return nil
}

// Withdraw zeroes the claim and returns what it was.
func (c *Contributor) Withdraw() uint64 {
	amount := c.Amount
	c.Amount = 0
	return amount
}

func readKey(dec *bin.Decoder) (solana.PublicKey, error) {
	raw, err := dec.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return solana.PublicKeyFromBytes(raw), nil
}

// unitAmount is one whole token of a mint with the given decimals.
func unitAmount(decimals uint8) (uint64, error) {
	unit := uint64(1)
	for i := uint8(0); i < decimals; i++ {
		hi, lo := bits.Mul64(unit, 10)
		if hi != 0 {
			return 0, runtime.ErrArithmeticOverflow
		}
		unit = lo
	}
	return unit, nil
}
