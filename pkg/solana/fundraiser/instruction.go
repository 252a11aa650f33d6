package fundraiser

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"

	"fundraiser/pkg/solana/runtime"
)

// Instruction discriminators, the first byte of instruction data.
const (
	InstructionInitialize uint8 = iota
	InstructionContribute
	InstructionChecker
	InstructionRefund
)

// Payload widths following the discriminator.
const (
	initializePayloadSize = 16
	contributePayloadSize = 8
)

// InstructionName returns a readable name of a discriminator.
func InstructionName(discriminator uint8) string {
	switch discriminator {
	case InstructionInitialize:
		return "initialize"
	case InstructionContribute:
		return "contribute"
	case InstructionChecker:
		return "checker"
	case InstructionRefund:
		return "refund"
	default:
		return "unknown"
	}
}

// InitializeArgs is the payload of Initialize.
type InitializeArgs struct {
	Amount   uint64
	Duration uint64
}

func decodeInitializeArgs(data []byte) (InitializeArgs, error) {
	if len(data) != initializePayloadSize {
		return InitializeArgs{}, runtime.ErrInvalidInstructionData
	}
	return InitializeArgs{
		Amount:   binary.LittleEndian.Uint64(data[0:8]),
		Duration: binary.LittleEndian.Uint64(data[8:16]),
	}, nil
}

func decodeContributeAmount(data []byte) (uint64, error) {
	if len(data) != contributePayloadSize {
		return 0, runtime.ErrInvalidInstructionData
	}
	return binary.LittleEndian.Uint64(data), nil
}

// InitializeAccounts lists the accounts of an Initialize instruction.
type InitializeAccounts struct {
	Maker solana.PublicKey
	Mint  solana.PublicKey
	Vault solana.PublicKey
}

// NewInitializeInstruction builds an Initialize instruction; the campaign
// address is derived from the maker.
func NewInitializeInstruction(programID solana.PublicKey, accts InitializeAccounts, args InitializeArgs) (*solana.GenericInstruction, error) {
	campaign, err := GetCampaignPDA(programID, accts.Maker)
	if err != nil {
		return nil, err
	}
	data := make([]byte, 1+initializePayloadSize)
	data[0] = InstructionInitialize
	binary.LittleEndian.PutUint64(data[1:9], args.Amount)
	binary.LittleEndian.PutUint64(data[9:17], args.Duration)

	metas := solana.AccountMetaSlice{
		solana.Meta(accts.Maker).WRITE().SIGNER(),
		solana.Meta(accts.Mint),
		solana.Meta(campaign.Address).WRITE(),
		solana.Meta(accts.Vault),
		solana.Meta(solana.SystemProgramID),
		solana.Meta(solana.TokenProgramID),
	}
	return solana.NewInstruction(programID, metas, data), nil
}

// ContributeAccounts lists the accounts of a Contribute instruction.
type ContributeAccounts struct {
	Contributor  solana.PublicKey
	Maker        solana.PublicKey
	Mint         solana.PublicKey
	TokenAccount solana.PublicKey
	Vault        solana.PublicKey
}

// NewContributeInstruction builds a Contribute instruction.
func NewContributeInstruction(programID solana.PublicKey, accts ContributeAccounts, amount uint64) (*solana.GenericInstruction, error) {
	campaign, err := GetCampaignPDA(programID, accts.Maker)
	if err != nil {
		return nil, err
	}
	record, err := GetContributorPDA(programID, campaign.Address, accts.Contributor)
	if err != nil {
		return nil, err
	}
	data := make([]byte, 1+contributePayloadSize)
	data[0] = InstructionContribute
	binary.LittleEndian.PutUint64(data[1:], amount)

	metas := solana.AccountMetaSlice{
		solana.Meta(accts.Contributor).WRITE().SIGNER(),
		solana.Meta(accts.Mint),
		solana.Meta(campaign.Address).WRITE(),
		solana.Meta(record.Address).WRITE(),
		solana.Meta(accts.TokenAccount).WRITE(),
		solana.Meta(accts.Vault).WRITE(),
		solana.Meta(solana.TokenProgramID),
		solana.Meta(solana.SystemProgramID),
	}
	return solana.NewInstruction(programID, metas, data), nil
}

// CheckerAccounts lists the accounts of a Checker (settle) instruction.
type CheckerAccounts struct {
	Maker        solana.PublicKey
	Mint         solana.PublicKey
	Vault        solana.PublicKey
	TokenAccount solana.PublicKey
}

// NewCheckerInstruction builds a Checker instruction paying the vault out
// to the maker's token account.
func NewCheckerInstruction(programID solana.PublicKey, accts CheckerAccounts) (*solana.GenericInstruction, error) {
	campaign, err := GetCampaignPDA(programID, accts.Maker)
	if err != nil {
		return nil, err
	}
	metas := solana.AccountMetaSlice{
		solana.Meta(accts.Maker).WRITE().SIGNER(),
		solana.Meta(accts.Mint),
		solana.Meta(campaign.Address),
		solana.Meta(accts.Vault).WRITE(),
		solana.Meta(accts.TokenAccount).WRITE(),
		solana.Meta(solana.TokenProgramID),
	}
	return solana.NewInstruction(programID, metas, []byte{InstructionChecker}), nil
}

// RefundAccounts lists the accounts of a Refund instruction.
type RefundAccounts struct {
	Contributor  solana.PublicKey
	Maker        solana.PublicKey
	Mint         solana.PublicKey
	TokenAccount solana.PublicKey
	Vault        solana.PublicKey
}

// NewRefundInstruction builds a Refund instruction.
func NewRefundInstruction(programID solana.PublicKey, accts RefundAccounts) (*solana.GenericInstruction, error) {
	campaign, err := GetCampaignPDA(programID, accts.Maker)
	if err != nil {
		return nil, err
	}
	record, err := GetContributorPDA(programID, campaign.Address, accts.Contributor)
	if err != nil {
		return nil, err
	}
	metas := solana.AccountMetaSlice{
		solana.Meta(accts.Contributor).WRITE().SIGNER(),
		solana.Meta(accts.Maker),
		solana.Meta(accts.Mint),
		solana.Meta(campaign.Address).WRITE(),
		solana.Meta(record.Address).WRITE(),
		solana.Meta(accts.TokenAccount).WRITE(),
		solana.Meta(accts.Vault).WRITE(),
		solana.Meta(solana.TokenProgramID),
	}
	return solana.NewInstruction(programID, metas, []byte{InstructionRefund}), nil
}
