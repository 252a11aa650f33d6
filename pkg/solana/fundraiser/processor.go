package fundraiser

import (
	"github.com/gagliardetto/solana-go"

	"fundraiser/pkg/solana/runtime"
)

// Process is the program entrypoint: the first byte of data selects the
// instruction, the rest is its fixed width payload.
func Process(host runtime.Host, accounts []*runtime.AccountInfo, data []byte) error {
	if len(data) == 0 {
		return runtime.ErrInvalidInstructionData
	}
	discriminator, payload := data[0], data[1:]

	switch discriminator {
	case InstructionInitialize:
		return processInitialize(host, accounts, payload)
	case InstructionContribute:
		return processContribute(host, accounts, payload)
	case InstructionChecker:
		return processChecker(host, accounts, payload)
	case InstructionRefund:
		return processRefund(host, accounts, payload)
	default:
		return runtime.ErrInvalidInstructionData
	}
}

// loadCampaign checks the campaign account is owned by the program, holds a
// campaign record and raises mint.
func loadCampaign(host runtime.Host, campaign, mint *runtime.AccountInfo) (*Campaign, error) {
	if !campaign.Owner.Equals(host.ProgramID()) {
		return nil, runtime.ErrInvalidAccountOwner
	}
	state, err := DecodeCampaign(campaign.Data)
	if err != nil {
		return nil, err
	}
	if !state.MintToRaise.Equals(mint.Key) {
		return nil, runtime.ErrInvalidAccountData
	}
	return state, nil
}

// loadVault checks the vault holds mint and is controlled by the campaign.
func loadVault(host runtime.Host, vault, mint, campaign *runtime.AccountInfo) (uint64, error) {
	state, err := host.TokenAccount(vault)
	if err != nil {
		return 0, err
	}
	if !state.Mint.Equals(mint.Key) {
		return 0, runtime.ErrInvalidAccountData
	}
	if !state.Owner.Equals(campaign.Key) {
		return 0, runtime.ErrInvalidAccountOwner
	}
	return state.Amount, nil
}

// checkTokenAccount checks a token account holds mint and belongs to owner,
// returning its balance.
func checkTokenAccount(host runtime.Host, acct *runtime.AccountInfo, mint, owner solana.PublicKey) (uint64, error) {
	state, err := host.TokenAccount(acct)
	if err != nil {
		return 0, err
	}
	if !state.Owner.Equals(owner) {
		return 0, runtime.ErrInvalidAccountOwner
	}
	if !state.Mint.Equals(mint) {
		return 0, runtime.ErrInvalidAccountData
	}
	return state.Amount, nil
}

func checkProgram(acct *runtime.AccountInfo, id solana.PublicKey) error {
	if !acct.Key.Equals(id) {
		return runtime.ErrIncorrectProgramID
	}
	return nil
}
