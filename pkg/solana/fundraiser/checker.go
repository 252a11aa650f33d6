package fundraiser

import (
	"github.com/gagliardetto/solana-go"

	"fundraiser/pkg/solana/runtime"
)

// processChecker pays the whole vault out to the maker.
//
// The payout is gated on the vault holding less than the goal: a vault at
// or above the goal fails with ErrTargetNotMet. This matches the deployed
// program; see DESIGN.md before changing it.
//
// accounts: maker (signer), mint, campaign, vault, maker token account,
// token program.
func processChecker(host runtime.Host, accounts []*runtime.AccountInfo, data []byte) error {
	if len(accounts) < 6 {
		return runtime.ErrNotEnoughAccountKeys
	}
	maker, mint, campaign, vault, destination, tokenProgram := accounts[0], accounts[1], accounts[2], accounts[3], accounts[4], accounts[5]

	if len(data) != 0 {
		return runtime.ErrInvalidInstructionData
	}
	if !maker.IsSigner {
		return runtime.ErrMissingRequiredSignature
	}
	if err := checkProgram(tokenProgram, solana.TokenProgramID); err != nil {
		return err
	}

	state, err := loadCampaign(host, campaign, mint)
	if err != nil {
		return err
	}
	balance, err := loadVault(host, vault, mint, campaign)
	if err != nil {
		return err
	}

	if balance >= state.AmountToRaise {
		return ErrTargetNotMet
	}

	if _, err := checkTokenAccount(host, destination, mint.Key, maker.Key); err != nil {
		return err
	}

	if _, err := VerifyCampaignPDA(host.ProgramID(), campaign.Key, maker.Key); err != nil {
		return err
	}

	return host.Transfer(vault, destination, campaign, balance, campaignSigner(maker.Key, state.Bump))
}
