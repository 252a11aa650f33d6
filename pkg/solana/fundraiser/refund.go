package fundraiser

import (
	"github.com/gagliardetto/solana-go"

	"fundraiser/pkg/solana/runtime"
)

// processRefund returns a contributor's whole recorded deposit. There is no
// gate on expiry or on the goal outcome.
//
// accounts: contributor (signer), maker, mint, campaign, contributor
// record, contributor token account, vault, token program.
func processRefund(host runtime.Host, accounts []*runtime.AccountInfo, data []byte) error {
	if len(accounts) < 8 {
		return runtime.ErrNotEnoughAccountKeys
	}
	contributor, maker, mint, campaign := accounts[0], accounts[1], accounts[2], accounts[3]
	record, destination, vault, tokenProgram := accounts[4], accounts[5], accounts[6], accounts[7]

	if len(data) != 0 {
		return runtime.ErrInvalidInstructionData
	}
	if !contributor.IsSigner {
		return runtime.ErrMissingRequiredSignature
	}
	if err := checkProgram(tokenProgram, solana.TokenProgramID); err != nil {
		return err
	}

	state, err := loadCampaign(host, campaign, mint)
	if err != nil {
		return err
	}
	if _, err := loadVault(host, vault, mint, campaign); err != nil {
		return err
	}

	if _, err := VerifyCampaignPDA(host.ProgramID(), campaign.Key, maker.Key); err != nil {
		return err
	}

	if !record.Owner.Equals(host.ProgramID()) {
		return runtime.ErrInvalidAccountOwner
	}
	if _, err := VerifyContributorPDA(host.ProgramID(), record.Key, campaign.Key, contributor.Key); err != nil {
		return err
	}
	deposit, err := DecodeContributor(record.Data)
	if err != nil {
		return err
	}
	if !deposit.Contributor.Equals(contributor.Key) {
		return ErrInvalidContributor
	}
	if deposit.Amount == 0 {
		return ErrInvalidContribution
	}

	if _, err := checkTokenAccount(host, destination, mint.Key, contributor.Key); err != nil {
		return err
	}

	amount := deposit.Withdraw()
	if err := state.SubRaised(amount); err != nil {
		return err
	}

	if err := host.Transfer(vault, destination, campaign, amount, campaignSigner(maker.Key, state.Bump)); err != nil {
		return err
	}

	if err := state.Store(campaign); err != nil {
		return err
	}
	return deposit.Store(record)
}
