package fundraiser

import (
	"github.com/gagliardetto/solana-go"

	"fundraiser/pkg/solana/runtime"
)

// processInitialize creates the campaign record of a maker.
//
// accounts: maker (signer), mint, campaign, vault, system program, token
// program.
func processInitialize(host runtime.Host, accounts []*runtime.AccountInfo, data []byte) error {
	if len(accounts) < 6 {
		return runtime.ErrNotEnoughAccountKeys
	}
	maker, mint, campaign, vault := accounts[0], accounts[1], accounts[2], accounts[3]
	systemProgram, tokenProgram := accounts[4], accounts[5]

	if !maker.IsSigner {
		return runtime.ErrMissingRequiredSignature
	}

	args, err := decodeInitializeArgs(data)
	if err != nil {
		return err
	}

	if err := checkProgram(systemProgram, solana.SystemProgramID); err != nil {
		return err
	}
	if err := checkProgram(tokenProgram, solana.TokenProgramID); err != nil {
		return err
	}

	if !campaign.DataIsEmpty() {
		return runtime.ErrAccountAlreadyInitialized
	}
	pda, err := VerifyCampaignPDA(host.ProgramID(), campaign.Key, maker.Key)
	if err != nil {
		return err
	}

	// the vault exists before the campaign and already names it as owner
	if _, err := checkTokenAccount(host, vault, mint.Key, pda.Address); err != nil {
		return err
	}

	mintState, err := host.Mint(mint)
	if err != nil {
		return runtime.ErrInvalidAccountData
	}
	minimum, err := unitAmount(mintState.Decimals)
	if err != nil {
		return err
	}
	if args.Amount < minimum {
		return ErrInvalidAmount
	}

	err = host.CreateAccount(
		maker,
		campaign,
		CampaignSize,
		host.MinimumBalance(CampaignSize),
		host.ProgramID(),
		campaignSigner(maker.Key, pda.Bump),
	)
	if err != nil {
		return err
	}

	state := &Campaign{
		Maker:           maker.Key,
		MintToRaise:     mint.Key,
		AmountToRaise:   args.Amount,
		CurrentAmount:   0,
		TimeStarted:     host.Now(),
		DurationSeconds: args.Duration,
		Bump:            pda.Bump,
	}
	return state.Store(campaign)
}
