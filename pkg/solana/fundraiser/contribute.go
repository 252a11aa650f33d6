package fundraiser

import (
	"github.com/gagliardetto/solana-go"

	"fundraiser/pkg/solana/runtime"
)

// processContribute moves a deposit from the contributor into the vault and
// records it on both the contributor and the campaign record.
//
// accounts: contributor (signer), mint, campaign, contributor record,
// contributor token account, vault, token program, system program.
func processContribute(host runtime.Host, accounts []*runtime.AccountInfo, data []byte) error {
	if len(accounts) < 8 {
		return runtime.ErrNotEnoughAccountKeys
	}
	contributor, mint, campaign, record := accounts[0], accounts[1], accounts[2], accounts[3]
	source, vault, tokenProgram, systemProgram := accounts[4], accounts[5], accounts[6], accounts[7]

	amount, err := decodeContributeAmount(data)
	if err != nil {
		return err
	}

	if !contributor.IsSigner {
		return runtime.ErrMissingRequiredSignature
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	if err := checkProgram(tokenProgram, solana.TokenProgramID); err != nil {
		return err
	}
	if err := checkProgram(systemProgram, solana.SystemProgramID); err != nil {
		return err
	}

	state, err := loadCampaign(host, campaign, mint)
	if err != nil {
		return err
	}
	if _, err := loadVault(host, vault, mint, campaign); err != nil {
		return err
	}

	if state.GoalReached() {
		return ErrFundraiserGoalReached
	}
	if amount > state.MaxContribution() {
		return ErrContributionTooLong
	}

	mintState, err := host.Mint(mint)
	if err != nil {
		return runtime.ErrInvalidAccountData
	}
	minimum, err := unitAmount(mintState.Decimals)
	if err != nil {
		return err
	}
	if amount < minimum {
		return ErrContributionTooShort
	}

	if state.Expired(host.Now()) {
		return ErrFundraiserExpired
	}

	pda, err := VerifyContributorPDA(host.ProgramID(), record.Key, campaign.Key, contributor.Key)
	if err != nil {
		return err
	}
	balance, err := checkTokenAccount(host, source, mint.Key, contributor.Key)
	if err != nil {
		return err
	}
	if balance < amount {
		return runtime.ErrInsufficientFunds
	}

	// both totals are computed before anything moves
	fresh := record.DataIsEmpty()
	deposit := &Contributor{Contributor: contributor.Key, Bump: pda.Bump}
	if !fresh {
		if !record.Owner.Equals(host.ProgramID()) {
			return runtime.ErrInvalidAccountOwner
		}
		if deposit, err = DecodeContributor(record.Data); err != nil {
			return err
		}
	}
	if err := deposit.Deposit(amount); err != nil {
		return err
	}
	if err := state.AddRaised(amount); err != nil {
		return err
	}

	if fresh {
		err = host.CreateAccount(
			contributor,
			record,
			ContributorSize,
			host.MinimumBalance(ContributorSize),
			host.ProgramID(),
			contributorSigner(campaign.Key, contributor.Key, pda.Bump),
		)
		if err != nil {
			return err
		}
	}

	if err := host.Transfer(source, vault, contributor, amount); err != nil {
		return err
	}

	if err := deposit.Store(record); err != nil {
		return err
	}
	return state.Store(campaign)
}
