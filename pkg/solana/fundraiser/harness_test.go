package fundraiser

import (
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"fundraiser/pkg/solana/runtime"
)

const lamportsPerSol = 1_000_000_000

var genesis = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// testLedger wires the program into an in-process bank with one mint and
// one maker whose vault already exists.
type testLedger struct {
	bank     *runtime.Bank
	mint     solana.PublicKey
	maker    solana.PrivateKey
	campaign PDAResult
	vault    solana.PublicKey
}

func newTestLedger(t *testing.T, decimals uint8) *testLedger {
	t.Helper()

	bank := runtime.NewBank(runtime.WithClock(func() time.Time { return genesis }))
	bank.RegisterProgram(ProgramID, Process)

	mintAuthority := newKey(t)
	mint := newKey(t).PublicKey()
	require.NoError(t, bank.CreateMint(mint, mintAuthority.PublicKey(), decimals))

	maker := newKey(t)
	require.NoError(t, bank.Airdrop(maker.PublicKey(), lamportsPerSol))

	campaign, err := GetCampaignPDA(ProgramID, maker.PublicKey())
	require.NoError(t, err)
	vault, _, err := solana.FindAssociatedTokenAddress(campaign.Address, mint)
	require.NoError(t, err)
	require.NoError(t, bank.CreateTokenAccount(vault, mint, campaign.Address))

	return &testLedger{
		bank:     bank,
		mint:     mint,
		maker:    maker,
		campaign: campaign,
		vault:    vault,
	}
}

func newKey(t *testing.T) solana.PrivateKey {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return key
}

// send signs ix with the signers (the first one pays) and processes it.
func (l *testLedger) send(t *testing.T, ix solana.Instruction, signers ...solana.PrivateKey) error {
	t.Helper()
	tx, err := solana.NewTransaction(
		[]solana.Instruction{ix},
		l.bank.LatestBlockhash(),
		solana.TransactionPayer(signers[0].PublicKey()),
	)
	require.NoError(t, err)
	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		for i := range signers {
			if signers[i].PublicKey().Equals(key) {
				return &signers[i]
			}
		}
		return nil
	})
	require.NoError(t, err)
	return l.bank.ProcessTransaction(tx)
}

func (l *testLedger) initialize(t *testing.T, goal, duration uint64) error {
	t.Helper()
	ix, err := NewInitializeInstruction(ProgramID, InitializeAccounts{
		Maker: l.maker.PublicKey(),
		Mint:  l.mint,
		Vault: l.vault,
	}, InitializeArgs{Amount: goal, Duration: duration})
	require.NoError(t, err)
	return l.send(t, ix, l.maker)
}

// newContributor creates a funded contributor with a token account.
func (l *testLedger) newContributor(t *testing.T, balance uint64) (solana.PrivateKey, solana.PublicKey) {
	t.Helper()
	key := newKey(t)
	require.NoError(t, l.bank.Airdrop(key.PublicKey(), lamportsPerSol))
	ata, _, err := solana.FindAssociatedTokenAddress(key.PublicKey(), l.mint)
	require.NoError(t, err)
	require.NoError(t, l.bank.CreateTokenAccount(ata, l.mint, key.PublicKey()))
	if balance > 0 {
		require.NoError(t, l.bank.MintTo(ata, balance))
	}
	return key, ata
}

func (l *testLedger) contribute(t *testing.T, contributor solana.PrivateKey, source solana.PublicKey, amount uint64) error {
	t.Helper()
	ix, err := NewContributeInstruction(ProgramID, ContributeAccounts{
		Contributor:  contributor.PublicKey(),
		Maker:        l.maker.PublicKey(),
		Mint:         l.mint,
		TokenAccount: source,
		Vault:        l.vault,
	}, amount)
	require.NoError(t, err)
	return l.send(t, ix, contributor)
}

func (l *testLedger) refund(t *testing.T, contributor solana.PrivateKey, destination solana.PublicKey) error {
	t.Helper()
	ix, err := NewRefundInstruction(ProgramID, RefundAccounts{
		Contributor:  contributor.PublicKey(),
		Maker:        l.maker.PublicKey(),
		Mint:         l.mint,
		TokenAccount: destination,
		Vault:        l.vault,
	})
	require.NoError(t, err)
	return l.send(t, ix, contributor)
}

func (l *testLedger) checker(t *testing.T, destination solana.PublicKey) error {
	t.Helper()
	ix, err := NewCheckerInstruction(ProgramID, CheckerAccounts{
		Maker:        l.maker.PublicKey(),
		Mint:         l.mint,
		Vault:        l.vault,
		TokenAccount: destination,
	})
	require.NoError(t, err)
	return l.send(t, ix, l.maker)
}

func (l *testLedger) campaignState(t *testing.T) *Campaign {
	t.Helper()
	acct, ok := l.bank.Account(l.campaign.Address)
	require.True(t, ok, "campaign account missing")
	state, err := DecodeCampaign(acct.Data)
	require.NoError(t, err)
	return state
}

func (l *testLedger) contributorState(t *testing.T, contributor solana.PublicKey) *Contributor {
	t.Helper()
	pda, err := GetContributorPDA(ProgramID, l.campaign.Address, contributor)
	require.NoError(t, err)
	acct, ok := l.bank.Account(pda.Address)
	require.True(t, ok, "contributor account missing")
	state, err := DecodeContributor(acct.Data)
	require.NoError(t, err)
	return state
}

func (l *testLedger) balance(t *testing.T, tokenAccount solana.PublicKey) uint64 {
	t.Helper()
	amount, err := l.bank.TokenBalance(tokenAccount)
	require.NoError(t, err)
	return amount
}

// putCampaign overwrites the campaign record, for states that are slow to
// reach through instructions.
func (l *testLedger) putCampaign(t *testing.T, state *Campaign) {
	t.Helper()
	data, err := state.Encode()
	require.NoError(t, err)
	l.bank.SetAccount(&runtime.AccountInfo{
		Key:      l.campaign.Address,
		Owner:    ProgramID,
		Lamports: runtime.MinimumBalance(CampaignSize),
		Data:     data,
	})
}

func (l *testLedger) putContributor(t *testing.T, state *Contributor) {
	t.Helper()
	pda, err := GetContributorPDA(ProgramID, l.campaign.Address, state.Contributor)
	require.NoError(t, err)
	data, err := state.Encode()
	require.NoError(t, err)
	l.bank.SetAccount(&runtime.AccountInfo{
		Key:      pda.Address,
		Owner:    ProgramID,
		Lamports: runtime.MinimumBalance(ContributorSize),
		Data:     data,
	})
}
