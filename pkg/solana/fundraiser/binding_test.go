package fundraiser

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundraiser/pkg/solana/runtime"
)

// foreignMint creates a second mint with the same decimals as the campaign's.
func (l *testLedger) foreignMint(t *testing.T) solana.PublicKey {
	t.Helper()
	mint := newKey(t).PublicKey()
	require.NoError(t, l.bank.CreateMint(mint, newKey(t).PublicKey(), 0))
	return mint
}

// tokenAccount creates a token account of mint held by owner at a fresh address.
func (l *testLedger) tokenAccount(t *testing.T, mint, owner solana.PublicKey, amount uint64) solana.PublicKey {
	t.Helper()
	address := newKey(t).PublicKey()
	require.NoError(t, l.bank.CreateTokenAccount(address, mint, owner))
	if amount > 0 {
		require.NoError(t, l.bank.MintTo(address, amount))
	}
	return address
}

func TestInitializeAssetBinding(t *testing.T) {
	t.Run("Rejects vault of another mint", func(t *testing.T) {
		l := newTestLedger(t, 0)
		vault := l.tokenAccount(t, l.foreignMint(t), l.campaign.Address, 0)

		ix, err := NewInitializeInstruction(ProgramID, InitializeAccounts{
			Maker: l.maker.PublicKey(),
			Mint:  l.mint,
			Vault: vault,
		}, InitializeArgs{Amount: 1000, Duration: 60})
		require.NoError(t, err)

		assert.ErrorIs(t, l.send(t, ix, l.maker), runtime.ErrInvalidAccountData)
		_, ok := l.bank.Account(l.campaign.Address)
		assert.False(t, ok)
	})
}

func TestContributeAssetBinding(t *testing.T) {
	setup := func(t *testing.T) (*testLedger, solana.PrivateKey, solana.PublicKey) {
		l := newTestLedger(t, 0)
		require.NoError(t, l.initialize(t, 1000, 60))
		contributor, source := l.newContributor(t, 100)
		return l, contributor, source
	}
	assertUnchanged := func(t *testing.T, l *testLedger, contributor solana.PrivateKey, source solana.PublicKey) {
		t.Helper()
		assert.Zero(t, l.campaignState(t).CurrentAmount)
		assert.Zero(t, l.balance(t, l.vault))
		assert.Equal(t, uint64(100), l.balance(t, source))
		pda, err := GetContributorPDA(ProgramID, l.campaign.Address, contributor.PublicKey())
		require.NoError(t, err)
		_, ok := l.bank.Account(pda.Address)
		assert.False(t, ok)
	}

	t.Run("Rejects mint other than the campaign's", func(t *testing.T) {
		l, contributor, source := setup(t)

		ix, err := NewContributeInstruction(ProgramID, ContributeAccounts{
			Contributor:  contributor.PublicKey(),
			Maker:        l.maker.PublicKey(),
			Mint:         l.foreignMint(t),
			TokenAccount: source,
			Vault:        l.vault,
		}, 10)
		require.NoError(t, err)

		assert.ErrorIs(t, l.send(t, ix, contributor), runtime.ErrInvalidAccountData)
		assertUnchanged(t, l, contributor, source)
	})

	t.Run("Rejects campaign owned vault of another mint", func(t *testing.T) {
		l, contributor, source := setup(t)
		vault := l.tokenAccount(t, l.foreignMint(t), l.campaign.Address, 0)

		ix, err := NewContributeInstruction(ProgramID, ContributeAccounts{
			Contributor:  contributor.PublicKey(),
			Maker:        l.maker.PublicKey(),
			Mint:         l.mint,
			TokenAccount: source,
			Vault:        vault,
		}, 10)
		require.NoError(t, err)

		assert.ErrorIs(t, l.send(t, ix, contributor), runtime.ErrInvalidAccountData)
		assertUnchanged(t, l, contributor, source)
		assert.Zero(t, l.balance(t, vault))
	})

	t.Run("Rejects source account of another mint", func(t *testing.T) {
		l, contributor, source := setup(t)
		foreign := l.tokenAccount(t, l.foreignMint(t), contributor.PublicKey(), 100)

		assert.ErrorIs(t, l.contribute(t, contributor, foreign, 10), runtime.ErrInvalidAccountData)
		assertUnchanged(t, l, contributor, source)
		assert.Equal(t, uint64(100), l.balance(t, foreign))
	})
}

func TestCheckerAssetBinding(t *testing.T) {
	setup := func(t *testing.T) (*testLedger, solana.PublicKey) {
		l := newTestLedger(t, 0)
		require.NoError(t, l.initialize(t, 1000, 60))
		contributor, source := l.newContributor(t, 100)
		require.NoError(t, l.contribute(t, contributor, source, 50))
		return l, contributor.PublicKey()
	}

	t.Run("Rejects campaign owned vault of another mint", func(t *testing.T) {
		l, _ := setup(t)
		vault := l.tokenAccount(t, l.foreignMint(t), l.campaign.Address, 5)
		_, destination := l.makerTokenAccount(t)

		ix, err := NewCheckerInstruction(ProgramID, CheckerAccounts{
			Maker:        l.maker.PublicKey(),
			Mint:         l.mint,
			Vault:        vault,
			TokenAccount: destination,
		})
		require.NoError(t, err)

		assert.ErrorIs(t, l.send(t, ix, l.maker), runtime.ErrInvalidAccountData)
		assert.Equal(t, uint64(5), l.balance(t, vault))
		assert.Equal(t, uint64(50), l.balance(t, l.vault))
		assert.Zero(t, l.balance(t, destination))
	})

	t.Run("Rejects destination of another mint", func(t *testing.T) {
		l, _ := setup(t)
		destination := l.tokenAccount(t, l.foreignMint(t), l.maker.PublicKey(), 0)

		assert.ErrorIs(t, l.checker(t, destination), runtime.ErrInvalidAccountData)
		assert.Equal(t, uint64(50), l.balance(t, l.vault))
		assert.Zero(t, l.balance(t, destination))
		assert.Equal(t, uint64(50), l.campaignState(t).CurrentAmount)
	})
}

func TestRefundAssetBinding(t *testing.T) {
	setup := func(t *testing.T) (*testLedger, solana.PrivateKey, solana.PublicKey) {
		l := newTestLedger(t, 0)
		require.NoError(t, l.initialize(t, 1000, 60))
		contributor, source := l.newContributor(t, 100)
		require.NoError(t, l.contribute(t, contributor, source, 50))
		return l, contributor, source
	}
	assertUnchanged := func(t *testing.T, l *testLedger, contributor solana.PrivateKey, source solana.PublicKey) {
		t.Helper()
		assert.Equal(t, uint64(50), l.balance(t, l.vault))
		assert.Equal(t, uint64(50), l.balance(t, source))
		assert.Equal(t, uint64(50), l.campaignState(t).CurrentAmount)
		assert.Equal(t, uint64(50), l.contributorState(t, contributor.PublicKey()).Amount)
	}

	t.Run("Rejects campaign owned vault of another mint", func(t *testing.T) {
		l, contributor, source := setup(t)
		vault := l.tokenAccount(t, l.foreignMint(t), l.campaign.Address, 50)

		ix, err := NewRefundInstruction(ProgramID, RefundAccounts{
			Contributor:  contributor.PublicKey(),
			Maker:        l.maker.PublicKey(),
			Mint:         l.mint,
			TokenAccount: source,
			Vault:        vault,
		})
		require.NoError(t, err)

		assert.ErrorIs(t, l.send(t, ix, contributor), runtime.ErrInvalidAccountData)
		assertUnchanged(t, l, contributor, source)
		assert.Equal(t, uint64(50), l.balance(t, vault))
	})

	t.Run("Rejects destination of another mint", func(t *testing.T) {
		l, contributor, source := setup(t)
		destination := l.tokenAccount(t, l.foreignMint(t), contributor.PublicKey(), 0)

		assert.ErrorIs(t, l.refund(t, contributor, destination), runtime.ErrInvalidAccountData)
		assertUnchanged(t, l, contributor, source)
		assert.Zero(t, l.balance(t, destination))
	})
}
