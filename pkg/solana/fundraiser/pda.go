package fundraiser

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"fundraiser/pkg/solana/runtime"
)

// ProgramID is the address the escrow program is deployed under.
var ProgramID = solana.MustPublicKeyFromBase58("CG1q69YqagtgKi4G22pNM3WPYeqs1MEBe79qAZGU4FNc")

// PDA seed namespaces
var (
	SEED_CAMPAIGN    = []byte("campaign")
	SEED_CONTRIBUTOR = []byte("contributor")
)

// PDAResult is a derived address and the bump that made it fall off curve.
type PDAResult struct {
	Address solana.PublicKey
	Bump    uint8
}

// seeds returns the signer seeds of the derivation, bump included.
func (r PDAResult) seeds(namespace []byte, keys ...solana.PublicKey) runtime.Seeds {
	seeds := make(runtime.Seeds, 0, len(keys)+2)
	seeds = append(seeds, namespace)
	for i := range keys {
		seeds = append(seeds, keys[i][:])
	}
	return append(seeds, []byte{r.Bump})
}

// GetCampaignPDA derives the campaign record address of a maker.
func GetCampaignPDA(programID, maker solana.PublicKey) (PDAResult, error) {
	seeds := [][]byte{
		SEED_CAMPAIGN,
		maker[:],
	}

	address, bump, err := solana.FindProgramAddress(seeds, programID)
	if err != nil {
		return PDAResult{}, fmt.Errorf("failed to find campaign PDA: %w", err)
	}

	return PDAResult{
		Address: address,
		Bump:    bump,
	}, nil
}

// GetContributorPDA derives the record address of one contributor to one
// campaign.
func GetContributorPDA(programID, campaign, contributor solana.PublicKey) (PDAResult, error) {
	seeds := [][]byte{
		SEED_CONTRIBUTOR,
		campaign[:],
		contributor[:],
	}

	address, bump, err := solana.FindProgramAddress(seeds, programID)
	if err != nil {
		return PDAResult{}, fmt.Errorf("failed to find contributor PDA: %w", err)
	}

	return PDAResult{
		Address: address,
		Bump:    bump,
	}, nil
}

// VerifyCampaignPDA re-derives the campaign address of maker and rejects a
// claimed address that does not match.
func VerifyCampaignPDA(programID, claimed, maker solana.PublicKey) (PDAResult, error) {
	pda, err := GetCampaignPDA(programID, maker)
	if err != nil {
		return PDAResult{}, runtime.ErrInvalidSeeds
	}
	if !pda.Address.Equals(claimed) {
		return PDAResult{}, runtime.ErrInvalidAccountData
	}
	return pda, nil
}

// VerifyContributorPDA re-derives a contributor record address and rejects
// a claimed address that does not match.
func VerifyContributorPDA(programID, claimed, campaign, contributor solana.PublicKey) (PDAResult, error) {
	pda, err := GetContributorPDA(programID, campaign, contributor)
	if err != nil {
		return PDAResult{}, runtime.ErrInvalidSeeds
	}
	if !pda.Address.Equals(claimed) {
		return PDAResult{}, ErrInvalidContributor
	}
	return pda, nil
}

// campaignSigner rebuilds the campaign's signing capability from the maker
// and the stored bump.
func campaignSigner(maker solana.PublicKey, bump uint8) runtime.Seeds {
	return PDAResult{Bump: bump}.seeds(SEED_CAMPAIGN, maker)
}

func contributorSigner(campaign, contributor solana.PublicKey, bump uint8) runtime.Seeds {
	return PDAResult{Bump: bump}.seeds(SEED_CONTRIBUTOR, campaign, contributor)
}
