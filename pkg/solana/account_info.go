package solana

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	log "github.com/sirupsen/logrus"

	"fundraiser/pkg/solana/fundraiser"
	"fundraiser/pkg/solana/runtime"
)

// ErrAccountNotFound is returned when the requested account does not exist
var ErrAccountNotFound = errors.New("account not found")

// AccountFetcher is the read side of an RPC node. *rpc.Client and
// *runtime.Bank both satisfy it.
type AccountFetcher interface {
	GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error)
}

// CampaignView is a decoded campaign together with its addresses
type CampaignView struct {
	Address      solana.PublicKey
	Vault        solana.PublicKey
	State        *fundraiser.Campaign
	VaultBalance uint64
}

// ContributorView is a decoded contributor record
type ContributorView struct {
	Address solana.PublicKey
	State   *fundraiser.Contributor
}

// AccountReader decodes escrow accounts fetched through an AccountFetcher
type AccountReader struct {
	client     AccountFetcher
	programID  solana.PublicKey
	commitment rpc.CommitmentType
}

// NewAccountReader creates a reader for the escrow program deployed at programID
func NewAccountReader(client AccountFetcher, programID solana.PublicKey) *AccountReader {
	return &AccountReader{client: client, programID: programID, commitment: rpc.CommitmentConfirmed}
}

func (r *AccountReader) fetch(ctx context.Context, address solana.PublicKey) (*rpc.Account, error) {
	resp, err := r.client.GetAccountInfoWithOpts(ctx, address, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: r.commitment,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", address, ErrAccountNotFound)
		}
		return nil, fmt.Errorf("failed to get account info for %s: %w", address, err)
	}
	if resp == nil || resp.Value == nil || resp.Value.Data == nil {
		return nil, fmt.Errorf("%s: %w", address, ErrAccountNotFound)
	}
	return resp.Value, nil
}

// FetchCampaign loads the campaign opened by maker and the balance of its vault
func (r *AccountReader) FetchCampaign(ctx context.Context, maker solana.PublicKey) (*CampaignView, error) {
	pda, err := fundraiser.GetCampaignPDA(r.programID, maker)
	if err != nil {
		return nil, err
	}
	acct, err := r.fetch(ctx, pda.Address)
	if err != nil {
		return nil, err
	}
	if !acct.Owner.Equals(r.programID) {
		return nil, fmt.Errorf("campaign %s is owned by %s: %w", pda.Address, acct.Owner, runtime.ErrInvalidAccountOwner)
	}
	state, err := fundraiser.DecodeCampaign(acct.Data.GetBinary())
	if err != nil {
		return nil, fmt.Errorf("failed to decode campaign %s: %w", pda.Address, err)
	}

	vault, _, err := solana.FindAssociatedTokenAddress(pda.Address, state.MintToRaise)
	if err != nil {
		return nil, fmt.Errorf("failed to derive vault address: %w", err)
	}
	balance, err := r.FetchTokenBalance(ctx, vault)
	if err != nil {
		log.Warnf("> vault %s of campaign %s unreadable: %v", vault, pda.Address, err)
		return nil, err
	}

	return &CampaignView{Address: pda.Address, Vault: vault, State: state, VaultBalance: balance}, nil
}

// FetchContributor loads the record of contributor in the campaign of maker
func (r *AccountReader) FetchContributor(ctx context.Context, maker, contributor solana.PublicKey) (*ContributorView, error) {
	campaign, err := fundraiser.GetCampaignPDA(r.programID, maker)
	if err != nil {
		return nil, err
	}
	pda, err := fundraiser.GetContributorPDA(r.programID, campaign.Address, contributor)
	if err != nil {
		return nil, err
	}
	acct, err := r.fetch(ctx, pda.Address)
	if err != nil {
		return nil, err
	}
	if !acct.Owner.Equals(r.programID) {
		return nil, fmt.Errorf("contributor record %s is owned by %s: %w", pda.Address, acct.Owner, runtime.ErrInvalidAccountOwner)
	}
	state, err := fundraiser.DecodeContributor(acct.Data.GetBinary())
	if err != nil {
		return nil, fmt.Errorf("failed to decode contributor record %s: %w", pda.Address, err)
	}
	return &ContributorView{Address: pda.Address, State: state}, nil
}

// FetchTokenBalance returns the amount held by an SPL token account
func (r *AccountReader) FetchTokenBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	acct, err := r.fetch(ctx, account)
	if err != nil {
		return 0, err
	}
	if !acct.Owner.Equals(solana.TokenProgramID) {
		return 0, fmt.Errorf("token account %s is owned by %s: %w", account, acct.Owner, runtime.ErrInvalidAccountOwner)
	}
	state, err := runtime.DecodeTokenAccount(acct.Data.GetBinary())
	if err != nil {
		return 0, fmt.Errorf("failed to decode token account %s: %w", account, err)
	}
	return state.Amount, nil
}
