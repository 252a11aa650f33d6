package escrow

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	log "github.com/sirupsen/logrus"

	"fundraiser/internal/models"
)

// CampaignDetails is the current on-ledger state of a campaign
type CampaignDetails struct {
	Address         string    `json:"address"`
	Maker           string    `json:"maker"`
	Mint            string    `json:"mint"`
	Vault           string    `json:"vault"`
	AmountToRaise   uint64    `json:"amount_to_raise"`
	CurrentAmount   uint64    `json:"current_amount"`
	VaultBalance    uint64    `json:"vault_balance"`
	MaxContribution uint64    `json:"max_contribution"`
	TimeStarted     time.Time `json:"time_started"`
	DurationSeconds uint64    `json:"duration_seconds"`
	EndsAt          time.Time `json:"ends_at"`
	Expired         bool      `json:"expired"`
	GoalReached     bool      `json:"goal_reached"`
	Bump            uint8     `json:"bump"`
}

// ContributorDetails is the current record of one contributor
type ContributorDetails struct {
	Address     string `json:"address"`
	Campaign    string `json:"campaign"`
	Contributor string `json:"contributor"`
	Amount      uint64 `json:"amount"`
	Bump        uint8  `json:"bump"`
}

// Campaign reads the campaign opened by maker
func (s *Service) Campaign(ctx context.Context, maker solana.PublicKey) (*CampaignDetails, error) {
	view, err := s.reader.FetchCampaign(ctx, maker)
	if err != nil {
		return nil, err
	}
	state := view.State
	return &CampaignDetails{
		Address:         view.Address.String(),
		Maker:           state.Maker.String(),
		Mint:            state.MintToRaise.String(),
		Vault:           view.Vault.String(),
		AmountToRaise:   state.AmountToRaise,
		CurrentAmount:   state.CurrentAmount,
		VaultBalance:    view.VaultBalance,
		MaxContribution: state.MaxContribution(),
		TimeStarted:     time.Unix(state.TimeStarted, 0).UTC(),
		DurationSeconds: state.DurationSeconds,
		EndsAt:          endsAt(state),
		Expired:         state.Expired(s.ledger.Now()),
		GoalReached:     state.GoalReached(),
		Bump:            state.Bump,
	}, nil
}

// Contributor reads the record of contributor in the campaign of maker
func (s *Service) Contributor(ctx context.Context, maker, contributor solana.PublicKey) (*ContributorDetails, error) {
	view, err := s.reader.FetchContributor(ctx, maker, contributor)
	if err != nil {
		return nil, err
	}
	campaign, err := s.reader.FetchCampaign(ctx, maker)
	if err != nil {
		return nil, err
	}
	return &ContributorDetails{
		Address:     view.Address.String(),
		Campaign:    campaign.Address.String(),
		Contributor: view.State.Contributor.String(),
		Amount:      view.State.Amount,
		Bump:        view.State.Bump,
	}, nil
}

// Operations lists the journal
func (s *Service) Operations(ctx context.Context, filter OperationFilter) ([]models.EscrowOperation, int64, error) {
	return s.store.ListOperations(ctx, filter)
}

// SweepEnded marks every active campaign whose duration has elapsed on the
// ledger clock as expired and emits one event per campaign
func (s *Service) SweepEnded(ctx context.Context) (int, error) {
	now := time.Unix(s.ledger.Now(), 0).UTC()
	ended, err := s.store.ListEnded(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list ended campaigns: %w", err)
	}

	swept := 0
	for _, snapshot := range ended {
		if err := ctx.Err(); err != nil {
			return swept, err
		}
		if err := s.store.UpdateSnapshotStatus(ctx, snapshot.Campaign, models.CampaignExpired); err != nil {
			log.WithField("campaign", snapshot.Campaign).Errorf("failed to mark campaign expired: %v", err)
			continue
		}
		s.events.emit(models.EventCampaignExpired, snapshot.Campaign, models.JSONMap{
			"maker":           snapshot.Maker,
			"amount_to_raise": snapshot.AmountToRaise,
			"current_amount":  snapshot.CurrentAmount,
			"ends_at":         snapshot.EndsAt,
		}, now)
		swept++
	}
	return swept, nil
}

// CreateMint creates a mint on the ledger with a fresh address
func (s *Service) CreateMint(ctx context.Context, authority solana.PublicKey, decimals uint8) (solana.PublicKey, error) {
	mint := solana.NewWallet().PublicKey()
	if err := s.ledger.CreateMint(mint, authority, decimals); err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to create mint: %w", err)
	}
	log.WithFields(log.Fields{"mint": mint.String(), "decimals": decimals}).Info("mint created")
	return mint, nil
}

// FundTokenAccount mints amount tokens into owner's associated token
// account, creating it when missing
func (s *Service) FundTokenAccount(ctx context.Context, owner, mint solana.PublicKey, amount uint64) (solana.PublicKey, error) {
	ata, err := s.ensureTokenAccount(ctx, owner, mint)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if amount > 0 {
		if err := s.ledger.MintTo(ata, amount); err != nil {
			return solana.PublicKey{}, fmt.Errorf("failed to mint to %s: %w", ata, err)
		}
	}
	return ata, nil
}
