package escrow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"fundraiser/internal/models"
	chain "fundraiser/pkg/solana"
	"fundraiser/pkg/solana/fundraiser"
	"fundraiser/pkg/solana/runtime"
)

var (
	// ErrInvalidCredentials is returned when a wallet cannot be unlocked
	ErrInvalidCredentials = errors.New("invalid wallet credentials")
	// ErrInvalidRequest is returned for requests rejected before submission
	ErrInvalidRequest = errors.New("invalid request")
)

// Ledger executes transactions and serves account state. *runtime.Bank
// implements it.
type Ledger interface {
	chain.AccountFetcher
	ExecuteTransaction(tx *solana.Transaction) (*runtime.TransactionMeta, error)
	LatestBlockhash() solana.Hash
	Slot() uint64
	Now() int64
	Airdrop(key solana.PublicKey, lamports uint64) error
	CreateMint(address, authority solana.PublicKey, decimals uint8) error
	CreateTokenAccount(address, mint, owner solana.PublicKey) error
	MintTo(address solana.PublicKey, amount uint64) error
}

// KeyStore unlocks participants' signing keys
type KeyStore interface {
	CreateWallet(password string) (solana.PublicKey, error)
	SigningKey(address solana.PublicKey, password string) (solana.PrivateKey, error)
}

// Service runs escrow operations on behalf of participants: it signs with
// their stored keys, submits to the ledger, journals the outcome, keeps the
// campaign snapshot current and emits events.
type Service struct {
	ledger    Ledger
	reader    *chain.AccountReader
	keys      KeyStore
	store     Store
	events    *emitter
	programID solana.PublicKey
	airdrop   uint64
}

type Option func(*Service)

// WithAirdrop credits lamports to every wallet the service creates
func WithAirdrop(lamports uint64) Option {
	return func(s *Service) {
		s.airdrop = lamports
	}
}

// WithSink registers an event sink
func WithSink(sink EventSink) Option {
	return func(s *Service) {
		s.events.add(sink)
	}
}

func NewService(ledger Ledger, keys KeyStore, store Store, programID solana.PublicKey, opts ...Option) *Service {
	s := &Service{
		ledger:    ledger,
		reader:    chain.NewAccountReader(ledger, programID),
		keys:      keys,
		store:     store,
		events:    &emitter{},
		programID: programID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddSink registers an event sink after construction
func (s *Service) AddSink(sink EventSink) {
	s.events.add(sink)
}

// Receipt describes a committed operation
type Receipt struct {
	OperationID uuid.UUID `json:"operation_id"`
	Signature   string    `json:"signature"`
	Slot        uint64    `json:"slot"`
	Campaign    string    `json:"campaign"`
	Amount      uint64    `json:"amount"`
}

type InitializeRequest struct {
	Maker    solana.PublicKey
	Password string
	Mint     solana.PublicKey
	Goal     uint64
	Duration uint64
}

type ContributeRequest struct {
	Maker       solana.PublicKey
	Contributor solana.PublicKey
	Password    string
	Amount      uint64
	// TokenAccount defaults to the contributor's associated token account
	TokenAccount *solana.PublicKey
}

type SettleRequest struct {
	Maker    solana.PublicKey
	Password string
}

type RefundRequest struct {
	Maker       solana.PublicKey
	Contributor solana.PublicKey
	Password    string
}

// CreateWallet generates and stores a participant keypair
func (s *Service) CreateWallet(ctx context.Context, password string) (solana.PublicKey, error) {
	if password == "" {
		return solana.PublicKey{}, fmt.Errorf("%w: password is required", ErrInvalidRequest)
	}
	address, err := s.keys.CreateWallet(password)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if s.airdrop > 0 {
		if err := s.ledger.Airdrop(address, s.airdrop); err != nil {
			return solana.PublicKey{}, fmt.Errorf("failed to fund wallet %s: %w", address, err)
		}
	}
	log.WithField("wallet", address.String()).Info("wallet created")
	return address, nil
}

// Initialize opens the maker's campaign, creating its vault if needed
func (s *Service) Initialize(ctx context.Context, req InitializeRequest) (*Receipt, error) {
	signer, err := s.unlock(req.Maker, req.Password)
	if err != nil {
		return nil, err
	}
	campaign, err := fundraiser.GetCampaignPDA(s.programID, req.Maker)
	if err != nil {
		return nil, err
	}
	vault, err := s.ensureTokenAccount(ctx, campaign.Address, req.Mint)
	if err != nil {
		return nil, err
	}

	ix, err := fundraiser.NewInitializeInstruction(s.programID, fundraiser.InitializeAccounts{
		Maker: req.Maker,
		Mint:  req.Mint,
		Vault: vault,
	}, fundraiser.InitializeArgs{Amount: req.Goal, Duration: req.Duration})
	if err != nil {
		return nil, err
	}

	op := &models.EscrowOperation{
		Kind:     models.OperationInitialize,
		Campaign: campaign.Address.String(),
		Maker:    req.Maker.String(),
		Signer:   req.Maker.String(),
		Amount:   strconv.FormatUint(req.Goal, 10),
	}
	receipt, err := s.submit(ctx, op, ix, signer, nil)
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, op, req.Maker, models.EventCampaignInitialized, models.JSONMap{
		"maker":           req.Maker.String(),
		"mint":            req.Mint.String(),
		"vault":           vault.String(),
		"amount_to_raise": req.Goal,
		"duration":        req.Duration,
	})
	return receipt, nil
}

// Contribute moves tokens from the contributor into the campaign vault
func (s *Service) Contribute(ctx context.Context, req ContributeRequest) (*Receipt, error) {
	signer, err := s.unlock(req.Contributor, req.Password)
	if err != nil {
		return nil, err
	}
	view, err := s.reader.FetchCampaign(ctx, req.Maker)
	if err != nil {
		return nil, err
	}
	source, err := s.sourceAccount(req.Contributor, view.State.MintToRaise, req.TokenAccount)
	if err != nil {
		return nil, err
	}

	ix, err := fundraiser.NewContributeInstruction(s.programID, fundraiser.ContributeAccounts{
		Contributor:  req.Contributor,
		Maker:        req.Maker,
		Mint:         view.State.MintToRaise,
		TokenAccount: source,
		Vault:        view.Vault,
	}, req.Amount)
	if err != nil {
		return nil, err
	}

	op := &models.EscrowOperation{
		Kind:     models.OperationContribute,
		Campaign: view.Address.String(),
		Maker:    req.Maker.String(),
		Signer:   req.Contributor.String(),
		Amount:   strconv.FormatUint(req.Amount, 10),
	}
	receipt, err := s.submit(ctx, op, ix, signer, nil)
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, op, req.Maker, models.EventContributed, models.JSONMap{
		"contributor": req.Contributor.String(),
		"amount":      req.Amount,
	})
	return receipt, nil
}

// Settle pays the vault out to the maker's token account
func (s *Service) Settle(ctx context.Context, req SettleRequest) (*Receipt, error) {
	signer, err := s.unlock(req.Maker, req.Password)
	if err != nil {
		return nil, err
	}
	view, err := s.reader.FetchCampaign(ctx, req.Maker)
	if err != nil {
		return nil, err
	}
	destination, err := s.ensureTokenAccount(ctx, req.Maker, view.State.MintToRaise)
	if err != nil {
		return nil, err
	}

	ix, err := fundraiser.NewCheckerInstruction(s.programID, fundraiser.CheckerAccounts{
		Maker:        req.Maker,
		Mint:         view.State.MintToRaise,
		Vault:        view.Vault,
		TokenAccount: destination,
	})
	if err != nil {
		return nil, err
	}

	op := &models.EscrowOperation{
		Kind:     models.OperationChecker,
		Campaign: view.Address.String(),
		Maker:    req.Maker.String(),
		Signer:   req.Maker.String(),
		Amount:   strconv.FormatUint(view.VaultBalance, 10),
	}
	receipt, err := s.submit(ctx, op, ix, signer, &view.Vault)
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, op, req.Maker, models.EventSettled, models.JSONMap{
		"destination": destination.String(),
		"amount":      receipt.Amount,
	})
	return receipt, nil
}

// Refund returns the contributor's recorded total from the vault
func (s *Service) Refund(ctx context.Context, req RefundRequest) (*Receipt, error) {
	signer, err := s.unlock(req.Contributor, req.Password)
	if err != nil {
		return nil, err
	}
	view, err := s.reader.FetchCampaign(ctx, req.Maker)
	if err != nil {
		return nil, err
	}
	var amount uint64
	if record, err := s.reader.FetchContributor(ctx, req.Maker, req.Contributor); err == nil {
		amount = record.State.Amount
	}
	destination, err := s.ensureTokenAccount(ctx, req.Contributor, view.State.MintToRaise)
	if err != nil {
		return nil, err
	}

	ix, err := fundraiser.NewRefundInstruction(s.programID, fundraiser.RefundAccounts{
		Contributor:  req.Contributor,
		Maker:        req.Maker,
		Mint:         view.State.MintToRaise,
		TokenAccount: destination,
		Vault:        view.Vault,
	})
	if err != nil {
		return nil, err
	}

	op := &models.EscrowOperation{
		Kind:     models.OperationRefund,
		Campaign: view.Address.String(),
		Maker:    req.Maker.String(),
		Signer:   req.Contributor.String(),
		Amount:   strconv.FormatUint(amount, 10),
	}
	receipt, err := s.submit(ctx, op, ix, signer, &view.Vault)
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, op, req.Maker, models.EventRefunded, models.JSONMap{
		"contributor": req.Contributor.String(),
		"amount":      receipt.Amount,
	})
	return receipt, nil
}

func (s *Service) unlock(address solana.PublicKey, password string) (solana.PrivateKey, error) {
	key, err := s.keys.SigningKey(address, password)
	if err != nil {
		if errors.Is(err, chain.ErrWalletNotFound) {
			return nil, err
		}
		log.WithField("wallet", address.String()).Warnf("failed to unlock wallet: %v", err)
		return nil, ErrInvalidCredentials
	}
	return key, nil
}

// ensureTokenAccount returns the associated token account of owner for mint,
// creating it on the ledger when missing
func (s *Service) ensureTokenAccount(ctx context.Context, owner, mint solana.PublicKey) (solana.PublicKey, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive token account: %w", err)
	}
	_, err = s.reader.FetchTokenBalance(ctx, ata)
	switch {
	case err == nil:
		return ata, nil
	case errors.Is(err, chain.ErrAccountNotFound):
		if err := s.ledger.CreateTokenAccount(ata, mint, owner); err != nil {
			return solana.PublicKey{}, fmt.Errorf("failed to create token account %s: %w", ata, err)
		}
		return ata, nil
	default:
		return solana.PublicKey{}, err
	}
}

func (s *Service) sourceAccount(owner, mint solana.PublicKey, explicit *solana.PublicKey) (solana.PublicKey, error) {
	if explicit != nil {
		return *explicit, nil
	}
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive token account: %w", err)
	}
	return ata, nil
}

// submit signs and executes ix, then journals the outcome whatever it is.
// When outflow is set, the journaled amount is what left that token account
// in the committed transaction.
func (s *Service) submit(ctx context.Context, op *models.EscrowOperation, ix solana.Instruction, signer solana.PrivateKey, outflow *solana.PublicKey) (*Receipt, error) {
	tx, err := solana.NewTransaction(
		[]solana.Instruction{ix},
		s.ledger.LatestBlockhash(),
		solana.TransactionPayer(signer.PublicKey()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build transaction: %w", err)
	}
	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(signer.PublicKey()) {
			return &signer
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	op.ID = uuid.New()
	op.Signature = tx.Signatures[0].String()
	meta, execErr := s.ledger.ExecuteTransaction(tx)
	if execErr != nil {
		op.Slot = s.ledger.Slot()
	} else {
		op.Slot = meta.Slot
		if outflow != nil {
			if pre, post, ok := meta.TokenBalance(*outflow); ok && pre >= post {
				op.Amount = strconv.FormatUint(pre-post, 10)
			}
		}
	}

	logger := log.WithFields(log.Fields{
		"operation": op.Kind,
		"campaign":  op.Campaign,
		"signer":    op.Signer,
		"amount":    op.Amount,
		"signature": op.Signature,
	})
	if execErr != nil {
		op.Status = models.OperationFailed
		op.ErrorMessage = execErr.Error()
		if pe, ok := runtime.AsProgramError(execErr); ok {
			code := int64(pe.Code)
			op.ErrorCode = &code
			op.ErrorCustom = pe.Custom
		}
		logger.Warnf("operation rejected: %v", execErr)
	} else {
		op.Status = models.OperationSucceeded
		logger.Info("operation committed")
	}

	if err := s.store.RecordOperation(ctx, op); err != nil {
		logger.Errorf("failed to journal operation: %v", err)
	}
	if execErr != nil {
		return nil, execErr
	}
	amount, _ := strconv.ParseUint(op.Amount, 10, 64)
	return &Receipt{
		OperationID: op.ID,
		Signature:   op.Signature,
		Slot:        op.Slot,
		Campaign:    op.Campaign,
		Amount:      amount,
	}, nil
}

// afterCommit refreshes the snapshot of the maker's campaign and emits
// eventType
func (s *Service) afterCommit(ctx context.Context, op *models.EscrowOperation, maker solana.PublicKey, eventType string, payload models.JSONMap) {
	now := time.Unix(s.ledger.Now(), 0)
	view, err := s.reader.FetchCampaign(ctx, maker)
	if err != nil {
		log.WithField("campaign", op.Campaign).Errorf("failed to read campaign after %s: %v", op.Kind, err)
	} else {
		snapshot := snapshotOf(view, now)
		if op.Kind == models.OperationChecker {
			snapshot.Status = models.CampaignSettled
		}
		if err := s.store.SaveSnapshot(ctx, snapshot); err != nil {
			log.WithField("campaign", op.Campaign).Errorf("failed to save snapshot: %v", err)
		}
		payload["current_amount"] = view.State.CurrentAmount
		payload["vault_balance"] = view.VaultBalance
	}
	payload["operation_id"] = op.ID.String()
	payload["signature"] = op.Signature
	s.events.emit(eventType, op.Campaign, payload, now)
}

func snapshotOf(view *chain.CampaignView, now time.Time) *models.CampaignSnapshot {
	status := models.CampaignActive
	if view.State.Expired(now.Unix()) {
		status = models.CampaignExpired
	}
	return &models.CampaignSnapshot{
		Campaign:        view.Address.String(),
		Maker:           view.State.Maker.String(),
		Mint:            view.State.MintToRaise.String(),
		Vault:           view.Vault.String(),
		AmountToRaise:   strconv.FormatUint(view.State.AmountToRaise, 10),
		CurrentAmount:   strconv.FormatUint(view.State.CurrentAmount, 10),
		VaultBalance:    strconv.FormatUint(view.VaultBalance, 10),
		TimeStarted:     time.Unix(view.State.TimeStarted, 0).UTC(),
		DurationSeconds: strconv.FormatUint(view.State.DurationSeconds, 10),
		EndsAt:          endsAt(view.State),
		Status:          status,
	}
}

// latest timestamp postgres stores, 9999-12-31T23:59:59Z
const maxStoredUnix = 253402300799

func endsAt(state *fundraiser.Campaign) time.Time {
	end := state.EndsAt()
	if end > maxStoredUnix {
		end = maxStoredUnix
	}
	return time.Unix(end, 0).UTC()
}
