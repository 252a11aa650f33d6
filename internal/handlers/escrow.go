package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"fundraiser/internal/escrow"
	"fundraiser/internal/models"
	chain "fundraiser/pkg/solana"
	"fundraiser/pkg/solana/runtime"
)

// EscrowService is the application service behind the escrow endpoints
type EscrowService interface {
	CreateWallet(ctx context.Context, password string) (solana.PublicKey, error)
	Initialize(ctx context.Context, req escrow.InitializeRequest) (*escrow.Receipt, error)
	Contribute(ctx context.Context, req escrow.ContributeRequest) (*escrow.Receipt, error)
	Settle(ctx context.Context, req escrow.SettleRequest) (*escrow.Receipt, error)
	Refund(ctx context.Context, req escrow.RefundRequest) (*escrow.Receipt, error)
	Campaign(ctx context.Context, maker solana.PublicKey) (*escrow.CampaignDetails, error)
	Contributor(ctx context.Context, maker, contributor solana.PublicKey) (*escrow.ContributorDetails, error)
	Operations(ctx context.Context, filter escrow.OperationFilter) ([]models.EscrowOperation, int64, error)
	CreateMint(ctx context.Context, authority solana.PublicKey, decimals uint8) (solana.PublicKey, error)
	FundTokenAccount(ctx context.Context, owner, mint solana.PublicKey, amount uint64) (solana.PublicKey, error)
}

type EscrowHandler struct {
	svc EscrowService
}

func NewEscrowHandler(svc EscrowService) *EscrowHandler {
	return &EscrowHandler{svc: svc}
}

type CreateWalletRequest struct {
	Password string `json:"password" binding:"required"`
}

type InitializeCampaignRequest struct {
	Maker    string `json:"maker" binding:"required"`
	Password string `json:"password" binding:"required"`
	Mint     string `json:"mint" binding:"required"`
	Goal     uint64 `json:"goal"`
	Duration uint64 `json:"duration"`
}

type ContributionRequest struct {
	Contributor  string `json:"contributor" binding:"required"`
	Password     string `json:"password" binding:"required"`
	Amount       uint64 `json:"amount"`
	TokenAccount string `json:"token_account"`
}

type SettleCampaignRequest struct {
	Password string `json:"password" binding:"required"`
}

type RefundContributionRequest struct {
	Contributor string `json:"contributor" binding:"required"`
	Password    string `json:"password" binding:"required"`
}

type CreateMintRequest struct {
	Authority string `json:"authority" binding:"required"`
	Decimals  uint8  `json:"decimals"`
}

type FundTokenAccountRequest struct {
	Owner  string `json:"owner" binding:"required"`
	Mint   string `json:"mint" binding:"required"`
	Amount uint64 `json:"amount"`
}

// CreateWallet creates a participant wallet
func (h *EscrowHandler) CreateWallet(c *gin.Context) {
	var request CreateWalletRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	address, err := h.svc.CreateWallet(c.Request.Context(), request.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"address": address.String()})
}

// InitializeCampaign opens a campaign for the maker
func (h *EscrowHandler) InitializeCampaign(c *gin.Context) {
	var request InitializeCampaignRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	maker, ok := parseKey(c, "maker", request.Maker)
	if !ok {
		return
	}
	mint, ok := parseKey(c, "mint", request.Mint)
	if !ok {
		return
	}
	receipt, err := h.svc.Initialize(c.Request.Context(), escrow.InitializeRequest{
		Maker:    maker,
		Password: request.Password,
		Mint:     mint,
		Goal:     request.Goal,
		Duration: request.Duration,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, receipt)
}

// Contribute deposits into the campaign of :maker
func (h *EscrowHandler) Contribute(c *gin.Context) {
	maker, ok := parseKey(c, "maker", c.Param("maker"))
	if !ok {
		return
	}
	var request ContributionRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	contributor, ok := parseKey(c, "contributor", request.Contributor)
	if !ok {
		return
	}
	req := escrow.ContributeRequest{
		Maker:       maker,
		Contributor: contributor,
		Password:    request.Password,
		Amount:      request.Amount,
	}
	if request.TokenAccount != "" {
		source, ok := parseKey(c, "token_account", request.TokenAccount)
		if !ok {
			return
		}
		req.TokenAccount = &source
	}
	receipt, err := h.svc.Contribute(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, receipt)
}

// Settle pays the vault of :maker's campaign out to the maker
func (h *EscrowHandler) Settle(c *gin.Context) {
	maker, ok := parseKey(c, "maker", c.Param("maker"))
	if !ok {
		return
	}
	var request SettleCampaignRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	receipt, err := h.svc.Settle(c.Request.Context(), escrow.SettleRequest{Maker: maker, Password: request.Password})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

// Refund returns a contributor's deposit
func (h *EscrowHandler) Refund(c *gin.Context) {
	maker, ok := parseKey(c, "maker", c.Param("maker"))
	if !ok {
		return
	}
	var request RefundContributionRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	contributor, ok := parseKey(c, "contributor", request.Contributor)
	if !ok {
		return
	}
	receipt, err := h.svc.Refund(c.Request.Context(), escrow.RefundRequest{
		Maker:       maker,
		Contributor: contributor,
		Password:    request.Password,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

// GetCampaign returns the campaign of :maker
func (h *EscrowHandler) GetCampaign(c *gin.Context) {
	maker, ok := parseKey(c, "maker", c.Param("maker"))
	if !ok {
		return
	}
	details, err := h.svc.Campaign(c.Request.Context(), maker)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

// GetContributor returns the record of :contributor in :maker's campaign
func (h *EscrowHandler) GetContributor(c *gin.Context) {
	maker, ok := parseKey(c, "maker", c.Param("maker"))
	if !ok {
		return
	}
	contributor, ok := parseKey(c, "contributor", c.Param("contributor"))
	if !ok {
		return
	}
	details, err := h.svc.Contributor(c.Request.Context(), maker, contributor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

// ListOperations returns the journal, newest first
func (h *EscrowHandler) ListOperations(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	ops, total, err := h.svc.Operations(c.Request.Context(), escrow.OperationFilter{
		Kind:     c.Query("kind"),
		Campaign: c.Query("campaign"),
		Status:   c.Query("status"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": ops, "total": total})
}

// CreateMint creates a mint on the local ledger
func (h *EscrowHandler) CreateMint(c *gin.Context) {
	var request CreateMintRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	authority, ok := parseKey(c, "authority", request.Authority)
	if !ok {
		return
	}
	mint, err := h.svc.CreateMint(c.Request.Context(), authority, request.Decimals)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"mint": mint.String(), "decimals": request.Decimals})
}

// FundTokenAccount mints tokens into the owner's associated token account
func (h *EscrowHandler) FundTokenAccount(c *gin.Context) {
	var request FundTokenAccountRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	owner, ok := parseKey(c, "owner", request.Owner)
	if !ok {
		return
	}
	mint, ok := parseKey(c, "mint", request.Mint)
	if !ok {
		return
	}
	account, err := h.svc.FundTokenAccount(c.Request.Context(), owner, mint, request.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token_account": account.String(), "amount": request.Amount})
}

func parseKey(c *gin.Context, field, value string) (solana.PublicKey, bool) {
	key, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + field + " address"})
		return solana.PublicKey{}, false
	}
	return key, true
}

// respondError maps service and program errors to HTTP responses. Program
// errors keep their stable code.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, escrow.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, escrow.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, chain.ErrWalletNotFound), errors.Is(err, chain.ErrAccountNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		if pe, ok := runtime.AsProgramError(err); ok {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":  pe.Description,
				"code":   pe.Code,
				"custom": pe.Custom,
			})
			return
		}
		log.WithField("path", c.FullPath()).Errorf("request failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
