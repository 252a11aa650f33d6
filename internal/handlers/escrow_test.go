package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"fundraiser/internal/escrow"
	"fundraiser/internal/models"
	chain "fundraiser/pkg/solana"
	"fundraiser/pkg/solana/fundraiser"
	"fundraiser/pkg/solana/runtime"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) CreateWallet(ctx context.Context, password string) (solana.PublicKey, error) {
	args := m.Called(ctx, password)
	return args.Get(0).(solana.PublicKey), args.Error(1)
}

func (m *mockService) Initialize(ctx context.Context, req escrow.InitializeRequest) (*escrow.Receipt, error) {
	args := m.Called(ctx, req)
	receipt, _ := args.Get(0).(*escrow.Receipt)
	return receipt, args.Error(1)
}

func (m *mockService) Contribute(ctx context.Context, req escrow.ContributeRequest) (*escrow.Receipt, error) {
	args := m.Called(ctx, req)
	receipt, _ := args.Get(0).(*escrow.Receipt)
	return receipt, args.Error(1)
}

func (m *mockService) Settle(ctx context.Context, req escrow.SettleRequest) (*escrow.Receipt, error) {
	args := m.Called(ctx, req)
	receipt, _ := args.Get(0).(*escrow.Receipt)
	return receipt, args.Error(1)
}

func (m *mockService) Refund(ctx context.Context, req escrow.RefundRequest) (*escrow.Receipt, error) {
	args := m.Called(ctx, req)
	receipt, _ := args.Get(0).(*escrow.Receipt)
	return receipt, args.Error(1)
}

func (m *mockService) Campaign(ctx context.Context, maker solana.PublicKey) (*escrow.CampaignDetails, error) {
	args := m.Called(ctx, maker)
	details, _ := args.Get(0).(*escrow.CampaignDetails)
	return details, args.Error(1)
}

func (m *mockService) Contributor(ctx context.Context, maker, contributor solana.PublicKey) (*escrow.ContributorDetails, error) {
	args := m.Called(ctx, maker, contributor)
	details, _ := args.Get(0).(*escrow.ContributorDetails)
	return details, args.Error(1)
}

func (m *mockService) Operations(ctx context.Context, filter escrow.OperationFilter) ([]models.EscrowOperation, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]models.EscrowOperation), args.Get(1).(int64), args.Error(2)
}

func (m *mockService) CreateMint(ctx context.Context, authority solana.PublicKey, decimals uint8) (solana.PublicKey, error) {
	args := m.Called(ctx, authority, decimals)
	return args.Get(0).(solana.PublicKey), args.Error(1)
}

func (m *mockService) FundTokenAccount(ctx context.Context, owner, mint solana.PublicKey, amount uint64) (solana.PublicKey, error) {
	args := m.Called(ctx, owner, mint, amount)
	return args.Get(0).(solana.PublicKey), args.Error(1)
}

var (
	makerKey       = solana.MustPublicKeyFromBase58("GnYrYW9KPtUws8yQ19ftnuSQGWJotaLKwesS1VoRsFoF")
	contributorKey = solana.MustPublicKeyFromBase58("BYYg1btkqB9P1kMyxHCtMYW7cHJdUcGosd2rKduFpump")
	mintKey        = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
)

func newTestRouter(svc *mockService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewEscrowHandler(svc)
	r := gin.New()
	r.POST("/wallets", h.CreateWallet)
	r.POST("/campaigns", h.InitializeCampaign)
	r.GET("/campaigns/:maker", h.GetCampaign)
	r.GET("/campaigns/:maker/contributors/:contributor", h.GetContributor)
	r.POST("/campaigns/:maker/contributions", h.Contribute)
	r.POST("/campaigns/:maker/settle", h.Settle)
	r.POST("/campaigns/:maker/refunds", h.Refund)
	r.GET("/operations", h.ListOperations)
	r.POST("/dev/mints", h.CreateMint)
	r.POST("/dev/token-accounts", h.FundTokenAccount)
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]interface{}
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w, out
}

func TestCreateWallet(t *testing.T) {
	svc := &mockService{}
	r := newTestRouter(svc)
	svc.On("CreateWallet", mock.Anything, "pw").Return(makerKey, nil)

	w, body := doJSON(t, r, http.MethodPost, "/wallets", gin.H{"password": "pw"})
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, makerKey.String(), body["address"])

	w, _ = doJSON(t, r, http.MethodPost, "/wallets", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInitializeCampaign(t *testing.T) {
	svc := &mockService{}
	r := newTestRouter(svc)
	receipt := &escrow.Receipt{OperationID: uuid.New(), Signature: "sig", Slot: 3, Campaign: "campaign"}
	svc.On("Initialize", mock.Anything, escrow.InitializeRequest{
		Maker: makerKey, Password: "pw", Mint: mintKey, Goal: 1_000_000, Duration: 60,
	}).Return(receipt, nil)

	w, body := doJSON(t, r, http.MethodPost, "/campaigns", gin.H{
		"maker": makerKey.String(), "password": "pw", "mint": mintKey.String(), "goal": 1_000_000, "duration": 60,
	})
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "sig", body["signature"])
	assert.Equal(t, receipt.OperationID.String(), body["operation_id"])

	w, body = doJSON(t, r, http.MethodPost, "/campaigns", gin.H{
		"maker": "not-base58!", "password": "pw", "mint": mintKey.String(),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid maker address", body["error"])
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   interface{}
		custom interface{}
	}{
		{"program error keeps its code", fmt.Errorf("instruction 0: %w", fundraiser.ErrContributionTooLong), http.StatusUnprocessableEntity, float64(2), true},
		{"builtin error", runtime.ErrMissingRequiredSignature, http.StatusUnprocessableEntity, float64(7), false},
		{"bad credentials", escrow.ErrInvalidCredentials, http.StatusUnauthorized, nil, nil},
		{"unknown campaign", chain.ErrAccountNotFound, http.StatusNotFound, nil, nil},
		{"unknown wallet", chain.ErrWalletNotFound, http.StatusNotFound, nil, nil},
		{"unexpected", errors.New("disk full"), http.StatusInternalServerError, nil, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockService{}
			r := newTestRouter(svc)
			svc.On("Contribute", mock.Anything, mock.Anything).Return(nil, tc.err)

			w, body := doJSON(t, r, http.MethodPost, "/campaigns/"+makerKey.String()+"/contributions", gin.H{
				"contributor": contributorKey.String(), "password": "pw", "amount": 5,
			})
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.code, body["code"])
			assert.Equal(t, tc.custom, body["custom"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestContributeWithExplicitSource(t *testing.T) {
	svc := &mockService{}
	r := newTestRouter(svc)
	source := solana.NewWallet().PublicKey()
	svc.On("Contribute", mock.Anything, escrow.ContributeRequest{
		Maker: makerKey, Contributor: contributorKey, Password: "pw", Amount: 5, TokenAccount: &source,
	}).Return(&escrow.Receipt{Signature: "sig"}, nil)

	w, _ := doJSON(t, r, http.MethodPost, "/campaigns/"+makerKey.String()+"/contributions", gin.H{
		"contributor": contributorKey.String(), "password": "pw", "amount": 5, "token_account": source.String(),
	})
	assert.Equal(t, http.StatusCreated, w.Code)
	svc.AssertExpectations(t)
}

func TestSettleAndRefund(t *testing.T) {
	svc := &mockService{}
	r := newTestRouter(svc)
	svc.On("Settle", mock.Anything, escrow.SettleRequest{Maker: makerKey, Password: "pw"}).
		Return(nil, fundraiser.ErrTargetNotMet)
	svc.On("Refund", mock.Anything, escrow.RefundRequest{Maker: makerKey, Contributor: contributorKey, Password: "pw"}).
		Return(&escrow.Receipt{Signature: "refund"}, nil)

	w, body := doJSON(t, r, http.MethodPost, "/campaigns/"+makerKey.String()+"/settle", gin.H{"password": "pw"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, float64(6), body["code"])

	w, body = doJSON(t, r, http.MethodPost, "/campaigns/"+makerKey.String()+"/refunds", gin.H{
		"contributor": contributorKey.String(), "password": "pw",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "refund", body["signature"])
}

func TestReads(t *testing.T) {
	svc := &mockService{}
	r := newTestRouter(svc)
	svc.On("Campaign", mock.Anything, makerKey).Return(&escrow.CampaignDetails{Maker: makerKey.String(), AmountToRaise: 100}, nil)
	svc.On("Contributor", mock.Anything, makerKey, contributorKey).Return(&escrow.ContributorDetails{Amount: 7}, nil)
	svc.On("Operations", mock.Anything, escrow.OperationFilter{Kind: "refund", Limit: 5, Offset: 0}).
		Return([]models.EscrowOperation{{Kind: "refund"}}, int64(1), nil)

	w, body := doJSON(t, r, http.MethodGet, "/campaigns/"+makerKey.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(100), body["amount_to_raise"])

	w, body = doJSON(t, r, http.MethodGet, "/campaigns/"+makerKey.String()+"/contributors/"+contributorKey.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(7), body["amount"])

	w, body = doJSON(t, r, http.MethodGet, "/operations?kind=refund&limit=5", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["total"])

	w, _ = doJSON(t, r, http.MethodGet, "/campaigns/nope", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDevEndpoints(t *testing.T) {
	svc := &mockService{}
	r := newTestRouter(svc)
	svc.On("CreateMint", mock.Anything, makerKey, uint8(6)).Return(mintKey, nil)
	account := solana.NewWallet().PublicKey()
	svc.On("FundTokenAccount", mock.Anything, contributorKey, mintKey, uint64(500)).Return(account, nil)

	w, body := doJSON(t, r, http.MethodPost, "/dev/mints", gin.H{"authority": makerKey.String(), "decimals": 6})
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, mintKey.String(), body["mint"])

	w, body = doJSON(t, r, http.MethodPost, "/dev/token-accounts", gin.H{
		"owner": contributorKey.String(), "mint": mintKey.String(), "amount": 500,
	})
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, account.String(), body["token_account"])
}
