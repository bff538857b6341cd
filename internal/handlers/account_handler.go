package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sgavilanez/planea-api/internal/middleware"
	"github.com/sgavilanez/planea-api/internal/models"
	"github.com/sgavilanez/planea-api/internal/services"
	"github.com/shopspring/decimal"
)

type AccountHandler struct {
	accountService *services.AccountService
}

func NewAccountHandler(accountService *services.AccountService) *AccountHandler {
	return &AccountHandler{accountService: accountService}
}

// CreateAccountRequest is the request body for opening an account
type CreateAccountRequest struct {
	Name     string `json:"name" binding:"required"`
	Currency string `json:"currency"`
}

// @Summary Create Account
// @Description Open a money account
// @Tags Accounts
// @Accept json
// @Produce json
// @Param request body CreateAccountRequest true "Account"
// @Success 201 {object} models.Account
// @Security BearerAuth
// @Router /accounts [post]
func (h *AccountHandler) Create(c *gin.Context) {
	var req CreateAccountRequest
	if err := BindNestedOrFlat(c, "account", &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	account := &models.Account{
		UserID:   middleware.GetUserID(c),
		Name:     req.Name,
		Currency: req.Currency,
	}
	if err := h.accountService.Create(c.Request.Context(), account); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"account": account})
}

// @Summary List Accounts
// @Description Get the current user's accounts with cached balances
// @Tags Accounts
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /accounts [get]
func (h *AccountHandler) Index(c *gin.Context) {
	accounts, err := h.accountService.FindByUser(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accounts": accounts})
}

// @Summary Account Entries
// @Description Get one page of the posted ledger entries of an account
// @Tags Accounts
// @Produce json
// @Param account_id path int true "Account ID"
// @Param page query int false "Page (default 1)"
// @Param per_page query int false "Page size (default 20, max 200)"
// @Param sort_by query string false "entry_date, created_at or amount"
// @Param sort_dir query string false "asc or desc"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /accounts/{account_id}/entries [get]
func (h *AccountHandler) Entries(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("account_id"), 10, 32)

	account, err := h.accountService.FindByID(c.Request.Context(), uint(id))
	if err != nil {
		respondError(c, err)
		return
	}
	if account.UserID != middleware.GetUserID(c) && !middleware.IsAdmin(c) {
		respondError(c, services.ErrUnauthorized)
		return
	}

	q := parseListQuery(c, "entry_date", "asc")
	entries, err := h.accountService.Entries(c.Request.Context(), uint(id), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"account":  account,
		"entries":  entries,
		"page":     q.Page,
		"per_page": q.PerPage,
	})
}

// PostEntryRequest is the request body for a direct ledger posting
type PostEntryRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category" binding:"required"`
	Subcategory *string         `json:"subcategory"`
	Description string          `json:"description"`
	EntryDate   string          `json:"entry_date"`
}

// @Summary Post Entry
// @Description Post a manual ledger entry against an account; the sign follows the category
// @Tags Accounts
// @Accept json
// @Produce json
// @Param account_id path int true "Account ID"
// @Param request body PostEntryRequest true "Entry"
// @Success 201 {object} models.LedgerEntry
// @Security BearerAuth
// @Router /accounts/{account_id}/entries [post]
func (h *AccountHandler) PostEntry(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("account_id"), 10, 32)

	var req PostEntryRequest
	if err := BindNestedOrFlat(c, "entry", &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entryDate := time.Now()
	if req.EntryDate != "" {
		parsed, err := time.Parse("2006-01-02", req.EntryDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "entry_date debe tener formato YYYY-MM-DD"})
			return
		}
		entryDate = parsed
	}

	accountID := uint(id)
	entry := &models.LedgerEntry{
		UserID:      middleware.GetUserID(c),
		AccountID:   &accountID,
		Category:    req.Category,
		Subcategory: req.Subcategory,
		Description: req.Description,
		EntryType:   models.EntryTypeExpense,
		EntryDate:   entryDate,
	}
	if req.Category == models.CategoryIncome {
		entry.EntryType = models.EntryTypeIncome
	}

	if err := h.accountService.Post(c.Request.Context(), entry, req.Amount); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"entry": entry})
}

// UpdateEntryRequest carries the editable fields of a posted entry
type UpdateEntryRequest struct {
	Amount      *decimal.Decimal `json:"amount"`
	Category    *string          `json:"category"`
	Subcategory *string          `json:"subcategory"`
	Description *string          `json:"description"`
	EntryDate   *string          `json:"entry_date"`
}

// @Summary Update Entry
// @Description Edit a posted entry in place; the balance moves by the delta in one atomic unit
// @Tags Accounts
// @Accept json
// @Produce json
// @Param entry_id path int true "Ledger entry ID"
// @Param request body UpdateEntryRequest true "Fields to update"
// @Success 200 {object} models.LedgerEntry
// @Security BearerAuth
// @Router /entries/{entry_id} [put]
func (h *AccountHandler) UpdateEntry(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("entry_id"), 10, 32)

	var req UpdateEntryRequest
	if err := BindNestedOrFlat(c, "entry", &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	input := services.ReapplyInput{
		Magnitude:   req.Amount,
		Category:    req.Category,
		Subcategory: req.Subcategory,
		Description: req.Description,
	}
	if req.EntryDate != nil {
		parsed, err := time.Parse("2006-01-02", *req.EntryDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "entry_date debe tener formato YYYY-MM-DD"})
			return
		}
		input.EntryDate = &parsed
	}

	entry, err := h.accountService.Reapply(c.Request.Context(), uint(id), middleware.GetUserID(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entry": entry, "message": "Movimiento actualizado"})
}

// @Summary Revert Entry
// @Description Post the mirror of an existing entry, compensating it without rewriting history
// @Tags Accounts
// @Produce json
// @Param entry_id path int true "Ledger entry ID"
// @Success 200 {object} models.LedgerEntry
// @Security BearerAuth
// @Router /entries/{entry_id}/revert [post]
func (h *AccountHandler) RevertEntry(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("entry_id"), 10, 32)

	mirror, err := h.accountService.Revert(c.Request.Context(), uint(id), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entry": mirror, "message": "Movimiento revertido"})
}

// @Summary Recalculate Balance
// @Description Replay the account's ledger and overwrite the cached balance
// @Tags Accounts
// @Produce json
// @Param account_id path int true "Account ID"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /accounts/{account_id}/recalculate [post]
func (h *AccountHandler) Recalculate(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("account_id"), 10, 32)

	balance, err := h.accountService.Recalculate(c.Request.Context(), uint(id))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance, "message": "Saldo recalculado"})
}
