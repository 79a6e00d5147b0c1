package handler

import (
	"errors"
	"strconv"

	"accountsystem/internal/model"
	"accountsystem/internal/service"
	"accountsystem/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	accountService     *service.AccountService
	transactionService *service.TransactionService
	log                *logrus.Logger
}

func NewHandler(accountService *service.AccountService, transactionService *service.TransactionService, log *logrus.Logger) *Handler {
	return &Handler{
		accountService:     accountService,
		transactionService: transactionService,
		log:                log,
	}
}

var businessCodes = map[model.ErrorCode]int{
	model.ErrorCodeUserNotFound:               response.CodeUserNotFound,
	model.ErrorCodeAccountNotFound:            response.CodeAccountNotFound,
	model.ErrorCodeTransactionNotFound:        response.CodeTransactionNotFound,
	model.ErrorCodeOwnershipMismatch:          response.CodeOwnershipMismatch,
	model.ErrorCodeAccountAlreadyUnregistered: response.CodeAccountAlreadyUnregistered,
	model.ErrorCodeInsufficientBalance:        response.CodeInsufficientBalance,
	model.ErrorCodeMaxAccountsPerUser:         response.CodeMaxAccountsPerUser,
	model.ErrorCodeTransactionAccountMismatch: response.CodeTransactionAccountMismatch,
	model.ErrorCodeCancelMustBeFull:           response.CodeCancelMustBeFull,
	model.ErrorCodeCancelWindowExpired:        response.CodeCancelWindowExpired,
	model.ErrorCodeBalanceNotEmpty:            response.CodeBalanceNotEmpty,
}

// writeError 业务错误返回对应错误码，其余错误按系统错误处理
func (h *Handler) writeError(c *gin.Context, err error) {
	var accountErr *model.AccountError
	if !errors.As(err, &accountErr) {
		h.log.WithError(err).WithField("path", c.FullPath()).Error("请求处理失败")
		response.ServerError(c, "服务器内部错误")
		return
	}

	if accountErr.Code == model.ErrorCodeInvalidRequest {
		response.ParamError(c, accountErr.Message)
		return
	}

	code, ok := businessCodes[accountErr.Code]
	if !ok {
		code = response.CodeBusinessError
	}
	response.BusinessError(c, code, string(accountErr.Code), accountErr.Message)
}

// ============================================================
// 账户相关接口
// ============================================================

// CreateAccountRequest 开户请求
type CreateAccountRequest struct {
	UserID         int64 `json:"user_id" binding:"required,min=1"`
	InitialBalance int64 `json:"initial_balance" binding:"required,min=100"`
}

// CreateAccount 开户
// POST /api/v1/account
func (h *Handler) CreateAccount(c *gin.Context) {
	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	snapshot, err := h.accountService.CreateAccount(c.Request.Context(), req.UserID, req.InitialBalance)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, snapshot)
}

// DeleteAccountRequest 销户请求
type DeleteAccountRequest struct {
	UserID        int64  `json:"user_id" binding:"required,min=1"`
	AccountNumber string `json:"account_number" binding:"required,len=10,numeric"`
}

// DeleteAccount 销户
// DELETE /api/v1/account
func (h *Handler) DeleteAccount(c *gin.Context) {
	var req DeleteAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	snapshot, err := h.accountService.DeleteAccount(c.Request.Context(), req.UserID, req.AccountNumber)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, snapshot)
}

// GetAccounts 查询用户的账户列表
// GET /api/v1/account?user_id=xxx
func (h *Handler) GetAccounts(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil || userID < 1 {
		response.ParamError(c, "user_id 参数错误")
		return
	}

	accounts, err := h.accountService.GetAccountsByUserID(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, accounts)
}

// ============================================================
// 交易相关接口
// ============================================================

// UseBalanceRequest 使用余额请求
type UseBalanceRequest struct {
	UserID        int64  `json:"user_id" binding:"required,min=1"`
	AccountNumber string `json:"account_number" binding:"required,len=10,numeric"`
	Amount        int64  `json:"amount" binding:"required,min=10,max=1000000000"`
}

// UseBalance 使用余额
// POST /api/v1/transaction/use
//
// 业务校验失败时补记一条 FAIL 流水，保证每次尝试都可审计
func (h *Handler) UseBalance(c *gin.Context) {
	var req UseBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	result, err := h.transactionService.UseBalance(ctx, req.UserID, req.AccountNumber, req.Amount)
	if err != nil {
		if model.IsAccountError(err) {
			if saveErr := h.transactionService.SaveFailedUseTransaction(ctx, req.AccountNumber, req.Amount); saveErr != nil {
				h.log.WithError(saveErr).WithField("account_number", req.AccountNumber).Error("记录失败交易失败")
			}
		}
		h.writeError(c, err)
		return
	}

	response.Success(c, result)
}

// CancelBalanceRequest 取消交易请求
type CancelBalanceRequest struct {
	TransactionID string `json:"transaction_id" binding:"required"`
	AccountNumber string `json:"account_number" binding:"required,len=10,numeric"`
	Amount        int64  `json:"amount" binding:"required,min=10,max=1000000000"`
}

// CancelBalance 取消交易
// POST /api/v1/transaction/cancel
func (h *Handler) CancelBalance(c *gin.Context) {
	var req CancelBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	result, err := h.transactionService.CancelBalance(ctx, req.TransactionID, req.AccountNumber, req.Amount)
	if err != nil {
		if model.IsAccountError(err) {
			if saveErr := h.transactionService.SaveFailedCancelTransaction(ctx, req.AccountNumber, req.Amount); saveErr != nil {
				h.log.WithError(saveErr).WithField("account_number", req.AccountNumber).Error("记录失败交易失败")
			}
		}
		h.writeError(c, err)
		return
	}

	response.Success(c, result)
}

// QueryTransaction 查询交易
// GET /api/v1/transaction/:transaction_id
func (h *Handler) QueryTransaction(c *gin.Context) {
	result, err := h.transactionService.QueryTransaction(c.Request.Context(), c.Param("transaction_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, result)
}
