package model

import (
	"errors"
)

// ErrorCode 业务错误码
type ErrorCode string

const (
	ErrorCodeInvalidRequest             ErrorCode = "INVALID_REQUEST"
	ErrorCodeUserNotFound               ErrorCode = "USER_NOT_FOUND"
	ErrorCodeAccountNotFound            ErrorCode = "ACCOUNT_NOT_FOUND"
	ErrorCodeTransactionNotFound        ErrorCode = "TRANSACTION_NOT_FOUND"
	ErrorCodeOwnershipMismatch          ErrorCode = "USER_ACCOUNT_UN_MATCH"
	ErrorCodeAccountAlreadyUnregistered ErrorCode = "ACCOUNT_ALREADY_UNREGISTERED"
	ErrorCodeInsufficientBalance        ErrorCode = "AMOUNT_EXCEED_BALANCE"
	ErrorCodeMaxAccountsPerUser         ErrorCode = "MAX_ACCOUNT_PER_USER_10"
	ErrorCodeTransactionAccountMismatch ErrorCode = "TRANSACTION_ACCOUNT_UN_MATCH"
	ErrorCodeCancelMustBeFull           ErrorCode = "CANCEL_MUST_FULLY"
	ErrorCodeCancelWindowExpired        ErrorCode = "TOO_OLD_ORDER_TO_CANCEL"
	ErrorCodeBalanceNotEmpty            ErrorCode = "BALANCE_NOT_EMPTY"
)

// AccountError 业务校验失败时返回的错误，携带错误码
//
// 两个 AccountError 只要错误码相同，errors.Is 就认为相等，
// 所以调用方可以直接 errors.Is(err, model.ErrAccountNotFound)
type AccountError struct {
	Code    ErrorCode
	Message string
}

func NewAccountError(code ErrorCode, message string) *AccountError {
	return &AccountError{Code: code, Message: message}
}

func (e *AccountError) Error() string {
	return e.Message
}

func (e *AccountError) Is(target error) bool {
	t, ok := target.(*AccountError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrInvalidRequest             = NewAccountError(ErrorCodeInvalidRequest, "请求参数不合法")
	ErrUserNotFound               = NewAccountError(ErrorCodeUserNotFound, "用户不存在")
	ErrAccountNotFound            = NewAccountError(ErrorCodeAccountNotFound, "账户不存在")
	ErrTransactionNotFound        = NewAccountError(ErrorCodeTransactionNotFound, "交易不存在")
	ErrOwnershipMismatch          = NewAccountError(ErrorCodeOwnershipMismatch, "用户和账户的所有者不一致")
	ErrAccountAlreadyUnregistered = NewAccountError(ErrorCodeAccountAlreadyUnregistered, "账户已注销")
	ErrInsufficientBalance        = NewAccountError(ErrorCodeInsufficientBalance, "余额不足")
	ErrMaxAccountsPerUser         = NewAccountError(ErrorCodeMaxAccountsPerUser, "每个用户最多只能拥有10个账户")
	ErrTransactionAccountMismatch = NewAccountError(ErrorCodeTransactionAccountMismatch, "交易和账户不匹配")
	ErrCancelMustBeFull           = NewAccountError(ErrorCodeCancelMustBeFull, "只支持全额取消")
	ErrCancelWindowExpired        = NewAccountError(ErrorCodeCancelWindowExpired, "超过一年的交易不能取消")
	ErrBalanceNotEmpty            = NewAccountError(ErrorCodeBalanceNotEmpty, "账户余额不为零，不能注销")
)

// CodeOf 取出错误里携带的业务错误码，非业务错误返回 false
func CodeOf(err error) (ErrorCode, bool) {
	var accountErr *AccountError
	if errors.As(err, &accountErr) {
		return accountErr.Code, true
	}
	return "", false
}

// IsAccountError 是否为业务校验错误
func IsAccountError(err error) bool {
	_, ok := CodeOf(err)
	return ok
}
