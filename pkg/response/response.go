package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess       = 0
	CodeParamError    = 400
	CodeNotFound      = 404
	CodeServerError   = 500
	CodeBusinessError = 1000
)

// 业务错误码，与 model.ErrorCode 一一对应
const (
	CodeUserNotFound               = 1001
	CodeAccountNotFound            = 1002
	CodeTransactionNotFound        = 1003
	CodeOwnershipMismatch          = 1004
	CodeAccountAlreadyUnregistered = 1005
	CodeInsufficientBalance        = 1006
	CodeMaxAccountsPerUser         = 1007
	CodeTransactionAccountMismatch = 1008
	CodeCancelMustBeFull           = 1009
	CodeCancelWindowExpired        = 1010
	CodeBalanceNotEmpty            = 1011
)

type Response struct {
	Code      int         `json:"code"`
	ErrorCode string      `json:"error_code,omitempty"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

func ServerError(c *gin.Context, message string) {
	Error(c, CodeServerError, message)
}

// BusinessError 业务校验失败，同时返回数字码和字符串错误码
func BusinessError(c *gin.Context, code int, errorCode string, message string) {
	c.JSON(http.StatusOK, Response{
		Code:      code,
		ErrorCode: errorCode,
		Message:   message,
	})
}
