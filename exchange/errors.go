package exchange

import (
	"errors"
	"fmt"
)

// ErrDisposed 适配器或订阅句柄已释放，后续调用直接快速失败，不再发起网络请求
var ErrDisposed = errors.New("适配器已释放")

// ValidationError 参数校验错误：在任何网络调用之前同步抛出，不重试
type ValidationError struct {
	Op     string // 触发校验的操作，如 "PlaceOrder"
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s 参数校验失败: %s", e.Op, e.Reason)
}

// NewValidationError 创建参数校验错误
func NewValidationError(op, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Op: op, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation 判断是否为参数校验错误
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// APIError 交易所调用错误：底层调用完成但返回失败，或成功却没有数据。
// 携带交易所名称、操作及参数、交易所自身的错误信息；核心不做重试。
type APIError struct {
	Exchange Exchange
	Op       string // 操作及参数，如 "GetKlines(BTCUSDT, 1m, ..., 100)"
	Message  string
	Cause    error
}

func (e *APIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s: %v", e.Exchange, e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Exchange, e.Op, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Cause
}

// NewAPIError 创建交易所调用错误
func NewAPIError(exchange Exchange, op, message string, cause error) *APIError {
	return &APIError{Exchange: exchange, Op: op, Message: message, Cause: cause}
}
