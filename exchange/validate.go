package exchange

import (
	"reflect"
	"strings"
	"time"
)

// NormalizeSymbols 规整交易对列表：去空白、转大写、去重，保持首次出现的顺序
func NormalizeSymbols(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	result := make([]string, 0, len(symbols))

	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		result = append(result, s)
	}

	return result
}

// ValidateSymbol 校验交易对名称非空
func ValidateSymbol(op, symbol string) error {
	if strings.TrimSpace(symbol) == "" {
		return NewValidationError(op, "交易对不能为空")
	}
	return nil
}

// ValidateCallbacks 校验订阅回调非空。
// 回调以具名函数类型传入，接口值非空但底层函数为 nil 同样算空
func ValidateCallbacks(op string, callback interface{}, onError ErrorCallback) error {
	if isNilFunc(callback) {
		return NewValidationError(op, "回调函数不能为空")
	}
	if onError == nil {
		return NewValidationError(op, "错误回调不能为空")
	}
	return nil
}

func isNilFunc(callback interface{}) bool {
	if callback == nil {
		return true
	}
	v := reflect.ValueOf(callback)
	return v.Kind() == reflect.Func && v.IsNil()
}

// ValidateCredentials 校验 API 凭证
func ValidateCredentials(op string, credentials *Credentials) error {
	if credentials == nil {
		return NewValidationError(op, "凭证不能为空")
	}
	if strings.TrimSpace(credentials.AccountName) == "" {
		return NewValidationError(op, "账户名称不能为空")
	}
	if strings.TrimSpace(credentials.APIKey) == "" {
		return NewValidationError(op, "API Key 不能为空")
	}
	if strings.TrimSpace(credentials.APISecret) == "" {
		return NewValidationError(op, "API Secret 不能为空")
	}
	return nil
}

// ValidateClientOrder 校验下单请求：数量必须为正；
// 限价类订单价格必须为正，止损/止盈类订单触发价必须为正
func ValidateClientOrder(op string, order *ClientOrder) error {
	if order == nil {
		return NewValidationError(op, "下单请求不能为空")
	}
	if err := ValidateSymbol(op, order.Symbol); err != nil {
		return err
	}
	if order.Quantity <= 0 {
		return NewValidationError(op, "下单数量必须大于0，当前值: %v", order.Quantity)
	}
	if order.Type.IsLimitStyle() && order.Price <= 0 {
		return NewValidationError(op, "%s 订单价格必须大于0，当前值: %v", order.Type, order.Price)
	}
	if order.Type.IsStopStyle() && order.StopPrice <= 0 {
		return NewValidationError(op, "%s 订单触发价必须大于0，当前值: %v", order.Type, order.StopPrice)
	}
	return nil
}

// ValidateTimeRange 校验时间区间：start 必须不晚于 end
func ValidateTimeRange(op string, start, end time.Time) error {
	if start.After(end) {
		return NewValidationError(op, "开始时间 %v 不能晚于结束时间 %v", start, end)
	}
	return nil
}
