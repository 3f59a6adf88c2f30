package exchange

import "time"

// Timing 适配器时序参数，由配置层填充后传入适配器构造函数
type Timing struct {
	WebSocketPingInterval time.Duration // 心跳发送间隔
	WebSocketPongWait     time.Duration // 等待对端响应的读超时
	WebSocketWriteWait    time.Duration // 单次写入超时
	ListenKeyKeepAlive    time.Duration // listenKey 保活间隔
	RecvWindowMs          int           // 签名请求默认接收窗口（毫秒）
}

// DefaultTiming 返回各交易所通用的默认时序参数
func DefaultTiming() Timing {
	return Timing{
		WebSocketPingInterval: 20 * time.Second,
		WebSocketPongWait:     60 * time.Second,
		WebSocketWriteWait:    10 * time.Second,
		ListenKeyKeepAlive:    30 * time.Minute,
		RecvWindowMs:          5000,
	}
}

// Normalized 将未设置的字段落到默认值，适配器构造时统一调用
func (t Timing) Normalized() Timing {
	def := DefaultTiming()
	if t.WebSocketPingInterval <= 0 {
		t.WebSocketPingInterval = def.WebSocketPingInterval
	}
	if t.WebSocketPongWait <= 0 {
		t.WebSocketPongWait = def.WebSocketPongWait
	}
	if t.WebSocketWriteWait <= 0 {
		t.WebSocketWriteWait = def.WebSocketWriteWait
	}
	if t.ListenKeyKeepAlive <= 0 {
		t.ListenKeyKeepAlive = def.ListenKeyKeepAlive
	}
	if t.RecvWindowMs <= 0 {
		t.RecvWindowMs = def.RecvWindowMs
	}
	return t
}
