package bybit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"exgate/exchange"
	"exgate/logger"
)

const (
	// 主网公共现货流
	MainnetPublicWSURL = "wss://stream.bybit.com/v5/public/spot"
	// 主网私有流
	MainnetPrivateWSURL = "wss://stream.bybit.com/v5/private"
	// 测试网公共现货流
	TestnetPublicWSURL = "wss://stream-testnet.bybit.com/v5/public/spot"
	// 测试网私有流
	TestnetPrivateWSURL = "wss://stream-testnet.bybit.com/v5/private"

	wsAuthExpireMs = 10000
)

// wsStream Bybit WebSocket 连接，管理订阅、心跳与读循环
type wsStream struct {
	conn     *websocket.Conn
	writeMu  sync.Mutex
	stopChan chan struct{}
	doneChan chan struct{}
	running  atomic.Bool

	pingInterval time.Duration
	pongWait     time.Duration
	writeWait    time.Duration

	onMessage func(topic, msgType string, data []byte)
	onError   func(error)
}

// wsRequest WebSocket 操作请求
type wsRequest struct {
	Op   string   `json:"op"`
	Args []string `json:"args,omitempty"`
}

// wsEnvelope 推送消息外层结构；Type 区分 snapshot / delta
type wsEnvelope struct {
	Op      string          `json:"op"`
	Success *bool           `json:"success"`
	RetMsg  string          `json:"ret_msg"`
	Topic   string          `json:"topic"`
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data"`
}

// dialStream 建立连接并订阅主题；apiKey 非空时先做私有流鉴权
func dialStream(wsURL, apiKey, secretKey string, timing exchange.Timing, topics []string, onMessage func(topic, msgType string, data []byte), onError func(error)) (*wsStream, error) {
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("连接 WebSocket 失败: %w", err)
	}

	timing = timing.Normalized()
	s := &wsStream{
		conn:         conn,
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
		pingInterval: timing.WebSocketPingInterval,
		pongWait:     timing.WebSocketPongWait,
		writeWait:    timing.WebSocketWriteWait,
		onMessage:    onMessage,
		onError:      onError,
	}
	s.running.Store(true)

	if apiKey != "" {
		if err := s.authenticate(apiKey, secretKey); err != nil {
			conn.Close()
			return nil, err
		}
	}

	if len(topics) > 0 {
		if err := s.writeJSON(wsRequest{Op: "subscribe", Args: topics}); err != nil {
			conn.Close()
			return nil, fmt.Errorf("发送订阅请求失败: %w", err)
		}
	}

	go s.readLoop()
	go s.keepAlive()

	return s, nil
}

// authenticate 私有流鉴权
func (s *wsStream) authenticate(apiKey, secretKey string) error {
	expires := time.Now().UnixMilli() + wsAuthExpireMs

	h := hmac.New(sha256.New, []byte(secretKey))
	h.Write([]byte("GET/realtime" + strconv.FormatInt(expires, 10)))
	signature := hex.EncodeToString(h.Sum(nil))

	req := wsRequest{
		Op:   "auth",
		Args: []string{apiKey, strconv.FormatInt(expires, 10), signature},
	}

	if err := s.writeJSON(req); err != nil {
		return fmt.Errorf("发送鉴权请求失败: %w", err)
	}

	return nil
}

func (s *wsStream) writeJSON(v interface{}) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(s.writeWait))
	return s.conn.WriteJSON(v)
}

// readLoop 读取并分发推送消息
func (s *wsStream) readLoop() {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("❌ [Bybit] WebSocket 读循环 panic: %v", r)
		}
		close(s.doneChan)
	}()

	for s.running.Load() {
		s.conn.SetReadDeadline(time.Now().Add(s.pongWait))
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if s.running.Load() && s.onError != nil {
				s.onError(fmt.Errorf("读取 WebSocket 消息失败: %w", err))
			}
			return
		}

		var env wsEnvelope
		if err := json.Unmarshal(message, &env); err != nil {
			logger.Warn("⚠️ [Bybit] 无法解析的 WebSocket 消息: %s", string(message))
			continue
		}

		// 操作回执：鉴权、订阅、pong
		if env.Op != "" {
			if env.Success != nil && !*env.Success {
				if s.onError != nil {
					s.onError(fmt.Errorf("WebSocket 操作 %s 失败: %s", env.Op, env.RetMsg))
				}
			}
			continue
		}

		if env.Topic != "" && s.onMessage != nil {
			s.onMessage(env.Topic, env.Type, env.Data)
		}
	}
}

// keepAlive 定时发送 ping 保持连接
func (s *wsStream) keepAlive() {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-s.doneChan:
			return
		case <-ticker.C:
			if err := s.writeJSON(wsRequest{Op: "ping"}); err != nil {
				logger.Warn("⚠️ [Bybit] 发送 ping 失败: %v", err)
				return
			}
		}
	}
}

// Stop 关闭连接并等待读循环退出
func (s *wsStream) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}

	close(s.stopChan)
	s.conn.Close()

	select {
	case <-s.doneChan:
	case <-time.After(5 * time.Second):
		logger.Warn("⚠️ [Bybit] 等待 WebSocket 读循环退出超时")
	}
}
