package storage

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newTestStorage(t *testing.T) *LogStorage {
	t.Helper()
	path := filepath.Join(t.TempDir(), "logs.db")
	ls, err := NewLogStorage(path)
	if err != nil {
		t.Fatalf("创建日志存储失败: %v", err)
	}
	t.Cleanup(func() { ls.Close() })
	return ls
}

func TestWriteAndQueryLogs(t *testing.T) {
	ls := newTestStorage(t)

	ls.WriteLog("INFO", "测试日志一")
	ls.WriteLog("WARN", "测试日志二")
	ls.WriteLog("ERROR", "连接失败")

	// 等待异步批量写入落盘
	time.Sleep(1500 * time.Millisecond)

	records, total, err := ls.GetLogs(LogQueryParams{Limit: 10})
	if err != nil {
		t.Fatalf("查询日志失败: %v", err)
	}
	if total != 3 {
		t.Errorf("期望 3 条日志, 实际 %d", total)
	}
	if len(records) != 3 {
		t.Errorf("期望返回 3 条记录, 实际 %d", len(records))
	}
}

func TestQueryLogsByLevel(t *testing.T) {
	ls := newTestStorage(t)

	ls.WriteLog("INFO", "普通日志")
	ls.WriteLog("ERROR", "错误日志")
	time.Sleep(1500 * time.Millisecond)

	records, total, err := ls.GetLogs(LogQueryParams{Level: "ERROR", Limit: 10})
	if err != nil {
		t.Fatalf("按级别查询失败: %v", err)
	}
	if total != 1 {
		t.Errorf("期望 1 条 ERROR 日志, 实际 %d", total)
	}
	if len(records) == 1 && records[0].Level != "ERROR" {
		t.Errorf("期望级别 ERROR, 实际 %s", records[0].Level)
	}
}

func TestQueryLogsByKeyword(t *testing.T) {
	ls := newTestStorage(t)

	ls.WriteLog("INFO", "订阅已建立")
	ls.WriteLog("INFO", "订阅已释放")
	ls.WriteLog("INFO", "无关内容")
	time.Sleep(1500 * time.Millisecond)

	_, total, err := ls.GetLogs(LogQueryParams{Keyword: "订阅", Limit: 10})
	if err != nil {
		t.Fatalf("按关键字查询失败: %v", err)
	}
	if total != 2 {
		t.Errorf("期望 2 条匹配日志, 实际 %d", total)
	}
}

func TestCleanOldLogs(t *testing.T) {
	ls := newTestStorage(t)

	ls.WriteLog("INFO", "新日志")
	time.Sleep(1500 * time.Millisecond)

	// 清理 7 天前的日志，刚写入的不应被删
	if err := ls.CleanOldLogs(7); err != nil {
		t.Fatalf("清理日志失败: %v", err)
	}

	_, total, err := ls.GetLogs(LogQueryParams{Limit: 10})
	if err != nil {
		t.Fatalf("查询日志失败: %v", err)
	}
	if total != 1 {
		t.Errorf("清理后新日志不应被删, 实际剩余 %d 条", total)
	}
}

func TestWriteAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs.db")
	ls, err := NewLogStorage(path)
	if err != nil {
		t.Fatalf("创建日志存储失败: %v", err)
	}
	if err := ls.Close(); err != nil {
		t.Fatalf("关闭失败: %v", err)
	}
	// 关闭后写入应被静默丢弃，不应 panic
	ls.WriteLog("INFO", "关闭后的日志")
}

func TestConcurrentWriteDuringClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs.db")
	ls, err := NewLogStorage(path)
	if err != nil {
		t.Fatalf("创建日志存储失败: %v", err)
	}

	// 关停期间并发写入不应向已关闭的 channel 发送
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			<-start
			for j := 0; j < 200; j++ {
				ls.WriteLog("INFO", fmt.Sprintf("关停期间的日志 %d-%d", id, j))
			}
		}(i)
	}

	close(start)
	if err := ls.Close(); err != nil {
		t.Fatalf("关闭失败: %v", err)
	}
	wg.Wait()
}
