package metrics

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"exgate/logger"
)

// SystemMetricsCollector 系统指标采集器
type SystemMetricsCollector struct {
	interval time.Duration
	proc     *process.Process
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewSystemMetricsCollector 创建系统指标采集器
func NewSystemMetricsCollector(interval time.Duration) *SystemMetricsCollector {
	ctx, cancel := context.WithCancel(context.Background())

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logger.Warn("⚠️ 获取进程句柄失败: %v，进程级指标不可用", err)
		proc = nil
	}

	return &SystemMetricsCollector{
		interval: interval,
		proc:     proc,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start 启动采集
func (smc *SystemMetricsCollector) Start() {
	go smc.collectLoop()
}

// Stop 停止采集
func (smc *SystemMetricsCollector) Stop() {
	if smc.cancel != nil {
		smc.cancel()
	}
}

// collectLoop 采集循环
func (smc *SystemMetricsCollector) collectLoop() {
	ticker := time.NewTicker(smc.interval)
	defer ticker.Stop()

	// 立即采集一次
	smc.collect()

	for {
		select {
		case <-smc.ctx.Done():
			return
		case <-ticker.C:
			smc.collect()
		}
	}
}

// collect 采集系统指标
func (smc *SystemMetricsCollector) collect() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	goroutineCount.Set(float64(runtime.NumGoroutine()))
	memoryAllocBytes.Set(float64(m.Alloc))

	// GC 停顿时间（最近一次）
	// PauseNs 是循环缓冲区，最新一次在 (NumGC+255)%256 位置
	if m.NumGC > 0 {
		idx := (m.NumGC + 255) % 256
		if pauseNs := m.PauseNs[idx]; pauseNs > 0 {
			gcPauseDuration.Observe(time.Duration(pauseNs).Seconds())
		}
	}

	if smc.proc != nil {
		if cpuPercent, err := smc.proc.CPUPercent(); err == nil {
			processCPUPercent.Set(cpuPercent)
		}
		if memInfo, err := smc.proc.MemoryInfo(); err == nil {
			processMemoryMB.Set(float64(memInfo.RSS) / 1024 / 1024)
		}
	}
}
