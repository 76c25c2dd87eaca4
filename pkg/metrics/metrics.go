// Package metrics 提供 Prometheus helper，覆盖流水线的核心观测点
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wyfcoding/compliancepipeline/pkg/logger"
)

// Metrics 指标集合
type Metrics struct {
	// HTTP 请求计数（按方法、路由与状态码）
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTP 请求耗时（按方法与路由）
	HTTPRequestDuration *prometheus.HistogramVec

	// 评估总数（按风险等级）
	AssessmentsTotal *prometheus.CounterVec
	// 流水线阶段耗时
	StageDuration *prometheus.HistogramVec
	// 流水线失败计数（按阶段）
	PipelineFailuresTotal *prometheus.CounterVec
	// 依赖降级计数（按依赖）
	DegradationsTotal *prometheus.CounterVec
	// 通知分发计数（按通知器与结果）
	DispatchesTotal *prometheus.CounterVec
}

// New 创建指标实例。服务名作为 subsystem，其中的连字符替换为下划线
func New(serviceName string) *Metrics {
	serviceName = strings.ReplaceAll(serviceName, "-", "_")
	return &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "compliance",
			Subsystem: serviceName,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "compliance",
			Subsystem: serviceName,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		AssessmentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "compliance",
			Subsystem: serviceName,
			Name:      "assessments_total",
			Help:      "Total risk assessments completed",
		}, []string{"band"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "compliance",
			Subsystem: serviceName,
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		PipelineFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "compliance",
			Subsystem: serviceName,
			Name:      "pipeline_failures_total",
			Help:      "Total fatal pipeline failures",
		}, []string{"stage"}),
		DegradationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "compliance",
			Subsystem: serviceName,
			Name:      "degradations_total",
			Help:      "Total absorbed dependency degradations",
		}, []string{"dependency"}),
		DispatchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "compliance",
			Subsystem: serviceName,
			Name:      "dispatches_total",
			Help:      "Total notifier dispatch attempts",
		}, []string{"notifier", "result"}),
	}
}

// Register 注册所有指标
func (m *Metrics) Register() error {
	collectors := []prometheus.Collector{
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AssessmentsTotal,
		m.StageDuration,
		m.PipelineFailuresTotal,
		m.DegradationsTotal,
		m.DispatchesTotal,
	}

	for _, collector := range collectors {
		if err := prometheus.DefaultRegisterer.Register(collector); err != nil {
			logger.Error(context.Background(), "Failed to register metric", "error", err)
			return err
		}
	}

	logger.Info(context.Background(), "Metrics registered successfully")
	return nil
}

// ObserveStage 记录阶段耗时，返回一个函数用于在 defer 中调用
func (m *Metrics) ObserveStage(stage string) func() {
	start := time.Now()
	return func() {
		m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}

// StartHTTPServer 启动 Prometheus HTTP 服务器
func StartHTTPServer(port int, path string) error {
	if path == "" {
		path = "/metrics"
	}

	http.Handle(path, promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	logger.Info(context.Background(), "Starting Prometheus HTTP server", "addr", addr, "path", path)
	return http.ListenAndServe(addr, nil)
}
