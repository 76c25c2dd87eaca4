package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/wyfcoding/compliancepipeline/internal/compliance/application"
	"github.com/wyfcoding/compliancepipeline/internal/compliance/domain"
	"github.com/wyfcoding/compliancepipeline/internal/compliance/infrastructure/memory"
	"github.com/wyfcoding/compliancepipeline/internal/compliance/infrastructure/notifier"
	"github.com/wyfcoding/compliancepipeline/internal/compliance/infrastructure/persistence/mysql"
	"github.com/wyfcoding/compliancepipeline/internal/compliance/infrastructure/sanctions"
	"github.com/wyfcoding/compliancepipeline/internal/compliance/infrastructure/semantic"
	httpiface "github.com/wyfcoding/compliancepipeline/internal/compliance/interfaces/http"
	"github.com/wyfcoding/compliancepipeline/pkg/config"
	"github.com/wyfcoding/compliancepipeline/pkg/db"
	"github.com/wyfcoding/compliancepipeline/pkg/logger"
	"github.com/wyfcoding/compliancepipeline/pkg/metrics"
	"github.com/wyfcoding/compliancepipeline/pkg/middleware"
	"github.com/wyfcoding/compliancepipeline/pkg/mq"
)

func main() {
	// 1. 加载配置
	configPath := config.GetEnv("APP_CONFIG", "configs/compliance/config.toml")
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	if err := logger.Init(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		FilePath:   cfg.Logger.FilePath,
		MaxSize:    cfg.Logger.MaxSize,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAge:     cfg.Logger.MaxAge,
		Compress:   cfg.Logger.Compress,
		WithCaller: cfg.Logger.WithCaller,
	}); err != nil {
		fmt.Printf("failed to init logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	logger.Info(ctx, "starting service",
		"service", cfg.ServiceName,
		"version", cfg.Version,
		"environment", cfg.Environment,
	)

	// 3. 初始化指标
	m := metrics.New(cfg.ServiceName)
	if err := m.Register(); err != nil {
		logger.Fatal(ctx, "failed to register metrics", "error", err)
	}
	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.StartHTTPServer(cfg.Metrics.Port, cfg.Metrics.Path); err != nil && err != http.ErrServerClosed {
				logger.Error(ctx, "metrics server stopped", "error", err)
			}
		}()
	}

	// 4. 初始化数据库
	database, err := db.Init(db.Config{
		Driver:             cfg.Database.Driver,
		DSN:                cfg.Database.DSN,
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		LogEnabled:         cfg.Database.LogEnabled,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to connect to database", "error", err)
	}
	defer database.Close()

	// 5. 自动迁移
	if err := database.AutoMigrate(
		&domain.Customer{},
		&domain.Transaction{},
		&domain.MemoryRecord{},
		&domain.AuditReport{},
	); err != nil {
		logger.Fatal(ctx, "failed to migrate database", "error", err)
	}

	// 6. 依赖注入
	engine := domain.NewRiskEngine(buildRuleConfig(cfg.Rules))

	var memoryStore domain.MemoryStore
	switch cfg.Memory.Backend {
	case "inprocess":
		memoryStore = memory.NewIndex()
	default:
		memoryStore = mysql.NewGormMemoryStore(database.DB)
	}

	var analyzer domain.SemanticAnalyzer
	if cfg.Semantic.Mode == "http" {
		analyzer = semantic.NewHTTPAnalyzer(cfg.Semantic.Endpoint, time.Duration(cfg.Semantic.Timeout)*time.Millisecond)
	} else {
		analyzer = semantic.NewNoopAnalyzer()
	}

	notifiers, producer, err := buildNotifiers(cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to build notifiers", "error", err)
	}
	if producer != nil {
		defer producer.Close()
	}

	reportRepo := mysql.NewGormReportRepository(database.DB)
	pipeline := application.NewPipeline(
		mysql.NewGormRecordStore(database.DB),
		memoryStore,
		engine,
		application.NewReportGenerator(),
		reportRepo,
		analyzer,
		sanctions.NewStaticFeed(cfg.Sanctions.Countries),
		notifiers,
		application.PipelineConfig{
			RecallK:        cfg.Memory.RecallK,
			RecallTimeout:  time.Duration(cfg.Memory.RecallTimeout) * time.Millisecond,
			ExplainTimeout: time.Duration(cfg.Semantic.Timeout) * time.Millisecond,
		},
		m,
	)
	app := application.NewComplianceService(pipeline, reportRepo)
	handler := httpiface.NewComplianceHandler(app)

	// 7. 启动 HTTP 服务
	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.Logging(), middleware.Recovery(), middleware.CORS(), middleware.Metrics(m))
	if cfg.HTTP.RateLimitQPS > 0 {
		router.Use(middleware.RateLimit(cfg.HTTP.RateLimitQPS, cfg.HTTP.RateLimitBurst))
	}
	handler.RegisterRoutes(router)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": cfg.ServiceName})
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info(ctx, "http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "failed to serve", "error", err)
		}
	}()

	// 8. 优雅关停
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "server shutdown failed", "error", err)
	}
	logger.Info(ctx, "server stopped")
}

// buildRuleConfig 将外部规则配置转换为领域规则配置
func buildRuleConfig(rc config.RulesConfig) domain.RuleConfig {
	cfg := domain.DefaultRuleConfig()
	if rc.Version != "" {
		cfg.Version = rc.Version
	}
	if len(rc.CountryWeights) > 0 {
		cfg.CountryWeights = rc.CountryWeights
	}
	if rc.DefaultCountryWeight > 0 {
		cfg.DefaultCountryWeight = rc.DefaultCountryWeight
	}
	if rc.HighAmountThresholdUSD > 0 {
		cfg.HighAmountThresholdUSD = decimal.NewFromFloat(rc.HighAmountThresholdUSD)
	}
	if rc.HighAmountWeight > 0 {
		cfg.HighAmountWeight = rc.HighAmountWeight
	}
	if rc.YoungAccountAgeDays > 0 {
		cfg.YoungAccountAgeDays = rc.YoungAccountAgeDays
	}
	if rc.YoungAccountWeight > 0 {
		cfg.YoungAccountWeight = rc.YoungAccountWeight
	}
	if rc.DeviceTrustThreshold > 0 {
		cfg.DeviceTrustThreshold = rc.DeviceTrustThreshold
	}
	if rc.LowDeviceTrustWeight > 0 {
		cfg.LowDeviceTrustWeight = rc.LowDeviceTrustWeight
	}
	if rc.PastFraudWeight > 0 {
		cfg.PastFraudWeight = rc.PastFraudWeight
	}
	if rc.StructuringCount > 0 {
		cfg.StructuringCount = rc.StructuringCount
	}
	if rc.StructuringWindowHours > 0 {
		cfg.StructuringWindow = time.Duration(rc.StructuringWindowHours) * time.Hour
	}
	if rc.StructuringMargin > 0 {
		cfg.StructuringMargin = decimal.NewFromFloat(rc.StructuringMargin)
	}
	if rc.StructuringWeight > 0 {
		cfg.StructuringWeight = rc.StructuringWeight
	}
	if rc.HistoryEscalationWeight > 0 {
		cfg.HistoryEscalationWeight = rc.HistoryEscalationWeight
	}
	if rc.HistoryShareCap > 0 {
		cfg.HistoryShareCap = rc.HistoryShareCap
	}
	if len(rc.USDRates) > 0 {
		rates := make(map[string]decimal.Decimal, len(rc.USDRates))
		for currency, rate := range rc.USDRates {
			rates[currency] = decimal.NewFromFloat(rate)
		}
		cfg.USDRates = rates
	}
	return cfg
}

// buildNotifiers 按配置装配通知器列表，kafka 通知器共享同一个生产者
func buildNotifiers(cfg *config.Config) ([]domain.Notifier, *mq.KafkaProducer, error) {
	var producer *mq.KafkaProducer
	notifiers := make([]domain.Notifier, 0, len(cfg.Notifiers))
	for _, nc := range cfg.Notifiers {
		switch nc.Type {
		case "kafka":
			if producer == nil {
				p, err := mq.NewProducer(mq.KafkaConfig{
					Brokers:      cfg.Kafka.Brokers,
					MaxRetries:   cfg.Kafka.MaxRetries,
					RetryBackoff: cfg.Kafka.RetryBackoff,
				})
				if err != nil {
					return nil, nil, fmt.Errorf("failed to create kafka producer: %w", err)
				}
				producer = p
			}
			notifiers = append(notifiers, notifier.NewKafkaNotifier(nc.Name, producer, nc.Target))
		case "webhook":
			notifiers = append(notifiers, notifier.NewWebhookNotifier(nc.Name, nc.Target))
		case "log":
			notifiers = append(notifiers, notifier.NewLogNotifier(nc.Name))
		}
	}
	return notifiers, producer, nil
}
