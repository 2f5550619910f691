// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"blgu-assess-go/internal/config"
	"blgu-assess-go/internal/handler"
	"blgu-assess-go/internal/middleware"
	"blgu-assess-go/internal/model"
	"blgu-assess-go/internal/pipeline"
	"blgu-assess-go/internal/repository"
	"blgu-assess-go/internal/service"
	"blgu-assess-go/pkg/database"
	"blgu-assess-go/pkg/es"
	"blgu-assess-go/pkg/kafka"
	"blgu-assess-go/pkg/log"
	"blgu-assess-go/pkg/storage"
	"blgu-assess-go/pkg/token"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("logger initialised")

	// 3. 初始化数据库、Redis 和外部服务
	database.InitMySQL(cfg.Database.MySQL.DSN, model.Tables()...)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	if err := es.InitES(cfg.Elasticsearch); err != nil {
		log.Errorf("failed to initialise Elasticsearch: %s", err)
		return
	}
	kafka.InitProducer(cfg.Kafka)
	defer func() {
		if err := kafka.ClosePublisher(); err != nil {
			log.Warnf("closing kafka producer: %v", err)
		}
	}()

	// 4. 初始化 Repository
	userRepo := repository.NewUserRepository(database.DB)
	areaRepo := repository.NewGovernanceAreaRepository(database.DB)
	draftRepo := repository.NewDraftRepository(database.DB)
	verdictRepo := repository.NewVerdictRepository(database.DB)
	sessionRepo := repository.NewDraftSessionRepository(database.RDB)
	blacklist := repository.NewTokenBlacklist(database.RDB)

	// 5. 初始化 Service
	cacheTTL := time.Duration(cfg.Builder.SnapshotCacheTTLMinutes) * time.Minute
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	indicatorIndex := es.NewIndicatorIndex(es.ESClient, cfg.Elasticsearch.IndexName)
	exporter := storage.NewSnapshotExporter(storage.MinioClient, cfg.MinIO.BucketName, time.Duration(cfg.MinIO.PresignMinutes)*time.Minute)

	userService := service.NewUserService(userRepo, blacklist, jwtManager)
	adminService := service.NewAdminService(areaRepo, userRepo)
	builderService := service.NewBuilderService(draftRepo, sessionRepo, exporter, indicatorIndex, service.BuilderOptions{
		LockTTL:  time.Duration(cfg.Builder.LockTTLMinutes) * time.Minute,
		CacheTTL: cacheTTL,
	})
	assessmentService := service.NewAssessmentService(draftRepo, verdictRepo, sessionRepo, kafka.Publisher{}, cacheTTL)
	searchService := service.NewSearchService(indicatorIndex)

	// 6. 启动后台 Kafka 消费者
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	go kafka.StartConsumer(consumerCtx, cfg.Kafka, pipeline.NewVerdictRecorder(verdictRepo), kafka.RedisAttemptCounter{RDB: database.RDB})

	// 6.1 导入 initdata 目录下的指标草稿（已导入则跳过）
	go initSeedDrafts(consumerCtx, "initdata", userRepo, draftRepo, builderService)

	// 7. 路由
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())
	handler.RegisterRoutes(r, handler.Deps{
		JWTManager:   jwtManager,
		Users:        userService,
		Admin:        adminService,
		Builder:      builderService,
		Assessments:  assessmentService,
		Search:       searchService,
		LiveDebounce: time.Duration(cfg.Assessment.LiveDebounceMs) * time.Millisecond,
	})

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", strings.TrimPrefix(cfg.Server.Port, ":")),
		Handler: r,
	}

	go func() {
		log.Infof("server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP server shutdown failed: %v", err)
	}
	stopConsumer()
	log.Info("server stopped")
}
