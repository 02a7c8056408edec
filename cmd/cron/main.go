package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"credit-service/internal/conf"

	"github.com/gaoyong06/go-pkg/logger"
	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/env"
	"github.com/go-kratos/kratos/v2/config/file"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/robfig/cron/v3"
	_ "go.uber.org/automaxprocs"
)

const (
	defaultSchedule = "0 */5 * * * *"
	defaultTimeout  = 2 * time.Minute
)

var (
	flagconf string
	flagonce bool
)

func init() {
	flag.StringVar(&flagconf, "conf", "../../configs/config.yaml", "config path, eg: -conf config.yaml")
	flag.BoolVar(&flagonce, "once", false, "run a single reconciliation pass and exit")
}

// runReconcile 执行一次对账
func runReconcile(app *CronApp, timeout time.Duration, logHelper *log.Helper) {
	logHelper.Info("[CRON] Starting reconciliation...")
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	report, err := app.reconcile.Run(ctx)
	if err != nil {
		logHelper.Errorf("[CRON] Reconciliation failed: %v", err)
		return
	}
	logHelper.Infof("[CRON] Reconciliation completed: credited=%d, completed=%d, cancelled=%d, failed=%d, errors=%d, drifted=%d",
		report.Credited, report.Completed, report.Cancelled, report.Failed, report.Errors, len(report.Drifted))
}

func main() {
	flag.Parse()

	// 初始化配置
	c := config.New(
		config.WithSource(
			file.NewSource(flagconf),
			env.NewSource(),
		),
	)
	defer c.Close()

	if err := c.Load(); err != nil {
		panic(err)
	}

	var bc conf.Bootstrap
	if err := c.Scan(&bc); err != nil {
		panic(err)
	}

	// 初始化日志 (使用 go-pkg/logger)
	logConfig := &logger.Config{
		Level:         "info",
		Format:        "json",
		Output:        "stdout",
		FilePath:      "logs/credit-cron.log",
		MaxSize:       100,
		MaxAge:        30,
		MaxBackups:    10,
		Compress:      true,
		EnableConsole: true,
	}
	if bc.Log != nil && bc.Log.Level != "" {
		logConfig.Level = bc.Log.Level
	}

	loggerInstance := logger.NewLogger(logConfig)

	// 添加基本字段
	loggerInstance = log.With(loggerInstance,
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
		"service.name", "credit-cron",
	)

	logHelper := log.NewHelper(loggerInstance)

	// 初始化应用
	app, cleanup, err := wireApp(&bc, loggerInstance)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	schedule, timeout := defaultSchedule, defaultTimeout
	if bc.Reconcile != nil {
		if bc.Reconcile.Schedule != "" {
			schedule = bc.Reconcile.Schedule
		}
		if d := bc.Reconcile.Timeout.AsDuration(); d > 0 {
			timeout = d
		}
	}

	if flagonce {
		runReconcile(app, timeout, logHelper)
		return
	}

	// 创建定时任务调度器（支持秒级调度），上一轮未结束时跳过本轮
	cronScheduler := cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
	)

	_, err = cronScheduler.AddFunc(schedule, func() {
		runReconcile(app, timeout, logHelper)
	})
	if err != nil {
		logHelper.Errorf("Failed to add reconciliation job: %v", err)
		return
	}

	// 启动定时任务
	cronScheduler.Start()
	logHelper.Info("========================================")
	logHelper.Info("Cron jobs started successfully")
	logHelper.Info("Scheduled jobs:")
	logHelper.Infof("  - Order and ledger reconciliation: %s", schedule)
	logHelper.Info("========================================")

	// 优雅退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logHelper.Info("Shutting down gracefully...")

	// 停止定时任务
	ctx := cronScheduler.Stop()
	select {
	case <-ctx.Done():
		logHelper.Info("Cron jobs stopped gracefully")
	case <-time.After(5 * time.Second):
		logHelper.Info("Cron jobs forced to stop after timeout")
	}
}
