package data

import (
	"context"
	"fmt"
	"time"

	"credit-service/internal/conf"
	"credit-service/internal/data/model"

	"github.com/apache/rocketmq-client-go/v2"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/apache/rocketmq-client-go/v2/producer"
	"github.com/glebarez/sqlite"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redis/redis/v8"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v8"
	"github.com/google/wire"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// ProviderSet is data providers.
var ProviderSet = wire.NewSet(
	NewDB,
	NewRedis,
	NewRedsync,
	NewRocketMQProducer,
	NewData,
	NewAccountRepo,
	NewOrderRepo,
	NewStatsRepo,
	NewCaptureLocker,
	NewLedgerEventPublisher,
	NewPayPalGateway,
	NewDeepSeekGenerator,
)

// Data 数据层结构体，rdb 与 mq 未配置时为 nil
type Data struct {
	db  *gorm.DB
	rdb *redis.Client
	mq  rocketmq.Producer
}

// NewDB 创建数据库连接
func NewDB(c *conf.Data) (*gorm.DB, error) {
	if c == nil || c.Database == nil {
		return nil, fmt.Errorf("database config is nil")
	}

	var dialector gorm.Dialector
	switch c.Database.Driver {
	case "", "mysql":
		dialector = mysql.Open(c.Database.Source)
	case "sqlite":
		dialector = sqlite.Open(c.Database.Source)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if c.Database.Driver == "sqlite" {
		// sqlite 只支持单写连接
		sqlDB.SetMaxOpenConns(1)
	} else {
		if c.Database.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(c.Database.MaxOpenConns)
		}
		if c.Database.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(c.Database.MaxIdleConns)
		}
		if d := c.Database.ConnMaxLife.AsDuration(); d > 0 {
			sqlDB.SetConnMaxLifetime(d)
		}
	}

	if c.Database.AutoMigrate {
		if err := Migrate(db); err != nil {
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
	}
	return db, nil
}

// Migrate 创建或更新表结构
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.CreditAccount{},
		&model.CreditUsageRecord{},
		&model.CreditOrder{},
	)
}

// NewRedis 创建 Redis 连接，未配置地址时返回 nil
func NewRedis(c *conf.Data, logger log.Logger) (*redis.Client, error) {
	if c == nil || c.Redis == nil || c.Redis.Addr == "" {
		log.NewHelper(logger).Warn("redis is not configured, capture lock and token cache run in-process")
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         c.Redis.Addr,
		Password:     c.Redis.Password,
		DB:           c.Redis.Db,
		ReadTimeout:  c.Redis.ReadTimeout.AsDuration(),
		WriteTimeout: c.Redis.WriteTimeout.AsDuration(),
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return rdb, nil
}

// NewRedsync 创建分布式锁管理器
func NewRedsync(rdb *redis.Client) *redsync.Redsync {
	if rdb == nil {
		return nil
	}
	return redsync.New(goredis.NewPool(rdb))
}

// NewRocketMQProducer 创建账本事件生产者，未启用时返回 nil
func NewRocketMQProducer(c *conf.Data, logger log.Logger) (rocketmq.Producer, error) {
	helper := log.NewHelper(logger)
	if c == nil || c.Rocketmq == nil || !c.Rocketmq.Enabled || c.Rocketmq.LedgerTopic == "" {
		helper.Info("rocketmq producer is disabled, ledger events will not be published")
		return nil, nil
	}

	group := c.Rocketmq.ProducerGroup
	if group == "" {
		group = c.Rocketmq.GroupName + "_producer"
	}
	p, err := rocketmq.NewProducer(
		producer.WithNsResolver(primitive.NewPassthroughResolver(c.Rocketmq.NameServers)),
		producer.WithGroupName(group),
		producer.WithRetry(int(c.Rocketmq.RetryTimes)),
	)
	if err != nil {
		return nil, fmt.Errorf("init rocketmq producer: %w", err)
	}
	if err := p.Start(); err != nil {
		// 开发环境中 RocketMQ 可能不可用，不阻塞启动
		helper.Errorf("Failed to start RocketMQ producer: %v", err)
		return nil, nil
	}
	return p, nil
}

// NewData 创建数据层实例
func NewData(c *conf.Data, logger log.Logger, db *gorm.DB, rdb *redis.Client, mq rocketmq.Producer) (*Data, func(), error) {
	helper := log.NewHelper(logger)
	cleanup := func() {
		helper.Info("closing the data resources")
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
		if rdb != nil {
			if err := rdb.Close(); err != nil {
				helper.Errorf("failed to close redis: %v", err)
			}
		}
		if mq != nil {
			if err := mq.Shutdown(); err != nil {
				helper.Errorf("failed to shutdown rocketmq producer: %v", err)
			}
		}
	}

	return &Data{
		db:  db,
		rdb: rdb,
		mq:  mq,
	}, cleanup, nil
}
