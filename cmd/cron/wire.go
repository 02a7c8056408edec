//go:build wireinject
// +build wireinject

package main

import (
	"credit-service/internal/biz"
	"credit-service/internal/conf"
	"credit-service/internal/data"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

// CronApp Cron 应用结构
type CronApp struct {
	reconcile *biz.ReconcileUseCase
}

// wireApp 初始化应用
func wireApp(*conf.Bootstrap, log.Logger) (*CronApp, func(), error) {
	panic(wire.Build(
		// Data 层（需要 conf.Data、conf.Payment 和 logger）
		wire.FieldsOf(new(*conf.Bootstrap), "Data", "Payment"),
		data.ProviderSet,

		// Biz 层，NewCreditConfig 需要 *conf.Bootstrap
		biz.ProviderSet,

		// App 结构
		wire.Struct(new(CronApp), "*"),
	))
}
