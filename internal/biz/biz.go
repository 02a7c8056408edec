package biz

import "github.com/google/wire"

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(
	NewCreditConfig,
	NewFeatureCatalog,
	NewLedgerUseCase,
	NewOrderUseCase,
	NewFeatureUseCase,
	NewStatsUseCase,
	NewReconcileUseCase,
)
