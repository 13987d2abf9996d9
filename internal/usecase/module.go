package usecase

import "go.uber.org/fx"

// Module provides the ledger and withdrawal use cases to the fx container.
var Module = fx.Provide(
	NewHoldManager,
	NewBalanceLedger,
	NewAuditLog,
	NewWithdrawalOrchestrator,
)
