package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/schoolbill/internal/audit"
	"github.com/smallbiznis/schoolbill/internal/authorization"
	"github.com/smallbiznis/schoolbill/internal/batchmetrics"
	"github.com/smallbiznis/schoolbill/internal/catalog"
	"github.com/smallbiznis/schoolbill/internal/clock"
	"github.com/smallbiznis/schoolbill/internal/config"
	"github.com/smallbiznis/schoolbill/internal/document"
	"github.com/smallbiznis/schoolbill/internal/feetype"
	"github.com/smallbiznis/schoolbill/internal/invoice"
	"github.com/smallbiznis/schoolbill/internal/ledger"
	"github.com/smallbiznis/schoolbill/internal/migration"
	"github.com/smallbiznis/schoolbill/internal/observability"
	"github.com/smallbiznis/schoolbill/internal/payment"
	"github.com/smallbiznis/schoolbill/internal/providers"
	"github.com/smallbiznis/schoolbill/internal/ratelimit"
	"github.com/smallbiznis/schoolbill/internal/reconciliation"
	"github.com/smallbiznis/schoolbill/internal/seed"
	"github.com/smallbiznis/schoolbill/internal/server"
	"github.com/smallbiznis/schoolbill/internal/storage"
	"github.com/smallbiznis/schoolbill/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		seed.Module,
		clock.Module,
		storage.Module,
		ratelimit.Module,

		// Billing
		catalog.Module,
		audit.Module,
		authorization.Module,
		ledger.Module,
		reconciliation.Module,
		feetype.Module,
		invoice.Module,
		payment.Module,
		providers.Module,

		// Documents
		document.Module,
		batchmetrics.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
