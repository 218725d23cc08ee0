package main

import (
	"os"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cargosettle/internal/audit"
	"github.com/smallbiznis/cargosettle/internal/autosettle"
	"github.com/smallbiznis/cargosettle/internal/clock"
	"github.com/smallbiznis/cargosettle/internal/config"
	"github.com/smallbiznis/cargosettle/internal/contract"
	"github.com/smallbiznis/cargosettle/internal/events"
	"github.com/smallbiznis/cargosettle/internal/migration"
	"github.com/smallbiznis/cargosettle/internal/observability"
	"github.com/smallbiznis/cargosettle/internal/server"
	"github.com/smallbiznis/cargosettle/internal/settlement"
	"github.com/smallbiznis/cargosettle/internal/txn"
	"github.com/smallbiznis/cargosettle/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		txn.Module,
		migration.Module,
		events.Module,

		// Domains
		audit.Module,
		contract.Module,
		settlement.Module,
		autosettle.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() (*snowflake.Node, error) {
	nodeID := int64(1)
	if v := os.Getenv("SNOWFLAKE_NODE_ID"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			nodeID = parsed
		}
	}
	return snowflake.NewNode(nodeID)
}
