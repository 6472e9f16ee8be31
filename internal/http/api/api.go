// Package api registers the HTTP surface of the rule engine.
package api

import (
	"github.com/flowledger/flowledger/internal/engine"
	"github.com/flowledger/flowledger/internal/http/api/handlers"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RegisterRoutes wires every API endpoint onto the engine router.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, runner *engine.Runner) {
	if r == nil || db == nil || runner == nil {
		return
	}

	v1 := r.Group("/v1")

	ruleHandler := handlers.NewRuleHandler(db, runner)
	v1.POST("/rules", ruleHandler.Create)
	v1.GET("/rules", ruleHandler.List)
	v1.GET("/rules/templates", ruleHandler.Templates)
	v1.POST("/rules/from-template", ruleHandler.CreateFromTemplate)
	v1.GET("/rules/:id", ruleHandler.Get)
	v1.PUT("/rules/:id", ruleHandler.Update)
	v1.DELETE("/rules/:id", ruleHandler.Delete)
	v1.POST("/rules/:id/promote", ruleHandler.Promote)
	v1.POST("/rules/:id/run", ruleHandler.Run)
	v1.POST("/rules/:id/simulate", ruleHandler.Simulate)

	versionHandler := handlers.NewVersionHandler(db)
	v1.GET("/rules/:id/versions", versionHandler.List)
	v1.GET("/rules/:id/versions/diff", versionHandler.Diff)
	v1.POST("/rules/:id/rollback", versionHandler.Rollback)

	runHandler := handlers.NewRunHandler(db, runner)
	v1.GET("/runs", runHandler.List)
	v1.GET("/runs/:id", runHandler.Get)
	v1.POST("/evaluate", runHandler.Evaluate)

	podHandler := handlers.NewPodHandler(db)
	v1.GET("/pods", podHandler.List)
	v1.POST("/pods", podHandler.Create)
	v1.GET("/pods/:id", podHandler.Get)
	v1.PUT("/pods/:id", podHandler.Update)
	v1.DELETE("/pods/:id", podHandler.Delete)

	taskHandler := handlers.NewTaskHandler(db)
	v1.GET("/tasks", taskHandler.List)
	v1.POST("/tasks", taskHandler.Create)
	v1.POST("/tasks/:id/done", taskHandler.MarkDone)

	txHandler := handlers.NewTransactionHandler(db, runner)
	v1.GET("/transactions", txHandler.List)
	v1.GET("/transactions/:id", txHandler.Get)
	v1.POST("/transactions/import", txHandler.ImportCSV)

	balanceHandler := handlers.NewBalanceHandler(db)
	v1.POST("/balances", balanceHandler.Record)
	v1.GET("/balances/latest", balanceHandler.Latest)

	settingsHandler := handlers.NewSettingsHandler(db)
	v1.GET("/settings", settingsHandler.Get)
	v1.PUT("/settings", settingsHandler.Update)

	fxHandler := handlers.NewFxHandler(db)
	v1.GET("/fx/rates", fxHandler.List)
	v1.PUT("/fx/rates", fxHandler.Upsert)

	healthHandler := handlers.NewHealthHandler(db)
	v1.GET("/health", healthHandler.Status)
}
