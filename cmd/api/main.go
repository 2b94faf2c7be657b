package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jhoicas/Inventario-stock/internal/application/audit"
	"github.com/jhoicas/Inventario-stock/internal/application/inventory"
	"github.com/jhoicas/Inventario-stock/internal/application/transfer"
	"github.com/jhoicas/Inventario-stock/internal/infrastructure/cache"
	"github.com/jhoicas/Inventario-stock/internal/infrastructure/postgres"
	httpRouter "github.com/jhoicas/Inventario-stock/internal/interfaces/http"
	"github.com/jhoicas/Inventario-stock/pkg/config"
	"github.com/jhoicas/Inventario-stock/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicación")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("migración del esquema")
	}

	// Redis es opcional: sin él la caché de niveles y el lock por traslado quedan deshabilitados.
	var levelCache inventory.LevelCache = inventory.NoopLevelCache{}
	var locker transfer.Locker = transfer.NoopLocker{}
	if cfg.Redis.Enabled() {
		rdb, err := cache.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis no disponible, sin caché ni locks")
		} else {
			defer rdb.Close()
			levelCache = cache.NewRedisLevelCache(rdb, cfg.Redis.LevelCacheTTL)
			locker = cache.NewTransferLocker(rdb, cfg.Redis.LockTTL, log)
			log.Info().Str("addr", cfg.Redis.Addr).Msg("redis: caché de niveles y locks habilitados")
		}
	}

	txRunner := postgres.NewTxRunner(pool, cfg.DB.TxTimeout)
	branchRepo := postgres.NewBranchRepository(pool)
	productRepo := postgres.NewProductRepository(pool)
	recorder := audit.NewRecorder(log)

	ledgerUC := inventory.NewLedgerUseCase(txRunner, branchRepo, productRepo, recorder, levelCache, log)
	queryUC := inventory.NewQueryUseCase(
		postgres.NewStockRepository(pool),
		postgres.NewStockLotRepository(pool),
		postgres.NewStockLedgerRepository(pool),
		branchRepo, productRepo, levelCache,
		cfg.Ledger.DefaultPageSize, cfg.Ledger.MaxPageSize,
		log,
	)
	transferUC := transfer.NewUseCase(transfer.Deps{
		TxRunner:     txRunner,
		TransferRepo: postgres.NewStockTransferRepository(pool),
		BranchRepo:   branchRepo,
		ProductRepo:  productRepo,
		Ledger:       ledgerUC,
		Audit:        recorder,
		Locker:       locker,
		Numbering: transfer.NumberingConfig{
			Prefix:   cfg.Transfers.NumberPrefix,
			Attempts: cfg.Transfers.NumberingAttempts,
			Backoff:  cfg.Transfers.NumberingBackoff,
		},
		DefaultPageSize: cfg.Ledger.DefaultPageSize,
		MaxPageSize:     cfg.Ledger.MaxPageSize,
	}, log)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	httpRouter.Router(app, httpRouter.RouterDeps{
		Ledger:    ledgerUC,
		Query:     queryUC,
		Transfers: transferUC,
		JWTSecret: cfg.JWT.Secret,
		Logger:    log,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
