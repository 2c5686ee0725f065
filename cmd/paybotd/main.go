package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/Greeshmanth19/payment-bot-crypto/deploy/migrations"
	"github.com/Greeshmanth19/payment-bot-crypto/internal/api"
	"github.com/Greeshmanth19/payment-bot-crypto/internal/chain/provider"
	"github.com/Greeshmanth19/payment-bot-crypto/internal/config"
	"github.com/Greeshmanth19/payment-bot-crypto/internal/identity"
	"github.com/Greeshmanth19/payment-bot-crypto/internal/notify"
	"github.com/Greeshmanth19/payment-bot-crypto/internal/observability/alerting"
	"github.com/Greeshmanth19/payment-bot-crypto/internal/oracle"
	"github.com/Greeshmanth19/payment-bot-crypto/internal/payment"
	"github.com/Greeshmanth19/payment-bot-crypto/internal/payment/events"
	"github.com/Greeshmanth19/payment-bot-crypto/internal/wallet"
	"github.com/Greeshmanth19/payment-bot-crypto/pkg/logger"
	"github.com/Greeshmanth19/payment-bot-crypto/pkg/retry"
)

// main 是支付守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("paybotd 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	configPath := os.Getenv("PAYBOT_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("configs", "paybot.json")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		OutputPaths: cfg.Log.OutputPaths,
		Audit: logger.AuditConfig{
			Enabled:    cfg.Log.Audit.Enabled,
			Path:       cfg.Log.Audit.Path,
			MaxSizeMB:  cfg.Log.Audit.MaxSizeMB,
			MaxBackups: cfg.Log.Audit.MaxBackups,
			MaxAgeDays: cfg.Log.Audit.MaxAgeDays,
		},
	}); err != nil {
		return err
	}

	// 同一 DSN 的 MySQL 后端共享连接池。
	dbs := newDBPool()
	defer dbs.Close()

	store, err := openPaymentStore(ctx, cfg.Storage.PaymentStore, dbs)
	if err != nil {
		return err
	}
	defer store.Close()

	keys, err := openKeystore(ctx, cfg.Storage.Keystore, dbs)
	if err != nil {
		return err
	}
	defer keys.Close()

	dir, err := openDirectory(ctx, cfg.Storage.Directory, dbs)
	if err != nil {
		return err
	}

	outbox, err := openOutbox(ctx, cfg.Outbox, dbs)
	if err != nil {
		return err
	}
	defer outbox.Close()

	pub, err := openPublisher(cfg.Events)
	if err != nil {
		return err
	}
	defer pub.Close()

	registry, err := provider.NewRegistry(ctx, cfg.Chain)
	if err != nil {
		return err
	}
	defer registry.Close()

	client, err := registry.DefaultClient()
	if err != nil {
		return err
	}

	var dispatcherOpts []payment.DispatcherOption
	if cfg.Oracle.Enabled {
		dispatcherOpts = append(dispatcherOpts, payment.WithPriceSource(oracle.NewCoinGecko(oracle.CoinGeckoConfig{
			BaseURL:  cfg.Oracle.BaseURL,
			Currency: cfg.Oracle.Currency,
			Timeout:  cfg.Oracle.Timeout(),
		})))
	}

	dispatcher := payment.NewDispatcher(client, keys, dir, outbox, pub, dispatcherOpts...)
	service := payment.NewService(store, dispatcher, keys, nil)

	alerts := alerting.NewFanout(&alerting.LogNotifier{})
	scanner := payment.NewScanner(store, dispatcher, outbox,
		payment.WithInterval(cfg.Scheduler.Interval()),
		payment.WithInitialDelay(cfg.Scheduler.InitialDelay()),
		payment.WithAlerts(alerts),
	)

	scannerCtx, scannerCancel := context.WithCancel(ctx)
	defer scannerCancel()
	go func() {
		if err := scanner.Start(scannerCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("到期扫描器异常退出: %v", err)
		}
	}()

	drainer := notify.NewDrainer(outbox, notify.LogTransport(), retry.Default())
	server := api.NewServer(cfg.Server.Address, service, keys, dir, outbox, drainer)
	return server.Start(ctx)
}

// dbPool 按 DSN 缓存已打开的 MySQL 连接池。
type dbPool struct {
	conns map[string]*sql.DB
}

func newDBPool() *dbPool {
	return &dbPool{conns: make(map[string]*sql.DB)}
}

// Open 打开或复用 DSN 对应的连接池，首次打开时执行迁移。
func (p *dbPool) Open(ctx context.Context, store config.StoreConfig) (*sql.DB, error) {
	if store.DSN == "" {
		return nil, errors.New("mysql 驱动需要配置 dsn")
	}
	if db, ok := p.conns[store.DSN]; ok {
		return db, nil
	}

	db, err := sql.Open("mysql", store.DSN)
	if err != nil {
		return nil, fmt.Errorf("打开 MySQL 连接失败: %w", err)
	}
	if store.MaxOpenConns > 0 {
		db.SetMaxOpenConns(store.MaxOpenConns)
	}
	if store.MaxIdleConns > 0 {
		db.SetMaxIdleConns(store.MaxIdleConns)
	}
	if store.ConnMaxLifetimeSeconds > 0 {
		db.SetConnMaxLifetime(time.Duration(store.ConnMaxLifetimeSeconds) * time.Second)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("连接 MySQL 失败: %w", err)
	}
	if err := migrations.Apply(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	p.conns[store.DSN] = db
	return db, nil
}

func (p *dbPool) Close() {
	for _, db := range p.conns {
		_ = db.Close()
	}
}

func openPaymentStore(ctx context.Context, cfg config.StoreConfig, dbs *dbPool) (payment.Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return payment.NewMemoryStore(), nil
	case "mysql":
		db, err := dbs.Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return payment.NewMySQLStore(db)
	default:
		return nil, fmt.Errorf("未知的支付存储驱动: %s", cfg.Driver)
	}
}

func openKeystore(ctx context.Context, cfg config.StoreConfig, dbs *dbPool) (wallet.Keystore, error) {
	switch cfg.Driver {
	case "", "memory":
		return wallet.NewMemoryKeystore(), nil
	case "mysql":
		db, err := dbs.Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return wallet.NewMySQLKeystore(db)
	default:
		return nil, fmt.Errorf("未知的钱包存储驱动: %s", cfg.Driver)
	}
}

func openDirectory(ctx context.Context, cfg config.StoreConfig, dbs *dbPool) (identity.Directory, error) {
	switch cfg.Driver {
	case "", "memory":
		return identity.NewMemoryDirectory(), nil
	case "mysql":
		db, err := dbs.Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return identity.NewMySQLDirectory(db)
	default:
		return nil, fmt.Errorf("未知的身份存储驱动: %s", cfg.Driver)
	}
}

func openOutbox(ctx context.Context, cfg config.OutboxConfig, dbs *dbPool) (notify.Outbox, error) {
	switch cfg.Driver {
	case "", "memory":
		return notify.NewMemoryOutbox(), nil
	case "redis":
		return notify.NewRedisOutbox(notify.RedisOutboxConfig{
			Address:   cfg.Redis.Address,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
	case "mysql":
		db, err := dbs.Open(ctx, config.StoreConfig{Driver: "mysql", DSN: cfg.DSN})
		if err != nil {
			return nil, err
		}
		return notify.NewMySQLOutbox(db)
	default:
		return nil, fmt.Errorf("未知的通知发件箱驱动: %s", cfg.Driver)
	}
}

func openPublisher(cfg config.EventsConfig) (events.Publisher, error) {
	switch cfg.Driver {
	case "", "memory":
		return events.NewMemoryPublisher(), nil
	case "rabbitmq":
		return events.NewRabbitMQPublisher(events.RabbitMQConfig{
			URL:        cfg.RabbitMQ.URL,
			Queue:      cfg.RabbitMQ.Queue,
			Durable:    cfg.RabbitMQ.Durable,
			AutoDelete: cfg.RabbitMQ.AutoDelete,
		})
	default:
		return nil, fmt.Errorf("未知的事件发布驱动: %s", cfg.Driver)
	}
}
