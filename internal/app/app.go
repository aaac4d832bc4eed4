package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/niksmo/storefront/config"
	"github.com/niksmo/storefront/internal/adapter"
	"github.com/niksmo/storefront/internal/adapter/catalog"
	"github.com/niksmo/storefront/internal/adapter/httphandler"
	"github.com/niksmo/storefront/internal/adapter/kafka"
	"github.com/niksmo/storefront/internal/adapter/storage"
	"github.com/niksmo/storefront/internal/core/port"
	"github.com/niksmo/storefront/internal/core/service"
	"github.com/niksmo/storefront/pkg/schema"
	"github.com/twmb/franz-go/pkg/sr"
)

type kvStorage interface {
	port.KVStorage
	Close()
}

type storages struct {
	kv     kvStorage
	sqldb  storage.SQLDB
	orders storage.OrdersRepository
}

type broker struct {
	security   kafka.Security
	orderSerde schema.Serde
	producer   *kafka.OrdersProducer
	processor  *kafka.OrderHistoryProcessor
	view       *kafka.OrderHistoryView
}

type coreService struct {
	service  service.Service
	sessions *service.Sessions
	checkout *service.Checkout
}

type App struct {
	ctx        context.Context
	cfg        config.Config
	storages   storages
	broker     broker
	catalog    port.ProductCatalog
	service    coreService
	httpServer httphandler.HTTPServer
}

func New(ctx context.Context, cfg config.Config) *App {
	app := &App{ctx: ctx, cfg: cfg}

	app.initLogger()
	app.initStorages()
	app.initCatalog()
	if cfg.Broker.Enabled {
		app.initBroker()
	}
	app.initCoreService()
	app.initInboundAdapters()

	return app
}

func (app *App) initLogger() {
	opts := &slog.HandlerOptions{Level: app.cfg.LogLevel}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, opts))
	slog.SetDefault(logger)
}

func (app *App) initStorages() {
	const op = "App.initStorages"
	cfg := app.cfg.Storage

	switch cfg.Backend {
	case config.StorageLevelDB:
		db, err := storage.NewLevelDB(cfg.LevelDBPath)
		if err != nil {
			app.fallDown(op, err)
		}
		app.storages.kv = db
	case config.StorageRedis:
		rdb, err := storage.NewRedis(app.ctx, storage.RedisOpts{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		})
		if err != nil {
			app.fallDown(op, err)
		}
		app.storages.kv = rdb
	default:
		app.storages.kv = storage.NewMemoryKV()
	}

	sqldb, err := storage.NewSQLDB(app.ctx, app.cfg.SQLDB)
	if err != nil {
		app.fallDown(op, err)
	}
	app.storages.sqldb = sqldb
	app.storages.orders = storage.NewOrdersRepository(sqldb)
}

func (app *App) initCatalog() {
	const op = "App.initCatalog"
	cfg := app.cfg.Catalog

	c, err := catalog.NewDummyJSON(
		catalog.BaseURLOpt(cfg.BaseURL),
		catalog.HTTPClientOpt(&http.Client{Timeout: cfg.Timeout}),
		catalog.CacheOpt(cfg.CacheSize, cfg.CacheTTL),
	)
	if err != nil {
		app.fallDown(op, err)
	}
	app.catalog = c
}

func (app *App) initBroker() {
	app.initSecurity()
	app.initSerdes()
	app.initOutboundAdapters()
}

func (app *App) initSecurity() {
	const op = "App.initSecurity"
	cfg := app.cfg.Broker.Security

	tlsConfig, err := adapter.MakeTLSConfig(
		cfg.TLS.CAFile, cfg.TLS.CertFile, cfg.TLS.KeyFile,
	)
	if err != nil {
		app.fallDown(op, err)
	}

	app.broker.security = kafka.Security{
		TLSConfig: tlsConfig,
		User:      cfg.User,
		Pass:      cfg.Pass,
	}
}

func (app *App) initSerdes() {
	const op = "App.initSerdes"
	sec := app.broker.security

	srOpts := []sr.ClientOpt{sr.URLs(app.cfg.Broker.SchemaRegistryURLs...)}
	if sec.TLSConfig != nil {
		srOpts = append(srOpts, sr.DialTLSConfig(sec.TLSConfig))
	}
	if sec.User != "" {
		srOpts = append(srOpts, sr.BasicAuth(sec.User, sec.Pass))
	}

	srClient, err := sr.NewClient(srOpts...)
	if err != nil {
		app.fallDown(op, err)
	}

	schemaCreater := schema.NewSchemaCreater(srClient)

	orderSS := app.cfg.Broker.Topics.Orders + "-value"
	orderSerde, err := schema.NewSerdeOrderPlacedV1(
		app.ctx,
		schema.SubjectOpt(orderSS),
		schema.SchemaIdentifierOpt(schemaCreater),
	)
	if err != nil {
		app.fallDown(op, err)
	}

	app.broker.orderSerde = orderSerde
}

func (app *App) initOutboundAdapters() {
	const op = "App.initOutboundAdapters"

	ctx := app.ctx
	sec := app.broker.security
	seedBrokers := app.cfg.Broker.SeedBrokers
	ordersTopic := app.cfg.Broker.Topics.Orders
	historyGroup := app.cfg.Broker.Consumers.OrderHistoryGroup

	producer, err := kafka.NewOrdersProducer(
		kafka.ProducerClientOpt(ctx, seedBrokers, ordersTopic, sec),
		kafka.ProducerEncoderOpt(app.broker.orderSerde),
	)
	if err != nil {
		app.fallDown(op, err)
	}

	processor, err := kafka.NewOrderHistoryProcessor(
		seedBrokers, ordersTopic, historyGroup, app.broker.orderSerde, sec,
	)
	if err != nil {
		app.fallDown(op, err)
	}

	view, err := kafka.NewOrderHistoryView(kafka.OrderHistoryViewConfig{
		SeedBrokers: seedBrokers,
		GroupTable:  historyGroup,
		Security:    sec,
	})
	if err != nil {
		app.fallDown(op, err)
	}

	app.broker.producer = &producer
	app.broker.processor = processor
	app.broker.view = view
}

func (app *App) initCoreService() {
	const op = "App.initCoreService"

	var (
		events  port.OrderEventsProducer
		history port.OrderHistoryReader
		workers []port.BackgroundWorker
	)
	if app.cfg.Broker.Enabled {
		events = app.broker.producer
		history = app.broker.view
		workers = append(workers, app.broker.processor, app.broker.view)
	}

	sessions, err := service.NewSessions(
		app.storages.kv,
		storage.JSONCartCodec{},
		app.cfg.DomainPricing(),
		service.SessionsLimitOpt(app.cfg.Storage.MaxSessions),
	)
	if err != nil {
		app.fallDown(op, err)
	}
	app.service.sessions = sessions
	app.service.checkout = service.NewCheckout(
		sessions, app.storages.orders, events, history,
	)
	app.service.service = service.New(app.catalog, workers...)
}

func (app *App) initInboundAdapters() {
	handler := httphandler.NewRouter(
		app.service.sessions,
		app.service.checkout,
		app.service.checkout,
		app.service.service,
	)
	app.httpServer = httphandler.NewHTTPServer(app.cfg.HTTPServerAddr, handler)
}

func (app *App) Run(stopFn context.CancelFunc) {
	app.service.service.Run(app.ctx)
	go app.httpServer.Run(stopFn)

	slog.Info("application is running")
}

func (app *App) Close(ctx context.Context) {
	slog.Info("application is closing...")

	app.httpServer.Close(ctx)
	app.service.service.Close()
	if app.broker.producer != nil {
		app.broker.producer.Close()
	}
	app.storages.sqldb.Close()
	app.storages.kv.Close()

	slog.Info("application is closed")
}

func (app *App) fallDown(op string, err error) {
	panic(fmt.Errorf("%s: %w", op, err))
}
