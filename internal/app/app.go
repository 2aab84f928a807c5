// Package app wires configuration, storage, the conversation engine, and the
// Telegram surface into a runnable bot.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	tele "gopkg.in/telebot.v4"

	coreconfig "pedidosbot/core/config"
	"pedidosbot/core/database"
	"pedidosbot/core/logger"
	"pedidosbot/core/metrics"
	tg "pedidosbot/core/telegram"
	"pedidosbot/core/telegram/router"
	"pedidosbot/core/telegram/ui"
	"pedidosbot/internal/conversation"
	"pedidosbot/internal/flows/clients"
	"pedidosbot/internal/flows/collections"
	"pedidosbot/internal/flows/contact"
	"pedidosbot/internal/flows/order"
	"pedidosbot/internal/flows/product"
	"pedidosbot/internal/flows/reports"
	"pedidosbot/internal/flows/stock"
	"pedidosbot/internal/pending"
	"pedidosbot/internal/storage"
	"log/slog"
)

// App aggregates the long-lived components of the bot process.
type App struct {
	cfg *coreconfig.Config

	db    *sqlx.DB
	redis *redis.Client

	sellers   *storage.SellerRepo
	customers *storage.CustomerRepo
	products  *storage.ProductRepo
	orders    *storage.OrderRepo
	zones     *storage.ZoneRepo

	conv      *conversation.Dispatcher
	listeners *pending.Listeners
	registry  *tg.Registry

	flowOrder       *order.Flow
	flowCollections *collections.Flow
	flowClients     *clients.Flow
	flowProduct     *product.Flow
	flowStock       *stock.Flow
	flowReports     *reports.Flow
	flowContact     *contact.Flow
}

// New builds the application: database pool, session store, flows, and the
// command/callback registry.
func New(cfg *coreconfig.Config) (*App, error) {
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:       cfg,
		db:        db,
		sellers:   storage.NewSellerRepo(db),
		customers: storage.NewCustomerRepo(db),
		products:  storage.NewProductRepo(db),
		orders:    storage.NewOrderRepo(db),
		zones:     storage.NewZoneRepo(db),
		listeners: pending.NewListeners(),
		registry:  tg.NewRegistry(),
	}

	store := a.buildStore()
	a.conv = conversation.NewDispatcher(store, cfg.Bot.CancelToken)

	a.flowOrder = order.New(a.conv, a.customers, a.products, a.orders,
		cfg.Bot.ProductsPerPage, cfg.Bot.ButtonsPerRow)
	a.flowCollections = collections.New(a.conv, a.customers, a.orders)
	a.flowClients = clients.New(a.conv, a.customers, a.zones)
	a.flowProduct = product.New(a.conv, a.products)
	a.flowStock = stock.New(a.conv, a.products, a.listeners)
	a.flowReports = reports.New(a.conv, a.orders)
	a.flowContact = contact.New(a.conv, adminForwarder{adminID: cfg.Telegram.AdminID})

	for _, f := range []conversation.Flow{
		a.flowOrder, a.flowCollections, a.flowClients,
		a.flowProduct, a.flowStock, a.flowReports, a.flowContact,
	} {
		if err := a.conv.Register(f); err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
	}

	if err := a.registerCallbacks(); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	a.registerCommands()

	return a, nil
}

// buildStore picks the session store: redis when configured, otherwise the
// in-process map.
func (a *App) buildStore() conversation.Store {
	if a.cfg.Redis.Addr == "" {
		logger.CONV.Info("session store ready",
			slog.String("event", "store.init"),
			slog.String("backend", "memory"),
		)
		return conversation.NewMemoryStore()
	}
	a.redis = redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	ttl := time.Duration(a.cfg.Redis.SessionTTLMinutes) * time.Minute
	logger.CONV.Info("session store ready",
		slog.String("event", "store.init"),
		slog.String("backend", "redis"),
		slog.String("addr", a.cfg.Redis.Addr),
		slog.Duration("ttl", ttl),
	)
	return conversation.NewRedisStore(a.redis, ttl)
}

func (a *App) registerCallbacks() error {
	type callbackSource interface {
		Callbacks(reg *tg.Registry) error
	}
	for _, f := range []callbackSource{
		a.flowOrder, a.flowClients, a.flowProduct, a.flowStock, a.flowReports,
	} {
		if err := f.Callbacks(a.registry); err != nil {
			return err
		}
	}
	return nil
}

// Run starts the ops endpoint and the Telegram loop, blocking until ctx is
// cancelled or the bot stops.
func (a *App) Run(ctx context.Context) error {
	if a.cfg.Ops.Listen != "" {
		go func() {
			if err := metrics.Serve(ctx, a.cfg.Ops.Listen); err != nil {
				logger.Error(ctx, "ops", "serve.fail", slog.String("err", err.Error()))
			}
		}()
	}

	var fallbacks ui.Fallbacks
	routes := []tg.Route{
		router.MessageRoute(a.registry, router.MessageOptions{
			ClaimPending: func(c tele.Context) (tele.HandlerFunc, bool) {
				h, ok := a.listeners.Claim(c)
				if !ok {
					return nil, false
				}
				return tele.HandlerFunc(h), true
			},
			HandleFlow: a.conv.HandleText,
			Fallback:   fallbacks.UnknownText(),
		}),
		router.CallbackRoute(a.registry, router.CallbackOptions{
			NotFound: fallbacks.UnknownCallback(),
		}),
	}
	routes = append(routes, router.CommandRoutes(a.registry, router.CommandRouteOptions{
		AdminID: a.cfg.Telegram.AdminID,
	})...)

	return tg.RunTelegram(ctx, tg.RunOptions{
		Config:      a.cfg,
		Registry:    a.registry,
		Middlewares: tg.DefaultMiddlewares(a.cfg, nil),
		Routes:      routes,
	})
}

// Close releases the database and redis handles.
func (a *App) Close() error {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// adminForwarder delivers support messages to the configured operator chat.
type adminForwarder struct {
	adminID int64
}

func (f adminForwarder) Forward(c tele.Context, text string) error {
	if f.adminID == 0 {
		return fmt.Errorf("forward: no admin configured")
	}
	_, err := c.Bot().Send(&tele.User{ID: f.adminID}, text)
	return err
}
