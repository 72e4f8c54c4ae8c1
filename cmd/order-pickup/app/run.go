package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/aq2208/gorder-pickup/configs"
	"github.com/aq2208/gorder-pickup/internal/adapter/cache"
	"github.com/aq2208/gorder-pickup/internal/adapter/http"
	"github.com/aq2208/gorder-pickup/internal/adapter/http/middleware"
	"github.com/aq2208/gorder-pickup/internal/adapter/kafka"
	"github.com/aq2208/gorder-pickup/internal/adapter/observ"
	"github.com/aq2208/gorder-pickup/internal/adapter/queue"
	"github.com/aq2208/gorder-pickup/internal/adapter/repo"
	"github.com/aq2208/gorder-pickup/internal/logging"
	"github.com/aq2208/gorder-pickup/internal/security"
	"github.com/aq2208/gorder-pickup/internal/usecase"
)

type App struct {
	Router  *gin.Engine
	Orders  *usecase.OrderService
	Coupons *usecase.CouponLedger
	Loyalty *usecase.LoyaltyLedger
}

// closers run in reverse registration order on cleanup.
type closers []func()

func (c *closers) add(f func()) { *c = append(*c, f) }

func (c closers) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

// InitWithConfig wires storage, brokers and services. Background consumers live until
// ctx is cancelled. The returned cleanup releases every connection that was opened.
func InitWithConfig(ctx context.Context, cfg configs.Config) (*App, func(), error) {
	log := logging.New("bootstrap")
	var done closers
	fail := func(err error) (*App, func(), error) {
		done.run()
		return nil, nil, err
	}

	// keys + pickup token codec
	keys, err := security.LoadKeyMaterial(cfg)
	if err != nil {
		return fail(err)
	}
	codec, err := security.NewPickupCodec(keys.PickupSecret, cfg.Pickup.TTL)
	if err != nil {
		return fail(err)
	}

	// storage
	st, err := openStorage(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	if st.close != nil {
		done.add(st.close)
	}
	log.Info("storage ready", "driver", cfg.Storage.Driver)

	metrics := observ.NewMetrics(prometheus.DefaultRegisterer)
	retry := usecase.RetryPolicy{Attempts: cfg.Retry.Attempts, BaseDelay: cfg.Retry.BaseDelay, MaxDelay: cfg.Retry.MaxDelay}

	// redis: idempotency + status cache
	var (
		idem        usecase.IdempotencyStore
		statusCache usecase.OrderCache
	)
	if cfg.Redis.Enabled {
		rdb, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return fail(err)
		}
		done.add(func() { _ = rdb.Close() })
		idem = cache.NewRedisIdempotencyStore(rdb, cfg.Idempotency.TTL)
		statusCache = cache.NewRedisCache(rdb, cfg.Cache.TTL)
		log.Info("redis ready", "addr", cfg.Redis.Addr)
	}

	// rabbitmq: notifications out, kitchen commands in
	var (
		notifier usecase.Notifier
		rabbit   *rabbitLink
	)
	if cfg.Rabbit.Enabled {
		rabbit, err = dialRabbit(cfg.Rabbit)
		if err != nil {
			return fail(err)
		}
		done.add(rabbit.close)
		notifier = queue.NewRabbitNotifier(rabbit.pub, cfg.Rabbit.Exchange)
		log.Info("rabbitmq ready", "exchange", cfg.Rabbit.Exchange, "kitchen_queue", rabbit.kitchenQueue)
	}

	// kafka: lifecycle events out
	var events usecase.EventPublisher
	if cfg.Kafka.Enabled {
		producer, err := kafka.NewSyncProducer(cfg.Kafka)
		if err != nil {
			return fail(fmt.Errorf("kafka producer: %w", err))
		}
		pub := kafka.NewEventPublisher(producer, cfg.Kafka.TopicEvents)
		done.add(func() { _ = pub.Close() })
		events = pub
		log.Info("kafka producer ready", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.TopicEvents)
	}

	// usecases
	milestones, err := loyaltyMilestones(cfg)
	if err != nil {
		return fail(err)
	}
	rewards, err := loyaltyRewards(cfg)
	if err != nil {
		return fail(err)
	}
	coupons := usecase.NewCouponLedger(usecase.CouponLedgerDeps{
		Coupons:   st.coupons,
		Customers: st.customers,
		Notifier:  notifier,
		Metrics:   metrics,
		Retry:     retry,
	})
	loyalty := usecase.NewLoyaltyLedger(usecase.LoyaltyLedgerDeps{
		Profiles:       st.profiles,
		Coupons:        coupons,
		Milestones:     milestones,
		PointsPerOrder: cfg.Loyalty.PointsPerOrder,
		Rewards:        rewards,
		Metrics:        metrics,
		Retry:          retry,
	})
	orders, err := usecase.NewOrderService(usecase.OrderServiceDeps{
		Orders:      st.orders,
		Customers:   st.customers,
		Tokens:      codec,
		Coupons:     coupons,
		Loyalty:     loyalty,
		Idempotency: idem,
		Cache:       statusCache,
		Events:      events,
		Notifier:    notifier,
		Metrics:     metrics,
		Retry:       retry,
	})
	if err != nil {
		return fail(err)
	}

	// register queue-handler
	if rabbit != nil {
		if err := setupKitchenQueue(ctx, rabbit, cfg.Rabbit, orders); err != nil {
			return fail(err)
		}
	}

	// register kafka-listener
	if cfg.Kafka.Enabled && cfg.Kafka.TopicPromotions != "" {
		group, err := setupPromotionListener(ctx, cfg.Kafka, coupons)
		if err != nil {
			return fail(err)
		}
		done.add(func() { _ = group.Close() })
	}

	// init handlers + routers + middleware
	router := http.NewRouter(http.Handlers{
		Orders:  http.NewOrderHandler(orders, cfg.HTTP.RequestTimeout),
		Coupons: http.NewCouponHandler(coupons, cfg.HTTP.RequestTimeout),
		Loyalty: http.NewLoyaltyHandler(loyalty, cfg.HTTP.RequestTimeout),
		Tokens:  http.NewTokenHandler(cfg),
		Metrics: middleware.NewHTTPMetrics(prometheus.DefaultRegisterer),

		CORSOrigins: cfg.HTTP.CORSOrigins,
	}, middleware.NewAuthz(cfg))

	return &App{Router: router, Orders: orders, Coupons: coupons, Loyalty: loyalty}, done.run, nil
}

type rabbitLink struct {
	conn         *amqp.Connection
	pub          *amqp.Channel
	sub          *amqp.Channel
	kitchenQueue string
}

func (r *rabbitLink) close() {
	_ = r.sub.Close()
	_ = r.pub.Close()
	_ = r.conn.Close()
}

// dialRabbit opens one channel for publishing and one for consuming so a slow
// consumer never blocks notifications.
func dialRabbit(c configs.Rabbit) (*rabbitLink, error) {
	conn, err := amqp.Dial(c.URL)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	pub, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	sub, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	q, err := queue.DeclareTopology(pub, c)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &rabbitLink{conn: conn, pub: pub, sub: sub, kitchenQueue: q}, nil
}

func setupKitchenQueue(ctx context.Context, r *rabbitLink, c configs.Rabbit, orders *usecase.OrderService) error {
	h := queue.NewKitchenHandler(orders)

	router := queue.NewRouter(r.sub, queue.WithPrefetch(c.Prefetch))
	router.Register(r.kitchenQueue, queue.JSONHandler[usecase.KitchenCommand]{HandleFunc: h.HandleCommand})
	return router.Start(ctx)
}

type groupCloser interface{ Close() error }

func setupPromotionListener(ctx context.Context, c configs.Kafka, coupons *usecase.CouponLedger) (groupCloser, error) {
	grp, err := kafka.NewGroup(c)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer group: %w", err)
	}

	h := kafka.NewPromotionHandler(coupons)
	consumer := kafka.NewConsumer[usecase.PromotionToggleMsg](grp, []string{c.TopicPromotions}, h.Handle)

	// runs until ctx is cancelled
	go func() {
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logging.New("kafka").Error("promotion consumer stopped", "err", err)
		}
	}()
	return grp, nil
}

// storage bundles the persistence gateway behind the configured driver.
type storage struct {
	orders    usecase.OrderRepo
	coupons   usecase.CouponRepo
	profiles  usecase.LoyaltyRepo
	customers usecase.CustomerDirectory
	close     func()
}

func openStorage(ctx context.Context, cfg configs.Config) (storage, error) {
	if cfg.Storage.Driver == "memory" {
		m := repo.NewMemoryStore(devCustomers...)
		return storage{orders: m, coupons: m, profiles: m, customers: m}, nil
	}

	d, err := repo.DialectFor(cfg.Storage.Driver)
	if err != nil {
		return storage{}, err
	}
	db, err := repo.OpenSQL(ctx, d, cfg.Storage.DSN, repo.PoolConfig{
		MaxOpenConns:    cfg.Storage.MaxOpenConns,
		MaxIdleConns:    cfg.Storage.MaxIdleConns,
		ConnMaxLifetime: cfg.Storage.ConnMaxLifetime,
	})
	if err != nil {
		return storage{}, err
	}
	return storage{
		orders:    repo.NewSQLOrderRepo(db, d),
		coupons:   repo.NewSQLCouponRepo(db, d),
		profiles:  repo.NewSQLLoyaltyRepo(db, d),
		customers: repo.NewSQLCustomerDirectory(db, d),
		close:     func() { _ = db.Close() },
	}, nil
}

// seeded customers for the in-memory dev profile
var devCustomers = []string{"alice", "bob", "carol"}
