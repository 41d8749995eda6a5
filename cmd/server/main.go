package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"vetclinic-booking/internal/clinic"
	"vetclinic-booking/internal/config"
	"vetclinic-booking/internal/events"
	gweb "vetclinic-booking/internal/grpcweb"
	"vetclinic-booking/internal/handler"
	"vetclinic-booking/internal/localcache"
	"vetclinic-booking/internal/middleware"
	"vetclinic-booking/internal/mirror"
	"vetclinic-booking/internal/model"
	"vetclinic-booking/internal/notify"
	"vetclinic-booking/internal/store"
	"vetclinic-booking/internal/store/memstore"
	"vetclinic-booking/internal/store/mongostore"
	"vetclinic-booking/internal/triage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	ctx := context.Background()
	var closers []func()

	// remote store
	remote, closeRemote := openRemote(ctx, cfg)
	if closeRemote != nil {
		closers = append(closers, closeRemote)
	}
	m := mirror.New(remote)

	// local cache
	var cache localcache.Cache
	if cfg.LocalCache.RedisURL != "" {
		rc, err := localcache.NewRedisCache(ctx, cfg.LocalCache.RedisURL, "vetclinic:")
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		closers = append(closers, func() { rc.Close() })
		cache = rc
		log.Println("local cache: redis")
	} else {
		fc, err := localcache.NewFileCache(cfg.LocalCache.Dir)
		if err != nil {
			log.Fatalf("local cache: %v", err)
		}
		cache = fc
		log.Printf("local cache: %s", cfg.LocalCache.Dir)
	}

	// appointment events
	var pub events.Publisher = events.Nop{}
	if cfg.RabbitMQ.Enabled {
		ap, err := events.NewAMQP(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			log.Fatalf("rabbitmq: %v", err)
		}
		closers = append(closers, func() { ap.Close() })
		pub = ap
		log.Printf("publishing events to %s", cfg.RabbitMQ.Exchange)
	}

	center := notify.NewCenter(cache)
	analyzer, err := triage.New(triage.Config{
		APIKey:    cfg.Triage.APIKey,
		Model:     cfg.Triage.Model,
		Endpoint:  cfg.Triage.Endpoint,
		Timeout:   cfg.Triage.Timeout,
		CacheSize: cfg.Triage.CacheSize,
	}, model.Departments)
	if err != nil {
		log.Fatalf("triage: %v", err)
	}

	loc := cfg.Location()
	app := clinic.New(clinic.Options{
		DoctorID:     cfg.Clinic.DoctorID,
		DailyCap:     cfg.Clinic.DailyCap,
		WindowDays:   cfg.Clinic.WindowDays,
		TimeSlots:    cfg.Clinic.TimeSlots,
		Location:     loc,
		AdminEmail:   cfg.Admin.SeedEmail,
		AdminPass:    cfg.Admin.SeedPassword,
		SeedTestUser: cfg.Admin.SeedTestUser,
	}, cache, m, center, pub)
	if err := app.Start(ctx); err != nil {
		log.Fatalf("clinic: %v", err)
	}

	var sweeper *notify.Sweeper
	if cfg.Reminder.Enabled {
		sweeper = notify.NewSweeper(center, app, loc)
		if err := sweeper.Start(cfg.Reminder.Schedule); err != nil {
			log.Fatalf("reminder sweep: %v", err)
		}
		log.Printf("reminder sweep on %q", cfg.Reminder.Schedule)
	}

	h := handler.New(app, analyzer, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	// grpc server
	rl := middleware.NewRateLimiter(cfg.Auth.RateLimitRPS, cfg.Auth.RateLimitBurst)
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			middleware.RateLimit(rl),
			middleware.Auth(cfg.Auth.JWTSecret, app),
		),
	)
	handler.Register(srv, h)
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	lis, err := net.Listen("tcp", ":"+cfg.GRPC.Port)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	go func() {
		log.Printf("grpc on :%s", cfg.GRPC.Port)
		if err := srv.Serve(lis); err != nil {
			log.Printf("grpc: %v", err)
		}
	}()

	// grpc-web bridge -> forwards browser requests to grpc on localhost
	bridge, err := gweb.New("localhost:" + cfg.GRPC.Port)
	if err != nil {
		log.Fatalf("bridge: %v", err)
	}
	defer bridge.Close()

	r, err := router(cfg, bridge)
	if err != nil {
		log.Fatalf("router: %v", err)
	}
	httpSrv := &http.Server{
		Addr:    ":" + cfg.HTTP.Port,
		Handler: r,
	}
	go func() {
		log.Printf("grpc-web on :%s", cfg.HTTP.Port)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("http: %v", err)
		}
	}()

	// graceful shutdown
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch
	log.Println("shutting down")
	hs.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	srv.GracefulStop()
	if sweeper != nil {
		sweeper.Stop()
	}
	rl.Stop()
	app.Close()
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
}

// openRemote connects the configured shared store. A nil remote keeps the
// clinic local-only.
func openRemote(ctx context.Context, cfg *config.Config) (mirror.Remote, func()) {
	if !cfg.RemoteEnabled() {
		log.Printf("remote store disabled (%s)", cfg.Remote.Backend)
		return nil, nil
	}
	switch cfg.Remote.Backend {
	case config.RemotePostgres:
		pool, err := pgxpool.New(ctx, cfg.Remote.DatabaseURL)
		if err != nil {
			log.Fatalf("db: %v", err)
		}
		if err := pool.Ping(ctx); err != nil {
			log.Fatalf("db ping: %v", err)
		}
		log.Println("connected to postgres")
		st := store.New(pool)
		if err := st.Migrate(ctx, cfg.Remote.Migration); err != nil {
			log.Printf("migration warning: %v", err)
		} else {
			log.Println("migration applied")
		}
		return st, func() { st.Close(); pool.Close() }
	case config.RemoteMongo:
		st, err := mongostore.Connect(ctx, cfg.Remote.MongoURI, cfg.Remote.MongoDB)
		if err != nil {
			log.Fatalf("mongo: %v", err)
		}
		log.Println("connected to mongo")
		return st, st.Close
	default:
		log.Println("remote store: in-memory")
		return memstore.New(), nil
	}
}

func router(cfg *config.Config, bridge *gweb.Bridge) (*gin.Engine, error) {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	// forwarding headers count only from these; none by default
	if err := r.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		return nil, err
	}

	cc := cors.Config{
		AllowMethods:  []string{http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Authorization", "Content-Type", "X-Auth-Token", "X-Grpc-Web", "X-User-Agent"},
		ExposeHeaders: []string{"Grpc-Status", "Grpc-Message"},
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.HTTP.AllowOrigins) == 0 || cfg.HTTP.AllowOrigins[0] == "*" {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = cfg.HTTP.AllowOrigins
		cc.AllowCredentials = true
	}
	r.Use(cors.New(cc))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.POST("/"+handler.ClinicServiceName+"/:method", bridge.Gin(handler.ClinicServiceName))

	admin := r.Group(cfg.Admin.PathPrefix, middleware.BasicAuth(cfg.Admin.Username, cfg.Admin.Password))
	admin.POST("/"+handler.AdminServiceName+"/:method", bridge.Gin(handler.AdminServiceName))
	return r, nil
}
