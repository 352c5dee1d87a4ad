package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"quadplan/api"
	"quadplan/storage"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	boardsTable := os.Getenv("BOARDS_TABLE")
	tasksTable := os.Getenv("TASKS_TABLE")
	prefsTable := os.Getenv("PREFERENCES_TABLE")
	reminderQueue := os.Getenv("REMINDER_QUEUE")
	if connStr == "" || boardsTable == "" || tasksTable == "" || prefsTable == "" {
		log.Fatal("missing storage config")
	}
	store, err := storage.New(connStr, boardsTable, tasksTable, prefsTable)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	redisConn := os.Getenv("REDIS_CONNECTION_STRING")
	if redisConn == "" {
		log.Fatal("missing redis config")
	}
	rc := redis.NewClient(parseRedisOptions(redisConn))

	cacheTTL := envDur("SNAPSHOT_CACHE_TTL", time.Hour)
	cache := storage.NewCache(store, rc, cacheTTL)

	logger := log.New()
	writer := storage.NewWriter(cache, storage.WriterConfig{
		Workers:        envInt("SAVE_WORKERS", 8),
		Buffer:         envInt("SAVE_BUFFER", 1024),
		SaveTimeout:    envDur("SAVE_TIMEOUT", 60*time.Second),
		HandoffTimeout: envDur("SAVE_HANDOFF_TIMEOUT", 15*time.Millisecond),
	}, logger)
	defer writer.Close()

	sessions := api.NewSessions(cache, writer, logger)

	deduper := api.NewRedisDeduper(rc, envDur("DEDUPER_TTL", 24*time.Hour))

	testMode := os.Getenv("AUTH0_TEST_MODE") == "1"
	var auth *api.Auth
	if testMode {
		auth = api.NewAuth(nil, "", "")
	} else {
		jwtAudience := os.Getenv("AUTH0_AUDIENCE")
		domain := os.Getenv("AUTH0_DOMAIN")
		if jwtAudience == "" || domain == "" {
			log.Fatal("missing Auth0 config")
		}
		jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", domain)
		jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{})
		if err != nil {
			log.Fatalf("jwks: %v", err)
		}
		auth = api.NewAuth(jwks, jwtAudience, "https://"+domain+"/")
	}

	if reminderQueue != "" {
		notifier, err := storage.NewNotifier(connStr, reminderQueue, rc)
		if err != nil {
			log.Fatalf("notifier: %v", err)
		}
		poller := api.NewReminderPoller(sessions, notifier, envDur("REMINDER_INTERVAL", time.Minute), logger)
		go poller.Run(context.Background())
	} else {
		logger.Warn("REMINDER_QUEUE not set, reminder notifications disabled")
	}

	e := echo.New()
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(echoprometheus.NewMiddleware("quadplan"))
	e.GET("/metrics", echoprometheus.NewHandler())

	api.Register(e, sessions, auth, deduper, logger)

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("FUNCTIONS_CUSTOMHANDLER_PORT"); ok {
		listenAddr = ":" + val
	}

	e.Logger.Fatal(e.Start(listenAddr))
}

// parseRedisOptions accepts either a redis URL or an Azure style
// "host:port,password=...,ssl=true" connection string.
func parseRedisOptions(redisConn string) *redis.Options {
	redisOpts, err := redis.ParseURL(redisConn)
	if err != nil {
		parts := strings.Split(redisConn, ",")
		redisOpts = &redis.Options{Addr: parts[0]}
		for _, p := range parts[1:] {
			kv := strings.SplitN(p, "=", 2)
			if len(kv) != 2 {
				continue
			}
			switch strings.ToLower(kv[0]) {
			case "password":
				redisOpts.Password = kv[1]
			case "ssl":
				if strings.ToLower(kv[1]) == "true" {
					redisOpts.TLSConfig = &tls.Config{}
				}
			}
		}
	}
	return redisOpts
}

func envInt(name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Fatalf("invalid %s: %q", name, v)
	}
	return n
}

func envDur(name string, def time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Fatalf("invalid %s: %q", name, v)
	}
	return d
}
