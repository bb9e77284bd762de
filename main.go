package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"vanish.io/linkcore/common/logging"
	rt "vanish.io/linkcore/common/retry"
	cst "vanish.io/linkcore/constants"
	pe "vanish.io/linkcore/errors"
	"vanish.io/linkcore/service"
	st "vanish.io/linkcore/stores"
)

func main() {
	if err := serve(); err != nil {
		log.WithError(err).Fatal("error running linkcore server")
	}
}

// start up application server and serve incoming requests
func serve() error {
	// read configuration from env vars
	viper.AutomaticEnv()
	setConfigDefaults()
	logging.SetupLog("linkcore")
	// initialize dependencies in data layer
	// NOTE docker compose's depends_on feature only guarantees the startup order of
	// *service containers* - it is us who define when the services are ready
	store, err := setupLinkStore()
	if err != nil {
		return err
	}
	defer store.Close()
	guard, err := setupGuard()
	if err != nil {
		return err
	}
	defer guard.Close()

	svr := &linkServer{LS: service.New(store, guard)}
	svr.SetupMux()

	host, port := viper.GetString(cst.EnvAppHost), viper.GetString(cst.EnvAppPort)
	log.WithFields(log.Fields{
		"host": host,
		"port": port,
	}).Info("linkcore server is starting up")
	addr := fmt.Sprintf("%s:%s", host, port)
	return http.ListenAndServe(addr, svr)
}

func setConfigDefaults() {
	viper.SetDefault(cst.EnvAppHost, "0.0.0.0")
	viper.SetDefault(cst.EnvAppPort, "8080")
	viper.SetDefault(cst.EnvReqBodySizeMaxByte, defaultReqBodySizeMaxByte)
	viper.SetDefault(cst.EnvStoreCallTimeout, 3*time.Second)
}

func storeRetryOpts() []rt.RetryOption {
	return []rt.RetryOption{
		rt.WithTimeout(3 * time.Second),
		rt.WithBaseDelay(100 * time.Millisecond),
		rt.WithExp(2.0),
		rt.WithRetryOn(rt.IsDepOffline),
	}
}

func setupLinkStore() (*st.PostgresLinkStore, error) {
	pool, err := pgxpool.New(context.Background(), viper.GetString(cst.EnvDatabaseURL))
	if err != nil {
		return nil, pe.NewServiceFailure("failed initializing Postgres pool").WithCause(err)
	}
	// verify the pool is up correctly
	pingFn := func() error {
		return pool.Ping(context.Background())
	}
	if err := rt.Retry(pingFn, storeRetryOpts()...); err != nil {
		return nil, pe.NewServiceFailure("failed initializing Postgres").WithCause(err)
	}
	store := st.NewPostgresLinkStore(&st.PostgresConfig{
		Pool:        pool,
		CallTimeout: viper.GetDuration(cst.EnvStoreCallTimeout),
	})
	if merr := store.Migrate(context.Background()); merr != nil {
		return nil, merr
	}
	return store, nil
}

func setupGuard() (st.ConsumptionGuard, error) {
	redisClient := redis.NewClient(&redis.Options{
		Addr:       fmt.Sprintf("%s:%s", viper.GetString(cst.EnvRedisHost), viper.GetString(cst.EnvRedisPort)),
		Password:   viper.GetString(cst.EnvRedisPasswd),
		DB:         viper.GetInt(cst.EnvRedisDB),
		MaxRetries: 3,
	})
	// verify the client is up correctly
	pingFn := func() error {
		return redisClient.Ping(context.Background()).Err()
	}
	if err := rt.Retry(pingFn, storeRetryOpts()...); err != nil {
		return nil, pe.NewServiceFailure("failed initializing Redis").WithCause(err)
	}
	return st.NewRedisGuard(redisClient, viper.GetDuration(cst.EnvStoreCallTimeout)), nil
}
