// Package main vends a long-running worker to delete stale link records. Redis
// consumption flags expire on their own TTL, so only the durable rows need sweeping.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bluele/gcache"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"vanish.io/linkcore/common/logging"
	rt "vanish.io/linkcore/common/retry"
	cst "vanish.io/linkcore/constants"
	pe "vanish.io/linkcore/errors"
	st "vanish.io/linkcore/stores"
)

func main() {
	if err := runJanitor(); err != nil {
		log.WithError(err).Fatal("error running janitor")
	}
}

func setupLinkStore() (*st.PostgresLinkStore, error) {
	retryOpts := []rt.RetryOption{
		rt.WithTimeout(3 * time.Second),
		rt.WithBaseDelay(100 * time.Millisecond),
		rt.WithExp(2.0),
		rt.WithRetryOn(rt.IsDepOffline),
	}
	pool, err := pgxpool.New(context.Background(), viper.GetString(cst.EnvDatabaseURL))
	if err != nil {
		return nil, pe.NewServiceFailure("failed initializing Postgres pool").WithCause(err)
	}
	pingFn := func() error {
		return pool.Ping(context.Background())
	}
	if err := rt.Retry(pingFn, retryOpts...); err != nil {
		return nil, pe.NewServiceFailure("failed initializing Postgres").WithCause(err)
	}
	return st.NewPostgresLinkStore(&st.PostgresConfig{
		Pool:        pool,
		CallTimeout: viper.GetDuration(cst.EnvStoreCallTimeout),
	}), nil
}

type janitor struct {
	LS       st.LinkStore
	wipCache gcache.Cache
}

func runJanitor() error {
	viper.AutomaticEnv()
	viper.SetDefault(cst.EnvStoreCallTimeout, 3*time.Second)
	viper.SetDefault(cst.EnvJanitorLocalCacheSize, 1024)
	viper.SetDefault(cst.EnvJanitorSweepFreq, time.Minute)
	viper.SetDefault(cst.EnvJanitorMaxSweepLoad, 256)
	viper.SetDefault(cst.EnvJanitorExecPoolSize, 8)
	viper.SetDefault(cst.EnvJanitorWIPEntryExpiry, 5*time.Minute)
	logging.SetupLog("linkcore-janitor")
	clog := logging.WithFuncName()
	store, err := setupLinkStore()
	if err != nil {
		clog.WithError(err).Error("error setting up LinkStore")
		return err
	}
	defer store.Close()
	localCacheSize := viper.GetInt(cst.EnvJanitorLocalCacheSize)
	wipCache := gcache.New(localCacheSize).LRU().Build()
	j := &janitor{LS: store, wipCache: wipCache}
	if err := j.Run(); err != nil {
		return err
	}
	return nil
}

func (j *janitor) Run() *pe.Err {
	clog := logging.WithFuncName()
	freq := viper.GetDuration(cst.EnvJanitorSweepFreq)
	if freq <= 0 {
		clog.WithField("sweepFrequency", freq).Fatal("got non-positive janitor sweep frequency")
	}
	execPoolSize := viper.GetInt(cst.EnvJanitorExecPoolSize)
	if execPoolSize <= 0 {
		clog.WithField("janitorExecutorPoolSize", execPoolSize).Fatal("got non-positive janitor executor pool size")
	}
	quotas := make(chan struct{}, execPoolSize)
	maxLoad := viper.GetInt(cst.EnvJanitorMaxSweepLoad)
	wipEntryExpiry := viper.GetDuration(cst.EnvJanitorWIPEntryExpiry)
	loadTkr := time.NewTicker(freq)
	defer loadTkr.Stop()
	// ensure the worker can be responsive to system signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
LoopRun:
	for {
		select {
		case <-loadTkr.C:
			ids, err := j.LS.ListExpired(context.Background(), time.Now(), maxLoad)
			if err != nil {
				clog.WithError(err).Error("error loading expired link ids")
				// transient store trouble; next tick retries
				continue
			}
			clog.WithField("count", len(ids)).Debug("expired links loaded")
			for _, id := range ids {
				if _, err := j.wipCache.Get(id); err == nil {
					// an inflight worker already owns this id
					continue
				}
				// mark WIP before handoff; entry expiry covers workers that died mid-delete
				if err := j.wipCache.SetWithExpire(id, struct{}{}, wipEntryExpiry); err != nil {
					clog.WithError(err).WithField("linkID", id).Error("error marking link WIP")
					continue
				}
				go func(id string) {
					quotas <- struct{}{}
					defer func() { <-quotas }()
					if err := j.LS.Delete(context.Background(), id); err != nil {
						clog.WithError(err).WithField("linkID", id).Error("error deleting expired link")
						return
					}
					j.wipCache.Remove(id)
					clog.WithField("linkID", id).Debug("expired link removed")
				}(id)
			}
		case sig := <-sigChan:
			clog.WithField("signal", sig).Info("got system signal. Stopping sweep")
			break LoopRun
		}
	}
	return nil
}
