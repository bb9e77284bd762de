// Package constants vends constants used in various components of linkcore service, e.g., env var names
package constants

const (
	// -------------- env vars --------------
	// common
	EnvVerbose = "LINKCORE_VERBOSE"
	// stores
	EnvDatabaseURL      = "LINKCORE_DATABASE_URL"
	EnvRedisHost        = "REDIS_HOST"
	EnvRedisPort        = "REDIS_PORT"
	EnvRedisPasswd      = "REDIS_PASSWD"
	EnvRedisDB          = "REDIS_DB"
	EnvStoreCallTimeout = "LINKCORE_STORE_CALL_TIMEOUT"
	// server
	EnvAppHost            = "LINKCORE_HOST"
	EnvAppPort            = "LINKCORE_PORT"
	EnvReqBodySizeMaxByte = "LINKCORE_REQ_BODY_SIZE_MAX_BYTE"
	// janitor
	EnvJanitorLocalCacheSize = "LINKCORE_JANITOR_LOCAL_CACHE_SIZE"
	EnvJanitorSweepFreq      = "LINKCORE_JANITOR_SWEEP_FREQ"
	EnvJanitorMaxSweepLoad   = "LINKCORE_JANITOR_MAX_SWEEP_LOAD"
	EnvJanitorExecPoolSize   = "LINKCORE_JANITOR_EXEC_POOL_SIZE"
	EnvJanitorWIPEntryExpiry = "LINKCORE_JANITOR_WIP_CACHE_ENTRY_EXPIRY"

	// -------------- logging --------------
	LogFieldFuncName = "funcName"
)
