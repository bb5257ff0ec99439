package config

// DispatcherConfigs the map of available configurations
var DispatcherConfigs = map[string]string{
	"default":      defaultConfig,
	"local.memory": localMemory,
	"local.redis":  localRedis,
	"local.mysql":  localMySQL,
	"local.flink":  localFlink,
}

// defaultConfig the values used for every section a configuration leaves untyped
const defaultConfig = `{
  "Queue": {
    "Type": "group"
  },
  "Dispatcher": {
    "Type": "fair",
    "NodeAddress": "localhost",
    "ThrottleWait": "100ms",
    "SubmitTimeout": "30s",
    "RecoverOnStartup": true
  },
  "FailureCache": {
    "Type": "lru",
    "Capacity": 50,
    "TTL": "5m"
  },
  "Restart": {
    "Type": "flink",
    "MemoryStepMB": 512,
    "MaxMemoryMB": 16384,
    "BackoffInitial": "1s",
    "BackoffMax": "1m",
    "BackoffMultiplier": 2
  },
  "Engine": {
    "Type": "fake",
    "FailEvery": 4,
    "FailureLogs": [
      "Container killed by YARN for exceeding memory limits. 4.2 GB of 4 GB physical memory used",
      "org.apache.flink.runtime.io.network.netty.exception.RemoteTransportException: Connection unexpectedly closed by remote task manager",
      "java.lang.IllegalArgumentException: input path does not exist",
      "org.apache.flink.runtime.jobmanager.scheduler.NoResourceAvailableException: Could not allocate all requires slots"
    ]
  },
  "JobStore": {
    "Type": "memory"
  }
}`

// localMemory everything in process, with short backoffs for demos
const localMemory = `{
  "Dispatcher": {
    "Type": "fair",
    "NodeAddress": "localhost",
    "ThrottleWait": "50ms",
    "GroupLimits": [
      {"Group": "adhoc", "RateLimit": 20, "RateBurst": 5}
    ]
  },
  "Restart": {
    "Type": "flink",
    "BackoffInitial": "10ms",
    "BackoffMax": "200ms",
    "BackoffMultiplier": 2
  },
  "JobStore": {
    "Type": "memory"
  }
}`

// localRedis job stages kept in a local redis
const localRedis = `{
  "JobStore": {
    "Type": "redis",
    "URL": "redis://localhost:6379/0",
    "KeyPrefix": "enginedispatch:"
  }
}`

// localMySQL job stages kept in a local mysql database
const localMySQL = `{
  "JobStore": {
    "Type": "mysql",
    "DSN": "root@tcp(127.0.0.1:3306)/enginedispatch",
    "Table": "engine_job_cache"
  }
}`

// localFlink submits to a local flink cluster through its REST API
const localFlink = `{
  "Engine": {
    "Type": "flink",
    "RootURI": "http://localhost:8081",
    "JarID": "enginedispatch-job.jar",
    "HttpTries": 3,
    "PollInterval": "5s"
  }
}`
