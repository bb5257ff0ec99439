// Package config holds the named JSON configurations of the dispatcher binary
// and turns their sections into runtime components.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/twitter/enginedispatch/common/stats"
	"github.com/twitter/enginedispatch/dispatcher"
	"github.com/twitter/enginedispatch/domain"
	"github.com/twitter/enginedispatch/engine"
	"github.com/twitter/enginedispatch/engine/fake"
	flinkengine "github.com/twitter/enginedispatch/engine/flink"
	"github.com/twitter/enginedispatch/jobstore"
	"github.com/twitter/enginedispatch/jobstore/memory"
	"github.com/twitter/enginedispatch/jobstore/mysql"
	"github.com/twitter/enginedispatch/jobstore/redis"
	"github.com/twitter/enginedispatch/logcache"
	"github.com/twitter/enginedispatch/queue"
	"github.com/twitter/enginedispatch/restart"
	"github.com/twitter/enginedispatch/restart/flink"
)

// JSONConfigs is the top level configuration. A section whose Type is empty
// is taken from the "default" configuration.
type JSONConfigs struct {
	Queue        QueueJSONConfig        `json:"Queue"`
	Dispatcher   DispatcherJSONConfig   `json:"Dispatcher"`
	FailureCache FailureCacheJSONConfig `json:"FailureCache"`
	Restart      RestartJSONConfig      `json:"Restart"`
	Engine       EngineJSONConfig       `json:"Engine"`
	JobStore     JobStoreJSONConfig     `json:"JobStore"`
}

func (c JSONConfigs) String() string {
	return fmt.Sprintf("\n%s\n%s\n%s\n%s\n%s\n%s", c.Queue, c.Dispatcher, c.FailureCache, c.Restart, c.Engine, c.JobStore)
}

type QueueJSONConfig struct {
	Type   string   `json:"Type"`   // group
	Groups []string `json:"Groups"` // created at startup, the default group always exists
}

func (c QueueJSONConfig) String() string {
	return fmt.Sprintf("QueueJSONConfig: Type: %s, Groups: %v", c.Type, c.Groups)
}

func (c QueueJSONConfig) CreateQueue(stat stats.StatsReceiver) (*queue.GroupPriorityQueue, error) {
	if c.Type != "group" {
		return nil, fmt.Errorf("unknown Queue type %q", c.Type)
	}
	q := queue.NewGroupPriorityQueue(stat)
	for _, g := range c.Groups {
		q.CreateGroup(g)
	}
	return q, nil
}

type GroupLimitJSONConfig struct {
	Group     string  `json:"Group"`
	RateLimit float64 `json:"RateLimit"` // jobs per second, 0 for none
	RateBurst int     `json:"RateBurst"` // default to 1
}

type DispatcherJSONConfig struct {
	Type             string                 `json:"Type"` // fair
	NodeAddress      string                 `json:"NodeAddress"`
	ThrottleWait     string                 `json:"ThrottleWait"`  // default to 100ms
	SubmitTimeout    string                 `json:"SubmitTimeout"` // default to none
	GroupLimits      []GroupLimitJSONConfig `json:"GroupLimits"`
	DefaultRateLimit float64                `json:"DefaultRateLimit"`
	DefaultRateBurst int                    `json:"DefaultRateBurst"`
	RecoverOnStartup bool                   `json:"RecoverOnStartup"`
}

func (c DispatcherJSONConfig) String() string {
	return fmt.Sprintf("DispatcherJSONConfig: Type: %s, NodeAddress: %s, ThrottleWait: %s, SubmitTimeout: %s, GroupLimits: %v, "+
		"DefaultRateLimit: %g, DefaultRateBurst: %d, RecoverOnStartup: %t",
		c.Type, c.NodeAddress, c.ThrottleWait, c.SubmitTimeout, c.GroupLimits, c.DefaultRateLimit, c.DefaultRateBurst, c.RecoverOnStartup)
}

func (c DispatcherJSONConfig) CreateDispatcherConfig() (dispatcher.Config, error) {
	if c.Type != "fair" {
		return dispatcher.Config{}, fmt.Errorf("unknown Dispatcher type %q", c.Type)
	}
	var err error
	dc := dispatcher.Config{
		NodeAddress:       c.NodeAddress,
		DefaultGroupLimit: dispatcher.GroupLimit{RateLimit: c.DefaultRateLimit, RateBurst: c.DefaultRateBurst},
	}
	if dc.ThrottleWait, err = parseDuration("Dispatcher.ThrottleWait", c.ThrottleWait); err != nil {
		return dc, err
	}
	if dc.SubmitTimeout, err = parseDuration("Dispatcher.SubmitTimeout", c.SubmitTimeout); err != nil {
		return dc, err
	}
	for _, gl := range c.GroupLimits {
		dc.GroupLimits = append(dc.GroupLimits, dispatcher.GroupLimit{
			Group:     domain.NormalizeGroup(gl.Group),
			RateLimit: gl.RateLimit,
			RateBurst: gl.RateBurst,
		})
	}
	return dc, nil
}

type FailureCacheJSONConfig struct {
	Type     string `json:"Type"`     // lru
	Capacity int    `json:"Capacity"` // default to 50
	TTL      string `json:"TTL"`      // default to 5m
}

func (c FailureCacheJSONConfig) String() string {
	return fmt.Sprintf("FailureCacheJSONConfig: Type: %s, Capacity: %d, TTL: %s", c.Type, c.Capacity, c.TTL)
}

func (c FailureCacheJSONConfig) CreateCache(stat stats.StatsReceiver) (*logcache.Cache, error) {
	if c.Type != "lru" {
		return nil, fmt.Errorf("unknown FailureCache type %q", c.Type)
	}
	ttl, err := parseDuration("FailureCache.TTL", c.TTL)
	if err != nil {
		return nil, err
	}
	return logcache.New(c.Capacity, ttl, stat), nil
}

type RestartJSONConfig struct {
	Type string `json:"Type"` // flink
	// Replace the engine's built in lists when not empty.
	AddMemorySignatures []string `json:"AddMemorySignatures"`
	UndoSignatures      []string `json:"UndoSignatures"`
	EngineDownSignature string   `json:"EngineDownSignature"`
	NoResourceSignature string   `json:"NoResourceSignature"`
	MemoryStepMB        int      `json:"MemoryStepMB"`      // default to 512
	MaxMemoryMB         int      `json:"MaxMemoryMB"`       // default to 16384
	BackoffInitial      string   `json:"BackoffInitial"`    // default to no backoff
	BackoffMax          string   `json:"BackoffMax"`        // default to 1m
	BackoffMultiplier   float64  `json:"BackoffMultiplier"` // default to 1.5
}

func (c RestartJSONConfig) String() string {
	return fmt.Sprintf("RestartJSONConfig: Type: %s, AddMemorySignatures: %v, UndoSignatures: %v, MemoryStepMB: %d, MaxMemoryMB: %d, "+
		"BackoffInitial: %s, BackoffMax: %s, BackoffMultiplier: %g",
		c.Type, c.AddMemorySignatures, c.UndoSignatures, c.MemoryStepMB, c.MaxMemoryMB, c.BackoffInitial, c.BackoffMax, c.BackoffMultiplier)
}

// CreateService builds the restart service of the configured engine on top of cache.
func (c RestartJSONConfig) CreateService(cache *logcache.Cache, stat stats.StatsReceiver) (restart.FailureEvaluator, error) {
	if c.Type != flink.EngineName {
		return nil, fmt.Errorf("unknown Restart type %q", c.Type)
	}
	classifier := flink.NewClassifier()
	if len(c.AddMemorySignatures) > 0 {
		classifier.AddMemorySignatures = c.AddMemorySignatures
	}
	if len(c.UndoSignatures) > 0 {
		classifier.UndoSignatures = c.UndoSignatures
	}
	if c.EngineDownSignature != "" {
		classifier.EngineDownSignature = c.EngineDownSignature
	}
	if c.NoResourceSignature != "" {
		classifier.NoResourceSignature = c.NoResourceSignature
	}
	return restart.NewLogService(c.Type, classifier, cache, stat), nil
}

func (c RestartJSONConfig) CreateFailureConfig(nodeAddress string) (dispatcher.FailureConfig, error) {
	fc := dispatcher.FailureConfig{
		NodeAddress:       nodeAddress,
		Apply:             restart.DefaultApplyOptions,
		BackoffMultiplier: c.BackoffMultiplier,
	}
	if c.MemoryStepMB > 0 {
		fc.Apply.MemoryStepMB = c.MemoryStepMB
	}
	if c.MaxMemoryMB > 0 {
		fc.Apply.MaxMemoryMB = c.MaxMemoryMB
	}
	var err error
	if fc.BackoffInitial, err = parseDuration("Restart.BackoffInitial", c.BackoffInitial); err != nil {
		return fc, err
	}
	if fc.BackoffMax, err = parseDuration("Restart.BackoffMax", c.BackoffMax); err != nil {
		return fc, err
	}
	return fc, nil
}

type EngineJSONConfig struct {
	Type string `json:"Type"` // fake, flink

	// flink
	RootURI      string `json:"RootURI"`
	JarID        string `json:"JarID"`
	HttpTries    int    `json:"HttpTries"`    // default to 5
	PollInterval string `json:"PollInterval"` // default to 10s

	// fake: every FailEvery-th submission fails with the next of FailureLogs
	FailEvery     int      `json:"FailEvery"`
	FailureLogs   []string `json:"FailureLogs"`
	FailureBuffer int      `json:"FailureBuffer"` // default to 1024
}

func (c EngineJSONConfig) String() string {
	return fmt.Sprintf("EngineJSONConfig: Type: %s, RootURI: %s, JarID: %s, HttpTries: %d, PollInterval: %s, FailEvery: %d, FailureLogs: %d",
		c.Type, c.RootURI, c.JarID, c.HttpTries, c.PollInterval, c.FailEvery, len(c.FailureLogs))
}

// CreateEngine returns the engine client and the channel failed jobs arrive
// on. A flink client only fills the channel while its Run is going.
func (c EngineJSONConfig) CreateEngine() (engine.Client, <-chan *domain.Job, error) {
	switch c.Type {
	case "fake":
		buffer := c.FailureBuffer
		if buffer <= 0 {
			buffer = 1024
		}
		e := fake.NewEngine(c.script(), buffer)
		return e, e.Failures(), nil
	case "flink":
		if c.RootURI == "" {
			return nil, nil, errors.New("Engine.RootURI is required for flink")
		}
		interval, err := parseDuration("Engine.PollInterval", c.PollInterval)
		if err != nil {
			return nil, nil, err
		}
		client := flinkengine.NewClient(c.RootURI, c.JarID, c.HttpTries, interval)
		return client, client.Failures(), nil
	default:
		return nil, nil, fmt.Errorf("unknown Engine type %q", c.Type)
	}
}

// script fails every FailEvery-th job, cycling through FailureLogs. Runs under the fake engine's lock.
func (c EngineJSONConfig) script() fake.Script {
	if c.FailEvery <= 0 || len(c.FailureLogs) == 0 {
		return nil
	}
	n := 0
	failed := 0
	return func(*domain.Job) string {
		n++
		if n%c.FailEvery != 0 {
			return ""
		}
		text := c.FailureLogs[failed%len(c.FailureLogs)]
		failed++
		return text
	}
}

type JobStoreJSONConfig struct {
	Type      string `json:"Type"`      // memory, redis, mysql
	URL       string `json:"URL"`       // redis
	KeyPrefix string `json:"KeyPrefix"` // redis, default to "enginedispatch:"
	DSN       string `json:"DSN"`       // mysql
	Table     string `json:"Table"`     // mysql, default to engine_job_cache
}

func (c JobStoreJSONConfig) String() string {
	return fmt.Sprintf("JobStoreJSONConfig: Type: %s, URL: %s, KeyPrefix: %s, Table: %s", c.Type, c.URL, c.KeyPrefix, c.Table)
}

func (c JobStoreJSONConfig) CreateStore(ctx context.Context) (jobstore.Store, error) {
	switch c.Type {
	case "memory":
		return memory.NewStore(), nil
	case "redis":
		return redis.Open(ctx, c.URL, c.KeyPrefix)
	case "mysql":
		return mysql.Open(ctx, c.DSN, c.Table)
	default:
		return nil, fmt.Errorf("unknown JobStore type %q", c.Type)
	}
}

func parseDuration(name, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	return d, errors.Wrapf(err, "parsing %s", name)
}

// GetConfigText returns the named configuration, or the selector itself if it is JSON text.
func GetConfigText(configSelector string) ([]byte, error) {
	if strings.HasPrefix(strings.TrimSpace(configSelector), "{") {
		return []byte(configSelector), nil
	}
	configText, ok := DispatcherConfigs[configSelector]
	if !ok {
		keys := make([]string, 0, len(DispatcherConfigs))
		for k := range DispatcherConfigs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("invalid configuration %s, supported values are %v", configSelector, keys)
	}
	return []byte(configText), nil
}

// GetConfig parses the selected configuration, filling untyped sections from "default".
func GetConfig(configSelector string) (*JSONConfigs, error) {
	defaultConfigText, _ := GetConfigText("default")
	defaultConfig := &JSONConfigs{}
	if err := json.Unmarshal(defaultConfigText, defaultConfig); err != nil {
		return nil, fmt.Errorf("couldn't parse the default config: %v", err)
	}

	configText, err := GetConfigText(configSelector)
	if err != nil {
		return nil, err
	}
	config := &JSONConfigs{}
	if err := json.Unmarshal(configText, config); err != nil {
		return nil, fmt.Errorf("couldn't parse top-level config: %v", err)
	}

	if config.Queue.Type == "" {
		log.Infof("using default Queue config")
		config.Queue = defaultConfig.Queue
	}
	if config.Dispatcher.Type == "" {
		log.Infof("using default Dispatcher config")
		config.Dispatcher = defaultConfig.Dispatcher
	}
	if config.FailureCache.Type == "" {
		log.Infof("using default FailureCache config")
		config.FailureCache = defaultConfig.FailureCache
	}
	if config.Restart.Type == "" {
		log.Infof("using default Restart config")
		config.Restart = defaultConfig.Restart
	}
	if config.Engine.Type == "" {
		log.Infof("using default Engine config")
		config.Engine = defaultConfig.Engine
	}
	if config.JobStore.Type == "" {
		log.Infof("using default JobStore config")
		config.JobStore = defaultConfig.JobStore
	}
	return config, nil
}
