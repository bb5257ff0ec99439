package config

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twitter/enginedispatch/domain"
	"github.com/twitter/enginedispatch/engine"
	"github.com/twitter/enginedispatch/engine/fake"
	"github.com/twitter/enginedispatch/restart"
)

// Tests to ensure every named config is properly specified and parses
func TestGettingConfigurations(t *testing.T) {
	for configSelector := range DispatcherConfigs {
		config, err := GetConfig(configSelector)
		assert.Nil(t, err, fmt.Sprintf("error getting config %s: %s", configSelector, err))
		if err != nil {
			continue
		}
		_, err = config.Dispatcher.CreateDispatcherConfig()
		assert.Nil(t, err, configSelector)
		_, err = config.Restart.CreateFailureConfig("n")
		assert.Nil(t, err, configSelector)
		_, err = config.FailureCache.CreateCache(nil)
		assert.Nil(t, err, configSelector)
		_, err = config.Queue.CreateQueue(nil)
		assert.Nil(t, err, configSelector)
	}

	selector := "invalid.selector"
	config, err := GetConfig(selector)
	assert.NotNil(t, err, fmt.Sprintf("configuration returned for %s: %s", selector, config))
}

// Sections a config leaves untyped come from the default config
func TestDefaultsFillUntypedSections(t *testing.T) {
	config, err := GetConfig("local.redis")
	require.NoError(t, err)
	assert.Equal(t, "redis", config.JobStore.Type)
	assert.Equal(t, "redis://localhost:6379/0", config.JobStore.URL)
	assert.Equal(t, "fake", config.Engine.Type)
	assert.Equal(t, "flink", config.Restart.Type)
	assert.Equal(t, 50, config.FailureCache.Capacity)
	assert.True(t, config.Dispatcher.RecoverOnStartup)
}

func TestJSONTextSelector(t *testing.T) {
	config, err := GetConfig(`{"FailureCache": {"Type": "lru", "Capacity": 7, "TTL": "1m"}}`)
	require.NoError(t, err)
	assert.Equal(t, 7, config.FailureCache.Capacity)
	assert.Equal(t, "group", config.Queue.Type)

	_, err = GetConfig(`{"FailureCache": `)
	assert.Error(t, err)
}

func TestCreateDispatcherConfig(t *testing.T) {
	config, err := GetConfig("local.memory")
	require.NoError(t, err)
	dc, err := config.Dispatcher.CreateDispatcherConfig()
	require.NoError(t, err)
	assert.Equal(t, 50*time.Millisecond, dc.ThrottleWait)
	require.Len(t, dc.GroupLimits, 1)
	assert.Equal(t, "adhoc", dc.GroupLimits[0].Group)
	assert.Equal(t, 20.0, dc.GroupLimits[0].RateLimit)

	bad := DispatcherJSONConfig{Type: "fair", ThrottleWait: "soon"}
	_, err = bad.CreateDispatcherConfig()
	assert.Error(t, err)

	_, err = DispatcherJSONConfig{Type: "unfair"}.CreateDispatcherConfig()
	assert.Error(t, err)
}

func TestCreateFailureConfig(t *testing.T) {
	config, err := GetConfig("default")
	require.NoError(t, err)
	fc, err := config.Restart.CreateFailureConfig("node-9")
	require.NoError(t, err)
	assert.Equal(t, "node-9", fc.NodeAddress)
	assert.Equal(t, restart.ApplyOptions{MemoryStepMB: 512, MaxMemoryMB: 16384}, fc.Apply)
	assert.Equal(t, time.Second, fc.BackoffInitial)
	assert.Equal(t, time.Minute, fc.BackoffMax)
	assert.Equal(t, 2.0, fc.BackoffMultiplier)
}

func TestCreateServiceOverridesSignatures(t *testing.T) {
	rc := RestartJSONConfig{Type: "flink", UndoSignatures: []string{"FlakyNetwork"}}
	s, err := rc.CreateService(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, restart.StrategyUndo, s.ParseErrorLog("FlakyNetwork at line 3"))
	assert.Equal(t, restart.StrategyNone, s.ParseErrorLog("java.util.concurrent.TimeoutException"))
	assert.Equal(t, restart.StrategyAddMemory, s.ParseErrorLog("java.lang.OutOfMemoryError"))

	_, err = RestartJSONConfig{Type: "spark"}.CreateService(nil, nil)
	assert.Error(t, err)
}

func TestCreateFakeEngineScript(t *testing.T) {
	ec := EngineJSONConfig{Type: "fake", FailEvery: 2, FailureLogs: []string{"first", "second"}}
	client, failures, err := ec.CreateEngine()
	require.NoError(t, err)
	require.NotNil(t, failures)

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_, err := client.Submit(ctx, &domain.Job{JobID: fmt.Sprint(i)})
		require.NoError(t, err)
	}
	f1 := <-failures
	f2 := <-failures
	assert.Equal(t, "1", f1.JobID)
	assert.Equal(t, "3", f2.JobID)
	text, err := client.GetJobLog(ctx, f2.Identifier())
	require.NoError(t, err)
	assert.Equal(t, "second", text)
	assert.Len(t, client.(*fake.Engine).Submitted(), 4)
}

func TestCreateEngineErrors(t *testing.T) {
	_, _, err := EngineJSONConfig{Type: "flink"}.CreateEngine()
	assert.Error(t, err)
	_, _, err = EngineJSONConfig{Type: "spark"}.CreateEngine()
	assert.Error(t, err)

	_, _, err = EngineJSONConfig{Type: "flink", RootURI: "http://localhost:8081", PollInterval: "often"}.CreateEngine()
	assert.Error(t, err)
}

func TestCreateFlinkEngineReportsFailures(t *testing.T) {
	client, failures, err := EngineJSONConfig{Type: "flink", RootURI: "http://localhost:8081", PollInterval: "1s"}.CreateEngine()
	assert.NoError(t, err)
	assert.NotNil(t, failures)
	_, ok := client.(engine.FailurePoller)
	assert.True(t, ok)
}

func TestCreateStore(t *testing.T) {
	s, err := JobStoreJSONConfig{Type: "memory"}.CreateStore(context.Background())
	assert.NoError(t, err)
	assert.NotNil(t, s)

	_, err = JobStoreJSONConfig{Type: "redis", URL: "not a url"}.CreateStore(context.Background())
	assert.Error(t, err)
	_, err = JobStoreJSONConfig{Type: "cassandra"}.CreateStore(context.Background())
	assert.Error(t, err)
}

func TestCreateQueueGroups(t *testing.T) {
	q, err := QueueJSONConfig{Type: "group", Groups: []string{"etl", "adhoc"}}.CreateQueue(nil)
	require.NoError(t, err)
	assert.Len(t, q.Snapshot(), 3)
}
