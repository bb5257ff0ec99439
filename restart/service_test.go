package restart

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/golang/mock/gomock"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/twitter/enginedispatch/common/stats"
	"github.com/twitter/enginedispatch/domain"
	"github.com/twitter/enginedispatch/engine"
)

func init() {
	if loglevel := os.Getenv("ENGINEDISPATCH_LOGLEVEL"); loglevel != "" {
		level, err := log.ParseLevel(loglevel)
		if err != nil {
			log.Error(err)
			return
		}
		log.SetLevel(level)
	} else {
		log.SetLevel(log.ErrorLevel)
	}
}

const oomLog = "Container killed by YARN for exceeding memory limits"

func jobWithEngine() *domain.Job {
	return &domain.Job{JobID: "j1", EngineJobID: "e1", AppID: "application_1", MaxRetryNum: 3}
}

func newTestService(stat stats.StatsReceiver) *LogService {
	return NewLogService("test", testClassifier(), nil, stat)
}

func TestDecide(t *testing.T) {
	s := newTestService(nil)
	assert.True(t, s.Decide("j1", oomLog, 2, 3))
	assert.False(t, s.Decide("j1", oomLog, 3, 3))
	assert.False(t, s.Decide("j1", "SyntaxError in user code", 0, 5))
	assert.False(t, s.Decide("j1", "", 0, 5))
	assert.True(t, s.Decide("j1", "RemoteTransportException", 0, 1))
}

func TestEvaluate_Reasons(t *testing.T) {
	stat := stats.DefaultStatsReceiver()
	s := newTestService(stat)

	d := s.Evaluate("j1", oomLog, 0, 3)
	assert.Equal(t, ReasonRestartable, d.Reason)
	assert.Equal(t, StrategyAddMemory, d.Strategy)

	d = s.Evaluate("j1", oomLog, 3, 3)
	assert.False(t, d.Restart)
	assert.Equal(t, ReasonRetryBudgetExhausted, d.Reason)
	assert.Equal(t, StrategyAddMemory, d.Strategy)

	d = s.Evaluate("j1", "nothing useful", 0, 3)
	assert.Equal(t, ReasonClassificationMiss, d.Reason)

	stats.VerifyStats("evaluate", stat, t, map[string]stats.Rule{
		"restart/test/" + stats.RestartEvaluationCounter:         {Checker: stats.Int64EqTest, Value: 3},
		"restart/test/" + stats.RestartApprovedCounter:           {Checker: stats.Int64EqTest, Value: 1},
		"restart/test/" + stats.RestartBudgetExhaustedCounter:    {Checker: stats.Int64EqTest, Value: 1},
		"restart/test/" + stats.RestartClassificationMissCounter: {Checker: stats.Int64EqTest, Value: 1},
		"restart/test/AddMemory/" + stats.RestartStrategyCounter: {Checker: stats.Int64EqTest, Value: 2},
		"restart/test/None/" + stats.RestartStrategyCounter:      {Checker: stats.Int64EqTest, Value: 1},
	})
}

func TestCheckCanRestart_FetchesOncePerEngineJob(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	id := domain.JobIdentifier{EngineJobID: "e1", AppID: "application_1", JobID: "j1"}
	fetcher := engine.NewMockLogFetcher(mockCtrl)
	fetcher.EXPECT().GetJobLog(gomock.Any(), id).Return(oomLog, nil).Times(1)

	s := newTestService(nil)
	ctx := context.Background()
	assert.True(t, s.CheckCanRestart(ctx, "j1", "e1", "application_1", fetcher, 0, 3))
	assert.True(t, s.CheckCanRestart(ctx, "j1", "e1", "application_1", fetcher, 2, 3))
	assert.False(t, s.CheckCanRestart(ctx, "j1", "e1", "application_1", fetcher, 3, 3))
}

func TestCheckCanRestart_FetchFailureIsNotCached(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	stat := stats.DefaultStatsReceiver()
	fetcher := engine.NewMockLogFetcher(mockCtrl)
	gomock.InOrder(
		fetcher.EXPECT().GetJobLog(gomock.Any(), gomock.Any()).Return("", errors.New("connection refused")),
		fetcher.EXPECT().GetJobLog(gomock.Any(), gomock.Any()).Return(oomLog, nil),
	)

	s := newTestService(stat)
	ctx := context.Background()
	assert.False(t, s.CheckCanRestart(ctx, "j1", "e1", "", fetcher, 0, 3))
	assert.True(t, s.CheckCanRestart(ctx, "j1", "e1", "", fetcher, 0, 3))

	stats.VerifyStats("fetchFailure", stat, t, map[string]stats.Rule{
		"restart/test/" + stats.RestartFetchFailureCounter: {Checker: stats.Int64EqTest, Value: 1},
		"logcache/" + stats.LogCacheLoadFailureCounter:     {Checker: stats.Int64EqTest, Value: 1},
	})
}

func TestEvaluateFailure_Degraded(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	fetchErr := errors.New("timeout")
	fetcher := engine.NewMockLogFetcher(mockCtrl)
	fetcher.EXPECT().GetJobLog(gomock.Any(), gomock.Any()).Return("", fetchErr)

	d := newTestService(nil).EvaluateFailure(context.Background(), jobWithEngine(), fetcher)
	assert.False(t, d.Restart)
	assert.True(t, d.Degraded)
	assert.Equal(t, fetchErr, d.FetchErr)
	assert.Equal(t, ReasonClassificationMiss, d.Reason)
}

func TestEvaluateFailure_UsesJobBudget(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	fetcher := engine.NewMockLogFetcher(mockCtrl)
	fetcher.EXPECT().GetJobLog(gomock.Any(), gomock.Any()).Return("java.util.concurrent.TimeoutException", nil)

	job := jobWithEngine()
	job.RetryCount = 1
	d := newTestService(nil).EvaluateFailure(context.Background(), job, fetcher)
	assert.True(t, d.Restart)
	assert.False(t, d.Degraded)
	assert.Equal(t, StrategyUndo, d.Strategy)
	assert.Equal(t, "java.util.concurrent.TimeoutException", d.Log)
}

func TestEvaluateFailure_EmptyLogIsDegraded(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	fetcher := engine.NewMockLogFetcher(mockCtrl)
	fetcher.EXPECT().GetJobLog(gomock.Any(), gomock.Any()).Return("", nil)

	d := newTestService(nil).EvaluateFailure(context.Background(), jobWithEngine(), fetcher)
	assert.True(t, d.Degraded)
	assert.False(t, d.Restart)
}

type panickingFetcher struct{}

func (panickingFetcher) GetJobLog(context.Context, domain.JobIdentifier) (string, error) {
	panic("engine client bug")
}

func TestFetchErrorText_ClientPanicIsDegraded(t *testing.T) {
	s := newTestService(nil)
	res := s.FetchErrorText(context.Background(), jobWithEngine().Identifier(), panickingFetcher{})
	assert.True(t, res.Degraded())
	assert.Equal(t, "", res.Text)
}

func TestFetchErrorText_NilClient(t *testing.T) {
	s := newTestService(nil)
	assert.False(t, s.CheckCanRestart(context.Background(), "j1", "e1", "", nil, 0, 3))
	assert.Equal(t, StrategyNone, s.GetAndParseErrorLog(context.Background(), "j1", "e1", "", nil))
}

func TestGetAndParseErrorLog_IgnoresBudget(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	fetcher := engine.NewMockLogFetcher(mockCtrl)
	fetcher.EXPECT().GetJobLog(gomock.Any(), gomock.Any()).Return(oomLog, nil).Times(1)

	s := newTestService(nil)
	ctx := context.Background()
	assert.Equal(t, StrategyAddMemory, s.GetAndParseErrorLog(ctx, "j1", "e1", "", fetcher))
	assert.False(t, s.CheckCanRestart(ctx, "j1", "e1", "", fetcher, 5, 5))
}

func TestCacheKeyFallbacks(t *testing.T) {
	assert.Equal(t, "e1", cacheKey(domain.JobIdentifier{EngineJobID: "e1", AppID: "a1", JobID: "j1"}))
	assert.Equal(t, "app:a1", cacheKey(domain.JobIdentifier{AppID: "a1", JobID: "j1"}))
	assert.Equal(t, "job:j1", cacheKey(domain.JobIdentifier{JobID: "j1"}))
}

func TestRetry(t *testing.T) {
	assert.True(t, Retry(0, 1))
	assert.False(t, Retry(1, 1))
	assert.False(t, Retry(0, 0))
}
