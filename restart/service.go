package restart

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/twitter/enginedispatch/common/log/tags"
	"github.com/twitter/enginedispatch/common/stats"
	"github.com/twitter/enginedispatch/domain"
	"github.com/twitter/enginedispatch/engine"
	"github.com/twitter/enginedispatch/logcache"
)

// Service is the restart capability each engine variant provides.
type Service interface {
	CheckFailureForEngineDown(msg string) bool
	CheckNOResource(msg string) bool
	CheckCanRestart(ctx context.Context, jobID, engineJobID, appID string, client engine.LogFetcher, alreadyRetryNum, maxRetryNum int) bool
	ParseErrorLog(msg string) Strategy
	GetAndParseErrorLog(ctx context.Context, jobID, engineJobID, appID string, client engine.LogFetcher) Strategy
}

// FailureEvaluator is a Service that also reports the full Decision for a job.
type FailureEvaluator interface {
	Service
	EvaluateFailure(ctx context.Context, job *domain.Job, client engine.LogFetcher) Decision
}

// LogService implements FailureEvaluator on top of a Classifier and a log cache.
// Engine variants differ only by name and classifier.
type LogService struct {
	engineName string
	classifier *Classifier
	cache      *logcache.Cache
	stat       stats.StatsReceiver
}

var _ FailureEvaluator = (*LogService)(nil)

func NewLogService(engineName string, classifier *Classifier, cache *logcache.Cache, stat stats.StatsReceiver) *LogService {
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}
	if cache == nil {
		cache = logcache.New(logcache.DefaultCapacity, logcache.DefaultTTL, stat)
	}
	return &LogService{
		engineName: engineName,
		classifier: classifier,
		cache:      cache,
		stat:       stat.Scope("restart", engineName),
	}
}

func (s *LogService) EngineName() string { return s.engineName }

func (s *LogService) CheckFailureForEngineDown(msg string) bool {
	return s.classifier.CheckFailureForEngineDown(msg)
}

func (s *LogService) CheckNOResource(msg string) bool {
	return s.classifier.CheckNOResource(msg)
}

func (s *LogService) ParseErrorLog(msg string) Strategy {
	strategy := s.classifier.ParseErrorLog(msg)
	s.stat.Scope(strategy.String()).Counter(stats.RestartStrategyCounter).Inc(1)
	return strategy
}

// FetchErrorText returns the engine's error log for id through the cache.
// Client failures are logged and reported as a degraded result, never cached.
func (s *LogService) FetchErrorText(ctx context.Context, id domain.JobIdentifier, client engine.LogFetcher) logcache.Result {
	if client == nil {
		s.stat.Counter(stats.RestartFetchFailureCounter).Inc(1)
		return logcache.Result{Err: errors.Errorf("no engine client for %s", id)}
	}
	res := s.cache.GetOrLoad(cacheKey(id), func() (text string, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = errors.Errorf("engine client panicked: %v", r)
			}
		}()
		return client.GetJobLog(ctx, id)
	})
	if res.Degraded() {
		s.stat.Counter(stats.RestartFetchFailureCounter).Inc(1)
		log.WithFields(tags.IdentifierFields(id)).
			WithField(tags.Err, res.Err).
			Warn("could not fetch error log, treating as no information")
	}
	return res
}

// The cache is keyed by engine job id. Jobs the engine never accepted fall
// back to their application id, then to the platform id.
func cacheKey(id domain.JobIdentifier) string {
	switch {
	case id.EngineJobID != "":
		return id.EngineJobID
	case id.AppID != "":
		return "app:" + id.AppID
	default:
		return "job:" + id.JobID
	}
}

// Evaluate classifies text and applies the retry budget.
func (s *LogService) Evaluate(jobID, text string, alreadyRetryNum, maxRetryNum int) Decision {
	s.stat.Counter(stats.RestartEvaluationCounter).Inc(1)
	d := Decision{Strategy: s.ParseErrorLog(text), Log: text}
	switch {
	case !d.Strategy.Restartable():
		d.Reason = ReasonClassificationMiss
		s.stat.Counter(stats.RestartClassificationMissCounter).Inc(1)
	case Retry(alreadyRetryNum, maxRetryNum):
		d.Restart = true
		d.Reason = ReasonRestartable
		s.stat.Counter(stats.RestartApprovedCounter).Inc(1)
	default:
		d.Reason = ReasonRetryBudgetExhausted
		s.stat.Counter(stats.RestartBudgetExhaustedCounter).Inc(1)
	}
	log.WithFields(log.Fields{
		tags.JobID:      jobID,
		tags.Strategy:   d.Strategy,
		tags.RetryCount: alreadyRetryNum,
		"maxRetryNum":   maxRetryNum,
		"reason":        d.Reason,
	}).Info("restart decision")
	return d
}

// Decide reports whether a job that failed with text may be resubmitted.
func (s *LogService) Decide(jobID, text string, alreadyRetryNum, maxRetryNum int) bool {
	return s.Evaluate(jobID, text, alreadyRetryNum, maxRetryNum).Restart
}

func (s *LogService) CheckCanRestart(ctx context.Context, jobID, engineJobID, appID string, client engine.LogFetcher,
	alreadyRetryNum, maxRetryNum int) bool {
	id := domain.JobIdentifier{EngineJobID: engineJobID, AppID: appID, JobID: jobID}
	res := s.FetchErrorText(ctx, id, client)
	return s.Decide(jobID, res.Text, alreadyRetryNum, maxRetryNum)
}

// GetAndParseErrorLog fetches and classifies without checking the retry budget.
func (s *LogService) GetAndParseErrorLog(ctx context.Context, jobID, engineJobID, appID string, client engine.LogFetcher) Strategy {
	id := domain.JobIdentifier{EngineJobID: engineJobID, AppID: appID, JobID: jobID}
	res := s.FetchErrorText(ctx, id, client)
	return s.ParseErrorLog(res.Text)
}

// EvaluateFailure is CheckCanRestart for a job, returning the whole Decision.
func (s *LogService) EvaluateFailure(ctx context.Context, job *domain.Job, client engine.LogFetcher) Decision {
	res := s.FetchErrorText(ctx, job.Identifier(), client)
	d := s.Evaluate(job.JobID, res.Text, job.RetryCount, job.MaxRetryNum)
	d.Degraded = res.Degraded()
	d.FetchErr = res.Err
	return d
}
