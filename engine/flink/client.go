// Package flink talks to a Flink cluster over its REST API.
package flink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sethgrid/pester"
	log "github.com/sirupsen/logrus"

	"github.com/twitter/enginedispatch/common/log/tags"
	"github.com/twitter/enginedispatch/common/stats"
	"github.com/twitter/enginedispatch/domain"
	"github.com/twitter/enginedispatch/engine"
)

const DefaultHttpTries = 5 // about 30s of trying with exponential backoff

const (
	DefaultPollInterval  = 10 * time.Second
	DefaultFailureBuffer = 1024
)

// Flink job states that end a run.
const (
	stateFailed   = "FAILED"
	stateFinished = "FINISHED"
	stateCanceled = "CANCELED"
)

func MakePesterClient(tries int) *pester.Client {
	if tries <= 0 {
		tries = DefaultHttpTries
	}
	client := pester.New()
	client.Backoff = pester.ExponentialBackoff
	client.MaxRetries = tries
	client.LogHook = func(e pester.ErrEntry) {
		log.Errorf("Retrying flink request after failed attempt: %+v", e)
	}
	return client
}

// HTTPDoer is the part of *pester.Client and *http.Client the REST client uses.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is an engine.Client backed by the Flink REST API. Jobs are started
// from an already uploaded jar.
//
// Flink does not call back on failure, so the client remembers the jobs it
// submitted and Run polls their state, publishing the failed ones on
// Failures().
type Client struct {
	rootURI      string
	jarID        string
	http         HTTPDoer
	pollInterval time.Duration

	mu sync.Mutex
	// flink job id -> job as submitted
	tracked  map[string]*domain.Job
	failures chan *domain.Job
}

var (
	_ engine.Client        = (*Client)(nil)
	_ engine.FailurePoller = (*Client)(nil)
)

func NewClient(rootURI, jarID string, tries int, pollInterval time.Duration) *Client {
	c := NewCustomClient(rootURI, jarID, MakePesterClient(tries))
	if pollInterval > 0 {
		c.pollInterval = pollInterval
	}
	return c
}

func NewCustomClient(rootURI, jarID string, doer HTTPDoer) *Client {
	rootURI = strings.TrimSuffix(rootURI, "/")
	log.Infof("Making new flink REST client with root URI: %s", rootURI)
	return &Client{
		rootURI:      rootURI,
		jarID:        jarID,
		http:         doer,
		pollInterval: DefaultPollInterval,
		tracked:      make(map[string]*domain.Job),
		failures:     make(chan *domain.Job, DefaultFailureBuffer),
	}
}

type exceptionEntry struct {
	Exception string `json:"exception"`
	Task      string `json:"task"`
	Location  string `json:"location"`
}

type exceptionsResponse struct {
	RootException string           `json:"root-exception"`
	AllExceptions []exceptionEntry `json:"all-exceptions"`
	Truncated     bool             `json:"truncated"`
}

// GetJobLog returns the root exception followed by every task exception, one per line.
func (c *Client) GetJobLog(ctx context.Context, id domain.JobIdentifier) (string, error) {
	if id.EngineJobID == "" {
		return "", fmt.Errorf("job %s has no flink job id", id.JobID)
	}
	uri := fmt.Sprintf("%s/jobs/%s/exceptions", c.rootURI, id.EngineJobID)
	req, err := http.NewRequest("GET", uri, nil)
	if err != nil {
		return "", errors.Wrapf(err, "building request for %s", uri)
	}
	var body exceptionsResponse
	if err := c.do(req.WithContext(ctx), &body); err != nil {
		return "", err
	}

	lines := make([]string, 0, len(body.AllExceptions)+1)
	if body.RootException != "" {
		lines = append(lines, body.RootException)
	}
	for _, e := range body.AllExceptions {
		if e.Exception != "" && e.Exception != body.RootException {
			lines = append(lines, e.Exception)
		}
	}
	return strings.Join(lines, "\n"), nil
}

type runRequest struct {
	EntryClass      string   `json:"entryClass,omitempty"`
	ProgramArgsList []string `json:"programArgsList,omitempty"`
}

type runResponse struct {
	JobID string `json:"jobid"`
}

// Submit runs the configured jar for job. The requested memory and the
// platform job id are passed as program arguments.
func (c *Client) Submit(ctx context.Context, job *domain.Job) (domain.JobIdentifier, error) {
	if c.jarID == "" {
		return domain.JobIdentifier{}, errors.New("no flink jar configured")
	}
	args := []string{"--job-id", job.JobID}
	if job.MemoryMB > 0 {
		args = append(args, "--memory-mb", fmt.Sprint(job.MemoryMB))
	}
	payload, err := json.Marshal(runRequest{ProgramArgsList: args})
	if err != nil {
		return domain.JobIdentifier{}, err
	}
	uri := fmt.Sprintf("%s/jars/%s/run", c.rootURI, c.jarID)
	req, err := http.NewRequest("POST", uri, bytes.NewReader(payload))
	if err != nil {
		return domain.JobIdentifier{}, errors.Wrapf(err, "building request for %s", uri)
	}
	req.Header.Set("Content-Type", "application/json")

	var body runResponse
	if err := c.do(req.WithContext(ctx), &body); err != nil {
		return domain.JobIdentifier{}, err
	}
	if body.JobID == "" {
		return domain.JobIdentifier{}, fmt.Errorf("flink accepted job %s without a job id", job.JobID)
	}
	id := domain.JobIdentifier{EngineJobID: body.JobID, AppID: job.AppID, JobID: job.JobID}
	accepted := job.Copy()
	accepted.EngineJobID = id.EngineJobID
	c.Track(accepted)
	return id, nil
}

// Track adds a running job to the set Poll checks. The job must carry its EngineJobID.
func (c *Client) Track(job *domain.Job) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracked[job.EngineJobID] = job
}

// Tracked counts the jobs still being polled.
func (c *Client) Tracked() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tracked)
}

func (c *Client) Failures() <-chan *domain.Job {
	return c.failures
}

// Run polls the tracked jobs every poll interval until ctx is done.
func (c *Client) Run(ctx context.Context) {
	ticker := stats.Time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			c.Poll(ctx)
		}
	}
}

type jobStatus struct {
	State string `json:"state"`
}

// Poll checks every tracked job once. Failed jobs are published on
// Failures() and dropped from tracking; finished and cancelled ones are
// dropped. Jobs whose state can't be read stay tracked.
func (c *Client) Poll(ctx context.Context) {
	c.mu.Lock()
	jobs := make([]*domain.Job, 0, len(c.tracked))
	for _, job := range c.tracked {
		jobs = append(jobs, job)
	}
	c.mu.Unlock()

	for _, job := range jobs {
		if ctx.Err() != nil {
			return
		}
		state, err := c.jobState(ctx, job.EngineJobID)
		if err != nil {
			log.WithFields(tags.JobFields(job)).WithField(tags.Err, err).Warn("could not read flink job state")
			continue
		}
		switch state {
		case stateFailed:
			select {
			case c.failures <- job.Copy():
				c.forget(job.EngineJobID)
			case <-ctx.Done():
				return
			}
		case stateFinished, stateCanceled:
			c.forget(job.EngineJobID)
		}
	}
}

func (c *Client) forget(engineJobID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tracked, engineJobID)
}

func (c *Client) jobState(ctx context.Context, engineJobID string) (string, error) {
	uri := fmt.Sprintf("%s/jobs/%s", c.rootURI, engineJobID)
	req, err := http.NewRequest("GET", uri, nil)
	if err != nil {
		return "", errors.Wrapf(err, "building request for %s", uri)
	}
	var body jobStatus
	if err := c.do(req.WithContext(ctx), &body); err != nil {
		return "", err
	}
	return body.State, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", req.Method, req.URL)
	}
	defer resp.Body.Close()

	data, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "reading response of %s %s", req.Method, req.URL)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		log.Errorf("flink response status error: %s %s -- %s", req.Method, req.URL, resp.Status)
		return fmt.Errorf("%s %s: %s", req.Method, req.URL, resp.Status)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrapf(err, "decoding response of %s %s", req.Method, req.URL)
	}
	return nil
}
