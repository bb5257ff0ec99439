package flink

import (
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/twitter/enginedispatch/domain"
)

const exceptionsBody = `{
  "root-exception": "java.lang.OutOfMemoryError: Java heap space",
  "timestamp": 1500000000000,
  "all-exceptions": [
    {"exception": "java.lang.OutOfMemoryError: Java heap space", "task": "Map (1/2)", "location": "tm-1:42"},
    {"exception": "java.util.concurrent.TimeoutException", "task": "Sink (2/2)", "location": "tm-2:42"}
  ],
  "truncated": false
}`

func TestGetJobLog(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/jobs/abc123/exceptions", r.URL.Path)
		w.Write([]byte(exceptionsBody))
	}))
	defer server.Close()

	c := NewCustomClient(server.URL+"/", "", server.Client())
	text, err := c.GetJobLog(context.Background(), domain.JobIdentifier{EngineJobID: "abc123", JobID: "j1"})
	assert.NoError(t, err)
	assert.Equal(t, "java.lang.OutOfMemoryError: Java heap space\njava.util.concurrent.TimeoutException", text)
}

func TestGetJobLog_NotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	c := NewCustomClient(server.URL, "", server.Client())
	text, err := c.GetJobLog(context.Background(), domain.JobIdentifier{EngineJobID: "gone"})
	assert.Error(t, err)
	assert.Equal(t, "", text)
}

func TestGetJobLog_NoEngineJobID(t *testing.T) {
	c := NewCustomClient("http://localhost:1", "", http.DefaultClient)
	_, err := c.GetJobLog(context.Background(), domain.JobIdentifier{JobID: "j1"})
	assert.Error(t, err)
}

func TestGetJobLog_BadJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>"))
	}))
	defer server.Close()

	c := NewCustomClient(server.URL, "", server.Client())
	_, err := c.GetJobLog(context.Background(), domain.JobIdentifier{EngineJobID: "abc"})
	assert.Error(t, err)
}

func TestSubmit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/jars/app.jar/run", r.URL.Path)
		data, _ := ioutil.ReadAll(r.Body)
		var req runRequest
		assert.NoError(t, json.Unmarshal(data, &req))
		assert.Equal(t, []string{"--job-id", "j1", "--memory-mb", "2048"}, req.ProgramArgsList)
		w.Write([]byte(`{"jobid": "f00d"}`))
	}))
	defer server.Close()

	c := NewCustomClient(server.URL, "app.jar", server.Client())
	id, err := c.Submit(context.Background(), &domain.Job{JobID: "j1", AppID: "a1", MemoryMB: 2048})
	assert.NoError(t, err)
	assert.Equal(t, domain.JobIdentifier{EngineJobID: "f00d", AppID: "a1", JobID: "j1"}, id)
}

func TestSubmit_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewCustomClient(server.URL, "app.jar", server.Client())
	_, err := c.Submit(context.Background(), &domain.Job{JobID: "j1"})
	assert.Error(t, err)
}

func TestMakePesterClient(t *testing.T) {
	assert.Equal(t, DefaultHttpTries, MakePesterClient(0).MaxRetries)
	assert.Equal(t, 2, MakePesterClient(2).MaxRetries)
}

// flinkServer accepts every run and reports each job in the state set for it.
func flinkServer(t *testing.T, states map[string]string) *httptest.Server {
	next := 0
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == "POST":
			next++
			w.Write([]byte(fmt.Sprintf(`{"jobid": "f%d"}`, next)))
		case r.Method == "GET" && strings.HasPrefix(r.URL.Path, "/jobs/"):
			state, ok := states[strings.TrimPrefix(r.URL.Path, "/jobs/")]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Write([]byte(fmt.Sprintf(`{"jid": "x", "state": %q}`, state)))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
}

func TestPoll_PublishesFailedJobs(t *testing.T) {
	states := map[string]string{"f1": "FAILED", "f2": "RUNNING", "f3": "FINISHED"}
	server := flinkServer(t, states)
	defer server.Close()

	c := NewCustomClient(server.URL, "app.jar", server.Client())
	for _, id := range []string{"j1", "j2", "j3"} {
		_, err := c.Submit(context.Background(), &domain.Job{JobID: id, MemoryMB: 1024})
		assert.NoError(t, err)
	}
	assert.Equal(t, 3, c.Tracked())

	c.Poll(context.Background())
	select {
	case job := <-c.Failures():
		assert.Equal(t, "j1", job.JobID)
		assert.Equal(t, "f1", job.EngineJobID)
		assert.Equal(t, 1024, job.MemoryMB)
	default:
		t.Fatal("failed job was not published")
	}
	assert.Equal(t, 1, c.Tracked())

	// Only the running job is checked again and it has not failed.
	c.Poll(context.Background())
	assert.Equal(t, 0, len(c.Failures()))
	assert.Equal(t, 1, c.Tracked())
}

func TestPoll_UnreadableStateStaysTracked(t *testing.T) {
	server := flinkServer(t, map[string]string{})
	defer server.Close()

	c := NewCustomClient(server.URL, "app.jar", server.Client())
	c.Track(&domain.Job{JobID: "j1", EngineJobID: "gone"})
	c.Poll(context.Background())
	assert.Equal(t, 1, c.Tracked())
	assert.Equal(t, 0, len(c.Failures()))
}

func TestRun_StopsWithContext(t *testing.T) {
	server := flinkServer(t, map[string]string{"f1": "FAILED"})
	defer server.Close()

	c := NewClient(server.URL, "app.jar", 1, 5*time.Millisecond)
	_, err := c.Submit(context.Background(), &domain.Job{JobID: "j1"})
	assert.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	select {
	case job := <-c.Failures():
		assert.Equal(t, "j1", job.JobID)
	case <-time.After(5 * time.Second):
		t.Fatal("no failure published")
	}
	cancel()
	<-done
}
