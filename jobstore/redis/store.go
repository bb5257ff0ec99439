// Package redis is a jobstore.Store on Redis. Each job is a hash and every
// (node, stage) pair has a set of job ids; both change in one MULTI block.
package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/twitter/enginedispatch/domain"
	"github.com/twitter/enginedispatch/jobstore"
)

const DefaultKeyPrefix = "enginedispatch:"

// Attempts at a WATCH transaction before giving up on a contended job key.
const maxTxAttempts = 5

const (
	fieldJobID       = "jobId"
	fieldEngineType  = "engineType"
	fieldStage       = "stage"
	fieldNodeAddress = "nodeAddress"
	fieldJobInfo     = "jobInfo"
	fieldGmtCreate   = "gmtCreate"
	fieldGmtModified = "gmtModified"
)

type Store struct {
	client *goredis.Client
	prefix string
}

var _ jobstore.Store = (*Store)(nil)

func NewStore(client *goredis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Store{client: client, prefix: prefix}
}

// Open connects to the Redis server at url and checks it answers.
func Open(ctx context.Context, url, prefix string) (*Store, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing redis url")
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "connecting to redis at %s", opts.Addr)
	}
	log.Infof("Using redis job store at %s with key prefix %q", opts.Addr, prefix)
	return NewStore(client, prefix), nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) jobKey(jobID string) string {
	return s.prefix + "job:" + jobID
}

func (s *Store) indexKey(nodeAddress string, stage domain.Stage) string {
	return s.prefix + "stage:" + nodeAddress + ":" + stage.String()
}

// watch runs fn in a WATCH on key, retrying when another client changed the key first.
func (s *Store) watch(ctx context.Context, key string, fn func(*goredis.Tx) error) error {
	for i := 0; i < maxTxAttempts; i++ {
		err := s.client.Watch(ctx, fn, key)
		if err != goredis.TxFailedErr {
			return err
		}
	}
	return errors.Errorf("jobstore/redis: %s changed during %d attempts", key, maxTxAttempts)
}

// location reads the stage and node of a stored job. ok is false for a missing job.
func (s *Store) location(ctx context.Context, tx *goredis.Tx, key string) (stage domain.Stage, node string, created string, ok bool, err error) {
	vals, err := tx.HMGet(ctx, key, fieldStage, fieldNodeAddress, fieldGmtCreate).Result()
	if err != nil {
		return 0, "", "", false, err
	}
	if vals[0] == nil {
		return 0, "", "", false, nil
	}
	n, err := strconv.Atoi(vals[0].(string))
	if err != nil {
		return 0, "", "", false, errors.Wrapf(err, "bad stage in %s", key)
	}
	node, _ = vals[1].(string)
	created, _ = vals[2].(string)
	return domain.Stage(n), node, created, true, nil
}

func (s *Store) Insert(ctx context.Context, c *jobstore.JobCache) error {
	key := s.jobKey(c.JobID)
	err := s.watch(ctx, key, func(tx *goredis.Tx) error {
		oldStage, oldNode, created, exists, err := s.location(ctx, tx, key)
		if err != nil {
			return err
		}
		now := formatTime(time.Now())
		if !exists {
			created = now
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			if exists {
				pipe.SRem(ctx, s.indexKey(oldNode, oldStage), c.JobID)
			}
			pipe.HSet(ctx, key, map[string]interface{}{
				fieldJobID:       c.JobID,
				fieldEngineType:  c.EngineType,
				fieldStage:       strconv.Itoa(int(c.Stage)),
				fieldNodeAddress: c.NodeAddress,
				fieldJobInfo:     c.JobInfo,
				fieldGmtCreate:   created,
				fieldGmtModified: now,
			})
			pipe.SAdd(ctx, s.indexKey(c.NodeAddress, c.Stage), c.JobID)
			return nil
		})
		return err
	})
	return errors.Wrapf(err, "inserting job %s", c.JobID)
}

func (s *Store) Delete(ctx context.Context, jobID string) error {
	key := s.jobKey(jobID)
	err := s.watch(ctx, key, func(tx *goredis.Tx) error {
		stage, node, _, exists, err := s.location(ctx, tx, key)
		if err != nil || !exists {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.SRem(ctx, s.indexKey(node, stage), jobID)
			return nil
		})
		return err
	})
	return errors.Wrapf(err, "deleting job %s", jobID)
}

func (s *Store) GetOne(ctx context.Context, jobID string) (*jobstore.JobCache, error) {
	fields, err := s.client.HGetAll(ctx, s.jobKey(jobID)).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "reading job %s", jobID)
	}
	if len(fields) == 0 {
		return nil, errors.Wrapf(jobstore.ErrNotFound, "job %s", jobID)
	}
	return decode(fields)
}

func (s *Store) UpdateStage(ctx context.Context, jobID string, stage domain.Stage, nodeAddress string) error {
	key := s.jobKey(jobID)
	err := s.watch(ctx, key, func(tx *goredis.Tx) error {
		oldStage, oldNode, _, exists, err := s.location(ctx, tx, key)
		if err != nil {
			return err
		}
		if !exists {
			return jobstore.ErrNotFound
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.SRem(ctx, s.indexKey(oldNode, oldStage), jobID)
			pipe.HSet(ctx, key,
				fieldStage, strconv.Itoa(int(stage)),
				fieldNodeAddress, nodeAddress,
				fieldGmtModified, formatTime(time.Now()),
			)
			pipe.SAdd(ctx, s.indexKey(nodeAddress, stage), jobID)
			return nil
		})
		return err
	})
	return errors.Wrapf(err, "updating stage of job %s", jobID)
}

func (s *Store) ListByStage(ctx context.Context, nodeAddress string, stage domain.Stage) ([]*jobstore.JobCache, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey(nodeAddress, stage)).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "listing %s jobs of %s", stage, nodeAddress)
	}
	out := []*jobstore.JobCache{}
	if len(ids) == 0 {
		return out, nil
	}

	cmds := make([]*goredis.MapStringStringCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, s.jobKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s jobs of %s", stage, nodeAddress)
	}
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		c, err := decode(fields)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	jobstore.SortByCreate(out)
	return out, nil
}

func decode(fields map[string]string) (*jobstore.JobCache, error) {
	stage, err := strconv.Atoi(fields[fieldStage])
	if err != nil {
		return nil, errors.Wrapf(err, "bad stage for job %s", fields[fieldJobID])
	}
	return &jobstore.JobCache{
		JobID:       fields[fieldJobID],
		EngineType:  fields[fieldEngineType],
		Stage:       domain.Stage(stage),
		NodeAddress: fields[fieldNodeAddress],
		JobInfo:     fields[fieldJobInfo],
		GmtCreate:   parseTime(fields[fieldGmtCreate]),
		GmtModified: parseTime(fields[fieldGmtModified]),
	}, nil
}

func formatTime(t time.Time) string {
	return strconv.FormatInt(t.UnixNano(), 10)
}

func parseTime(s string) time.Time {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(0, n)
}
