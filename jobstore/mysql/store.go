// Package mysql is a jobstore.Store on a MySQL engine_job_cache table.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/twitter/enginedispatch/domain"
	"github.com/twitter/enginedispatch/jobstore"
)

const DefaultTable = "engine_job_cache"

const createTable = `
CREATE TABLE IF NOT EXISTS %s (
  job_id       VARCHAR(256) NOT NULL,
  engine_type  VARCHAR(256) NOT NULL,
  stage        TINYINT      NOT NULL,
  node_address VARCHAR(256) NOT NULL,
  job_info     LONGTEXT     NOT NULL,
  gmt_create   DATETIME(6)  NOT NULL,
  gmt_modified DATETIME(6)  NOT NULL,
  PRIMARY KEY (job_id),
  KEY idx_node_stage (node_address, stage)
)`

const columns = `job_id, engine_type, stage, node_address, job_info, gmt_create, gmt_modified`

// Needs MySQL 8.0.19 or later for the row alias. gmt_create keeps its first value.
const upsert = `INSERT INTO %s (` + columns + `) VALUES (?, ?, ?, ?, ?, ?, ?) AS new
ON DUPLICATE KEY UPDATE engine_type = new.engine_type, stage = new.stage,
  node_address = new.node_address, job_info = new.job_info, gmt_modified = new.gmt_modified`

type Store struct {
	db    *sql.DB
	table string
}

var _ jobstore.Store = (*Store)(nil)

func NewStore(db *sql.DB, table string) *Store {
	if table == "" {
		table = DefaultTable
	}
	return &Store{db: db, table: table}
}

// Open connects to dsn and creates the table if needed. Time parsing and
// found-rows counting are forced on since the store depends on both.
func Open(ctx context.Context, dsn, table string) (*Store, error) {
	cfg, err := gomysql.ParseDSN(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "parsing mysql dsn")
	}
	cfg.ParseTime = true
	cfg.ClientFoundRows = true
	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, errors.Wrap(err, "opening mysql")
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "connecting to mysql at %s", cfg.Addr)
	}
	s := NewStore(db, table)
	if err := s.CreateTable(ctx); err != nil {
		db.Close()
		return nil, err
	}
	log.Infof("Using mysql job store at %s, table %s", cfg.Addr, s.table)
	return s, nil
}

func (s *Store) CreateTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(createTable, s.table))
	return errors.Wrapf(err, "creating table %s", s.table)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Insert(ctx context.Context, c *jobstore.JobCache) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(upsert, s.table),
		c.JobID, c.EngineType, int(c.Stage), c.NodeAddress, c.JobInfo, now, now)
	return errors.Wrapf(err, "inserting job %s", c.JobID)
}

func (s *Store) Delete(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE job_id = ?`, s.table), jobID)
	return errors.Wrapf(err, "deleting job %s", jobID)
}

func (s *Store) GetOne(ctx context.Context, jobID string) (*jobstore.JobCache, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT `+columns+` FROM %s WHERE job_id = ?`, s.table), jobID)
	c, err := scan(row)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(jobstore.ErrNotFound, "job %s", jobID)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading job %s", jobID)
	}
	return c, nil
}

func (s *Store) UpdateStage(ctx context.Context, jobID string, stage domain.Stage, nodeAddress string) error {
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET stage = ?, node_address = ?, gmt_modified = ? WHERE job_id = ?`, s.table),
		int(stage), nodeAddress, time.Now().UTC(), jobID)
	if err != nil {
		return errors.Wrapf(err, "updating stage of job %s", jobID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrapf(err, "updating stage of job %s", jobID)
	}
	if n == 0 {
		return errors.Wrapf(jobstore.ErrNotFound, "job %s", jobID)
	}
	return nil
}

func (s *Store) ListByStage(ctx context.Context, nodeAddress string, stage domain.Stage) ([]*jobstore.JobCache, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT `+columns+` FROM %s WHERE node_address = ? AND stage = ? ORDER BY gmt_create, job_id`, s.table),
		nodeAddress, int(stage))
	if err != nil {
		return nil, errors.Wrapf(err, "listing %s jobs of %s", stage, nodeAddress)
	}
	defer rows.Close()

	out := []*jobstore.JobCache{}
	for rows.Next() {
		c, err := scan(rows)
		if err != nil {
			return nil, errors.Wrapf(err, "listing %s jobs of %s", stage, nodeAddress)
		}
		out = append(out, c)
	}
	return out, errors.Wrapf(rows.Err(), "listing %s jobs of %s", stage, nodeAddress)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scan(row scanner) (*jobstore.JobCache, error) {
	c := &jobstore.JobCache{}
	var stage int
	if err := row.Scan(&c.JobID, &c.EngineType, &stage, &c.NodeAddress, &c.JobInfo, &c.GmtCreate, &c.GmtModified); err != nil {
		return nil, err
	}
	c.Stage = domain.Stage(stage)
	return c, nil
}
