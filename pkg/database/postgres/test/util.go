// Package test starts throwaway postgres containers for store tests.
package test

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	_ "github.com/jackc/pgx/v4/stdlib" //nolint:revive

	"github.com/code-payments/sol-trust/pkg/retry"
	"github.com/code-payments/sol-trust/pkg/retry/backoff"
)

const (
	repository = "postgres"
	tag        = "16-alpine"

	// Containers kill themselves after this long in case a test binary dies
	// before purging them.
	expiry = 3 * time.Minute

	user     = "soltrust"
	password = "soltrust"
	dbname   = "soltrust_test"
)

// StartPostgresDB runs a postgres container and returns a connection to its
// database. closeFunc closes the connection and removes the container.
func StartPostgresDB(pool *dockertest.Pool) (db *sql.DB, closeFunc func(), err error) {
	log := logrus.StandardLogger().WithField("type", "database/postgres/test")
	closeFunc = func() {}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: repository,
		Tag:        tag,
		Env: []string{
			"POSTGRES_USER=" + user,
			"POSTGRES_PASSWORD=" + password,
			"POSTGRES_DB=" + dbname,
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		return nil, closeFunc, errors.Wrap(err, "failed to start postgres container")
	}

	purge := func() {
		if err := pool.Purge(resource); err != nil {
			log.WithError(err).Warn("failed to purge postgres container")
		}
	}

	// Expire never fails.
	_ = resource.Expire(uint(expiry.Seconds()))

	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s/%s?sslmode=disable",
		user,
		password,
		resource.GetHostPort("5432/tcp"),
		dbname,
	)

	_, err = retry.Retry(
		func() error {
			if db == nil {
				db, err = sql.Open("pgx", dsn)
				if err != nil {
					return err
				}
			}
			return db.Ping()
		},
		retry.Limit(60),
		retry.Backoff(backoff.Constant(500*time.Millisecond), time.Second),
	)
	if err != nil {
		if db != nil {
			db.Close()
		}
		purge()
		return nil, closeFunc, errors.Wrap(err, "postgres container never became ready")
	}

	log.WithField("container", resource.Container.ID).Debug("postgres container ready")

	return db, func() {
		db.Close()
		purge()
	}, nil
}
