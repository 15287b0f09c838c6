package pg

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/external"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/rds/rdsutils"
	"github.com/pkg/errors"

	_ "github.com/newrelic/go-agent/v3/integrations/nrpgx"
)

const (
	// Registered by nrpgx, wrapping the pgx driver with New Relic
	// instrumentation.
	driverName = "nrpgx"

	AuthModePassword = "password"
	AuthModeAwsIam   = "aws_iam"
)

type Config struct {
	User     string `mapstructure:"user"`
	Host     string `mapstructure:"host"`
	Password string `mapstructure:"password"`
	Port     int    `mapstructure:"port"`
	DbName   string `mapstructure:"dbname"`

	// AuthMode is either AuthModePassword (the default) or AuthModeAwsIam.
	AuthMode string `mapstructure:"auth_mode"`

	MaxOpenConnections int `mapstructure:"max_open_connections"`
	MaxIdleConnections int `mapstructure:"max_idle_connections"`
}

// Open returns a connection pool for the configured database.
func Open(ctx context.Context, config *Config) (*sql.DB, error) {
	port := strconv.Itoa(config.Port)

	var db *sql.DB
	var err error
	switch config.AuthMode {
	case "", AuthModePassword:
		db, err = NewWithUsernameAndPassword(config.User, config.Password, config.Host, port, config.DbName)
	case AuthModeAwsIam:
		awsConfig, loadErr := external.LoadDefaultAWSConfig()
		if loadErr != nil {
			return nil, errors.Wrap(loadErr, "failed to load aws config")
		}
		db, err = NewWithAwsIam(config.User, config.Host, port, config.DbName, awsConfig)
	default:
		return nil, errors.Errorf("unsupported auth mode: %s", config.AuthMode)
	}
	if err != nil {
		return nil, err
	}

	if config.MaxOpenConnections > 0 {
		db.SetMaxOpenConns(config.MaxOpenConnections)
	}
	if config.MaxIdleConnections > 0 {
		db.SetMaxIdleConns(config.MaxIdleConnections)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}
	return db, nil
}

// NewWithAwsIam opens a connection pool authenticated with an IAM token. Only
// provisioned Aurora RDS clusters support this.
//
// https://docs.aws.amazon.com/AmazonRDS/latest/AuroraUserGuide/UsingWithRDS.IAMDBAuth.Connecting.Go.html
func NewWithAwsIam(username, hostname, port, dbname string, config aws.Config) (*sql.DB, error) {
	rdsClient := rds.New(config)

	authToken, err := rdsutils.BuildAuthToken(net.JoinHostPort(hostname, port), rdsClient.Region, username, rdsClient.Credentials)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build auth token")
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s",
		hostname, port, username, authToken, dbname,
	)
	return sql.Open(driverName, dsn)
}

// NewWithUsernameAndPassword opens a connection pool authenticated with a
// password.
func NewWithUsernameAndPassword(username, password, hostname, port, dbname string) (*sql.DB, error) {
	dsn := (&url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(username, password),
		Host:     net.JoinHostPort(hostname, port),
		Path:     dbname,
		RawQuery: "sslmode=disable",
	}).String()
	return sql.Open(driverName, dsn)
}
