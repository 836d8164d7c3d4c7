package config

import (
	"net"
	"net/url"
	"os"
	"strconv"

	"github.com/BartekS5/sql2mongo/internal/etl"
	"github.com/BartekS5/sql2mongo/pkg/utils"
	"github.com/go-sql-driver/mysql"
)

// Environment variables that replace the connection strings built from the file.
const (
	EnvSQLConn   = "SQL_CONNECTION_STRING"
	EnvMongoConn = "MONGO_CONNECTION_STRING"
)

var defaultPorts = map[etl.Dialect]int{
	etl.MySQL:     3306,
	etl.SQLServer: 1433,
	etl.Postgres:  5432,
}

func (c *Config) applyEnv() error {
	c.SQLConnString = os.Getenv(EnvSQLConn)
	if c.SQLConnString == "" {
		dsn, err := SQLDSN(c.Dialect(), c.SQL)
		if err != nil {
			return err
		}
		c.SQLConnString = dsn
	}

	c.MongoConnString = os.Getenv(EnvMongoConn)
	if c.MongoConnString == "" {
		uri, err := MongoURI(c.Mongo)
		if err != nil {
			return err
		}
		c.MongoConnString = uri
	}
	return nil
}

// SQLDSN builds the driver connection string for the given dialect.
func SQLDSN(d etl.Dialect, s *SQLSettings) (string, error) {
	port, err := utils.IntOrDefault(s.Port, defaultPorts[d])
	if err != nil {
		return "", err
	}
	addr := net.JoinHostPort(s.Host, strconv.Itoa(port))

	switch d {
	case etl.SQLServer:
		u := url.URL{
			Scheme:   "sqlserver",
			User:     url.UserPassword(s.User, s.Password()),
			Host:     addr,
			RawQuery: url.Values{"database": {s.Name}}.Encode(),
		}
		return u.String(), nil
	case etl.Postgres:
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(s.User, s.Password()),
			Host:   addr,
			Path:   "/" + s.Name,
		}
		return u.String(), nil
	default:
		mc := mysql.NewConfig()
		mc.User = s.User
		mc.Passwd = s.Password()
		mc.Net = "tcp"
		mc.Addr = addr
		mc.DBName = s.Name
		mc.ParseTime = true
		return mc.FormatDSN(), nil
	}
}

// MongoURI builds a mongodb:// URI; credentials are included only when set.
func MongoURI(s *MongoSettings) (string, error) {
	port, err := utils.IntOrDefault(s.Port, 27017)
	if err != nil {
		return "", err
	}
	u := url.URL{Scheme: "mongodb", Host: net.JoinHostPort(s.Host, strconv.Itoa(port)), Path: "/"}
	if s.User != "" {
		u.User = url.UserPassword(s.User, s.Pass)
	}
	return u.String(), nil
}

func portString(v interface{}) string {
	n, err := utils.IntOrDefault(v, 0)
	if err != nil || n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}
