package storage

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// DSNParts are connection components read from the environment when no DSN
// is configured.
type DSNParts struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Params   string // url-encoded extra parameters, no leading '?'
}

// ResolveDSN returns dsn when it is set, otherwise a DSN assembled from the
// DB_HOST, DB_PORT, DB_USER, DB_PASSWORD, DB_NAME and DB_PARAMS variables
// looked up through getenv. ok is false when neither source says anything.
func ResolveDSN(kind, dsn string, getenv func(string) string) (_ string, ok bool, err error) {
	if strings.TrimSpace(dsn) != "" {
		return dsn, true, nil
	}
	p := DSNParts{
		Host:     strings.TrimSpace(getenv("DB_HOST")),
		Port:     strings.TrimSpace(getenv("DB_PORT")),
		User:     strings.TrimSpace(getenv("DB_USER")),
		Password: getenv("DB_PASSWORD"),
		Database: strings.TrimSpace(getenv("DB_NAME")),
		Params:   strings.TrimSpace(getenv("DB_PARAMS")),
	}
	if p == (DSNParts{}) {
		return "", false, nil
	}
	out, err := BuildDSN(kind, p)
	return out, err == nil, err
}

// BuildDSN renders p in the native DSN format of kind.
func BuildDSN(kind string, p DSNParts) (string, error) {
	switch NormalizeKind(kind) {
	case "mysql":
		c := mysql.NewConfig()
		c.User = p.User
		c.Passwd = p.Password
		c.Net = "tcp"
		c.Addr = hostPort(p.Host, p.Port, "localhost", "3306")
		c.DBName = p.Database
		if p.Params != "" {
			q, err := url.ParseQuery(p.Params)
			if err != nil {
				return "", fmt.Errorf("DB_PARAMS: %w", err)
			}
			c.Params = map[string]string{}
			for k := range q {
				c.Params[k] = q.Get(k)
			}
		}
		return c.FormatDSN(), nil

	case "postgres":
		u := &url.URL{
			Scheme:   "postgresql",
			User:     url.UserPassword(p.User, p.Password),
			Host:     hostPort(p.Host, p.Port, "localhost", "5432"),
			Path:     "/" + p.Database,
			RawQuery: p.Params,
		}
		return u.String(), nil

	case "mssql":
		q, err := url.ParseQuery(p.Params)
		if err != nil {
			return "", fmt.Errorf("DB_PARAMS: %w", err)
		}
		if p.Database != "" {
			q.Set("database", p.Database)
		}
		u := &url.URL{
			Scheme:   "sqlserver",
			User:     url.UserPassword(p.User, p.Password),
			Host:     hostPort(p.Host, p.Port, "localhost", "1433"),
			RawQuery: q.Encode(),
		}
		return u.String(), nil

	case "sqlite":
		path := p.Database
		if path == "" {
			path = "eduetl.db"
		}
		dsn := "file:" + path
		if p.Params != "" {
			dsn += "?" + p.Params
		}
		return dsn, nil
	}
	return "", fmt.Errorf("unsupported storage kind=%s", kind)
}

func hostPort(host, port, defHost, defPort string) string {
	if host == "" {
		host = defHost
	}
	if port == "" {
		port = defPort
	}
	return host + ":" + port
}
