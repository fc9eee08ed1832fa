package sqldb

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"
)

// Credentials are the login form parameters. The struct is comparable and is
// used as the memoization key.
type Credentials struct {
	Server    string
	Database  string
	User      string
	Password  string
	Encrypt   bool
	TrustCert bool
}

// LogValue keeps the password out of logs.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("server", c.Server),
		slog.String("database", c.Database),
		slog.String("user", c.User),
		slog.Bool("encrypt", c.Encrypt),
		slog.Bool("trust_cert", c.TrustCert),
	)
}

// SSLMode maps the encrypt/trust flags onto a libpq sslmode.
func (c Credentials) SSLMode() string {
	switch {
	case !c.Encrypt:
		return "disable"
	case c.TrustCert:
		return "require"
	default:
		return "verify-full"
	}
}

// BuildDSN renders creds as a keyword/value connection string understood by
// both lib/pq and pgx.
func BuildDSN(c Credentials, defaultPort int, connectTimeout time.Duration) (string, error) {
	if strings.TrimSpace(c.Server) == "" {
		return "", errors.New("server is required")
	}
	if strings.TrimSpace(c.Database) == "" {
		return "", errors.New("database is required")
	}

	host, port, err := splitServer(c.Server, defaultPort)
	if err != nil {
		return "", err
	}

	parts := []string{
		"host=" + quote(host),
		"port=" + strconv.Itoa(port),
		"dbname=" + quote(c.Database),
		"sslmode=" + c.SSLMode(),
	}
	if c.User != "" {
		parts = append(parts, "user="+quote(c.User))
	}
	if c.Password != "" {
		parts = append(parts, "password="+quote(c.Password))
	}
	if secs := int(connectTimeout / time.Second); secs > 0 {
		parts = append(parts, "connect_timeout="+strconv.Itoa(secs))
	}

	return strings.Join(parts, " "), nil
}

func splitServer(server string, defaultPort int) (string, int, error) {
	server = strings.TrimSpace(server)
	if !strings.Contains(server, ":") {
		return server, defaultPort, nil
	}

	host, portStr, err := net.SplitHostPort(server)
	if err != nil {
		return "", 0, fmt.Errorf("invalid server address %q: %w", server, err)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return "", 0, fmt.Errorf("invalid server port %q", portStr)
	}
	return host, port, nil
}

func quote(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
