// Package duckdb provides the DuckDB compute engine for sparkify.
package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/leapstack-labs/sparkify/pkg/adapter"
	"github.com/leapstack-labs/sparkify/pkg/core"
	"github.com/marcboeker/go-duckdb"
)

// Adapter implements the adapter.Adapter interface for DuckDB.
type Adapter struct {
	adapter.BaseSQLAdapter
	connector *duckdb.Connector
}

// New creates a new DuckDB adapter instance.
// A nil logger discards all output.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger},
	}
}

// Connect establishes a connection to DuckDB.
// Use ":memory:" (or an empty path) for an in-memory database.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	path := cfg.Path
	if path == ":memory:" {
		path = ""
	}

	params, err := parseParams(cfg.Params)
	if err != nil {
		return fmt.Errorf("invalid duckdb params: %w", err)
	}

	connector, err := duckdb.NewConnector(path, nil)
	if err != nil {
		return fmt.Errorf("failed to create duckdb connector: %w", err)
	}

	// sql.DB and the appender connections share one database instance.
	db := sql.OpenDB(connector)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		_ = connector.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}

	a.DB = db
	a.Cfg = cfg
	a.connector = connector

	if err := a.applyParams(ctx, params, cfg.Credentials); err != nil {
		_ = a.Close()
		return err
	}

	a.Logger.Debug("connected to duckdb", "path", cfg.Path, "extensions", params.Extensions)
	return nil
}

// Close closes the database and the shared connector.
func (a *Adapter) Close() error {
	err := a.BaseSQLAdapter.Close()
	a.DB = nil
	if a.connector != nil {
		if cerr := a.connector.Close(); cerr != nil && err == nil {
			err = cerr
		}
		a.connector = nil
	}
	return err
}

// applyParams loads extensions, applies settings and registers secrets.
func (a *Adapter) applyParams(ctx context.Context, params *Params, creds *core.Credentials) error {
	extensions := params.Extensions
	secrets := params.Secrets
	if creds != nil && !creds.IsZero() {
		secrets = append(secrets, secretFromCredentials(creds))
	}
	if len(secrets) > 0 && !contains(extensions, "httpfs") {
		extensions = append(extensions, "httpfs")
	}

	for _, ext := range extensions {
		stmt := fmt.Sprintf("INSTALL %s; LOAD %s;", ext, ext)
		if err := a.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to load extension %s: %w", ext, err)
		}
	}

	keys := make([]string, 0, len(params.Settings))
	for k := range params.Settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		stmt := fmt.Sprintf("SET %s = %s", k, adapter.QuoteString(params.Settings[k]))
		if err := a.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply setting %s: %w", k, err)
		}
	}

	for _, s := range secrets {
		// Never log the statement itself; it carries key material.
		if _, err := a.DB.ExecContext(ctx, buildCreateSecretSQL(s)); err != nil {
			return fmt.Errorf("failed to create %s secret: %w", s.Type, err)
		}
	}
	return nil
}

// GetTableMetadata retrieves metadata for a specified table.
func (a *Adapter) GetTableMetadata(ctx context.Context, table string) (*adapter.Metadata, error) {
	return a.GetTableMetadataCommon(ctx, table, "main")
}

// NewAppender opens a DuckDB appender on a dedicated driver connection.
// Closing the appender flushes pending rows and releases the connection.
func (a *Adapter) NewAppender(ctx context.Context, schema, table string) (adapter.Appender, error) {
	if a.connector == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	conn, err := a.connector.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open appender connection: %w", err)
	}
	app, err := duckdb.NewAppenderFromConn(conn, schema, table)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create appender for %s: %w", table, err)
	}
	return &appender{app: app, conn: conn}, nil
}

type appender struct {
	app  *duckdb.Appender
	conn driver.Conn
}

func (ap *appender) AppendRow(values ...driver.Value) error {
	return ap.app.AppendRow(values...)
}

func (ap *appender) Close() error {
	err := ap.app.Close()
	if cerr := ap.conn.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// buildCreateSecretSQL renders a CREATE SECRET statement.
func buildCreateSecretSQL(cfg SecretConfig) string {
	parts := []string{"TYPE " + cfg.Type}
	if cfg.Provider != "" {
		parts = append(parts, "PROVIDER "+cfg.Provider)
	}
	if cfg.Region != "" {
		parts = append(parts, "REGION "+adapter.QuoteString(cfg.Region))
	}
	if scope := formatScope(cfg.Scope); scope != "" {
		parts = append(parts, "SCOPE "+scope)
	}
	if cfg.KeyID != "" {
		parts = append(parts, "KEY_ID "+adapter.QuoteString(cfg.KeyID))
	}
	if cfg.Secret != "" {
		parts = append(parts, "SECRET "+adapter.QuoteString(cfg.Secret))
	}
	if cfg.SessionToken != "" {
		parts = append(parts, "SESSION_TOKEN "+adapter.QuoteString(cfg.SessionToken))
	}
	if cfg.Endpoint != "" {
		parts = append(parts, "ENDPOINT "+adapter.QuoteString(cfg.Endpoint))
	}
	if cfg.URLStyle != "" {
		parts = append(parts, "URL_STYLE "+adapter.QuoteString(cfg.URLStyle))
	}
	if cfg.UseSSL != nil {
		parts = append(parts, fmt.Sprintf("USE_SSL %t", *cfg.UseSSL))
	}
	return "CREATE SECRET (\n    " + strings.Join(parts, ",\n    ") + "\n)"
}

func formatScope(scope any) string {
	switch v := scope.(type) {
	case nil:
		return ""
	case string:
		if v == "" {
			return ""
		}
		return adapter.QuoteString(v)
	case []string:
		return quoteScopes(v)
	case []any:
		strs := make([]string, 0, len(v))
		for _, s := range v {
			strs = append(strs, fmt.Sprint(s))
		}
		return quoteScopes(strs)
	default:
		return adapter.QuoteString(fmt.Sprint(v))
	}
}

func quoteScopes(scopes []string) string {
	if len(scopes) == 0 {
		return ""
	}
	if len(scopes) == 1 {
		return adapter.QuoteString(scopes[0])
	}
	quoted := make([]string, len(scopes))
	for i, s := range scopes {
		quoted[i] = adapter.QuoteString(s)
	}
	return "(" + strings.Join(quoted, ", ") + ")"
}

// secretFromCredentials maps injected pipeline credentials to an S3 secret.
func secretFromCredentials(c *core.Credentials) SecretConfig {
	return SecretConfig{
		Type:         "s3",
		Provider:     "config",
		Region:       c.Region,
		KeyID:        c.KeyID,
		Secret:       c.Secret,
		SessionToken: c.SessionToken,
		Endpoint:     c.Endpoint,
		URLStyle:     c.URLStyle,
		UseSSL:       c.UseSSL,
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
