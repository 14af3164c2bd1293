package config

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"

	"github.com/leapstack-labs/sparkify/pkg/core"
)

// Keys read from a credentials file.
const (
	KeyAccessKeyID     = "AWS_ACCESS_KEY_ID"
	KeySecretAccessKey = "AWS_SECRET_ACCESS_KEY"
	KeySessionToken    = "AWS_SESSION_TOKEN"
	KeyRegion          = "AWS_REGION"
)

var envRef = regexp.MustCompile(`\$\{([^}]+)\}`)

// ExpandEnvVars expands ${VAR} patterns using lookup. Unknown or empty
// variables are left as written.
func ExpandEnvVars(s string, lookup func(string) (string, bool)) string {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return envRef.ReplaceAllStringFunc(s, func(match string) string {
		if val, ok := lookup(match[2 : len(match)-1]); ok && val != "" {
			return val
		}
		return match
	})
}

// ReadCredentialsFile reads KEY=VALUE pairs from path. Section headers such
// as [AWS] are skipped. Values are returned, never exported to the process
// environment.
func ReadCredentialsFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open credentials file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var body strings.Builder
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			continue
		}
		body.WriteString(line)
		body.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	values, err := godotenv.Unmarshal(body.String())
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials file %s: %w", path, err)
	}
	return values, nil
}

// Credentials resolves the configured key material. Explicit values win
// over the credentials file; ${VAR} references are expanded with lookup.
// Without key material the region and endpoint are still returned so the
// SDK default credential chain can use them. It returns nil when nothing
// is configured at all.
func (a *AWSConfig) Credentials(lookup func(string) (string, bool)) (*core.Credentials, error) {
	if a == nil {
		return nil, nil
	}

	creds := &core.Credentials{
		KeyID:        ExpandEnvVars(a.AccessKeyID, lookup),
		Secret:       ExpandEnvVars(a.SecretAccessKey, lookup),
		SessionToken: ExpandEnvVars(a.SessionToken, lookup),
		Region:       ExpandEnvVars(a.Region, lookup),
		Endpoint:     ExpandEnvVars(a.Endpoint, lookup),
		URLStyle:     a.URLStyle,
		UseSSL:       a.UseSSL,
	}

	if a.CredentialsFile != "" {
		values, err := ReadCredentialsFile(ExpandEnvVars(a.CredentialsFile, lookup))
		if err != nil {
			return nil, err
		}
		fill(&creds.KeyID, values[KeyAccessKeyID])
		fill(&creds.Secret, values[KeySecretAccessKey])
		fill(&creds.SessionToken, values[KeySessionToken])
		fill(&creds.Region, values[KeyRegion])
	}

	for _, v := range []string{creds.KeyID, creds.Secret} {
		if envRef.MatchString(v) {
			return nil, fmt.Errorf("unresolved credential reference %s", envRef.FindString(v))
		}
	}
	if (creds.KeyID == "") != (creds.Secret == "") {
		return nil, fmt.Errorf("incomplete credentials: both access_key_id and secret_access_key are required")
	}
	if creds.IsZero() && creds.SessionToken != "" {
		return nil, fmt.Errorf("incomplete credentials: session_token requires access_key_id and secret_access_key")
	}
	if *creds == (core.Credentials{}) {
		return nil, nil
	}
	return creds, nil
}

func fill(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}
