package gcp

import (
	"os"
	"strings"

	"google.golang.org/api/option"
)

// ClientOptions returns the credential and scope options shared by the GCS
// reader and the Vertex client. GOOGLE_APPLICATION_CREDENTIALS_JSON wins over
// GOOGLE_APPLICATION_CREDENTIALS; either may hold inline JSON, the latter may
// also be a path. With neither set, application default credentials apply.
func ClientOptions(scopes ...string) []option.ClientOption {
	var opts []option.ClientOption
	if creds := credentialsFromEnv(); creds != "" {
		if strings.HasPrefix(creds, "{") {
			opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
		} else {
			opts = append(opts, option.WithCredentialsFile(creds))
		}
	}
	if len(scopes) > 0 {
		opts = append(opts, option.WithScopes(scopes...))
	}
	return opts
}

func credentialsFromEnv() string {
	for _, key := range []string{"GOOGLE_APPLICATION_CREDENTIALS_JSON", "GOOGLE_APPLICATION_CREDENTIALS"} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return ""
}
