package config

import (
	"encoding/json"
	"os"
	"time"

	"framevault/internal/flagx"
	"framevault/internal/timex"
)

// JsonConfig is the JSON-file shape of Config. Interval fields use
// timex.Duration, which accepts both duration strings ("24h") and
// integer nanoseconds. It is an intermediate DTO: after unmarshalling,
// its fields are copied into the runtime Config.
type JsonConfig struct {
	EndpointAddrHTTP    string         `json:"endpoint_addr_http"`
	DatabaseDSN         string         `json:"database_dsn"`
	SecretKey           string         `json:"secret_key"`
	AccessTokenValidity timex.Duration `json:"access_token_validity"`
	InviteValidity      timex.Duration `json:"invite_validity"`
	S3RootUser          string         `json:"s3_root_user"`
	S3RootPassword      string         `json:"s3_root_password"`
	S3Bucket            string         `json:"s3_bucket"`
	S3Region            string         `json:"s3_region"`
	S3BaseEndpoint      string         `json:"s3_base_endpoint"`
	PurgeWorkers        int            `json:"purge_workers"`
	PurgeQueueDepth     int            `json:"purge_queue_depth"`
	BlobDeleteAttempts  uint64         `json:"blob_delete_attempts"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c or -config flags; if
// neither is set, no JSON file is loaded. An unreadable or invalid file
// panics: a half-applied config is worse than a crash at startup.
func parseJson(config *Config) {

	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	config.EndpointAddrHTTP = c.EndpointAddrHTTP
	config.DatabaseDSN = c.DatabaseDSN
	config.SecretKey = c.SecretKey
	config.AccessTokenValidity = time.Duration(c.AccessTokenValidity.Duration)
	config.InviteValidity = time.Duration(c.InviteValidity.Duration)
	config.S3RootUser = c.S3RootUser
	config.S3RootPassword = c.S3RootPassword
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
	config.PurgeWorkers = c.PurgeWorkers
	config.PurgeQueueDepth = c.PurgeQueueDepth
	config.BlobDeleteAttempts = c.BlobDeleteAttempts
}
