// package config provides functions and values
// for reading and validating data type proxy service configuration
package config

import (
	"net/url"
	"os"
	"strconv"
	"time"
)

type Config struct {
	LogLevel                         string
	LogFilePath                      string
	ProxyServicePort                 string
	ProxyOpsPort                     string
	ProxyUpstreamURLRaw              string
	ProxyUpstreamURLParsed           url.URL
	ProxyMountModeMapRaw             string
	ProxyMountModeMapParsed          []Mount
	UpstreamResponseHeaderTimeoutRaw string
	UpstreamResponseHeaderTimeout    time.Duration
	MaxRewriteBodyBytes              int64
}

const (
	LOG_LEVEL_ENVIRONMENT_KEY                              = "LOG_LEVEL"
	DEFAULT_LOG_LEVEL                                      = "INFO"
	LOG_FILE_PATH_ENVIRONMENT_KEY                          = "LOG_FILE_PATH"
	PROXY_SERVICE_PORT_ENVIRONMENT_KEY                     = "PORT"
	DEFAULT_PROXY_SERVICE_PORT                             = "3000"
	PROXY_OPS_PORT_ENVIRONMENT_KEY                         = "PROXY_OPS_PORT"
	PROXY_UPSTREAM_URL_ENVIRONMENT_KEY                     = "PROXY_UPSTREAM_URL"
	DEFAULT_UPSTREAM_URL                                   = "https://analysis.arcgis.com"
	PROXY_MOUNT_MODE_MAP_ENVIRONMENT_KEY                   = "PROXY_MOUNT_MODE_MAP"
	DEFAULT_PROXY_MOUNT_MODE_MAP                           = "/override-only>inject,/override-and-replace>inject+replace,>inject"
	PROXY_UPSTREAM_RESPONSE_HEADER_TIMEOUT_ENVIRONMENT_KEY = "PROXY_UPSTREAM_RESPONSE_HEADER_TIMEOUT"
	DEFAULT_UPSTREAM_RESPONSE_HEADER_TIMEOUT               = "60s"
	PROXY_MAX_REWRITE_BODY_BYTES_ENVIRONMENT_KEY           = "PROXY_MAX_REWRITE_BODY_BYTES"
	DEFAULT_MAX_REWRITE_BODY_BYTES                         = 64 << 20
)

// EnvOrDefault fetches an environment variable value, or if not set returns the fallback value
func EnvOrDefault(key string, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

// EnvOrDefaultInt64 fetches an environment variable value, or if not set returns the fallback value
// values that fail to parse are returned as -1 so `Validate` can report them
func EnvOrDefaultInt64(key string, fallback int64) int64 {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}

	parsed, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return -1
	}

	return parsed
}

// ReadConfig attempts to parse service config from environment values
// the returned config may be invalid and should be validated via the `Validate`
// function of the Config package before use
func ReadConfig() Config {
	rawUpstreamURL := EnvOrDefault(PROXY_UPSTREAM_URL_ENVIRONMENT_KEY, DEFAULT_UPSTREAM_URL)
	// best effort to parse, callers are responsible for validating
	// before using any values read
	parsedUpstreamURL, _ := url.Parse(rawUpstreamURL)
	if parsedUpstreamURL == nil {
		parsedUpstreamURL = &url.URL{}
	}

	rawMountModeMap := EnvOrDefault(PROXY_MOUNT_MODE_MAP_ENVIRONMENT_KEY, DEFAULT_PROXY_MOUNT_MODE_MAP)
	parsedMountModeMap, _ := ParseRawMountModeMap(rawMountModeMap)

	rawTimeout := EnvOrDefault(PROXY_UPSTREAM_RESPONSE_HEADER_TIMEOUT_ENVIRONMENT_KEY, DEFAULT_UPSTREAM_RESPONSE_HEADER_TIMEOUT)
	parsedTimeout, _ := time.ParseDuration(rawTimeout)

	return Config{
		LogLevel:                         EnvOrDefault(LOG_LEVEL_ENVIRONMENT_KEY, DEFAULT_LOG_LEVEL),
		LogFilePath:                      EnvOrDefault(LOG_FILE_PATH_ENVIRONMENT_KEY, ""),
		ProxyServicePort:                 EnvOrDefault(PROXY_SERVICE_PORT_ENVIRONMENT_KEY, DEFAULT_PROXY_SERVICE_PORT),
		ProxyOpsPort:                     EnvOrDefault(PROXY_OPS_PORT_ENVIRONMENT_KEY, ""),
		ProxyUpstreamURLRaw:              rawUpstreamURL,
		ProxyUpstreamURLParsed:           *parsedUpstreamURL,
		ProxyMountModeMapRaw:             rawMountModeMap,
		ProxyMountModeMapParsed:          parsedMountModeMap,
		UpstreamResponseHeaderTimeoutRaw: rawTimeout,
		UpstreamResponseHeaderTimeout:    parsedTimeout,
		MaxRewriteBodyBytes:              EnvOrDefaultInt64(PROXY_MAX_REWRITE_BODY_BYTES_ENVIRONMENT_KEY, DEFAULT_MAX_REWRITE_BODY_BYTES),
	}
}
