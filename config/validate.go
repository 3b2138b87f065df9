package config

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

var (
	ValidLogLevels = [4]string{"TRACE", "DEBUG", "INFO", "ERROR"}
)

// Validate validates the provided config
// returning a list of errors that can be unwrapped with `errors.Unwrap`
// or nil if the config is valid
func Validate(config Config) error {
	var validLogLevel bool
	var allErrs error

	for _, validLevel := range ValidLogLevels {
		if config.LogLevel == validLevel {
			validLogLevel = true
			break
		}
	}

	if !validLogLevel {
		allErrs = fmt.Errorf("invalid %s specified %s, supported values are %v", LOG_LEVEL_ENVIRONMENT_KEY, config.LogLevel, ValidLogLevels)
	}

	if _, err := strconv.Atoi(config.ProxyServicePort); err != nil {
		allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s", PROXY_SERVICE_PORT_ENVIRONMENT_KEY, config.ProxyServicePort))
	}

	if config.ProxyOpsPort != "" {
		if _, err := strconv.Atoi(config.ProxyOpsPort); err != nil {
			allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s", PROXY_OPS_PORT_ENVIRONMENT_KEY, config.ProxyOpsPort))
		}
		if config.ProxyOpsPort == config.ProxyServicePort {
			allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s, must differ from %s", PROXY_OPS_PORT_ENVIRONMENT_KEY, config.ProxyOpsPort, PROXY_SERVICE_PORT_ENVIRONMENT_KEY))
		}
	}

	upstream := config.ProxyUpstreamURLParsed
	if (upstream.Scheme != "http" && upstream.Scheme != "https") || upstream.Host == "" {
		allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s, must be an absolute http or https url", PROXY_UPSTREAM_URL_ENVIRONMENT_KEY, config.ProxyUpstreamURLRaw))
	}

	if _, err := ParseRawMountModeMap(config.ProxyMountModeMapRaw); err != nil {
		allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s: %w", PROXY_MOUNT_MODE_MAP_ENVIRONMENT_KEY, config.ProxyMountModeMapRaw, err))
	}

	timeout, err := time.ParseDuration(config.UpstreamResponseHeaderTimeoutRaw)
	if err != nil || timeout < 0 {
		allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s, must be a non-negative duration", PROXY_UPSTREAM_RESPONSE_HEADER_TIMEOUT_ENVIRONMENT_KEY, config.UpstreamResponseHeaderTimeoutRaw))
	}

	if config.MaxRewriteBodyBytes <= 0 {
		allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %d, must be greater than zero", PROXY_MAX_REWRITE_BODY_BYTES_ENVIRONMENT_KEY, config.MaxRewriteBodyBytes))
	}

	return allErrs
}
