package service

const (
	// InfoPath is served by the proxy itself and never forwarded
	InfoPath            = "/nixta"
	InfoMessage         = "This is a proxy service which proxies to the spatial analysis geoprocessing API and corrects the data type of job results."
	HealthcheckPath     = "/healthcheck"
	ServicecheckPath    = "/servicecheck"
	MetricsPath         = "/metrics"
	HealthcheckMessage  = "proxy service is healthy"
	ServicecheckMessage = "proxy service is in service"
)
