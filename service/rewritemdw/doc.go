// Package rewritemdw is responsible for correcting the data type of geoprocessing
// job results in upstream responses as they pass through the proxy
//
// package provides:
// - ResponseRewriter.Rewrite, the synchronous buffer -> detect -> match -> resolve -> mutate pipeline
// - ResponseRewriter.ModifyResponse, which plugs Rewrite into an httputil.ReverseProxy
//
// Responses that are not JSON, are not job results, or carry no dataType field
// are returned byte for byte as received from the upstream
package rewritemdw
