package main

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	// ErrBaseURLNotConfigured is returned when no middleware base URL is set
	ErrBaseURLNotConfigured = errors.New("middleware base URL is not configured (api_base_url)")
	// ErrUnknownEndpoint is returned for keys missing from the endpoint table
	ErrUnknownEndpoint = errors.New("unknown middleware endpoint")
)

// middlewareEndpoints maps endpoint keys to paths relative to the base URL
var middlewareEndpoints = map[string]string{
	EndpointRoot:           "/",
	EndpointPrinters:       "/printers",
	EndpointDefaultPrinter: "/impresora/predeterminada",
	EndpointPrintLabel:     "/print/label",
}

// BuildURL joins the configured base URL with the path of an endpoint key.
// The base is always treated as a directory so "https://h/v1" keeps "/v1".
func BuildURL(baseURL, key string) (string, error) {
	path, ok := middlewareEndpoints[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownEndpoint, key)
	}
	if strings.TrimSpace(baseURL) == "" {
		return "", ErrBaseURLNotConfigured
	}

	base, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return "", fmt.Errorf("invalid middleware base URL %q: %w", baseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return "", fmt.Errorf("invalid middleware base URL scheme %q, must be http or https", base.Scheme)
	}

	ref, err := url.Parse(strings.TrimLeft(path, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid endpoint path %q: %w", path, err)
	}
	return base.ResolveReference(ref).String(), nil
}
