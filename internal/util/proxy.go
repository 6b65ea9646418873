package util

import (
	"net/http"
	"net/url"
)

// NewProxyFunc creates a proxy function based on configuration.
// If no proxy URLs are provided, falls back to environment variables.
func NewProxyFunc(httpProxy, httpsProxy, noProxy string) func(*http.Request) (*url.URL, error) {
	if httpProxy == "" && httpsProxy == "" {
		return http.ProxyFromEnvironment
	}

	return func(req *http.Request) (*url.URL, error) {
		if noProxy != "" && hostMatches(req.URL.Host, noProxy) {
			return nil, nil
		}
		if req.URL.Scheme == "https" && httpsProxy != "" {
			return url.Parse(httpsProxy)
		}
		if httpProxy != "" {
			return url.Parse(httpProxy)
		}
		return http.ProxyFromEnvironment(req)
	}
}

func hostMatches(host, noProxy string) bool {
	for _, entry := range splitComma(noProxy) {
		if entry != "" && (host == entry || hasSuffixDot(host, entry)) {
			return true
		}
	}
	return false
}

func splitComma(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			entry := s[start:i]
			for len(entry) > 0 && entry[0] == ' ' {
				entry = entry[1:]
			}
			for len(entry) > 0 && entry[len(entry)-1] == ' ' {
				entry = entry[:len(entry)-1]
			}
			out = append(out, entry)
			start = i + 1
		}
	}
	return out
}

func hasSuffixDot(host, domain string) bool {
	if len(host) <= len(domain) {
		return false
	}
	return host[len(host)-len(domain):] == domain && host[len(host)-len(domain)-1] == '.'
}
