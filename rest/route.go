package rest

import (
	"fmt"
	"strings"
)

// Route is a compiled API route: the concrete request path plus the bucket
// key rate limiting groups it under.
type Route struct {
	Method string
	Path   string

	// Bucket is the rate-limit bucket key: the method and the path
	// template with only the first (major) parameter substituted, so
	// requests against the same resource share a bucket while their minor
	// parameters (message IDs, user IDs) do not split it.
	Bucket string
}

// Compile substitutes the {} placeholders of a path template in order. The
// first parameter is the major one for bucket purposes.
func Compile(method, template string, params ...any) Route {
	path := template
	bucket := template
	for i, p := range params {
		v := fmt.Sprint(p)
		path = strings.Replace(path, "{}", v, 1)
		if i == 0 {
			bucket = strings.Replace(bucket, "{}", v, 1)
		}
	}
	return Route{
		Method: method,
		Path:   path,
		Bucket: method + " " + bucket,
	}
}
