package httpclient

import (
	"net/http"

	opentracing "github.com/opentracing/opentracing-go"
	"golang.org/x/net/http/httpguts"
)

// HeaderCarrier writes injected span context into request headers.
// It only adds; it is not a source for extraction. Entries that are not
// valid HTTP header fields are skipped, so baggage can never make a
// request unsendable.
type HeaderCarrier http.Header

var _ opentracing.TextMapWriter = HeaderCarrier(nil)

// Set adds key: val to the headers unless either is invalid on the wire.
func (c HeaderCarrier) Set(key, val string) {
	if !validHeader(key, val) {
		return
	}
	http.Header(c).Add(key, val)
}

func validHeader(key, val string) bool {
	return httpguts.ValidHeaderFieldName(key) && httpguts.ValidHeaderFieldValue(val)
}

// skippingCarrier is a HeaderCarrier that remembers the keys it refused.
type skippingCarrier struct {
	header  http.Header
	skipped []string
}

func (c *skippingCarrier) Set(key, val string) {
	if !validHeader(key, val) {
		c.skipped = append(c.skipped, key)
		return
	}
	c.header.Add(key, val)
}
