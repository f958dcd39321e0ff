package collector

import (
	"bytes"
	"compress/gzip"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/go-resty/resty/v2"
)

// DecompressMiddleware inflates br and gzip bodies. It is needed because
// the clients set Accept-Encoding themselves, which turns off the
// transport's own gzip handling.
func DecompressMiddleware(_ *resty.Client, resp *resty.Response) error {
	encoding := resp.Header().Get("Content-Encoding")
	if encoding == "" {
		return nil
	}

	var reader io.ReadCloser
	var err error

	switch encoding {
	case "br":
		reader = io.NopCloser(brotli.NewReader(bytes.NewReader(resp.Body())))
	case "gzip":
		// resty already inflates plain gzip responses itself
		if b := resp.Body(); len(b) < 2 || b[0] != 0x1f || b[1] != 0x8b {
			return nil
		}
		reader, err = gzip.NewReader(bytes.NewReader(resp.Body()))
		if err != nil {
			return err
		}
		defer reader.Close()
	default:
		return nil
	}

	decompressed, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	resp.SetBody(decompressed)
	return nil
}

// newRestyClient builds the client used by every HTTP collaborator.
// Retries stay off.
func newRestyClient(baseURL string, opts ClientOptions) *resty.Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(opts.timeout()).
		SetRetryCount(0).
		SetHeaders(map[string]string{
			"Accept":          "application/json",
			"Accept-Encoding": "br, gzip",
			"User-Agent":      "BtcInsight/1.0",
		}).
		OnAfterResponse(DecompressMiddleware)
	if opts.Proxy != "" {
		c.SetProxy(opts.Proxy)
	}
	return c
}
