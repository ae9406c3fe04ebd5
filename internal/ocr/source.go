package ocr

import (
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tphakala/menulens/internal/errors"
	"github.com/tphakala/menulens/internal/httpclient"
)

// Defaults for image loading
const (
	DefaultMaxImageBytes = 10 << 20
	DefaultFetchTimeout  = 15 * time.Second
)

// LoadOptions controls LoadImage.
type LoadOptions struct {
	HTTP     *httpclient.Client
	MaxBytes int64
	Timeout  time.Duration

	// AllowPrivateHosts disables the private network check for URL sources
	AllowPrivateHosts bool
	// LookupIP resolves URL hosts, net.LookupIP when nil
	LookupIP func(host string) ([]net.IP, error)
}

func (o *LoadOptions) withDefaults() LoadOptions {
	out := *o
	if out.HTTP == nil {
		out.HTTP = httpclient.New(nil)
	}
	if out.MaxBytes <= 0 {
		out.MaxBytes = DefaultMaxImageBytes
	}
	if out.Timeout <= 0 {
		out.Timeout = DefaultFetchTimeout
	}
	if out.LookupIP == nil {
		out.LookupIP = net.LookupIP
	}
	return out
}

// LoadImage resolves an image source to validated bytes. The source is one of
//
//	data:image/png;base64,iVBORw0...   data URL
//	iVBORw0KGgo...                     bare base64
//	https://example.com/menu.jpg       fetched over HTTP(S)
func LoadImage(ctx context.Context, source string, opts LoadOptions) ([]byte, error) {
	o := opts.withDefaults()
	source = strings.TrimSpace(source)

	var (
		data []byte
		err  error
	)
	switch {
	case source == "":
		return nil, errors.UnsupportedImage("empty image source")
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		data, err = fetchImage(ctx, source, &o)
	case strings.HasPrefix(source, "data:"):
		data, err = decodeDataURL(source)
	default:
		data, err = decodeBase64(source)
	}
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > o.MaxBytes {
		return nil, errors.UnsupportedImage(fmt.Sprintf("image exceeds %d bytes", o.MaxBytes))
	}
	if _, err := ValidateImage(data); err != nil {
		return nil, err
	}
	return data, nil
}

func decodeDataURL(source string) ([]byte, error) {
	header, payload, ok := strings.Cut(source, ",")
	if !ok {
		return nil, errors.UnsupportedImage("malformed data URL")
	}
	if !strings.HasSuffix(header, ";base64") {
		return nil, errors.UnsupportedImage("data URL is not base64 encoded")
	}
	return decodeBase64(payload)
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, s)
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if data, err := enc.DecodeString(s); err == nil {
			return data, nil
		}
	}
	return nil, errors.UnsupportedImage("source is neither a URL nor base64 image data")
}

// checkURL allows only http(s) URLs whose host resolves to public addresses.
func checkURL(rawURL string, o *LoadOptions) error {
	u, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return errors.InvalidRequest("ocr", "invalid image URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.InvalidRequest("ocr", "image URL scheme must be http or https")
	}
	if o.AllowPrivateHosts {
		return nil
	}
	ips, err := o.LookupIP(u.Hostname())
	if err != nil {
		return errors.UnsupportedImage(fmt.Sprintf("cannot resolve image host %s", u.Hostname()))
	}
	for _, ip := range ips {
		if ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
			return errors.InvalidRequest("ocr", "image URL points to a restricted network")
		}
	}
	return nil
}

func fetchImage(ctx context.Context, rawURL string, o *LoadOptions) ([]byte, error) {
	if err := checkURL(rawURL, o); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, o.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := o.HTTP.Get(ctx, rawURL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Timeout("ocr", "fetch image", err)
		}
		return nil, errors.New(fmt.Errorf("fetch image: %w", err)).
			Component("ocr").
			Category(errors.CategoryImageInput).
			Kind(errors.KindUnsupportedImage).
			Class(errors.ClassPermanent).
			Timing("fetch-image", time.Since(start)).
			UserMessage("The image URL could not be downloaded.").
			Build()
	}
	defer resp.Body.Close()

	if err := httpclient.CheckStatus(resp); err != nil {
		return nil, errors.UnsupportedImage(fmt.Sprintf("image URL returned status %d", resp.StatusCode))
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") && !strings.HasPrefix(ct, "application/octet-stream") {
		return nil, errors.UnsupportedImage("image URL returned " + ct)
	}
	if resp.ContentLength > o.MaxBytes {
		return nil, errors.UnsupportedImage(fmt.Sprintf("image exceeds %d bytes", o.MaxBytes))
	}

	data, err := httpclient.ReadLimited(resp.Body, o.MaxBytes)
	if err != nil {
		var tooLarge *httpclient.TooLargeError
		if errors.As(err, &tooLarge) {
			return nil, errors.UnsupportedImage(fmt.Sprintf("image exceeds %d bytes", o.MaxBytes))
		}
		if ctx.Err() != nil {
			return nil, errors.Timeout("ocr", "fetch image", err)
		}
		return nil, errors.UnsupportedImage("image download interrupted")
	}
	return data, nil
}

// DetectMIME sniffs the content type of image bytes.
func DetectMIME(data []byte) string {
	return http.DetectContentType(data)
}
