package gena

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Client issues GENA subscription requests to UPnP devices
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient creates a new GENA client
func NewClient(config Config) *Client {
	config.SetDefaults()

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// EventURL builds the event endpoint URL for a device. deviceAddress may carry
// its own port; otherwise the configured device port is used.
func (c *Client) EventURL(deviceAddress, eventPath string) string {
	if eventPath == "" {
		eventPath = DefaultEventPath
	}
	if !strings.HasPrefix(eventPath, "/") {
		eventPath = "/" + eventPath
	}

	hostPort := deviceAddress
	if _, _, err := net.SplitHostPort(deviceAddress); err != nil {
		hostPort = net.JoinHostPort(deviceAddress, strconv.Itoa(c.config.DevicePort))
	}
	return "http://" + hostPort + eventPath
}

// Subscribe registers callbackURL for event notifications from the device.
// Empty eventPath and notificationType fall back to the AVTransport defaults.
// Any non-2xx response or transport failure is returned as *SubscriptionError
// and is not retried.
func (c *Client) Subscribe(ctx context.Context, deviceAddress, eventPath, callbackURL, notificationType string) (*Subscription, error) {
	if deviceAddress == "" {
		return nil, fmt.Errorf("device address is required")
	}
	if callbackURL == "" {
		return nil, fmt.Errorf("callback URL is required")
	}
	if eventPath == "" {
		eventPath = DefaultEventPath
	}
	if notificationType == "" {
		notificationType = DefaultNotificationType
	}

	eventURL := c.EventURL(deviceAddress, eventPath)
	// Set directly so NT is not canonicalized to Nt on the wire
	headers := http.Header{}
	headers[headerCallback] = []string{"<" + callbackURL + ">"}
	headers[headerNT] = []string{notificationType}

	resp, err := c.do(ctx, MethodSubscribe, eventURL, headers)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	return &Subscription{
		DeviceAddress:    deviceAddress,
		EventPath:        eventPath,
		EventURL:         eventURL,
		CallbackURL:      callbackURL,
		NotificationType: notificationType,
		SID:              resp.Header.Get(headerSID),
		Timeout:          parseTimeout(resp.Header.Get(headerTimeout)),
		SubscribedAt:     now,
	}, nil
}

// Renew extends an existing subscription. The request carries the SID in
// place of the callback and notification type headers.
func (c *Client) Renew(ctx context.Context, sub *Subscription) error {
	if sub == nil || sub.SID == "" {
		return fmt.Errorf("subscription has no SID to renew")
	}

	headers := http.Header{}
	headers[headerSID] = []string{sub.SID}

	resp, err := c.do(ctx, MethodSubscribe, sub.EventURL, headers)
	if err != nil {
		return err
	}

	if timeout := parseTimeout(resp.Header.Get(headerTimeout)); timeout > 0 {
		sub.Timeout = timeout
	}
	sub.RenewedAt = time.Now()
	return nil
}

// Unsubscribe cancels a subscription on the device.
func (c *Client) Unsubscribe(ctx context.Context, sub *Subscription) error {
	if sub == nil || sub.SID == "" {
		return fmt.Errorf("subscription has no SID to cancel")
	}

	headers := http.Header{}
	headers[headerSID] = []string{sub.SID}

	_, err := c.do(ctx, MethodUnsubscribe, sub.EventURL, headers)
	return err
}

// do performs one GENA exchange and maps failures to *SubscriptionError
func (c *Client) do(ctx context.Context, method, eventURL string, headers http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, eventURL, nil)
	if err != nil {
		return nil, &SubscriptionError{Op: method, URL: eventURL, Err: err}
	}

	for k, v := range headers {
		req.Header[k] = v
	}
	if method == MethodSubscribe && c.config.RequestedTimeout > 0 {
		req.Header[headerTimeout] = []string{formatTimeout(c.config.RequestedTimeout)}
	}
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &SubscriptionError{Op: method, URL: eventURL, Err: err}
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &SubscriptionError{
			Op:         method,
			URL:        eventURL,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
		}
	}

	return resp, nil
}

// parseTimeout reads a "Second-N" header value. "infinite" and anything
// unrecognized yield zero.
func parseTimeout(v string) time.Duration {
	v = strings.TrimSpace(v)
	if len(v) < len("Second-") || !strings.EqualFold(v[:len("Second-")], "Second-") {
		return 0
	}
	secs, err := strconv.Atoi(v[len("Second-"):])
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func formatTimeout(d time.Duration) string {
	secs := int(d / time.Second)
	if secs < 1 {
		secs = 1
	}
	return "Second-" + strconv.Itoa(secs)
}
