// Package cas implements the CAS 3.0 protocol calls used for single sign-on.
package cas

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrInvalidTicket is returned when the server rejects a service ticket.
var ErrInvalidTicket = errors.New("cas: invalid ticket")

// Config configures the client.
type Config struct {
	ServerURL  string
	ServiceURL string
	Timeout    time.Duration
}

// Principal is the authenticated user reported by the CAS server.
type Principal struct {
	UID        string
	Attributes map[string]string
}

// Client builds CAS URLs and validates tickets.
type Client struct {
	serverURL  string
	serviceURL string
	http       *http.Client
}

// New constructs a Client.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		serverURL:  strings.TrimRight(cfg.ServerURL, "/"),
		serviceURL: cfg.ServiceURL,
		http:       &http.Client{Timeout: cfg.Timeout},
	}
}

// LoginURL returns the CAS login page. targetURL, when set, is carried through the
// callback as the url parameter.
func (c *Client) LoginURL(targetURL string) string {
	return fmt.Sprintf("%s/login?%s", c.serverURL, url.Values{"service": {c.service(targetURL)}}.Encode())
}

// LogoutURL returns the CAS logout page which sends the browser back to redirectURL.
func (c *Client) LogoutURL(redirectURL string) string {
	if redirectURL == "" {
		return c.serverURL + "/logout"
	}
	return fmt.Sprintf("%s/logout?%s", c.serverURL, url.Values{"service": {redirectURL}}.Encode())
}

type serviceResponse struct {
	XMLName xml.Name `xml:"serviceResponse"`
	Success *struct {
		User       string `xml:"user"`
		Attributes struct {
			Values []struct {
				XMLName xml.Name
				Value   string `xml:",chardata"`
			} `xml:",any"`
		} `xml:"attributes"`
	} `xml:"authenticationSuccess"`
	Failure *struct {
		Code    string `xml:"code,attr"`
		Message string `xml:",chardata"`
	} `xml:"authenticationFailure"`
}

// ValidateTicket exchanges a service ticket for the authenticated principal.
func (c *Client) ValidateTicket(ctx context.Context, ticket, targetURL string) (*Principal, error) {
	if strings.TrimSpace(ticket) == "" {
		return nil, ErrInvalidTicket
	}
	query := url.Values{"service": {c.service(targetURL)}, "ticket": {ticket}}
	endpoint := fmt.Sprintf("%s/p3/serviceValidate?%s", c.serverURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("cas: build validate request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cas: validate ticket: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cas: validate ticket returned %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("cas: read validate response: %w", err)
	}

	var parsed serviceResponse
	if err := xml.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("cas: decode validate response: %w", err)
	}
	if parsed.Failure != nil {
		return nil, fmt.Errorf("%w: %s %s", ErrInvalidTicket, parsed.Failure.Code, strings.TrimSpace(parsed.Failure.Message))
	}
	if parsed.Success == nil || strings.TrimSpace(parsed.Success.User) == "" {
		return nil, ErrInvalidTicket
	}

	principal := &Principal{UID: strings.TrimSpace(parsed.Success.User), Attributes: map[string]string{}}
	for _, attr := range parsed.Success.Attributes.Values {
		principal.Attributes[attr.XMLName.Local] = strings.TrimSpace(attr.Value)
	}
	return principal, nil
}

func (c *Client) service(targetURL string) string {
	if targetURL == "" {
		return c.serviceURL
	}
	sep := "?"
	if strings.Contains(c.serviceURL, "?") {
		sep = "&"
	}
	return c.serviceURL + sep + url.Values{"url": {targetURL}}.Encode()
}
