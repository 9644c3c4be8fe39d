package hover

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-logr/logr"
	"github.com/larivierec/hover-cli/pkg/metrics"
	"github.com/larivierec/hover-cli/pkg/registrar"
	"golang.org/x/net/publicsuffix"
)

const (
	DefaultEndpoint = "https://www.hover.com/api"
	DefaultTimeout  = 30 * time.Second

	userAgent = "hover-cli"
)

type HoverRegistrar struct {
	config   Configuration
	client   *http.Client
	loggedIn bool
}

type Configuration struct {
	Endpoint string
	Timeout  time.Duration
	Logger   logr.Logger
	Metrics  *metrics.Recorder
}

// envelope is the status wrapper present on every Hover API response.
type envelope struct {
	Succeeded bool   `json:"succeeded"`
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

type domainsResponse struct {
	envelope
	Domains []registrar.Domain `json:"domains"`
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func NewHoverRegistrar(config Configuration) *HoverRegistrar {
	if config.Endpoint == "" {
		config.Endpoint = DefaultEndpoint
	}
	config.Endpoint = strings.TrimRight(config.Endpoint, "/")
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	// cookiejar.New never returns a non-nil error.
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return &HoverRegistrar{
		config: config,
		client: &http.Client{Timeout: config.Timeout, Jar: jar},
	}
}

func (h *HoverRegistrar) Login(ctx context.Context, username, password string) (err error) {
	defer h.observe("login", time.Now(), &err)

	body, status, err := h.do(ctx, http.MethodPost, "/login", credentials{Username: username, Password: password})
	if err != nil {
		return errors.Mark(errors.Wrap(err, "login"), registrar.ErrAuthentication)
	}
	if _, err := decode[envelope](status, body); err != nil {
		return errors.Mark(errors.Wrapf(err, "login as %s", username), registrar.ErrAuthentication)
	}
	h.loggedIn = true
	h.config.Logger.V(1).Info("logged in", "username", username)
	return nil
}

func (h *HoverRegistrar) ListDomains(ctx context.Context) (_ []registrar.Domain, err error) {
	defer h.observe("list_domains", time.Now(), &err)
	if err := h.requireLogin(); err != nil {
		return nil, err
	}

	body, status, err := h.do(ctx, http.MethodGet, "/domains", nil)
	if err != nil {
		return nil, errors.Wrap(err, "list domains")
	}
	result, err := decode[domainsResponse](status, body)
	if err != nil {
		return nil, errors.Wrap(err, "list domains")
	}
	for i := range result.Domains {
		result.Domains[i].Entries = nil
	}
	return result.Domains, nil
}

func (h *HoverRegistrar) ListDomainsWithEntries(ctx context.Context, domain string) (_ []registrar.Domain, err error) {
	defer h.observe("list_domains_with_entries", time.Now(), &err)
	if err := h.requireLogin(); err != nil {
		return nil, err
	}

	body, status, err := h.do(ctx, http.MethodGet, fmt.Sprintf("/domains/%s/dns", url.PathEscape(domain)), nil)
	if err != nil {
		return nil, errors.Wrapf(err, "list dns entries for %s", domain)
	}
	result, err := decode[domainsResponse](status, body)
	if err != nil {
		return nil, errors.Wrapf(err, "list dns entries for %s", domain)
	}
	return result.Domains, nil
}

func (h *HoverRegistrar) AddDNSEntry(ctx context.Context, domain string, entry registrar.DNSEntry) (_ string, err error) {
	defer h.observe("add_dns_entry", time.Now(), &err)
	if err := h.requireLogin(); err != nil {
		return "", err
	}

	data := map[string]string{
		"name":    entry.Name,
		"type":    entry.Type,
		"content": entry.Content,
	}
	body, status, err := h.do(ctx, http.MethodPost, fmt.Sprintf("/domains/%s/dns", url.PathEscape(domain)), data)
	if err != nil {
		return "", errors.Wrapf(err, "add %s record %s", entry.Type, entry.Name)
	}
	if _, err := decode[envelope](status, body); err != nil {
		return "", errors.Mark(err, registrar.ErrConflict)
	}
	h.config.Logger.V(1).Info("dns entry created", "domain", domain, "name", entry.Name, "target", entry.Content)
	return strings.TrimSpace(string(body)), nil
}

func (h *HoverRegistrar) DeleteDNSEntry(ctx context.Context, id string) (_ string, err error) {
	defer h.observe("delete_dns_entry", time.Now(), &err)
	if err := h.requireLogin(); err != nil {
		return "", err
	}

	body, status, err := h.do(ctx, http.MethodDelete, "/dns/"+url.PathEscape(id), nil)
	if err != nil {
		return "", errors.Wrapf(err, "delete dns entry %s", id)
	}
	if _, err := decode[envelope](status, body); err != nil {
		return "", errors.Wrapf(err, "delete dns entry %s", id)
	}
	h.config.Logger.V(1).Info("dns entry deleted", "id", id)
	return strings.TrimSpace(string(body)), nil
}

// UpdateDNSTarget locates the CNAME by domain and name, then rewrites its
// content. Hover only addresses entries by id, hence the lookup.
func (h *HoverRegistrar) UpdateDNSTarget(ctx context.Context, domain string, entry registrar.DNSEntry) (_ string, err error) {
	domains, err := h.ListDomainsWithEntries(ctx, domain)
	if err != nil {
		if errors.Is(err, registrar.ErrNotFound) {
			return "", errors.Mark(err, registrar.ErrConflict)
		}
		return "", err
	}

	defer h.observe("update_dns_target", time.Now(), &err)
	existing, ok := findEntry(domains, domain, entry.Name, entry.Type)
	if !ok {
		return "", errors.Mark(
			errors.Newf("no %s record named %s in %s to update", entry.Type, entry.Name, domain),
			registrar.ErrConflict)
	}

	body, status, err := h.do(ctx, http.MethodPut, "/dns/"+url.PathEscape(existing.ID), map[string]string{"content": entry.Content})
	if err != nil {
		return "", errors.Wrapf(err, "update dns entry %s", existing.ID)
	}
	if _, err := decode[envelope](status, body); err != nil {
		return "", errors.Mark(err, registrar.ErrConflict)
	}
	h.config.Logger.V(1).Info("dns entry updated", "id", existing.ID, "from", existing.Content, "to", entry.Content)
	return strings.TrimSpace(string(body)), nil
}

func findEntry(domains []registrar.Domain, domain, name, recordType string) (registrar.DNSEntry, bool) {
	for _, d := range domains {
		if len(domains) > 1 && !strings.EqualFold(d.Name, domain) {
			continue
		}
		for _, e := range d.Entries {
			if strings.EqualFold(e.Name, name) && strings.EqualFold(e.Type, recordType) {
				return e, true
			}
		}
	}
	return registrar.DNSEntry{}, false
}

func (h *HoverRegistrar) requireLogin() error {
	if !h.loggedIn {
		return errors.WithStack(registrar.ErrNotLoggedIn)
	}
	return nil
}

func (h *HoverRegistrar) observe(operation string, start time.Time, err *error) {
	h.config.Metrics.Observe(operation, start, *err)
}

func (h *HoverRegistrar) do(ctx context.Context, method, path string, payload any) ([]byte, int, error) {
	var reqBody io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, errors.Wrap(err, "marshal request body")
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.config.Endpoint+path, reqBody)
	if err != nil {
		return nil, 0, errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, errors.Wrap(err, "read response body")
	}
	h.config.Logger.V(1).Info("hover api", "method", method, "path", path, "status", resp.StatusCode)
	return body, resp.StatusCode, nil
}

// decode parses a response into T, which must embed envelope, and turns a
// non-2xx status or succeeded=false into an error. A 2xx with no body
// (204 and friends) succeeds with the zero T.
func decode[T interface{ status() envelope }](status int, body []byte) (T, error) {
	var result T
	if status < 200 || status >= 300 {
		return result, failure(status, body)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return result, nil
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return result, errors.Wrap(err, "decode response")
	}
	if !result.status().Succeeded {
		return result, failure(status, body)
	}
	return result, nil
}

func (e envelope) status() envelope { return e }

func failure(status int, body []byte) error {
	var env envelope
	_ = json.Unmarshal(body, &env)

	msg := env.Error
	if msg == "" && env.ErrorCode == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = env.ErrorCode
	}
	if msg == "" {
		msg = http.StatusText(status)
	}

	err := errors.Newf("hover: %s (status %d)", msg, status)
	if status == http.StatusNotFound || strings.HasSuffix(env.ErrorCode, "not_found") {
		return errors.Mark(err, registrar.ErrNotFound)
	}
	if status == http.StatusUnauthorized {
		return errors.Mark(err, registrar.ErrAuthentication)
	}
	return err
}
