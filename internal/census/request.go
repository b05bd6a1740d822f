package census

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/acs-cli/internal/acs"
	"github.com/sells-group/acs-cli/internal/resilience"
)

// buildTableURL assembles a data request URL. Parameter order and the
// literal commas and colons inside the get/for/in clauses match the
// form the upstream documents; net/url's encoder would escape them.
func (c *client) buildTableURL(task FetchTask) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s/%d/acs/acs%d%s?get=NAME,GEO_ID,%s",
		c.baseURL, task.Year, task.Estimate, task.Route.Path(),
		strings.Join(task.Variables, ","))
	sb.WriteString("&for=")
	sb.WriteString(escapeClause(task.ForGeo.String()))
	for _, geo := range task.InGeo {
		sb.WriteString("&in=")
		sb.WriteString(escapeClause(geo.String()))
	}
	if c.apiKey != "" {
		sb.WriteString("&key=")
		sb.WriteString(url.QueryEscape(c.apiKey))
	}
	return sb.String()
}

// buildVariableURL assembles a variable definition URL.
func (c *client) buildVariableURL(estimate, year int, route acs.TableRoute, variable string) string {
	return fmt.Sprintf("%s/%d/acs/acs%d%s/variables/%s.json",
		c.baseURL, year, estimate, route.Path(), variable)
}

// escapeClause encodes a geography clause for a query string. Only the
// spaces in multi-word geography names need escaping; colons, slashes,
// parens, and wildcards travel literally.
func escapeClause(clause string) string {
	return strings.ReplaceAll(clause, " ", "%20")
}

// getWithRetry wraps get in the retry policy. Transient failures back
// off and retry; authentication and other 4xx rejections return
// immediately.
func (c *client) getWithRetry(ctx context.Context, rawURL, operation string) ([]byte, error) {
	cfg := c.retry
	cfg.OnRetry = resilience.RetryLogger("census", operation)
	return resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]byte, error) {
		return c.get(ctx, rawURL)
	})
}

// get performs one rate-limited request and classifies the response:
// 200 returns the body, 401/403 an AuthError, 429 and 5xx a transient
// error for the retry loop, and any other status a permanent error.
func (c *client) get(ctx context.Context, rawURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "census: rate limit")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "census: build request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, eris.Wrap(err, "census: request cancelled")
		}
		return nil, resilience.NewTransientError(eris.Wrap(err, "census: request"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "census: read body"), resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &AuthError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return nil, resilience.NewTransientError(
			eris.Errorf("census: status %d from %s", resp.StatusCode, redactKey(rawURL)),
			resp.StatusCode,
		)
	}
	return nil, eris.Errorf("census: status %d from %s: %s",
		resp.StatusCode, redactKey(rawURL), truncate(strings.TrimSpace(string(body)), 512))
}

// redactKey strips the key parameter value from a URL before it lands
// in an error message or log line.
func redactKey(rawURL string) string {
	i := strings.Index(rawURL, "key=")
	if i < 0 {
		return rawURL
	}
	rest := strings.IndexByte(rawURL[i:], '&')
	if rest < 0 {
		return rawURL[:i] + "key=redacted"
	}
	return rawURL[:i] + "key=redacted" + rawURL[i+rest:]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
