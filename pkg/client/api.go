package client

import (
	"context"
	"net/http"
	"net/url"
	"slices"
)

// FilesAPI calls /namespaces/{namespace}/files{suffix}. A 404 is returned as
// *NotFoundError.
func (c *Client) FilesAPI(ctx context.Context, namespace, suffix string, req Request) (*Response, error) {
	api := c.APIURL()
	if api == "" {
		c.notifier.Error(ErrNoServerURL.Error())
		return nil, ErrNoServerURL
	}
	req.URL = api + "/namespaces/" + url.PathEscape(namespace) + "/files" + suffix
	if req.ErrorContext == "" {
		req.ErrorContext = "Error while fetching Kestra's file API:"
	}
	return c.callNotFound(ctx, &req, suffix)
}

// FlowsAPI calls /flows{suffix}. A 404 is returned as *NotFoundError.
func (c *Client) FlowsAPI(ctx context.Context, suffix string, req Request) (*Response, error) {
	api := c.APIURL()
	if api == "" {
		c.notifier.Error(ErrNoServerURL.Error())
		return nil, ErrNoServerURL
	}
	req.URL = api + "/flows" + suffix
	if req.ErrorContext == "" {
		req.ErrorContext = "Error while fetching Kestra's flow API:"
	}
	return c.callNotFound(ctx, &req, suffix)
}

func (c *Client) callNotFound(ctx context.Context, req *Request, target string) (*Response, error) {
	if !slices.Contains(req.IgnoreCodes, http.StatusNotFound) {
		req.IgnoreCodes = append(slices.Clone(req.IgnoreCodes), http.StatusNotFound)
	}
	resp, err := c.Call(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, &NotFoundError{Target: target}
	}
	return resp, nil
}

// PluginURL returns the documentation endpoint for a task type. The public
// API serves definitions under a different prefix than a Kestra server.
func (c *Client) PluginURL(taskType string) string {
	api := c.APIURL()
	if api == PublicAPIURL {
		return api + "/plugins/definitions/" + url.PathEscape(taskType)
	}
	return api + "/plugins/" + url.PathEscape(taskType)
}

// SchemaURL returns the flow JSON schema endpoint.
func (c *Client) SchemaURL() string {
	return c.APIURL() + "/plugins/schemas/flow"
}

// Probe issues a single unauthenticated GET. It never prompts or notifies.
func (c *Client) Probe(ctx context.Context, rawURL string) (*Response, error) {
	return c.do(ctx, &Request{URL: rawURL}, credentials{})
}
