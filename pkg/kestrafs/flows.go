package kestrafs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"gopkg.in/yaml.v3"

	"github.com/kestra-io/kestrafs/internal/logging"
	"github.com/kestra-io/kestrafs/internal/metrics"
	"github.com/kestra-io/kestrafs/pkg/client"
	"github.com/kestra-io/kestrafs/pkg/protocol"
	"github.com/kestra-io/kestrafs/pkg/vpath"
)

const yamlContentType = "application/x-yaml"

type flowTemplate struct {
	ID        string         `yaml:"id"`
	Namespace string         `yaml:"namespace"`
	Tasks     []taskTemplate `yaml:"tasks"`
}

type taskTemplate struct {
	ID      string `yaml:"id"`
	Type    string `yaml:"type"`
	Message string `yaml:"message"`
}

// DefaultFlow renders the source used when a flow is created through the filesystem.
func DefaultFlow(namespace, id string) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	err := enc.Encode(flowTemplate{
		ID:        id,
		Namespace: namespace,
		Tasks: []taskTemplate{{
			ID:      "hello",
			Type:    "io.kestra.plugin.core.log.Log",
			Message: "Hello World! 🚀",
		}},
	})
	if err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (fs *FS) flowSuffix(id string) string {
	return "/" + url.PathEscape(fs.namespace) + "/" + url.PathEscape(id)
}

func (fs *FS) listFlows(ctx context.Context) ([]protocol.Flow, error) {
	resp, err := fs.client.FlowsAPI(ctx, "/"+url.PathEscape(fs.namespace), client.Request{})
	if err != nil {
		return nil, err
	}
	var flows []protocol.Flow
	if err := resp.JSON(&flows); err != nil {
		return nil, fmt.Errorf("decode flows: %w", err)
	}
	return flows, nil
}

func (fs *FS) flowSource(ctx context.Context, id string) (string, error) {
	resp, err := fs.client.FlowsAPI(ctx, fs.flowSuffix(id)+"?source=true", client.Request{})
	if err != nil {
		return "", err
	}
	var flow protocol.Flow
	if err := resp.JSON(&flow); err != nil {
		return "", fmt.Errorf("decode flow %s: %w", id, err)
	}
	return flow.Source, nil
}

func (fs *FS) writeFlow(ctx context.Context, loc vpath.Location, content []byte) error {
	_, err := fs.flowSource(ctx, loc.FlowID)
	switch {
	case errors.Is(err, ErrNotFound):
		return fs.createFlow(ctx, loc)
	case err != nil:
		return fmt.Errorf("write %s: %w", loc.Path, err)
	}

	_, err = fs.client.FlowsAPI(ctx, fs.flowSuffix(loc.FlowID), client.Request{
		Method:       http.MethodPut,
		Header:       http.Header{"Content-Type": {yamlContentType}},
		Body:         content,
		ErrorContext: "Error while saving flow:",
	})
	if err != nil {
		return fmt.Errorf("update flow %s: %w", loc.FlowID, client.Validation(err))
	}

	metrics.RecordBytesWritten(len(content))
	logging.Info("flow updated", logging.String("namespace", fs.namespace), logging.String("flow", loc.FlowID))
	return nil
}

func (fs *FS) createFlow(ctx context.Context, loc vpath.Location) error {
	source, err := DefaultFlow(fs.namespace, loc.FlowID)
	if err != nil {
		return fmt.Errorf("render flow %s: %w", loc.FlowID, err)
	}

	_, err = fs.client.FlowsAPI(ctx, "", client.Request{
		Method:       http.MethodPost,
		Header:       http.Header{"Content-Type": {yamlContentType}},
		Body:         source,
		ErrorContext: "Error while creating flow:",
	})
	if err != nil {
		return fmt.Errorf("create flow %s: %w", loc.FlowID, client.Validation(err))
	}

	logging.Info("flow created", logging.String("namespace", fs.namespace), logging.String("flow", loc.FlowID))
	return nil
}

func (fs *FS) deleteFlow(ctx context.Context, id string) error {
	_, err := fs.client.FlowsAPI(ctx, fs.flowSuffix(id), client.Request{Method: http.MethodDelete})
	return err
}
