// Package speckle talks to a Speckle server: it resolves model URLs to object
// resource URLs over GraphQL and downloads object trees into the world tree.
package speckle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client issues authenticated requests against one Speckle server.
type Client struct {
	server string
	token  string
	http   *http.Client
}

// NewClient creates a client for the given server. The token may be empty for
// public streams.
func NewClient(server, token string) *Client {
	return &Client{
		server: server,
		token:  token,
		http:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Resolve expands a model URL into the list of object resource URLs backing
// it, one per model referenced by the URL, in URL order.
func (c *Client) Resolve(ctx context.Context, rawURL string) ([]string, error) {
	ref, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}

	if ref.ProjectID != "" {
		resources := make([]string, 0, len(ref.ModelIDs))
		for _, modelID := range ref.ModelIDs {
			objectID, err := c.latestModelObject(ctx, ref.Server, ref.ProjectID, modelID)
			if err != nil {
				return nil, fmt.Errorf("resolve model %s: %w", modelID, err)
			}
			if objectID == "" {
				continue
			}
			resources = append(resources, objectURL(ref.Server, ref.ProjectID, objectID))
		}
		return resources, nil
	}

	objectID, err := c.latestStreamObject(ctx, ref.Server, ref.StreamID)
	if err != nil {
		return nil, fmt.Errorf("resolve stream %s: %w", ref.StreamID, err)
	}
	if objectID == "" {
		return nil, nil
	}
	return []string{objectURL(ref.Server, ref.StreamID, objectID)}, nil
}

func objectURL(server, streamKey, objectID string) string {
	return fmt.Sprintf("%s/objects/%s/%s", server, streamKey, objectID)
}

const modelObjectQuery = `query($projectId: String!, $modelId: String!) {
  project(id: $projectId) {
    model(id: $modelId) {
      versions(limit: 1) { items { referencedObject } }
    }
  }
}`

const streamObjectQuery = `query($streamId: String!) {
  stream(id: $streamId) {
    commits(limit: 1) { items { referencedObject } }
  }
}`

// latestModelObject returns the referenced object id of a model's newest
// version, or "" when the model has no versions yet.
func (c *Client) latestModelObject(ctx context.Context, server, projectID, modelID string) (string, error) {
	var out struct {
		Project struct {
			Model struct {
				Versions struct {
					Items []struct {
						ReferencedObject string `json:"referencedObject"`
					} `json:"items"`
				} `json:"versions"`
			} `json:"model"`
		} `json:"project"`
	}
	vars := map[string]any{"projectId": projectID, "modelId": modelID}
	if err := c.graphql(ctx, server, modelObjectQuery, vars, &out); err != nil {
		return "", err
	}
	items := out.Project.Model.Versions.Items
	if len(items) == 0 {
		return "", nil
	}
	return items[0].ReferencedObject, nil
}

// latestStreamObject returns the referenced object id of a legacy stream's
// newest commit, or "" when the stream has no commits.
func (c *Client) latestStreamObject(ctx context.Context, server, streamID string) (string, error) {
	var out struct {
		Stream struct {
			Commits struct {
				Items []struct {
					ReferencedObject string `json:"referencedObject"`
				} `json:"items"`
			} `json:"commits"`
		} `json:"stream"`
	}
	vars := map[string]any{"streamId": streamID}
	if err := c.graphql(ctx, server, streamObjectQuery, vars, &out); err != nil {
		return "", err
	}
	items := out.Stream.Commits.Items
	if len(items) == 0 {
		return "", nil
	}
	return items[0].ReferencedObject, nil
}

// graphql posts a query to the server and decodes the data field into out.
func (c *Client) graphql(ctx context.Context, server, query string, vars map[string]any, out any) error {
	payload, err := json.Marshal(map[string]any{"query": query, "variables": vars})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, server+"/graphql", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("graphql: %s: %s", resp.Status, bytes.TrimSpace(body))
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("graphql: decode response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("graphql: %s", envelope.Errors[0].Message)
	}
	if envelope.Data == nil {
		return fmt.Errorf("graphql: empty response data")
	}
	return json.Unmarshal(envelope.Data, out)
}

// fetchObject downloads one object's raw JSON payload from a resource URL.
func (c *Client) fetchObject(ctx context.Context, resourceURL string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resourceURL+"/single", nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch object: %s", resp.Status)
	}

	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("fetch object: decode: %w", err)
	}
	return raw, nil
}
