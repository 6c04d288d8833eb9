// Package rpcstore is a remote.Store that talks JSON-RPC to a transport
// server.
package rpcstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rpggio/hq/internal/remote"
	"github.com/rpggio/hq/internal/transport"
)

// DefaultTimeout bounds a single request.
const DefaultTimeout = 30 * time.Second

// ErrNoURL is returned when the client has no endpoint configured.
var ErrNoURL = errors.New("rpcstore: no url configured")

// Client implements remote.Store over HTTP.
type Client struct {
	url        string
	token      string
	httpClient *http.Client
	nextID     atomic.Int64
}

// New creates a client for the /rpc endpoint at url.
func New(url, token string) *Client {
	return &Client{
		url:        url,
		token:      token,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// SetHTTPClient replaces the underlying HTTP client.
func (c *Client) SetHTTPClient(client *http.Client) *Client {
	c.httpClient = client
	return c
}

type response struct {
	Result json.RawMessage  `json:"result"`
	Error  *transport.Error `json:"error"`
}

func (c *Client) Select(ctx context.Context, collection string, q remote.Query) ([]remote.Row, error) {
	var rows []remote.Row
	if err := c.send(ctx, transport.MethodSelect, transport.Params{Collection: collection, Query: q}, &rows); err != nil {
		return nil, err
	}
	tbl, err := remote.Lookup(collection)
	if err != nil {
		return nil, err
	}
	out := make([]remote.Row, 0, len(rows))
	for _, row := range rows {
		restored, err := restore(tbl, row, q.Expand)
		if err != nil {
			return nil, err
		}
		out = append(out, restored)
	}
	return out, nil
}

func (c *Client) Insert(ctx context.Context, collection string, row remote.Row) (remote.Row, error) {
	return c.writeRow(ctx, transport.MethodInsert, transport.Params{Collection: collection, Row: row})
}

func (c *Client) Update(ctx context.Context, collection, id string, fields remote.Row) error {
	return c.send(ctx, transport.MethodUpdate, transport.Params{Collection: collection, ID: id, Row: fields}, nil)
}

func (c *Client) Delete(ctx context.Context, collection, id string) error {
	return c.send(ctx, transport.MethodDelete, transport.Params{Collection: collection, ID: id}, nil)
}

func (c *Client) Upsert(ctx context.Context, collection string, row remote.Row, onConflict []string) (remote.Row, error) {
	return c.writeRow(ctx, transport.MethodUpsert, transport.Params{Collection: collection, Row: row, OnConflict: onConflict})
}

func (c *Client) writeRow(ctx context.Context, method string, p transport.Params) (remote.Row, error) {
	var row remote.Row
	if err := c.send(ctx, method, p, &row); err != nil {
		return nil, err
	}
	tbl, err := remote.Lookup(p.Collection)
	if err != nil {
		return nil, err
	}
	return tbl.Restore(row)
}

func (c *Client) send(ctx context.Context, method string, params transport.Params, out any) error {
	if c.url == "" {
		return ErrNoURL
	}

	rawParams, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encoding params: %w", err)
	}
	body, err := json.Marshal(transport.Request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  rawParams,
		ID:      c.nextID.Add(1),
	})
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	data, err := c.makeRequest(req)
	if err != nil {
		return err
	}

	var res response
	if err := json.Unmarshal(data, &res); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if res.Error != nil {
		return toError(res.Error)
	}
	if out == nil || len(res.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(res.Result, out); err != nil {
		return fmt.Errorf("decoding result: %w", err)
	}
	return nil
}

func (c *Client) makeRequest(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("%w: %s", transport.ErrUnauthorized, strings.TrimSpace(string(data)))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return data, nil
}

// toError restores the remote sentinel carried in the error data.
func toError(e *transport.Error) error {
	kind, _ := e.Data.(string)
	if sentinel := transport.SentinelForKind(kind); sentinel != nil {
		return fmt.Errorf("%w: %s", sentinel, e.Message)
	}
	return e
}

// restore converts JSON-decoded values back to row form, including
// expanded children.
func restore(tbl remote.Table, row remote.Row, expand []remote.Expand) (remote.Row, error) {
	out, err := tbl.Restore(row)
	if err != nil {
		return nil, err
	}
	for _, exp := range expand {
		child, err := remote.Lookup(exp.Collection)
		if err != nil {
			return nil, err
		}
		raw, _ := row[exp.As].([]any)
		kids := make([]remote.Row, 0, len(raw))
		for _, item := range raw {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("decoding %s: unexpected %T", exp.As, item)
			}
			kid, err := child.Restore(remote.Row(m))
			if err != nil {
				return nil, err
			}
			kids = append(kids, kid)
		}
		out[exp.As] = kids
	}
	return out, nil
}
