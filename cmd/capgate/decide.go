// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/capgate/internal/gate"
	"github.com/holomush/capgate/internal/observability"
)

// decideRequest is one input line of the decide stream.
type decideRequest struct {
	Actor      string `json:"actor"`
	Capability string `json:"capability"`
	Group      string `json:"group"`
	Default    bool   `json:"default,omitempty"`
}

// decideResponse is one output line of the decide stream.
type decideResponse struct {
	Actor      string `json:"actor"`
	Capability string `json:"capability"`
	Group      string `json:"group"`
	Allowed    bool   `json:"allowed"`
	Reason     string `json:"reason,omitempty"`
	Strategy   string `json:"strategy,omitempty"`
	Error      string `json:"error,omitempty"`
}

func newDecideCmd(opts *rootOptions) *cobra.Command {
	var (
		src         sourceOptions
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:   "decide",
		Short: "Answer a stream of permission requests",
		Long: `Read JSON decision requests from stdin, one per line, and write one
JSON decision per line to stdout. Intended to run as a co-process of the
host application.

Input:  {"actor":"carol","capability":"groups_post_in_forum","group":"chess"}
Output: {"actor":"carol","capability":"groups_post_in_forum","group":"chess","allowed":true,...}

With --metrics-addr, Prometheus metrics and health probes are served while
the stream is open.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			var ready atomic.Bool
			var server *observability.Server
			if metricsAddr != "" {
				server = observability.NewServer(metricsAddr, ready.Load)
				if _, err := server.Start(); err != nil {
					return err
				}
				defer func() {
					stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					if err := server.Stop(stopCtx); err != nil {
						slog.Warn("stopping observability server", "error", err)
					}
				}()
			}

			env, err := newEnvironment(ctx, opts.cfg, src)
			if err != nil {
				return err
			}
			defer env.Close()
			ready.Store(true)

			var metrics *observability.Metrics
			if server != nil {
				metrics = server.Metrics()
			}
			return decideStream(ctx, env.gate, cmd.InOrStdin(), cmd.OutOrStdout(), metrics)
		},
	}
	addSourceFlags(cmd, &src)
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve metrics and health probes on this address")
	return cmd
}

// maxRequestLine bounds a single request line, newline excluded.
const maxRequestLine = 1 << 20

// decideStream answers each request line on in with a response line on out.
// Malformed and overlong lines get an error response; the stream continues.
func decideStream(ctx context.Context, g *gate.Gate, in io.Reader, out io.Writer, metrics *observability.Metrics) error {
	reader := bufio.NewReader(in)
	enc := json.NewEncoder(out)

	for {
		line, overlong, readErr := readRequestLine(reader, maxRequestLine)
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return oops.In("cli").Wrapf(readErr, "read requests")
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if overlong || len(line) > 0 {
			var resp decideResponse
			var outcome string
			if overlong {
				resp = decideResponse{Error: "request line exceeds " + strconv.Itoa(maxRequestLine) + " bytes"}
				outcome = "invalid"
			} else {
				resp, outcome = answer(ctx, g, line)
			}
			if metrics != nil {
				metrics.RequestsTotal.WithLabelValues(outcome).Inc()
			}
			if err := enc.Encode(resp); err != nil {
				return oops.In("cli").Wrapf(err, "write decision")
			}
		}

		if readErr != nil {
			return nil
		}
	}
}

// readRequestLine reads one line without its terminator. A line longer than
// limit is consumed to its end and reported as overlong without being kept.
func readRequestLine(r *bufio.Reader, limit int) ([]byte, bool, error) {
	var line []byte
	overlong := false
	for {
		chunk, err := r.ReadSlice('\n')
		chunk = bytes.TrimRight(chunk, "\r\n")
		switch {
		case overlong:
		case len(line)+len(chunk) > limit:
			overlong, line = true, nil
		default:
			line = append(line, chunk...)
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return line, overlong, err
	}
}

// answer decides one request line and returns the response with its
// metrics outcome.
func answer(ctx context.Context, g *gate.Gate, line []byte) (decideResponse, string) {
	var req decideRequest
	if err := json.Unmarshal(line, &req); err != nil {
		return decideResponse{Error: "invalid request: " + err.Error()}, "invalid"
	}
	if req.Capability == "" {
		return decideResponse{Actor: req.Actor, Group: req.Group, Error: "capability is required"}, "invalid"
	}

	d := g.Decide(ctx, gate.Request{
		ActorID:    req.Actor,
		Capability: req.Capability,
		ResourceID: req.Group,
		Default:    req.Default,
	})
	outcome := "deny"
	if d.Allowed {
		outcome = "allow"
	}
	return decideResponse{
		Actor:      req.Actor,
		Capability: req.Capability,
		Group:      req.Group,
		Allowed:    d.Allowed,
		Reason:     d.Reason,
		Strategy:   d.Strategy,
	}, outcome
}
