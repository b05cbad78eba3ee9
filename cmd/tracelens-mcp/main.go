// tracelens-mcp exposes the trace analysis operations as MCP tools over
// stdio so a tool-calling agent can drive an analysis session. It is a thin
// shim: every tool calls the same internal packages the HTTP service uses.
package main

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"gocloud.dev/blob/fileblob"

	"github.com/tracelens/tracelens/internal/aggregate"
	"github.com/tracelens/tracelens/internal/calltree"
	"github.com/tracelens/tracelens/internal/frameutil"
	"github.com/tracelens/tracelens/internal/mathutil"
	"github.com/tracelens/tracelens/internal/query"
	"github.com/tracelens/tracelens/internal/session"
	"github.com/tracelens/tracelens/internal/snapshot"
	"github.com/tracelens/tracelens/internal/storageutil"
	"github.com/tracelens/tracelens/internal/timeline"
	"github.com/tracelens/tracelens/internal/tracesource"
)

type sessionCache struct {
	mu       sync.Mutex
	sessions map[string]*session.Session
}

func (c *sessionCache) get(path string) (*session.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[path]
	return s, ok
}

func (c *sessionCache) put(path string, s *session.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[path] = s
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

func loadArtifact(ctx context.Context, path string) (*tracesource.MemorySource, error) {
	bucket, err := fileblob.OpenBucket(filepath.Dir(path), nil)
	if err != nil {
		return nil, err
	}
	defer bucket.Close()

	var artifact tracesource.Artifact
	if err := storageutil.UnmarshalCompressed(ctx, bucket, filepath.Base(path), &artifact); err != nil {
		return nil, err
	}
	return artifact.Source(), nil
}

func main() {
	cache := &sessionCache{sessions: make(map[string]*session.Session)}

	s := server.NewMCPServer(
		"tracelens",
		"1.0.0",
		server.WithLogging(),
	)

	requireSession := func(request mcp.CallToolRequest) (*session.Session, *mcp.CallToolResult) {
		path, err := request.RequireString("trace_path")
		if err != nil {
			return nil, mcp.NewToolResultError(err.Error())
		}
		sess, ok := cache.get(path)
		if !ok {
			return nil, mcp.NewToolResultError("Trace not loaded. Use load_trace first")
		}
		return sess, nil
	}

	loadTraceTool := mcp.NewTool("load_trace",
		mcp.WithDescription("Load a pre-symbolized trace analysis artifact (LZ4-compressed JSON) for analysis"),
		mcp.WithString("trace_path",
			mcp.Required(),
			mcp.Description("Absolute path to the artifact file"),
		),
	)
	s.AddTool(loadTraceTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := request.RequireString("trace_path")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		src, err := loadArtifact(ctx, path)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to load trace: %v", err)), nil
		}
		sess := session.New(src)
		cache.put(path, sess)
		return mcp.NewToolResultText(fmt.Sprintf(
			"Trace loaded.\nPath: %s\nDuration: %.2f ms\n\nUse the other tools to analyze it.",
			path, src.DurationMs(),
		)), nil
	})

	flatTopTool := mcp.NewTool("get_flat_top",
		mcp.WithDescription("Top CPU consumers: exclusive/inclusive metric per method, module or namespace. The usual starting point for finding hotspots."),
		mcp.WithString("trace_path", mcp.Required(), mcp.Description("Path to the loaded artifact")),
		mcp.WithNumber("top", mcp.Description("Number of entries to return (default 10)")),
		mcp.WithString("group_by", mcp.Description("Grouping: method, module or namespace (default method)")),
		mcp.WithBoolean("sort_by_inclusive", mcp.Description("Sort by inclusive instead of exclusive metric")),
	)
	s.AddTool(flatTopTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sess, errResult := requireSession(request)
		if errResult != nil {
			return errResult, nil
		}
		result, err := aggregate.FlatTop(sess.Source, aggregate.Options{
			Top:             int(request.GetFloat("top", 10)),
			GroupBy:         frameutil.GroupMode(request.GetString("group_by", "method")),
			SortByInclusive: request.GetBool("sort_by_inclusive", false),
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(result)
	})

	callTreeTool := mcp.NewTool("get_call_tree",
		mcp.WithDescription("Weighted call tree down to a bounded depth, children sorted by inclusive metric"),
		mcp.WithString("trace_path", mcp.Required(), mcp.Description("Path to the loaded artifact")),
		mcp.WithNumber("depth", mcp.Description("Levels of children to include (default 3, max 16)")),
	)
	s.AddTool(callTreeTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sess, errResult := requireSession(request)
		if errResult != nil {
			return errResult, nil
		}
		t, err := sess.CallTree()
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		depth := mathutil.Clamp(int(request.GetFloat("depth", 3)), 1, 16)
		return jsonResult(calltree.Serialize(t.Root, t.TotalMetric(), depth))
	})

	hotPathTool := mcp.NewTool("get_hot_path",
		mcp.WithDescription("The dominant call chain: descends into the heaviest child while it carries at least 80% of its parent"),
		mcp.WithString("trace_path", mcp.Required(), mcp.Description("Path to the loaded artifact")),
		mcp.WithString("path", mcp.Description("Dotted child-index path to start from (default: tree root)")),
	)
	s.AddTool(hotPathTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sess, errResult := requireSession(request)
		if errResult != nil {
			return errResult, nil
		}
		t, err := sess.CallTree()
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		start := calltree.NodeAtPath(t.Root, parseTreePath(request.GetString("path", "")))
		if start == nil {
			return jsonResult([]calltree.HotPathStep{})
		}
		return jsonResult(calltree.HotPath(start, t.TotalMetric()))
	})

	callerCalleeTool := mcp.NewTool("get_caller_callee",
		mcp.WithDescription("Callers and callees of a method. Exact name match first, then best substring match."),
		mcp.WithString("trace_path", mcp.Required(), mcp.Description("Path to the loaded artifact")),
		mcp.WithString("method", mcp.Required(), mcp.Description("Method name or substring")),
	)
	s.AddTool(callerCalleeTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sess, errResult := requireSession(request)
		if errResult != nil {
			return errResult, nil
		}
		method, err := request.RequireString("method")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		t, err := sess.CallTree()
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(calltree.CallerCallee(t, method))
	})

	timelineTool := mcp.NewTool("get_timeline",
		mcp.WithDescription("Multi-lane time-correlated view: gc, cpu, exceptions, alloc, jit and raw event counts bucketed on one shared grid"),
		mcp.WithString("trace_path", mcp.Required(), mcp.Description("Path to the loaded artifact")),
		mcp.WithNumber("from", mcp.Description("Window start in ms (default 0)")),
		mcp.WithNumber("to", mcp.Description("Window end in ms (default trace end)")),
		mcp.WithNumber("buckets", mcp.Description("Bucket count, clamped to [5,200] (default 60)")),
		mcp.WithString("lanes", mcp.Description("Comma-separated lane names (default all)")),
	)
	s.AddTool(timelineTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sess, errResult := requireSession(request)
		if errResult != nil {
			return errResult, nil
		}
		lanes := []string{
			timeline.LaneGC, timeline.LaneCPU, timeline.LaneExceptions,
			timeline.LaneAlloc, timeline.LaneJIT, timeline.LaneEvents,
		}
		if raw := request.GetString("lanes", ""); raw != "" {
			lanes = strings.Split(raw, ",")
		}
		tl, err := timeline.Correlate(
			sess.Source,
			request.GetFloat("from", 0),
			request.GetFloat("to", sess.Source.DurationMs()),
			int(request.GetFloat("buckets", 60)),
			lanes,
		)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(tl)
	})

	snapshotTool := mcp.NewTool("get_snapshot",
		mcp.WithDescription("Point-in-time view around a timestamp: GC activity, top CPU methods, exceptions and event-type counts in a symmetric window"),
		mcp.WithString("trace_path", mcp.Required(), mcp.Description("Path to the loaded artifact")),
		mcp.WithNumber("at", mcp.Required(), mcp.Description("Timestamp in ms")),
		mcp.WithNumber("window", mcp.Description("Half-window in ms (default 500)")),
	)
	s.AddTool(snapshotTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sess, errResult := requireSession(request)
		if errResult != nil {
			return errResult, nil
		}
		at, err := request.RequireFloat("at")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		snap, err := snapshot.At(sess.Source, at, request.GetFloat("window", 500))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(snap)
	})

	queryTool := mcp.NewTool("execute_query",
		mcp.WithDescription("Ad hoc exploration: timeseries, correlate or aggregate over the gc/alloc/events/exceptions sources"),
		mcp.WithString("trace_path", mcp.Required(), mcp.Description("Path to the loaded artifact")),
		mcp.WithString("query_type", mcp.Required(), mcp.Description("timeseries, correlate or aggregate")),
		mcp.WithString("params", mcp.Required(), mcp.Description("Query parameters as a JSON object")),
	)
	s.AddTool(queryTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sess, errResult := requireSession(request)
		if errResult != nil {
			return errResult, nil
		}
		queryType, err := request.RequireString("query_type")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		params, err := request.RequireString("params")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		result, err := query.Execute(sess.Source, queryType, json.RawMessage(params))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(result)
	})

	if err := server.ServeStdio(s); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// parseTreePath parses a dotted child-index path like "0.2.1".
func parseTreePath(raw string) []int {
	if raw == "" {
		return nil
	}
	var path []int
	for _, p := range strings.Split(raw, ".") {
		var idx int
		if _, err := fmt.Sscanf(p, "%d", &idx); err != nil {
			return nil
		}
		path = append(path, idx)
	}
	return path
}
