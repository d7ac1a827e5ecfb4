package mcp

import (
	"sort"
	"strings"
	"testing"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

func TestToolsList(t *testing.T) {
	ctx, session, _ := openSession(t)

	tools, err := session.ListTools(ctx, &sdkmcp.ListToolsParams{})
	if err != nil {
		t.Fatalf("list tools failed: %v", err)
	}
	names := make([]string, 0, len(tools.Tools))
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)
	want := []string{"alert_test", "backtest_run", "haco_get", "haco_scan"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected tools: %v", names)
	}
}

func TestHACOGetTool(t *testing.T) {
	ctx, session, deps := openSession(t)

	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      "haco_get",
		Arguments: map[string]any{"symbol": "aapl", "points": 5},
	})
	if err != nil {
		t.Fatalf("call tool failed: %v", err)
	}
	var out hacoGetOutput
	decodeStructured(t, res, &out)

	if out.Symbol != "AAPL" || out.Timeframe != "1d" {
		t.Fatalf("unexpected identity: %s %s", out.Symbol, out.Timeframe)
	}
	if len(out.Points) != 5 {
		t.Fatalf("expected 5 points, got %d", len(out.Points))
	}
	if out.State != "UP" && out.State != "DOWN" {
		t.Fatalf("expected a resolved state, got %q", out.State)
	}
	if out.Reason == "" {
		t.Fatal("expected a reason")
	}
	if out.Points[4].State != out.State {
		t.Fatalf("last point state %s does not match %s", out.Points[4].State, out.State)
	}
	if len(deps.store.calls) != 1 || deps.store.calls[0] != "AAPL:1d" {
		t.Fatalf("unexpected store calls: %v", deps.store.calls)
	}
}

func TestHACOGetToolErrors(t *testing.T) {
	ctx, session, _ := openSession(t)

	for name, args := range map[string]map[string]any{
		"insufficient": {"symbol": "TINY"},
		"timeframe":    {"symbol": "AAPL", "timeframe": "5m"},
		"length":       {"symbol": "AAPL", "lengthUp": -3},
	} {
		res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{Name: "haco_get", Arguments: args})
		if err != nil {
			t.Fatalf("%s: unexpected protocol error: %v", name, err)
		}
		if !res.IsError {
			t.Fatalf("%s: expected tool-level error", name)
		}
	}
}

func TestHACOScanToolKeepsFailedRows(t *testing.T) {
	ctx, session, _ := openSession(t)

	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      "haco_scan",
		Arguments: map[string]any{"symbols": []string{"aapl", "tiny", "msft"}},
	})
	if err != nil {
		t.Fatalf("call tool failed: %v", err)
	}
	var out hacoScanOutput
	decodeStructured(t, res, &out)

	if len(out.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(out.Rows))
	}
	if out.Rows[0].Symbol != "AAPL" || out.Rows[0].Error != "" || out.Rows[0].State == "" {
		t.Fatalf("unexpected AAPL row: %+v", out.Rows[0])
	}
	for _, row := range out.Rows[1:] {
		if row.Error == "" || row.State != "" {
			t.Fatalf("expected failed row, got %+v", row)
		}
	}
}

func TestBacktestRunTool(t *testing.T) {
	ctx, session, deps := openSession(t)

	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      "backtest_run",
		Arguments: map[string]any{"symbol": "AAPL", "strategy": "buy_hold"},
	})
	if err != nil {
		t.Fatalf("call tool failed: %v", err)
	}
	var out backtestRunOutput
	decodeStructured(t, res, &out)

	if out.Strategy != "buy_hold" || out.ID == "" {
		t.Fatalf("unexpected run: %+v", out)
	}
	if len(out.Trades) != 1 || out.Trades[0].ExitReason != "end_of_series" {
		t.Fatalf("expected one end-of-series trade, got %+v", out.Trades)
	}
	if out.FinalEquity <= 0 {
		t.Fatalf("expected final equity, got %f", out.FinalEquity)
	}
	if len(deps.runs.saved) != 1 {
		t.Fatalf("expected run to be saved, got %d", len(deps.runs.saved))
	}

	res, err = session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      "backtest_run",
		Arguments: map[string]any{"symbol": "AAPL", "strategy": "martingale"},
	})
	if err != nil {
		t.Fatalf("unexpected protocol error: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected unknown strategy to fail")
	}
}

func TestAlertTestTool(t *testing.T) {
	ctx, session, _ := openSession(t)

	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      "alert_test",
		Arguments: map[string]any{"symbol": "aapl", "tf": "1d", "min_total_score": 0},
	})
	if err != nil {
		t.Fatalf("call tool failed: %v", err)
	}
	var out alertTestOutput
	decodeStructured(t, res, &out)

	if out.Symbol != "AAPL" || !out.Triggered {
		t.Fatalf("expected a triggered alert, got %+v", out)
	}
	if !strings.HasPrefix(out.Message, "AAPL ") {
		t.Fatalf("unexpected message: %q", out.Message)
	}
}
