package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
)

// fakeTransport scripts responses per JSON-RPC method.
type fakeTransport struct {
	connected bool
	responses map[string]any
	calls     []string
}

func (f *fakeTransport) Connect(context.Context) error { f.connected = true; return nil }
func (f *fakeTransport) Close() error                  { f.connected = false; return nil }
func (f *fakeTransport) Connected() bool               { return f.connected }
func (f *fakeTransport) Notify(_ context.Context, method string, _ any) error {
	f.calls = append(f.calls, "notify:"+method)
	return nil
}
func (f *fakeTransport) Call(_ context.Context, method string, _ any) (json.RawMessage, error) {
	f.calls = append(f.calls, method)
	resp, ok := f.responses[method]
	if !ok {
		return nil, fmt.Errorf("MCP error %d: method not found", -32601)
	}
	data, err := json.Marshal(resp)
	return data, err
}

func newFakeClient(responses map[string]any) (*Client, *fakeTransport) {
	transport := &fakeTransport{responses: responses}
	client := NewClient(&ServerConfig{ID: "test"}, nil)
	client.transport = transport
	return client, transport
}

func TestClientConnectHandshake(t *testing.T) {
	client, transport := newFakeClient(map[string]any{
		"initialize": InitializeResult{
			ProtocolVersion: "2024-11-05",
			ServerInfo:      ServerInfo{Name: "weather", Version: "2.1.0"},
		},
		"tools/list": ListToolsResult{Tools: []*Tool{
			{Name: "getWeather", Description: "Current conditions"},
			{Name: "getForecast"},
		}},
	})

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if client.ServerInfo().Name != "weather" {
		t.Errorf("server info = %+v", client.ServerInfo())
	}
	if len(client.Tools()) != 2 {
		t.Errorf("tools = %d", len(client.Tools()))
	}

	want := []string{"initialize", "notify:notifications/initialized", "tools/list"}
	if len(transport.calls) != len(want) {
		t.Fatalf("calls = %v", transport.calls)
	}
	for i, method := range want {
		if transport.calls[i] != method {
			t.Errorf("call %d = %s, want %s", i, transport.calls[i], method)
		}
	}
}

func TestClientCallTool(t *testing.T) {
	client, _ := newFakeClient(map[string]any{
		"tools/call": ToolCallResult{
			Content: []ToolResultContent{{Type: "text", Text: `{"tempC": 21}`}},
		},
	})
	client.transport.Connect(context.Background())

	result, err := client.CallTool(context.Background(), "getWeather", map[string]any{"city": "Lisbon"})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if result.IsError {
		t.Error("result should not be an error")
	}
	if len(result.Content) != 1 || result.Content[0].Text != `{"tempC": 21}` {
		t.Errorf("content = %+v", result.Content)
	}
}

func TestClientCallToolServerError(t *testing.T) {
	client, _ := newFakeClient(map[string]any{})
	client.transport.Connect(context.Background())

	if _, err := client.CallTool(context.Background(), "missing", nil); err == nil {
		t.Error("unknown method should error")
	}
}

func TestServerConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  ServerConfig
		wantErr bool
	}{
		{"valid stdio", ServerConfig{ID: "a", Transport: TransportStdio, Command: "weather-mcp"}, false},
		{"valid http", ServerConfig{ID: "a", Transport: TransportHTTP, URL: "https://mcp.example.com"}, false},
		{"missing id", ServerConfig{Transport: TransportStdio, Command: "x"}, true},
		{"stdio without command", ServerConfig{ID: "a", Transport: TransportStdio}, true},
		{"http without url", ServerConfig{ID: "a", Transport: TransportHTTP}, true},
		{"http bad scheme", ServerConfig{ID: "a", Transport: TransportHTTP, URL: "ftp://x"}, true},
		{"command traversal", ServerConfig{ID: "a", Transport: TransportStdio, Command: "../../bin/sh"}, true},
		{"arg injection", ServerConfig{ID: "a", Transport: TransportStdio, Command: "srv", Args: []string{"x; rm -rf /"}}, true},
		{"plain args ok", ServerConfig{ID: "a", Transport: TransportStdio, Command: "srv", Args: []string{"--port", "8080"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
