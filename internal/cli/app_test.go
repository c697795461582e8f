package cli

import (
	"net/http"
	"testing"

	"github.com/ppiankov/stancedb/internal/model"
)

func TestSourcesTransport_UsesSourcesProxy(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.LLM.HTTPProxy = "http://llm-proxy:8080"
	cfg.Sources.HTTPProxy = "http://sources-proxy:3128"

	transport := sourcesTransport(cfg.Sources)

	req, err := http.NewRequest(http.MethodHead, "http://news.example.com/story", nil)
	if err != nil {
		t.Fatal(err)
	}
	proxy, err := transport.Proxy(req)
	if err != nil {
		t.Fatalf("proxy: %v", err)
	}
	if proxy == nil || proxy.Host != "sources-proxy:3128" {
		t.Errorf("proxy = %v, want sources-proxy:3128", proxy)
	}
}

func TestSourcesTransport_NoProxy(t *testing.T) {
	transport := sourcesTransport(model.SourcesConfig{
		HTTPProxy: "http://sources-proxy:3128",
		NoProxy:   "internal.example",
	})

	req, err := http.NewRequest(http.MethodHead, "http://internal.example/page", nil)
	if err != nil {
		t.Fatal(err)
	}
	proxy, err := transport.Proxy(req)
	if err != nil {
		t.Fatalf("proxy: %v", err)
	}
	if proxy != nil {
		t.Errorf("proxy = %v, want direct connection", proxy)
	}
}
