package security

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestValidateURL_AllowsPublicHTTPS(t *testing.T) {
	g := NewURLGuard()

	valid := []string{
		"https://picsum.photos/seed/p1/800/600",
		"http://example.com/image.png",
		"https://cdn.example.com:443/a.jpg",
		"https://93.184.216.34/image.png", // 公開IP
	}
	for _, u := range valid {
		if err := g.ValidateURL(u); err != nil {
			t.Errorf("ValidateURL(%q) = %v, want nil", u, err)
		}
	}
}

func TestValidateURL_RejectsUnsafeURLs(t *testing.T) {
	g := NewURLGuard()

	tests := []struct {
		name string
		url  string
	}{
		{"空URL", ""},
		{"スキームなし", "picsum.photos/image.png"},
		{"ftpスキーム", "ftp://example.com/file"},
		{"fileスキーム", "file:///etc/passwd"},
		{"javascriptスキーム", "javascript:alert(1)"},
		{"localhost", "http://localhost/admin"},
		{"localhost大文字", "http://LOCALHOST/admin"},
		{"ループバックIP", "http://127.0.0.1/admin"},
		{"プライベートIP 10系", "http://10.0.0.5/internal"},
		{"プライベートIP 172系", "http://172.16.0.1/internal"},
		{"プライベートIP 192系", "http://192.168.1.1/router"},
		{"クラウドメタデータIP", "http://169.254.169.254/latest/meta-data/"},
		{"IPv6ループバック", "http://[::1]/admin"},
		{"IPv6リンクローカル", "http://[fe80::1]/admin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := g.ValidateURL(tt.url); err == nil {
				t.Errorf("ValidateURL(%q) = nil, want error", tt.url)
			}
		})
	}
}

func TestNewSafeClient_BlocksLoopbackRequests(t *testing.T) {
	// ループバックで待ち受けるサーバーへのリクエストはDialer検証で遮断される
	srv := httptest.NewServer(nil)
	defer srv.Close()

	g := NewURLGuard()
	client := g.NewSafeClient(5*time.Second, 1<<20)
	if client == nil {
		t.Fatal("NewSafeClient returned nil")
	}

	resp, err := client.Get(srv.URL)
	if err == nil {
		resp.Body.Close()
		t.Fatal("request to loopback address should be blocked")
	}
}
