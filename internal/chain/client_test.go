package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTransfer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/transfers" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("authorization = %q", got)
		}
		var req transferRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.WalletAddress != "0xabc" || req.Amount != 50 || req.TokenSymbol != "LRN" {
			t.Errorf("request = %+v", req)
		}
		_ = json.NewEncoder(w).Encode(transferResponse{TxHash: "0xfeed"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", time.Second)
	tx, err := c.Transfer(context.Background(), "0xabc", 50, "LRN")
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if tx != "0xfeed" {
		t.Fatalf("tx = %s", tx)
	}
}

func TestTransferServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(transferResponse{Error: "insufficient treasury balance"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	if _, err := c.Transfer(context.Background(), "0xabc", 50, "LRN"); err == nil {
		t.Fatal("expected error from service rejection")
	}
}

func TestTransferMissingTxHash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(transferResponse{})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	if _, err := c.Transfer(context.Background(), "0xabc", 50, "LRN"); err == nil {
		t.Fatal("expected error when no tx hash is returned")
	}
}

func TestTransferUnconfigured(t *testing.T) {
	c := NewClient("", "", time.Second)
	if _, err := c.Transfer(context.Background(), "0xabc", 50, "LRN"); err == nil {
		t.Fatal("expected error when base url is unset")
	}
}
