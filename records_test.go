package caselaw

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
)

func TestClient_InsertRecord(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				t.Errorf("method = %v, want POST", r.Method)
			}
			if r.URL.Path != "/rest/v1/decisions" {
				t.Errorf("path = %v, want /rest/v1/decisions", r.URL.Path)
			}
			if r.Header.Get("Prefer") != "return=representation" {
				t.Errorf("Prefer = %q", r.Header.Get("Prefer"))
			}
			if r.Header.Get("Content-Type") != "application/json" {
				t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
			}

			var payload NewRecord
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if payload.Text != "karar metni" || payload.Vector != "[0.5,0.5]" {
				t.Errorf("payload = %+v", payload)
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`[{"id": 42, "text": "karar metni", "vector": "[0.5,0.5]", "created_at": "2024-05-01T12:00:00+00:00"}]`))
		}))
		defer server.Close()

		c := NewClient(server.URL, "test-key")
		rec, err := c.InsertRecord(context.Background(), NewRecord{Text: "karar metni", Vector: "[0.5,0.5]"})
		if err != nil {
			t.Fatalf("InsertRecord failed: %v", err)
		}
		if rec.ID != 42 {
			t.Errorf("id = %d, want 42", rec.ID)
		}
		if rec.CreatedAt.Time().IsZero() {
			t.Error("created_at not parsed")
		}
	})

	t.Run("empty representation", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`[]`))
		}))
		defer server.Close()

		c := NewClient(server.URL, "test-key")
		if _, err := c.InsertRecord(context.Background(), NewRecord{Text: "x"}); err == nil {
			t.Fatal("expected error, got nil")
		}
	})

	t.Run("error response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Invalid API key"}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, "bad-key")
		_, err := c.InsertRecord(context.Background(), NewRecord{Text: "x"})
		apiErr, ok := err.(*Error)
		if !ok {
			t.Fatalf("expected *Error, got %T", err)
		}
		if apiErr.Op != "InsertRecord" {
			t.Errorf("op = %v, want InsertRecord", apiErr.Op)
		}
		if !IsUnauthorized(err) {
			t.Error("expected unauthorized error")
		}
	})
}

func TestClient_ListRecords(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if query.Get("select") != "id,vector" {
			t.Errorf("select = %v, want id,vector", query.Get("select"))
		}
		if query.Get("order") != "created_at.asc,id.asc" {
			t.Errorf("order = %v", query.Get("order"))
		}
		if query.Get("limit") != "10" {
			t.Errorf("limit = %v, want 10", query.Get("limit"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id": 1, "vector": "[1,0]"}, {"id": 2, "vector": [0,1]}]`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "test-key")
	records, err := c.ListRecords(context.Background(), &ListOptions{
		Columns:  []string{"id", "vector"},
		Ordering: "created_at.asc,id.asc",
		Limit:    10,
	})
	if err != nil {
		t.Fatalf("ListRecords failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	if records[1].Vector != "[0,1]" {
		t.Errorf("jsonb vector = %q, want [0,1]", records[1].Vector)
	}
}

func TestClient_ListAllRecords(t *testing.T) {
	const total = 7
	var requests int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		query := r.URL.Query()
		if query.Get("order") != "id.asc" {
			t.Errorf("order = %v, want id.asc", query.Get("order"))
		}
		limit, _ := strconv.Atoi(query.Get("limit"))
		offset, _ := strconv.Atoi(query.Get("offset"))

		var page []Record
		for id := offset + 1; id <= total && len(page) < limit; id++ {
			page = append(page, Record{ID: int64(id), Text: "metin", Vector: "[1]"})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(page)
	}))
	defer server.Close()

	c := NewClient(server.URL, "test-key", WithPageSize(3))
	records, err := c.ListAllRecords(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListAllRecords failed: %v", err)
	}
	if len(records) != total {
		t.Fatalf("len(records) = %d, want %d", len(records), total)
	}
	for i, rec := range records {
		if rec.ID != int64(i+1) {
			t.Errorf("records[%d].ID = %d, want %d", i, rec.ID, i+1)
		}
	}
	if requests != 3 {
		t.Errorf("requests = %d, want 3", requests)
	}
}

func TestClient_ListAllRecords_ServerRowCap(t *testing.T) {
	const total = 7
	const maxRows = 2
	var requests int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		query := r.URL.Query()
		limit, _ := strconv.Atoi(query.Get("limit"))
		offset, _ := strconv.Atoi(query.Get("offset"))
		if limit > maxRows {
			limit = maxRows
		}

		var page []Record
		for id := offset + 1; id <= total && len(page) < limit; id++ {
			page = append(page, Record{ID: int64(id)})
		}
		if r.Header.Get("Prefer") == "count=exact" {
			w.Header().Set("Content-Range", fmt.Sprintf("%d-%d/%d", offset, offset+len(page)-1, total))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(page)
	}))
	defer server.Close()

	c := NewClient(server.URL, "test-key", WithPageSize(5))
	records, err := c.ListAllRecords(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListAllRecords failed: %v", err)
	}
	if len(records) != total {
		t.Fatalf("len(records) = %d, want %d", len(records), total)
	}
	if records[total-1].ID != total {
		t.Errorf("last id = %d, want %d", records[total-1].ID, total)
	}
	if requests != 4 {
		t.Errorf("requests = %d, want 4", requests)
	}
}

func TestClient_GetRecord(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("id") != "eq.9" {
				t.Errorf("id filter = %v, want eq.9", r.URL.Query().Get("id"))
			}
			_, _ = w.Write([]byte(`[{"id": 9, "text": "dokuz"}]`))
		}))
		defer server.Close()

		c := NewClient(server.URL, "test-key")
		rec, err := c.GetRecord(context.Background(), 9)
		if err != nil {
			t.Fatalf("GetRecord failed: %v", err)
		}
		if rec.Text != "dokuz" {
			t.Errorf("text = %q, want dokuz", rec.Text)
		}
	})

	t.Run("not found", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[]`))
		}))
		defer server.Close()

		c := NewClient(server.URL, "test-key")
		_, err := c.GetRecord(context.Background(), 9)
		if !IsNotFound(err) {
			t.Errorf("expected not found, got %v", err)
		}
	})
}

func TestClient_DeleteRecords(t *testing.T) {
	t.Run("deletes by ids", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodDelete {
				t.Errorf("method = %v, want DELETE", r.Method)
			}
			if r.URL.Query().Get("id") != "in.(3,5,8)" {
				t.Errorf("id filter = %v, want in.(3,5,8)", r.URL.Query().Get("id"))
			}
			w.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()

		c := NewClient(server.URL, "test-key")
		if err := c.DeleteRecords(context.Background(), []int64{3, 5, 8}); err != nil {
			t.Fatalf("DeleteRecords failed: %v", err)
		}
	})

	t.Run("no ids is a no-op", func(t *testing.T) {
		c := NewClient("http://127.0.0.1:1", "test-key")
		if err := c.DeleteRecords(context.Background(), nil); err != nil {
			t.Fatalf("DeleteRecords(nil) failed: %v", err)
		}
	})
}

func TestClient_DeleteAllRecords(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id") != "not.is.null" {
			t.Errorf("id filter = %v, want not.is.null", r.URL.Query().Get("id"))
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := NewClient(server.URL, "test-key")
	if err := c.DeleteAllRecords(context.Background()); err != nil {
		t.Fatalf("DeleteAllRecords failed: %v", err)
	}
}

func TestClient_CountRecords(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("method = %v, want HEAD", r.Method)
		}
		if r.Header.Get("Prefer") != "count=exact" {
			t.Errorf("Prefer = %q, want count=exact", r.Header.Get("Prefer"))
		}
		_, _ = io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Range", "0-24/3573")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := NewClient(server.URL, "test-key")
	n, err := c.CountRecords(context.Background())
	if err != nil {
		t.Fatalf("CountRecords failed: %v", err)
	}
	if n != 3573 {
		t.Errorf("count = %d, want 3573", n)
	}
}

func TestParseContentRangeTotal(t *testing.T) {
	tests := []struct {
		value   string
		want    int
		wantErr bool
	}{
		{value: "0-24/3573", want: 3573},
		{value: "*/0", want: 0},
		{value: "0-9/*", wantErr: true},
		{value: "", wantErr: true},
		{value: "0-9/abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, err := parseContentRangeTotal(tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}
