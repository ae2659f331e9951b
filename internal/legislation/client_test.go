package legislation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func titlesHandler(t *testing.T, items []titleItem) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		skip, _ := strconv.Atoi(r.URL.Query().Get("$skip"))
		top, _ := strconv.Atoi(r.URL.Query().Get("$top"))
		end := skip + top
		if end > len(items) {
			end = len(items)
		}
		var page []titleItem
		if skip < len(items) {
			page = items[skip:end]
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"value":        page,
			"@odata.count": len(items),
		})
	}
}

func TestFetchTitles_PaginatesAndFiltersPrincipal(t *testing.T) {
	items := make([]titleItem, 0, 150)
	for i := 0; i < 150; i++ {
		items = append(items, titleItem{
			ID:          fmt.Sprintf("C2000A%05d", i),
			Name:        fmt.Sprintf("Act %d", i),
			Collection:  CollectionAct,
			Year:        2000,
			IsPrincipal: i%3 != 0, // every third is an amending Act
			IsInForce:   true,
		})
	}
	srv := httptest.NewServer(titlesHandler(t, items))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL, 5*time.Second, time.Minute, discardLogger())
	titles, err := c.FetchTitles(context.Background(), CollectionAct)
	if err != nil {
		t.Fatalf("FetchTitles: %v", err)
	}
	if len(titles) != 100 {
		t.Errorf("expected 100 principal titles, got %d", len(titles))
	}
}

func TestFetchTitles_StatusHistoryDates(t *testing.T) {
	items := []titleItem{{
		ID:          "C1959A00004",
		Name:        "Banking Act 1959",
		Collection:  CollectionAct,
		Year:        1959,
		IsPrincipal: true,
		MakingDate:  "1959-04-23",
		StatusHistory: []statusHistory{
			{Status: "InForce", Start: "1960-01-01"},
			{Status: "Repealed", Start: "2021-06-30"},
		},
	}}
	srv := httptest.NewServer(titlesHandler(t, items))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL, 5*time.Second, time.Minute, discardLogger())
	titles, err := c.FetchTitles(context.Background(), CollectionAct)
	if err != nil {
		t.Fatalf("FetchTitles: %v", err)
	}
	got := titles[0]
	if got.CommencementDate != "1960-01-01" {
		t.Errorf("commencement = %q", got.CommencementDate)
	}
	if got.RepealDate != "2021-06-30" || got.RepealYear() != 2021 {
		t.Errorf("repeal = %q year %d", got.RepealDate, got.RepealYear())
	}
}

func TestFetchTitles_FallsBackToMakingDate(t *testing.T) {
	items := []titleItem{{
		ID: "F2020L00001", Name: "Some Determination 2020",
		Collection: CollectionLegislativeInstrument, Year: 2020,
		IsPrincipal: true, MakingDate: "2020-03-01",
	}}
	srv := httptest.NewServer(titlesHandler(t, items))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL, 5*time.Second, time.Minute, discardLogger())
	titles, err := c.FetchTitles(context.Background(), CollectionLegislativeInstrument)
	if err != nil {
		t.Fatalf("FetchTitles: %v", err)
	}
	if titles[0].CommencementDate != "2020-03-01" {
		t.Errorf("expected makingDate fallback, got %q", titles[0].CommencementDate)
	}
}

func TestGet_RetriesServerErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"value":[],"@odata.count":0}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL, 5*time.Second, time.Minute, discardLogger())
	_, err := c.FetchTitles(context.Background(), CollectionAct)
	if err != nil {
		t.Fatalf("expected retries to succeed: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestGet_NoRetryOn404(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL, 5*time.Second, time.Minute, discardLogger())
	if _, err := c.FetchDocumentText(context.Background(), "C0000X00000"); err == nil {
		t.Fatal("expected error for 404")
	}
	if calls != 1 {
		t.Errorf("404 must not be retried, got %d calls", calls)
	}
}

func TestGet_UsesCache(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte("<html><body>The licensee must report.</body></html>"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL, 5*time.Second, time.Minute, discardLogger())
	ctx := context.Background()
	if _, err := c.FetchDocumentText(ctx, "C2007A00039"); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if _, err := c.FetchDocumentText(ctx, "C2007A00039"); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if calls != 1 {
		t.Errorf("second fetch should be served from cache, got %d calls", calls)
	}
}
