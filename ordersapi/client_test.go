package ordersapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/tabancura/frontdesk/entities"
)

type recordedPost struct {
	path string
	body []byte
}

// fakeOrderService mimics the remote quote service.
func fakeOrderService(t *testing.T) (*httptest.Server, func() []recordedPost) {
	t.Helper()

	var mu sync.Mutex
	var posts []recordedPost

	mux := http.NewServeMux()
	mux.HandleFunc("GET /cotizaciones/buscar/{id}", func(w http.ResponseWriter, r *http.Request) {
		switch r.PathValue("id") {
		case "12345678-5":
			_, _ = w.Write([]byte(`[{"nombre_paciente":"ANA PEREZ","folio":4521,"documento_id":"12345678-5"},
				{"nombre_paciente":"ANA PEREZ","folio":"4522","documento_id":"12345678-5"}]`))
		case "1-9":
			_, _ = w.Write([]byte(`[]`))
		case "broken":
			_, _ = w.Write([]byte(`{"nombre_paciente":`))
		default:
			http.NotFound(w, r)
		}
	})
	mux.HandleFunc("GET /cotizaciones/folio/{folio}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("folio") != "4521" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"nombre_paciente":"ANA PEREZ","folio":"4521","rut":"12345678-5","fecha_nacimiento":"1980-01-02"}`))
	})
	mux.HandleFunc("GET /cotizaciones/detalle/{folio}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("folio") != "4521" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`[{"codigo_examen":" A1 ","cantidad":1},{"codigo_examen":"A1"},{"codigo_examen":301045}]`))
	})
	mux.HandleFunc("GET /auditoria/historial", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"rut_paciente":"1-9","nombre_paciente":"X","folio_origen":"MANUAL","cantidad_examenes":2,"codigos":["A","B"],"fecha":"2026-01-01"}]`))
	})
	record := func(w http.ResponseWriter, r *http.Request) {
		var raw json.RawMessage
		_ = json.NewDecoder(r.Body).Decode(&raw)
		mu.Lock()
		posts = append(posts, recordedPost{path: r.URL.Path, body: raw})
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	}
	mux.HandleFunc("POST /cotizaciones/actualizar", record)
	mux.HandleFunc("POST /auditoria/ordenes", record)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv, func() []recordedPost {
		mu.Lock()
		defer mu.Unlock()
		return append([]recordedPost(nil), posts...)
	}
}

func TestSearchByDocument(t *testing.T) {
	srv, _ := fakeOrderService(t)
	c := NewClient(srv.URL+"/", 5*time.Second, time.Second)
	ctx := context.Background()

	tests := []struct {
		id     string
		status Status
		count  int
	}{
		{"12345678-5", StatusFound, 2},
		{"1-9", StatusNotFound, 0},
		{"99999999-9", StatusNotFound, 0},
		{"broken", StatusConnectionError, 0},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			res := c.SearchByDocument(ctx, tt.id)
			if res.Status != tt.status {
				t.Fatalf("Expected status %v, got %v (err %v)", tt.status, res.Status, res.Err)
			}
			if len(res.Patients) != tt.count {
				t.Errorf("Expected %d patients, got %d", tt.count, len(res.Patients))
			}
		})
	}

	res := c.SearchByDocument(ctx, "12345678-5")
	if res.Patients[0].Folio != "4521" {
		t.Errorf("Expected numeric folio decoded as text, got %q", res.Patients[0].Folio)
	}
}

func TestSearchByFolioSingleObject(t *testing.T) {
	srv, _ := fakeOrderService(t)
	c := NewClient(srv.URL, 5*time.Second, time.Second)

	res := c.SearchByFolio(context.Background(), "4521")
	if res.Status != StatusFound {
		t.Fatalf("Expected found, got %v (%v)", res.Status, res.Err)
	}
	want := entities.PatientRecord{PatientName: "ANA PEREZ", Folio: "4521", DocumentID: "12345678-5", BirthDate: "1980-01-02"}
	if len(res.Patients) != 1 || res.Patients[0] != want {
		t.Errorf("Expected %+v, got %+v", want, res.Patients)
	}

	if res := c.SearchByFolio(context.Background(), "1"); res.Status != StatusNotFound {
		t.Errorf("Expected not found, got %v", res.Status)
	}
}

func TestOrderDetail(t *testing.T) {
	srv, _ := fakeOrderService(t)
	c := NewClient(srv.URL, 5*time.Second, time.Second)

	res := c.OrderDetail(context.Background(), "4521")
	if res.Status != StatusFound {
		t.Fatalf("Expected found, got %v (%v)", res.Status, res.Err)
	}
	want := []string{"A1", "A1", "301045"}
	if !reflect.DeepEqual(res.Codes, want) {
		t.Errorf("Expected %v, got %v", want, res.Codes)
	}

	if res := c.OrderDetail(context.Background(), "0"); res.Status != StatusNotFound {
		t.Errorf("Expected non-200 to be not found, got %v", res.Status)
	}
}

func TestConnectionError(t *testing.T) {
	srv, _ := fakeOrderService(t)
	base := srv.URL
	srv.Close()

	c := NewClient(base, time.Second, time.Second)
	res := c.SearchByDocument(context.Background(), "12345678-5")
	if res.Status != StatusConnectionError {
		t.Errorf("Expected connection error, got %v", res.Status)
	}
	if res.Err == nil {
		t.Error("Expected the underlying error to be kept")
	}

	if err := c.PushLedger(context.Background(), "4521", nil); err == nil {
		t.Error("Expected push to report the failure")
	}
}

func TestLookupTimeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()

	c := NewClient(slow.URL, 50*time.Millisecond, 50*time.Millisecond)
	start := time.Now()
	res := c.SearchByFolio(context.Background(), "4521")
	if res.Status != StatusConnectionError {
		t.Errorf("Expected timeout to be a connection error, got %v", res.Status)
	}
	if time.Since(start) > time.Second {
		t.Error("Expected the call to give up at the timeout")
	}
}

func TestPushes(t *testing.T) {
	srv, posts := fakeOrderService(t)
	c := NewClient(srv.URL, 5*time.Second, time.Second)
	ctx := context.Background()

	rows := []entities.LedgerRow{{Code: "A1", Label: "HEMOGRAMA", Fonasa: 10000}}
	if err := c.PushLedger(ctx, "4521", rows); err != nil {
		t.Fatalf("Unexpected push error: %v", err)
	}
	entry := entities.AuditEntry{PatientRUT: "12345678-5", PatientName: "ANA", SourceFolio: "4521", ItemCount: 1, Codes: []string{"A1"}}
	if err := c.RecordOrder(ctx, entry); err != nil {
		t.Fatalf("Unexpected audit error: %v", err)
	}

	got := posts()
	if len(got) != 2 {
		t.Fatalf("Expected 2 posts, got %d", len(got))
	}

	var update entities.LedgerUpdate
	if err := json.Unmarshal(got[0].body, &update); err != nil {
		t.Fatal(err)
	}
	if update.Folio != "4521" || len(update.Items) != 1 || update.Items[0].Fonasa != 10000 {
		t.Errorf("Unexpected ledger update %+v", update)
	}

	var audit map[string]any
	if err := json.Unmarshal(got[1].body, &audit); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"rut_paciente", "nombre_paciente", "folio_origen", "cantidad_examenes", "codigos"} {
		if _, ok := audit[key]; !ok {
			t.Errorf("Expected audit payload to carry %q", key)
		}
	}
}

func TestAuditHistory(t *testing.T) {
	srv, _ := fakeOrderService(t)
	c := NewClient(srv.URL, 5*time.Second, time.Second)

	res := c.AuditHistory(context.Background())
	if res.Status != StatusFound || len(res.Entries) != 1 {
		t.Fatalf("Unexpected history result %+v", res)
	}
	if res.Entries[0].ItemCount != 2 || res.Entries[0].SourceFolio != "MANUAL" {
		t.Errorf("Unexpected entry %+v", res.Entries[0])
	}
}
