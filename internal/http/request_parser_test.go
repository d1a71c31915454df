package http

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"rtadmin/internal/core"
)

func TestParseFilters(t *testing.T) {
	q := url.Values{"q": {"  budi\x00 "}, "status": {"KONTRAK"}}
	rf := ParseResidentFilter(q)
	if rf.Query != "budi" {
		t.Errorf("Query = %q, want %q", rf.Query, "budi")
	}
	if rf.Status != "kontrak" {
		t.Errorf("Status = %q, want kontrak", rf.Status)
	}

	hf := ParseHouseFilter(url.Values{})
	if hf.Occupancy != core.FilterAll {
		t.Errorf("empty occupancy = %q, want %q", hf.Occupancy, core.FilterAll)
	}

	tests := []struct {
		month string
		want  string
	}{
		{"3", "03"},
		{"11", "11"},
		{"", core.FilterAll},
		{"all", core.FilterAll},
	}
	for _, tt := range tests {
		ef := ParseExpenseFilter(url.Values{"month": {tt.month}})
		if ef.Month != tt.want {
			t.Errorf("month %q parsed as %q, want %q", tt.month, ef.Month, tt.want)
		}
	}
}

func TestParseHouseAndExpenseForms(t *testing.T) {
	house := ParseHouseForm(url.Values{"house_number": {" A-12 "}, "is_occupied": {"on"}})
	if house.HouseNumber != "A-12" || !house.IsOccupied {
		t.Errorf("house = %+v", house)
	}

	exp := ParseExpenseForm(url.Values{"name": {"Perbaikan Jalan"}, "amount": {"Rp 1.250.000"}, "date": {"2024-03-05"}})
	if exp.Amount != 1250000 {
		t.Errorf("Amount = %d, want 1250000", exp.Amount)
	}
	if exp.Date != "2024-03-05" {
		t.Errorf("Date = %q", exp.Date)
	}

	bad := ParseExpenseForm(url.Values{"name": {"x"}, "amount": {"abc"}})
	if bad.Amount != 0 {
		t.Errorf("unreadable amount should be zero, got %d", bad.Amount)
	}
}

func TestParseResidentForm_Multipart(t *testing.T) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("name", "Siti")
	_ = mw.WriteField("status", "kontrak")
	_ = mw.WriteField("phone", "0812")
	_ = mw.WriteField("is_married", "1")
	_ = mw.WriteField("house_id", "7")
	fw, err := mw.CreateFormFile("ktp_photo_file", "ktp.png")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write([]byte("not really a png"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/residents", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	in, err := ParseResidentForm(httptest.NewRecorder(), req)
	if err != nil {
		t.Fatalf("ParseResidentForm() error = %v", err)
	}
	if in.Name != "Siti" || in.Status != core.StatusKontrak || !in.IsMarried {
		t.Errorf("input = %+v", in)
	}
	if in.HouseID == nil || *in.HouseID != 7 {
		t.Errorf("HouseID = %v, want 7", in.HouseID)
	}
	if in.KTP == nil || in.KTP.Filename != "ktp.png" || string(in.KTP.Data) != "not really a png" {
		t.Errorf("KTP = %+v", in.KTP)
	}
}

func TestParseResidentForm_URLEncodedWithoutPhoto(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/residents/1", strings.NewReader("name=Budi&status=tetap&phone=0813&house_id="))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	in, err := ParseResidentForm(httptest.NewRecorder(), req)
	if err != nil {
		t.Fatalf("ParseResidentForm() error = %v", err)
	}
	if in.KTP != nil {
		t.Error("KTP should be nil without a file")
	}
	if in.HouseID != nil {
		t.Errorf("empty house_id should be nil, got %d", *in.HouseID)
	}
	if in.IsMarried {
		t.Error("unchecked is_married should be false")
	}
}

func TestParseOccupancyInput(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"resident_id": 3, "house_id": "4", "start_date": "2024-01-10T00:00:00Z", "end_date": ""}`))
		in, err := ParseOccupancyInput(NewRequestBodyParser(req))
		if err != nil {
			t.Fatal(err)
		}
		if in.ResidentID != 3 || in.HouseID != 4 {
			t.Errorf("ids = %d/%d", in.ResidentID, in.HouseID)
		}
		if in.StartDate != "2024-01-10" {
			t.Errorf("StartDate = %q", in.StartDate)
		}
		if in.EndDate != nil {
			t.Errorf("empty end date should stay open, got %q", *in.EndDate)
		}
	})

	t.Run("form", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("resident_id=5&start_date=2024-02-01&end_date=2024-06-30"))
		in, err := ParseOccupancyInput(NewRequestBodyParser(req))
		if err != nil {
			t.Fatal(err)
		}
		if in.ResidentID != 5 || in.HouseID != 0 {
			t.Errorf("ids = %d/%d", in.ResidentID, in.HouseID)
		}
		if in.EndDate == nil || *in.EndDate != "2024-06-30" {
			t.Errorf("EndDate = %v", in.EndDate)
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"resident_id":`))
		if _, err := ParseOccupancyInput(NewRequestBodyParser(req)); err == nil {
			t.Error("expected an error")
		}
	})
}

func TestParsePaymentDraft_ClosesGaps(t *testing.T) {
	form := url.Values{
		"resident_id":        {"9"},
		"status":             {"Lunas"},
		"payment_date":       {"2024-05-01"},
		"items.0.type":       {"satpam"},
		"items.0.amount":     {"100.000"},
		"items.0.start_date": {"2024-05-01"},
		"items.0.end_date":   {"2024-05-31"},
		"items.2.type":       {"kebersihan"},
		"items.2.amount":     {"15000"},
		"items.x.amount":     {"1"},
	}

	d := ParsePaymentDraft(form)
	if d.ResidentID != 9 {
		t.Errorf("ResidentID = %d", d.ResidentID)
	}
	if len(d.Items) != 2 {
		t.Fatalf("len(Items) = %d, want 2", len(d.Items))
	}
	if d.Items[1].Type != core.ItemKebersihan || d.Items[1].Amount != 15000 {
		t.Errorf("second item = %+v", d.Items[1])
	}
	if d.TotalAmount != 115000 {
		t.Errorf("TotalAmount = %d, want 115000", d.TotalAmount)
	}
}

func TestDraftOps(t *testing.T) {
	base := func() core.PaymentDraft {
		return ParsePaymentDraft(url.Values{
			"items.0.type":   {"satpam"},
			"items.0.amount": {"100000"},
			"items.1.type":   {"kebersihan"},
			"items.1.amount": {"15000"},
		})
	}

	tests := []struct {
		op        string
		wantItems int
		wantTotal core.Rupiah
	}{
		{"add", 3, 115000},
		{"remove:0", 1, 15000},
		{"remove:9", 2, 115000},
		{"remove:x", 2, 115000},
		{"", 2, 115000},
	}
	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			d := base()
			ParseDraftOp(url.Values{"op": {tt.op}}).Apply(&d)
			if len(d.Items) != tt.wantItems {
				t.Errorf("len(Items) = %d, want %d", len(d.Items), tt.wantItems)
			}
			if d.TotalAmount != tt.wantTotal {
				t.Errorf("TotalAmount = %d, want %d", d.TotalAmount, tt.wantTotal)
			}
		})
	}
}

func TestItemFieldMatchesErrorKeys(t *testing.T) {
	if got := itemField(2, "amount"); got != "items.2.amount" {
		t.Errorf("itemField = %q", got)
	}
}

func TestRequestBodyParser_JSON(t *testing.T) {
	body := `{"id": "123", "name": "test", "amount": 42.5}`
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !parser.IsJSON() {
		t.Error("Expected IsJSON() to be true")
	}
	if id := parser.Get("id"); id != "123" {
		t.Errorf("Get('id') = %q, want '123'", id)
	}
	if amount := parser.Get("amount"); amount != "42.5" {
		t.Errorf("Get('amount') = %q, want '42.5'", amount)
	}
}

func TestRequestBodyParser_FormData(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader("id=456&name=form+test"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if parser.IsJSON() {
		t.Error("Expected IsJSON() to be false for form data")
	}
	if name := parser.Get("name"); name != "form test" {
		t.Errorf("Get('name') = %q, want 'form test'", name)
	}
}

func TestRequestBodyParser_EmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(""))

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if val := parser.Get("nonexistent"); val != "" {
		t.Errorf("Get('nonexistent') = %q, want empty string", val)
	}
}

func TestParseFormOrFail(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader("field=value"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	if result := ParseFormOrFail(req); result != nil {
		t.Error("Expected nil for valid form, got error response")
	}
	if req.Form.Get("field") != "value" {
		t.Error("Form was not parsed correctly")
	}

	bad := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader("a=%zz"))
	bad.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if result := ParseFormOrFail(bad); result == nil {
		t.Error("Expected an error response for a malformed body")
	}
}
