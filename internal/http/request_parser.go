// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.
// Form values are decoded into the core input types; validation itself is
// left to the services.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"rtadmin/internal/core"
)

// maxUploadBytes bounds resident forms, KTP photo included.
const maxUploadBytes = 8 << 20

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]interface{}
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body != nil {
		p.body, p.err = io.ReadAll(io.LimitReader(r.Body, 1<<20))
	}
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	// Try JSON first if content looks like JSON
	if p.body[0] == '{' || p.body[0] == '[' {
		p.jsonData = make(map[string]interface{})
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return strings.TrimSpace(sanitizeInput(stringValue(val)))
		}
	}
	if p.formData != nil {
		return strings.TrimSpace(sanitizeInput(p.formData.Get(key)))
	}
	return ""
}

// ContentType returns the Content-Type header value.
func (p *RequestBodyParser) ContentType() string {
	return p.contentType
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts an interface{} to string.
func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// ParseFormOrFail parses the request form and returns an error response on failure.
// Returns nil on success.
func ParseFormOrFail(r *http.Request) *HTMXResponseBuilder {
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Format permintaan tidak valid")
	}
	return nil
}

// ParseResidentFilter reads ?q= and ?status= from the residents list.
func ParseResidentFilter(query url.Values) core.ResidentFilter {
	return core.ResidentFilter{
		Query:  sanitizeInput(query.Get("q")),
		Status: categoryValue(query.Get("status")),
	}
}

// ParseHouseFilter reads ?q= and ?occupancy= from the houses list.
func ParseHouseFilter(query url.Values) core.HouseFilter {
	return core.HouseFilter{
		Query:     sanitizeInput(query.Get("q")),
		Occupancy: categoryValue(query.Get("occupancy")),
	}
}

// ParseExpenseFilter reads ?q= and ?month=; a single digit month is padded.
func ParseExpenseFilter(query url.Values) core.ExpenseFilter {
	month := categoryValue(query.Get("month"))
	if len(month) == 1 && month[0] >= '1' && month[0] <= '9' {
		month = "0" + month
	}
	return core.ExpenseFilter{
		Query: sanitizeInput(query.Get("q")),
		Month: month,
	}
}

func categoryValue(v string) string {
	v = strings.ToLower(sanitizeInput(v))
	if v == "" {
		return core.FilterAll
	}
	return v
}

// ParseResidentForm decodes the multipart resident form. The KTP file is
// optional here; whether it is required is decided by the service.
func ParseResidentForm(w http.ResponseWriter, r *http.Request) (core.ResidentInput, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return core.ResidentInput{}, fmt.Errorf("parse resident form: %w", err)
	}
	if r.PostForm == nil {
		if err := r.ParseForm(); err != nil {
			return core.ResidentInput{}, fmt.Errorf("parse resident form: %w", err)
		}
	}

	in := core.ResidentInput{
		Name:      sanitizeInput(r.PostFormValue("name")),
		Status:    core.ResidentStatus(sanitizeInput(r.PostFormValue("status"))),
		Phone:     sanitizeInput(r.PostFormValue("phone")),
		IsMarried: bool(core.ParseFlag(r.PostFormValue("is_married"))),
	}
	if id, err := core.ParseID(r.PostFormValue("house_id")); err == nil && id > 0 {
		in.HouseID = &id
	}

	file, header, err := r.FormFile("ktp_photo_file")
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		return in, nil
	case err != nil:
		return in, fmt.Errorf("read ktp photo: %w", err)
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return in, fmt.Errorf("read ktp photo: %w", err)
	}
	if len(data) > 0 {
		in.KTP = &core.Upload{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		}
	}
	return in, nil
}

// ParseHouseForm decodes the house form.
func ParseHouseForm(form url.Values) core.HouseInput {
	return core.HouseInput{
		HouseNumber: sanitizeInput(form.Get("house_number")),
		IsOccupied:  bool(core.ParseFlag(form.Get("is_occupied"))),
	}
}

// ParseExpenseForm decodes the expense form. An unreadable amount is left at
// zero so validation reports it.
func ParseExpenseForm(form url.Values) core.ExpenseInput {
	amount, _ := core.ParseRupiah(form.Get("amount"))
	return core.ExpenseInput{
		Name:   sanitizeInput(form.Get("name")),
		Amount: amount,
		Date:   core.NewDateString(form.Get("date")),
	}
}

// ParseOccupancyInput reads {resident_id, house_id, start_date, end_date}
// from a JSON or form body. An empty end date means the row stays open.
func ParseOccupancyInput(p *RequestBodyParser) (core.OccupancyInput, error) {
	if err := p.Parse(); err != nil {
		return core.OccupancyInput{}, fmt.Errorf("parse occupancy: %w", err)
	}
	residentID, _ := core.ParseID(p.Get("resident_id"))
	houseID, _ := core.ParseID(p.Get("house_id"))
	return core.OccupancyInput{
		ResidentID: residentID,
		HouseID:    houseID,
		StartDate:  core.NewDateString(p.Get("start_date")),
		EndDate:    core.DatePtr(p.Get("end_date")),
	}, nil
}

// ParsePaymentDraft decodes the payment form. Items are posted as
// items.<n>.<field>; gaps left by removed rows are closed up in index order.
func ParsePaymentDraft(form url.Values) core.PaymentDraft {
	residentID, _ := core.ParseID(form.Get("resident_id"))
	d := core.PaymentDraft{
		ResidentID:  residentID,
		Note:        sanitizeInput(form.Get("note")),
		Status:      core.PaymentStatus(sanitizeInput(form.Get("status"))),
		PaymentDate: core.NewDateString(form.Get("payment_date")),
		Items:       make([]core.PaymentItemDraft, 0),
	}
	for _, i := range itemIndexes(form) {
		key := func(field string) string { return itemField(i, field) }
		amount, _ := core.ParseRupiah(form.Get(key("amount")))
		d.Items = append(d.Items, core.PaymentItemDraft{
			Type:      core.PaymentItemType(sanitizeInput(form.Get(key("type")))),
			Amount:    amount,
			StartDate: core.NewDateString(form.Get(key("start_date"))),
			EndDate:   core.NewDateString(form.Get(key("end_date"))),
		})
	}
	d.TotalAmount = d.Total()
	return d
}

// itemField is the form name of one item input, e.g. "items.0.amount". It
// matches the keys of the payment's FieldErrors.
func itemField(i int, field string) string {
	return "items." + strconv.Itoa(i) + "." + field
}

func itemIndexes(form url.Values) []int {
	seen := make(map[int]bool)
	for key := range form {
		rest, ok := strings.CutPrefix(key, "items.")
		if !ok {
			continue
		}
		idx, _, ok := strings.Cut(rest, ".")
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(idx); err == nil && n >= 0 {
			seen[n] = true
		}
	}
	out := make([]int, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// DraftOp is an editor action posted to /payments/draft.
type DraftOp struct {
	Kind  string // add, remove or recalc
	Index int
}

// ParseDraftOp reads the op field: "add", "remove:<n>" or anything else for
// a plain recalculation.
func ParseDraftOp(form url.Values) DraftOp {
	op := strings.TrimSpace(form.Get("op"))
	switch {
	case op == "add":
		return DraftOp{Kind: "add"}
	case strings.HasPrefix(op, "remove:"):
		if n, err := strconv.Atoi(strings.TrimPrefix(op, "remove:")); err == nil {
			return DraftOp{Kind: "remove", Index: n}
		}
	}
	return DraftOp{Kind: "recalc"}
}

// Apply runs the op against d.
func (op DraftOp) Apply(d *core.PaymentDraft) {
	switch op.Kind {
	case "add":
		d.AddItem()
	case "remove":
		d.RemoveItem(op.Index)
	}
	d.TotalAmount = d.Total()
}
