// Package http exposes the distribution service over JSON.
//
// This file decodes and validates request bodies. Everything that reaches
// the core has passed these checks.
package http

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"tipsplit/internal/core"
)

var ErrMalformedInput = errors.New("malformed input")

// MaxUnits bounds every amount and every denomination's total value so
// sums over a request cannot overflow int64.
const MaxUnits int64 = 1_000_000_000_000

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrMalformedInput
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

type distributeRequest struct {
	Employees   []employeeInput `json:"employees"`
	Bills       json.RawMessage `json:"bills"`
	Coins       json.RawMessage `json:"coins"`
	InitialCash *int64          `json:"initial_cash"`
	MinCash     *int64          `json:"min_cash"`
}

type employeeInput struct {
	Name   string `json:"name"`
	Amount *int64 `json:"amount"`
}

// canonicalRequest is the normalized form used for the replay cache key and
// stored in history.
type canonicalRequest struct {
	Employees   []canonicalEmployee `json:"employees"`
	Bills       map[string]int64    `json:"bills"`
	Coins       map[string]int64    `json:"coins"`
	InitialCash int64               `json:"initial_cash"`
	MinCash     int64               `json:"min_cash"`
}

type canonicalEmployee struct {
	Name   string `json:"name"`
	Amount int64  `json:"amount"`
}

// ParsedRequest is a validated distribution request.
type ParsedRequest struct {
	Core core.Request
	// Canonical is the normalized request document.
	Canonical []byte
	// Digest identifies Canonical.
	Digest string
}

// ParseDistributeRequest reads at most maxBytes of r's body and validates it.
// defaultMinCash applies when min_cash is absent.
func ParseDistributeRequest(r *http.Request, maxBytes, defaultMinCash int64) (ParsedRequest, error) {
	if r.Body == nil {
		return ParsedRequest{}, invalid("", "request body is required")
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes+1))
	if err != nil {
		return ParsedRequest{}, invalid("", "read body: %v", err)
	}
	if int64(len(body)) > maxBytes {
		return ParsedRequest{}, invalid("", "request body exceeds %d bytes", maxBytes)
	}
	return DecodeDistributeRequest(body, defaultMinCash)
}

// DecodeDistributeRequest validates a JSON body.
func DecodeDistributeRequest(body []byte, defaultMinCash int64) (ParsedRequest, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return ParsedRequest{}, invalid("", "request body must be a JSON object")
	}

	var in distributeRequest
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	if err := dec.Decode(&in); err != nil {
		return ParsedRequest{}, decodeError(err)
	}
	if dec.More() {
		return ParsedRequest{}, invalid("", "unexpected data after JSON object")
	}

	if in.Employees == nil {
		return ParsedRequest{}, invalid("employees", "is required")
	}
	if in.InitialCash == nil {
		return ParsedRequest{}, invalid("initial_cash", "is required")
	}
	if *in.InitialCash > MaxUnits || *in.InitialCash < -MaxUnits {
		return ParsedRequest{}, invalid("initial_cash", "must be within ±%d", MaxUnits)
	}

	canon := canonicalRequest{
		Employees:   make([]canonicalEmployee, 0, len(in.Employees)),
		InitialCash: *in.InitialCash,
		MinCash:     defaultMinCash,
	}
	req := core.Request{
		Payees:      make([]core.Payee, 0, len(in.Employees)),
		InitialCash: *in.InitialCash,
	}

	seen := make(map[string]struct{}, len(in.Employees))
	for i, e := range in.Employees {
		field := fmt.Sprintf("employees[%d]", i)
		name := sanitizeInput(e.Name)
		if name == "" {
			return ParsedRequest{}, invalid(field+".name", "must not be blank")
		}
		if _, dup := seen[name]; dup {
			return ParsedRequest{}, invalid(field+".name", "duplicate name %q", name)
		}
		seen[name] = struct{}{}
		if e.Amount == nil {
			return ParsedRequest{}, invalid(field+".amount", "is required")
		}
		if *e.Amount < 0 {
			return ParsedRequest{}, invalid(field+".amount", "must not be negative")
		}
		if *e.Amount > MaxUnits {
			return ParsedRequest{}, invalid(field+".amount", "must not exceed %d", MaxUnits)
		}
		req.Payees = append(req.Payees, core.Payee{Name: name, Amount: *e.Amount})
		canon.Employees = append(canon.Employees, canonicalEmployee{Name: name, Amount: *e.Amount})
	}

	var err error
	if req.Bills, canon.Bills, err = parseDenominations("bills", in.Bills); err != nil {
		return ParsedRequest{}, err
	}
	if req.Coins, canon.Coins, err = parseDenominations("coins", in.Coins); err != nil {
		return ParsedRequest{}, err
	}

	if in.MinCash != nil {
		if *in.MinCash < 0 {
			return ParsedRequest{}, invalid("min_cash", "must not be negative")
		}
		if *in.MinCash > MaxUnits {
			return ParsedRequest{}, invalid("min_cash", "must not exceed %d", MaxUnits)
		}
		canon.MinCash = *in.MinCash
	}
	minCash := canon.MinCash
	req.MinCash = &minCash

	doc, err := json.Marshal(canon)
	if err != nil {
		return ParsedRequest{}, fmt.Errorf("encode canonical request: %w", err)
	}
	sum := sha256.Sum256(doc)

	return ParsedRequest{
		Core:      req,
		Canonical: doc,
		Digest:    hex.EncodeToString(sum[:]),
	}, nil
}

// parseDenominations converts string keys to face values, reading the
// object in document order. Keys that name the same value ("010" and "10")
// collapse to the one written last.
func parseDenominations(field string, raw json.RawMessage) (map[core.Denomination]int64, map[string]int64, error) {
	out := make(map[core.Denomination]int64)
	canon := make(map[string]int64)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return out, canon, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil, nil, invalid(field, "must be an object of denomination counts")
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, invalid(field, "must be an object of denomination counts")
		}
		key, _ := tok.(string)

		var count int64
		if err := dec.Decode(&count); err != nil {
			return nil, nil, invalid(field, "count for denomination %q must be an integer", key)
		}

		value, err := strconv.ParseInt(strings.TrimSpace(key), 10, 64)
		if err != nil || value <= 0 {
			return nil, nil, invalid(field, "denomination %q must be a positive integer", key)
		}
		if count < 0 {
			return nil, nil, invalid(field, "count for denomination %q must not be negative", key)
		}
		if value > MaxUnits || (count > 0 && value > MaxUnits/count) {
			return nil, nil, invalid(field, "denomination %q holds more than %d units", key, MaxUnits)
		}
		out[core.Denomination(value)] = count
		canon[strconv.FormatInt(value, 10)] = count
	}
	return out, canon, nil
}

func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	switch {
	case errors.As(err, &typeErr):
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		return invalid(field, "expected %s, got JSON %s", typeErr.Type, typeErr.Value)
	case errors.As(err, &syntaxErr):
		return invalid("", "invalid JSON at offset %d", syntaxErr.Offset)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return invalid("", "request body is truncated")
	default:
		return invalid("", "invalid JSON: %v", err)
	}
}

// parseLimit reads ?limit= for list endpoints.
func parseLimit(r *http.Request, def, max int) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get("limit"))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, invalid("limit", "must be a positive integer")
	}
	if n > max {
		n = max
	}
	return n, nil
}
