package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/autoledger/internal/client/mapper"
	"github.com/dmitrijs2005/autoledger/internal/client/models"
	"github.com/dmitrijs2005/autoledger/internal/netx"
)

// APIKeyHeader carries the server API key on every request.
const APIKeyHeader = "x-api-key"

// HTTPGateway talks to the expense server over HTTP.
type HTTPGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPGateway(creds models.Credentials, client *http.Client) *HTTPGateway {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPGateway{
		baseURL: strings.TrimRight(creds.URL, "/"),
		apiKey:  creds.APIKey,
		client:  client,
	}
}

// NewFactory returns a Factory whose gateways share one client with the
// given per-request timeout.
func NewFactory(timeout time.Duration) Factory {
	client := &http.Client{Timeout: timeout}
	return func(creds models.Credentials) Gateway {
		return NewHTTPGateway(creds, client)
	}
}

// KindPath returns the record collection path segment of kind.
func KindPath(kind models.Kind) (string, error) {
	switch kind {
	case models.KindService:
		return "servicerecords", nil
	case models.KindRepair:
		return "repairrecords", nil
	case models.KindUpgrade:
		return "upgraderecords", nil
	case models.KindFuel:
		return "gasrecords", nil
	case models.KindTax:
		return "taxrecords", nil
	default:
		return "", fmt.Errorf("no remote collection for kind %q", kind)
	}
}

type wireVehicle struct {
	ID           mapper.Scalar `json:"id"`
	Year         mapper.Scalar `json:"year"`
	Make         string        `json:"make"`
	Model        string        `json:"model"`
	LicensePlate string        `json:"licensePlate"`
}

func (g *HTTPGateway) FetchVehicles(ctx context.Context) ([]models.Vehicle, error) {
	const op = "fetch vehicles"

	body, err := g.do(ctx, op, http.MethodGet, "/api/vehicles", nil, nil)
	if err != nil {
		return nil, err
	}

	var wire []wireVehicle
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, &NetworkError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}

	result := make([]models.Vehicle, 0, len(wire))
	for _, w := range wire {
		id, err := strconv.ParseInt(string(w.ID), 10, 64)
		if err != nil {
			return nil, &NetworkError{Op: op, Err: fmt.Errorf("invalid vehicle id %q", w.ID)}
		}
		year, _ := strconv.Atoi(string(w.Year))
		result = append(result, models.Vehicle{
			ID:           id,
			Year:         year,
			Make:         w.Make,
			Model:        w.Model,
			LicensePlate: w.LicensePlate,
		})
	}
	return result, nil
}

func (g *HTTPGateway) Fetch(ctx context.Context, kind models.Kind, vehicleID int64) ([]models.RemoteExpense, error) {
	op := "fetch " + strings.ToLower(string(kind))

	path, err := KindPath(kind)
	if err != nil {
		return nil, err
	}

	q := url.Values{"vehicleId": {strconv.FormatInt(vehicleID, 10)}}
	body, err := g.do(ctx, op, http.MethodGet, "/api/vehicle/"+path, q, nil)
	if err != nil {
		return nil, err
	}

	var wire []mapper.WireRecord
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, &NetworkError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}

	result := make([]models.RemoteExpense, 0, len(wire))
	for _, w := range wire {
		r, err := mapper.FromWire(kind, vehicleID, w)
		if err != nil {
			return nil, &NetworkError{Op: op, Err: err}
		}
		result = append(result, r)
	}
	return result, nil
}

func (g *HTTPGateway) Create(ctx context.Context, kind models.Kind, vehicleID int64, fields models.ExpenseFields) error {
	op := "create " + strings.ToLower(string(kind))

	path, err := KindPath(kind)
	if err != nil {
		return err
	}

	q := url.Values{"vehicleId": {strconv.FormatInt(vehicleID, 10)}}
	_, err = g.do(ctx, op, http.MethodPost, "/api/vehicle/"+path+"/add", q, mapper.ToForm(kind, vehicleID, fields))
	return err
}

func (g *HTTPGateway) Delete(ctx context.Context, kind models.Kind, remoteID int64) error {
	op := "delete " + strings.ToLower(string(kind))

	path, err := KindPath(kind)
	if err != nil {
		return err
	}

	q := url.Values{"id": {strconv.FormatInt(remoteID, 10)}}
	_, err = g.do(ctx, op, http.MethodDelete, "/api/vehicle/"+path+"/delete", q, nil)
	return err
}

func (g *HTTPGateway) do(ctx context.Context, op, method, path string, query, form url.Values) ([]byte, error) {
	target := g.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	req.Header.Set(APIKeyHeader, g.apiKey)
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := netx.Do(g.client, req)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	return resp, nil
}
