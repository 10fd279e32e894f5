// File: internal/campus/collector/catalog.go
package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var jsonCodec = jsoniter.ConfigCompatibleWithStandardLibrary

// codeZero is the only response code the platform treats as success. The
// comparison is byte-exact on the raw JSON token: a numeric 0 or a padded
// string is not success.
var codeZero = []byte(`"0"`)

func codeIsZero(raw json.RawMessage) bool {
	return bytes.Equal(raw, codeZero)
}

// Catalog talks to one institution's collector API through an authenticated
// session client.
type Catalog struct {
	log         *zap.Logger
	client      *http.Client
	root        string
	slowTimeout time.Duration
}

// New binds a catalog to an authenticated client and portal root. The client
// must carry the session cookies from a completed login.
func New(client *http.Client, root string, slowTimeout time.Duration, logger *zap.Logger) *Catalog {
	if slowTimeout <= 0 {
		slowTimeout = 10 * time.Second
	}
	return &Catalog{
		log:         logger.Named("collector"),
		client:      client,
		root:        root,
		slowTimeout: slowTimeout,
	}
}

type listEnvelope struct {
	Code    json.RawMessage `json:"code"`
	Message string          `json:"message"`
	Datas   struct {
		Rows []formSummary `json:"rows"`
	} `json:"datas"`
}

// List fetches the user's current collection forms. A non-zero response code
// is unusual but not fatal: whatever rows came back are still returned.
func (c *Catalog) List(ctx context.Context) ([]*Form, error) {
	var envelope listEnvelope
	err := c.postJSON(ctx, listPath, map[string]any{
		"pageSize":   listPageSize,
		"pageNumber": 1,
	}, false, &envelope)
	if err != nil {
		return nil, fmt.Errorf("listing collection forms: %w", err)
	}
	if !codeIsZero(envelope.Code) {
		c.log.Warn("Unusual response status from form list",
			zap.ByteString("code", envelope.Code), zap.String("message", envelope.Message))
	}

	forms := make([]*Form, 0, len(envelope.Datas.Rows))
	for i := range envelope.Datas.Rows {
		forms = append(forms, newForm(&envelope.Datas.Rows[i]))
	}
	c.log.Debug("Collection forms listed", zap.Int("count", len(forms)))
	return forms, nil
}

type detailEnvelope struct {
	Code    json.RawMessage `json:"code"`
	Message string          `json:"message"`
	Datas   struct {
		Collector struct {
			SchoolTaskWid string `json:"schoolTaskWid"`
		} `json:"collector"`
	} `json:"datas"`
}

type fieldsEnvelope struct {
	Code    json.RawMessage `json:"code"`
	Message string          `json:"message"`
	Datas   struct {
		Rows      []FieldRow `json:"rows"`
		TotalSize int        `json:"totalSize"`
	} `json:"datas"`
}

// FetchSchema loads a form's description and entry rows. Both calls must
// succeed; a form without its schoolTaskWid or its entries cannot be filled
// or submitted.
func (c *Catalog) FetchSchema(ctx context.Context, form *Form) error {
	var detail detailEnvelope
	err := c.postJSON(ctx, detailPath, map[string]any{
		"collectorWid": form.Wid,
	}, true, &detail)
	if err != nil {
		return fmt.Errorf("fetching form description: %w", err)
	}
	c.log.Debug("Form description fetched",
		zap.String("wid", form.Wid),
		zap.ByteString("code", detail.Code), zap.String("message", detail.Message))
	form.SchoolTaskWid = detail.Datas.Collector.SchoolTaskWid

	var fields fieldsEnvelope
	err = c.postJSON(ctx, fieldsPath, map[string]any{
		"pageSize":     fieldsPageSize,
		"pageNumber":   1,
		"formWid":      form.FormWid,
		"collectorWid": form.Wid,
	}, false, &fields)
	if err != nil {
		return fmt.Errorf("fetching form entries: %w", err)
	}
	c.log.Debug("Form entries fetched",
		zap.String("wid", form.Wid), zap.Int("rows", len(fields.Datas.Rows)))
	form.Fields = fields.Datas.Rows
	form.TotalSize = fields.Datas.TotalSize
	return nil
}

// postJSON sends a JSON POST to a collector path and decodes the response.
func (c *Catalog) postJSON(ctx context.Context, path string, payload any, slow bool, v any) error {
	body, err := jsonCodec.Marshal(payload)
	if err != nil {
		return err
	}
	return c.postRaw(ctx, path, body, nil, slow, v)
}

func (c *Catalog) postRaw(ctx context.Context, path string, body []byte, extraHeaders map[string]string, slow bool, v any) error {
	if slow {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.slowTimeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.root+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for name, value := range extraHeaders {
		req.Header.Set(name, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return jsonCodec.Unmarshal(raw, v)
}
