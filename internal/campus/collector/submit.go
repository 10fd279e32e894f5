// File: internal/campus/collector/submit.go
package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"campusdaily/internal/campus/cryptoenv"
)

// Identity carries the per-user attributes stamped into the submission
// payload and its extension envelope.
type Identity struct {
	Username  string
	Address   string
	Longitude float64
	Latitude  float64
	// DeviceID is the user's stable device UUID; a random one is generated
	// per submission when absent.
	DeviceID string
}

// submitPayload is the plaintext form submission. Field order is part of the
// wire shape: the same bytes are serialized again into the encrypted
// bodyString the server verifies the signature against.
type submitPayload struct {
	FormWid       string     `json:"formWid"`
	Address       string     `json:"address"`
	CollectWid    string     `json:"collectWid"`
	SchoolTaskWid string     `json:"schoolTaskWid"`
	Form          []FieldRow `json:"form"`
	UaIsCpadaily  bool       `json:"uaIsCpadaily"`
	SignVersion   string     `json:"signVersion"`
}

// extensionEnvelope is the device metadata bundle carried encrypted in the
// Cpdaily-Extension header.
type extensionEnvelope struct {
	AppVersion    string  `json:"appVersion"`
	Model         string  `json:"model"`
	SystemName    string  `json:"systemName"`
	SystemVersion string  `json:"systemVersion"`
	UserID        string  `json:"userId"`
	Lon           float64 `json:"lon"`
	Lat           float64 `json:"lat"`
	DeviceID      string  `json:"deviceId"`
	CalVersion    string  `json:"calVersion"`
	Version       string  `json:"version"`
	BodyString    string  `json:"bodyString"`
	Sign          string  `json:"sign"`
}

type submitResponse struct {
	Code    json.RawMessage `json:"code"`
	Message string          `json:"message"`
}

// Submit posts a filled form. The boolean reports whether the server accepted
// it: only the exact response code "0" counts. An error means the submission
// never completed (encryption or transport failure).
func (c *Catalog) Submit(ctx context.Context, form *Form, id Identity) (bool, error) {
	log := c.log.With(zap.String("subject", form.Subject))
	if form.Submission == nil {
		log.Warn("Form not filled; refusing to submit")
		return false, nil
	}

	payload := submitPayload{
		FormWid:       form.FormWid,
		Address:       id.Address,
		CollectWid:    form.Wid,
		SchoolTaskWid: form.SchoolTaskWid,
		Form:          form.Submission,
		UaIsCpadaily:  true,
		SignVersion:   signVersion,
	}
	payloadJSON, err := jsonCodec.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("encoding submission payload: %w", err)
	}

	bodyString, err := cryptoenv.EncryptBody(payloadJSON)
	if err != nil {
		return false, fmt.Errorf("encrypting submission body: %w", err)
	}

	deviceID := id.DeviceID
	if deviceID == "" {
		deviceID = uuid.NewString()
	}
	latString := strconv.FormatFloat(id.Latitude, 'f', -1, 64)
	lonString := strconv.FormatFloat(id.Longitude, 'f', -1, 64)

	extension := extensionEnvelope{
		AppVersion:    appVersion,
		Model:         deviceModel,
		SystemName:    systemName,
		SystemVersion: systemVersion,
		UserID:        id.Username,
		Lon:           id.Longitude,
		Lat:           id.Latitude,
		DeviceID:      deviceID,
		CalVersion:    calVersion,
		Version:       extensionVersion,
		BodyString:    bodyString,
		Sign: cryptoenv.Sign(cryptoenv.SignatureInput{
			AppVersion:    appVersion,
			BodyString:    bodyString,
			DeviceID:      deviceID,
			Lat:           latString,
			Lon:           lonString,
			Model:         deviceModel,
			SystemName:    systemName,
			SystemVersion: systemVersion,
			UserID:        id.Username,
		}),
	}
	extensionJSON, err := jsonCodec.Marshal(extension)
	if err != nil {
		return false, fmt.Errorf("encoding extension envelope: %w", err)
	}
	encryptedExtension, err := cryptoenv.EncryptExtension(extensionJSON)
	if err != nil {
		return false, fmt.Errorf("encrypting extension envelope: %w", err)
	}

	headers := map[string]string{
		"CpdailyStandAlone": "0",
		"extension":         "1",
		"sign":              "1",
		"Cpdaily-Extension": encryptedExtension,
	}

	var resp submitResponse
	if err := c.postRaw(ctx, submitPath, payloadJSON, headers, true, &resp); err != nil {
		return false, fmt.Errorf("submitting form: %w", err)
	}
	if !codeIsZero(resp.Code) {
		log.Warn("Server declined the submission",
			zap.ByteString("code", resp.Code), zap.String("message", resp.Message))
		return false, nil
	}
	log.Info("Form submitted")
	return true, nil
}
