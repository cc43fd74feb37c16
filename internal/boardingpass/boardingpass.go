// Package boardingpass builds the ticket shown on the confirmation screen
// and exports it as an image through an external renderer.
package boardingpass

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/example/trip-booking/internal/models"
)

// Spots is the number of seats on the bus; references carry a spot number
// in 1..Spots.
const Spots = 32

const qrEndpoint = "https://api.qrserver.com/v1/create-qr-code/"

// Reference returns "SHA" + ddmmyyyy + a zero-padded spot number.
func Reference(now time.Time, rng *rand.Rand) string {
	spot := rng.Intn(Spots) + 1
	return fmt.Sprintf("SHA%02d%02d%04d%03d", now.Day(), int(now.Month()), now.Year(), spot)
}

// QRCodeURL is the white-on-black QR image encoding ref.
func QRCodeURL(ref string) string {
	q := url.Values{}
	q.Set("size", "128x128")
	q.Set("data", ref)
	q.Set("bgcolor", "000000")
	q.Set("color", "ffffff")
	q.Set("qzone", "1")
	return qrEndpoint + "?" + q.Encode()
}

func Filename(ref string) string {
	return "Tahwisa213-Billet-" + ref + ".png"
}

// Pass is everything printed on the ticket.
type Pass struct {
	Reference string               `json:"reference"`
	QRCodeURL string               `json:"qrCodeUrl"`
	Trip      models.Trip          `json:"trip"`
	Booking   models.BookingRecord `json:"booking"`
}

func NewPass(ref string, trip models.Trip, rec models.BookingRecord) Pass {
	return Pass{Reference: ref, QRCodeURL: QRCodeURL(ref), Trip: trip, Booking: rec}
}

// Exporter rasterises a pass to PNG bytes.
type Exporter interface {
	Export(ctx context.Context, p Pass) ([]byte, error)
}

// HTTPRenderer delegates rasterisation to a rendering service that takes
// the pass as JSON and answers with the PNG.
type HTTPRenderer struct {
	Endpoint string
	Client   *http.Client
}

func NewHTTPRenderer(endpoint string) *HTTPRenderer {
	return &HTTPRenderer{Endpoint: endpoint, Client: &http.Client{Timeout: 5 * time.Second}}
}

func (h *HTTPRenderer) Export(ctx context.Context, p Pass) ([]byte, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "image/png")
	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("renderer returned %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
