package boardingpass

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/trip-booking/internal/models"
)

func TestReference_Format(t *testing.T) {
	now := time.Date(2026, 3, 7, 18, 0, 0, 0, time.UTC)
	rng := rand.New(rand.NewSource(1))
	re := regexp.MustCompile(`^SHA07032026(\d{3})$`)
	for i := 0; i < 200; i++ {
		ref := Reference(now, rng)
		m := re.FindStringSubmatch(ref)
		require.NotNil(t, m, ref)
		spot, _ := strconv.Atoi(m[1])
		assert.GreaterOrEqual(t, spot, 1)
		assert.LessOrEqual(t, spot, Spots)
	}
}

func TestQRCodeURL(t *testing.T) {
	u := QRCodeURL("SHA07032026012")
	assert.Contains(t, u, "https://api.qrserver.com/v1/create-qr-code/?")
	assert.Contains(t, u, "data=SHA07032026012")
	assert.Contains(t, u, "bgcolor=000000")
	assert.Contains(t, u, "color=ffffff")
	assert.Contains(t, u, "size=128x128")
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "Tahwisa213-Billet-SHA07032026012.png", Filename("SHA07032026012"))
}

func TestHTTPRenderer_Export(t *testing.T) {
	var got Pass
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("\x89PNG"))
	}))
	defer srv.Close()

	p := NewPass("SHA07032026012", models.Trip{ID: 5, Title: "Lac de Tonga"}, models.BookingRecord{TripID: 5})
	img, err := NewHTTPRenderer(srv.URL).Export(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), img)
	assert.Equal(t, "SHA07032026012", got.Reference)
	assert.Equal(t, 5, got.Trip.ID)
}

func TestHTTPRenderer_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewHTTPRenderer(srv.URL).Export(context.Background(), Pass{})
	assert.Error(t, err)
}
