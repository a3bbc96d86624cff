package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
)

func TestClient_Current(t *testing.T) {
	assert := assert_.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("47.2692", r.URL.Query().Get("latitude"))
		assert.Equal("11.4041", r.URL.Query().Get("longitude"))
		_, _ = w.Write([]byte(`{"current":{"temperature_2m":-3.5,"weather_code":73,"wind_speed_10m":12.1}}`))
	}))
	defer server.Close()

	c := New(Config{Endpoint: server.URL, Latitude: 47.2692, Longitude: 11.4041})
	p := c.Current(context.Background())
	assert.True(p.Available)
	assert.Equal("Snow", p.Description)
	assert.Equal(-3.5, p.TemperatureC)
	assert.Equal(12.1, p.WindKmh)
	assert.Equal(73, p.Code)
}

func TestClient_Current_Unavailable(t *testing.T) {
	assert := assert_.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	assert.Equal(Unavailable, New(Config{Endpoint: server.URL}).Current(context.Background()))

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer bad.Close()
	assert.Equal(Unavailable, New(Config{Endpoint: bad.URL}).Current(context.Background()))
}

func TestDescribe(t *testing.T) {
	assert := assert_.New(t)
	assert.Equal("Clear sky", Describe(0))
	assert.Equal("Partly cloudy", Describe(2))
	assert.Equal("Fog", Describe(45))
	assert.Equal("Rain", Describe(63))
	assert.Equal("Thunderstorm", Describe(99))
	assert.Equal("Unknown", Describe(40))
}
