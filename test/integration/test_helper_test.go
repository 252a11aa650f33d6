package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// BaseURL points at a running API started with HTTP_DEV_ROUTES=true
var BaseURL = os.Getenv("FUNDRAISER_API_URL")

func TestMain(m *testing.M) {
	if BaseURL == "" {
		fmt.Println("FUNDRAISER_API_URL not set, skipping integration tests")
		os.Exit(0)
	}

	// wait for the service
	client := http.Client{Timeout: time.Second}
	for i := 0; i < 10; i++ {
		resp, err := client.Get(BaseURL + "/health")
		if err == nil {
			resp.Body.Close()
			break
		}
		time.Sleep(500 * time.Millisecond)
	}

	os.Exit(m.Run())
}

func post(t *testing.T, path string, body interface{}, out interface{}) int {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(BaseURL+path, "application/json", bytes.NewBuffer(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func get(t *testing.T, path string, out interface{}) int {
	t.Helper()
	resp, err := http.Get(BaseURL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}
