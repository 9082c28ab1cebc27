package fetcher

import (
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestResponsePayloadCachesAndIsIdempotent(t *testing.T) {
	t.Parallel()

	resp := &Response{Raw: `{"items":[1,2]}`, IsSuccessStatusCode: true}

	var wg sync.WaitGroup
	results := make([]any, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, ok := resp.Payload()
			require.True(t, ok)
			results[i] = v
		}()
	}
	wg.Wait()

	for _, v := range results {
		require.Equal(t, map[string]any{"items": []any{float64(1), float64(2)}}, v)
	}

	resp.Raw = "changed"
	v, ok := resp.Payload()
	require.True(t, ok, "payload is parsed once and cached")
	require.Equal(t, results[0], v)
}

func TestResponsePayloadFailuresAreSilent(t *testing.T) {
	t.Parallel()

	cases := map[string]*Response{
		"invalid json": {Raw: "{nope", IsSuccessStatusCode: true},
		"empty body":   {Raw: "", IsSuccessStatusCode: true},
		"non 2xx":      {Raw: `{"a":1}`, IsSuccessStatusCode: false},
	}
	for name, resp := range cases {
		v, ok := resp.Payload()
		require.False(t, ok, name)
		require.Nil(t, v, name)
	}
}

func TestResponsePayloadAcceptsJSONNull(t *testing.T) {
	t.Parallel()

	resp := &Response{Raw: "null", IsSuccessStatusCode: true}
	v, ok := resp.Payload()
	require.True(t, ok)
	require.Nil(t, v)
}

func TestResponseDecode(t *testing.T) {
	t.Parallel()

	var out struct {
		Name string `json:"name"`
	}
	require.NoError(t, (&Response{Raw: `{"name":"x"}`}).Decode(&out))
	require.Equal(t, "x", out.Name)
	require.Error(t, (&Response{Raw: "oops"}).Decode(&out))
}

func TestResponseErrorMessage(t *testing.T) {
	t.Parallel()

	require.Equal(t, "boom", (&Response{Cause: errors.New("boom")}).ErrorMessage())
	require.Equal(t, "Not Found(404)", (&Response{StatusCode: http.StatusNotFound}).ErrorMessage())
	require.Equal(t, "no response", (&Response{}).ErrorMessage())
	require.Empty(t, (&Response{StatusCode: http.StatusOK, IsSuccessful: true}).ErrorMessage())
}

func TestResponseErr(t *testing.T) {
	t.Parallel()

	cause := errors.New("dial failed")
	require.ErrorIs(t, (&Response{Cause: cause}).Err(), cause)
	require.NoError(t, (&Response{StatusCode: http.StatusBadGateway}).Err())
	require.NoError(t, (&Response{IsSuccessful: true, Cause: cause}).Err())
}

func TestResponseElapsedMilliseconds(t *testing.T) {
	t.Parallel()

	resp := &Response{Elapsed: 1500 * time.Microsecond}
	require.Equal(t, int64(1), resp.ElapsedMilliseconds())
	require.False(t, resp.HasStatusCode())
}
