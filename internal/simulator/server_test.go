package simulator

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dyluth/warren/pkg/maze"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func post(t *testing.T, srv *httptest.Server, path string, body interface{}, out interface{}) int {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestServerSession(t *testing.T) {
	random := Generate(4, 9)
	srv := httptest.NewServer(NewServer(random.Problem()).Handler())
	defer srv.Close()

	var sel maze.SelectResponse
	status := post(t, srv, "/select", maze.SelectRequest{ID: "team", ProblemName: "probatio"}, &sel)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "probatio", sel.ProblemName)

	var exp maze.ExploreResponse
	status = post(t, srv, "/explore", maze.ExploreRequest{
		ID:    "team",
		Plans: []maze.Plan{maze.MustParsePlan("00"), maze.MustParsePlan("0[3]0")},
	}, &exp)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, [][]maze.Label{{0, 1, 0}, {0, 1, 3, 0}}, exp.Results)
	assert.Equal(t, 3, exp.QueryCount)

	t.Run("switching problem starts a fresh count", func(t *testing.T) {
		status := post(t, srv, "/select", maze.SelectRequest{ID: "team", ProblemName: random.Problem().Name}, nil)
		require.Equal(t, http.StatusOK, status)

		var exp maze.ExploreResponse
		post(t, srv, "/explore", maze.ExploreRequest{ID: "team", Plans: []maze.Plan{nil}}, &exp)
		assert.Equal(t, 2, exp.QueryCount)
	})

	t.Run("guess ends the session", func(t *testing.T) {
		var g maze.GuessResponse
		status := post(t, srv, "/guess", maze.GuessRequest{ID: "team", Map: *GenerateMap(4, 9)}, &g)
		require.Equal(t, http.StatusOK, status)
		assert.True(t, g.Correct)

		var e maze.ErrorResponse
		status = post(t, srv, "/explore", maze.ExploreRequest{ID: "team", Plans: []maze.Plan{nil}}, &e)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Contains(t, e.Error, "no problem selected")
	})
}

func TestServerErrors(t *testing.T) {
	srv := httptest.NewServer(NewServer().Handler())
	defer srv.Close()

	var e maze.ErrorResponse
	status := post(t, srv, "/select", maze.SelectRequest{ID: "team", ProblemName: "nope"}, &e)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, e.Error, "unknown problem")

	status = post(t, srv, "/select", maze.SelectRequest{ProblemName: "probatio"}, &e)
	assert.Equal(t, http.StatusBadRequest, status)

	status = post(t, srv, "/guess", maze.GuessRequest{ID: "other"}, &e)
	assert.Equal(t, http.StatusBadRequest, status)

	resp, err := http.Get(srv.URL + "/explore")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/explore", "application/json", bytes.NewReader([]byte(`{"id":"team","plans":["9"]}`)))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
