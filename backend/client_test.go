package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/mbolis/pozo-survey/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthStatus(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, EndpointAuthStatus, r.URL.Path)
		query = r.URL.Query().Get("_")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/")
	c.now = func() time.Time { return time.UnixMilli(1700000000123) }

	require.NoError(t, c.AuthStatus(context.Background()))
	assert.Equal(t, "1700000000123", query)
}

func TestAuthStatusCacheBusterChanges(t *testing.T) {
	seen := map[string]bool{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen[r.URL.Query().Get("_")] = true
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	tick := int64(0)
	c.now = func() time.Time { tick++; return time.UnixMilli(tick) }

	require.NoError(t, c.AuthStatus(context.Background()))
	require.NoError(t, c.AuthStatus(context.Background()))
	assert.Len(t, seen, 2)
}

func TestAuthStatusFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no session", http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := NewClient(srv.URL).AuthStatus(context.Background())
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	assert.Equal(t, "no session", statusErr.Message)

	err = NewClient(refusedURL(t)).AuthStatus(context.Background())
	assert.Error(t, err)
}

func TestLoginURL(t *testing.T) {
	assert.Equal(t, "http://backend:5000/login", NewClient("http://backend:5000/").LoginURL())
}

func TestIngestScenario(t *testing.T) {
	var data map[string]any
	var fotos int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, EndpointIngest, r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Len(t, r.MultipartForm.Value[PartData], 1)
		require.NoError(t, json.Unmarshal([]byte(r.MultipartForm.Value[PartData][0]), &data))
		fotos = len(r.MultipartForm.File[PartFotos])
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	e := model.Encuesta{
		TipoSistema: "Aguas Lluvia",
		PozoNumero:  "P-102",
		ListaConexiones: []model.Conexion{{
			CotaRazante:      "100.5",
			CotaClave:        "98.2",
			DiametroPulgadas: "8",
			Material:         "PVC",
			ConectaA:         "Pozo P-101",
		}},
	}

	status, err := NewClient(srv.URL, WithToken("secret")).Ingest(context.Background(), e, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, status)

	assert.Equal(t, "Aguas Lluvia", data["tipo_sistema"])
	assert.Equal(t, "P-102", data["pozo_numero"])
	assert.Equal(t, []any{map[string]any{
		"cota_razante":      "100.5",
		"cota_clave":        "98.2",
		"diametro_pulgadas": "8",
		"material":          "PVC",
		"conecta_a":         "Pozo P-101",
	}}, data["conexiones"])
	assert.Zero(t, fotos)
}

func TestIngestPhotosKeepFilenames(t *testing.T) {
	for _, n := range []int{0, 1, 3} {
		t.Run(strconv.Itoa(n), func(t *testing.T) {
			var dataParts int
			var names []string
			var contents []string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.NoError(t, r.ParseMultipartForm(1<<20))
				dataParts = len(r.MultipartForm.Value[PartData])
				for _, fh := range r.MultipartForm.File[PartFotos] {
					names = append(names, fh.Filename)
					f, err := fh.Open()
					require.NoError(t, err)
					buf, err := io.ReadAll(f)
					require.NoError(t, err)
					f.Close()
					contents = append(contents, string(buf))
				}
			}))
			defer srv.Close()

			var fotos []model.Attachment
			var wantNames, wantContents []string
			for i := 0; i < n; i++ {
				name := fmt.Sprintf("pozo \"%d\".jpg", i)
				content := fmt.Sprintf("bytes-%d", i)
				fotos = append(fotos, model.Attachment{Filename: name, Content: []byte(content)})
				wantNames = append(wantNames, name)
				wantContents = append(wantContents, content)
			}

			_, err := NewClient(srv.URL).Ingest(context.Background(), model.Encuesta{}, fotos)
			require.NoError(t, err)
			assert.Equal(t, 1, dataParts)
			assert.Equal(t, wantNames, names)
			assert.Equal(t, wantContents, contents)
		})
	}
}

func TestIngestUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	status, err := NewClient(srv.URL).Ingest(context.Background(), model.Encuesta{}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestIngestOtherStatusesAreDelivered(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	status, err := NewClient(srv.URL).Ingest(context.Background(), model.Encuesta{}, nil)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, status)
}

func TestIngestTransportFailure(t *testing.T) {
	_, err := NewClient(refusedURL(t)).Ingest(context.Background(), model.Encuesta{}, nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthorized)
}

func TestEncodeSurveyPhotoContentType(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	body, contentType, err := EncodeSurvey(model.Encuesta{}, []model.Attachment{{Filename: "a.png", Content: png}})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", contentType)
	require.NoError(t, req.ParseMultipartForm(1<<20))
	require.Len(t, req.MultipartForm.File[PartFotos], 1)
	assert.Equal(t, "image/png", req.MultipartForm.File[PartFotos][0].Header.Get("Content-Type"))
}

// refusedURL returns the address of a port nobody listens on.
func refusedURL(t *testing.T) string {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	l.Close()
	return "http://" + addr
}
