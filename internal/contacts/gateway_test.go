package contacts

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/blingbridge/pkg/bling"
	"github.com/angelmondragon/blingbridge/pkg/config"
	"github.com/angelmondragon/blingbridge/pkg/logger"
)

type staticTokens string

func (s staticTokens) AccessToken(context.Context) (string, error) { return string(s), nil }

func (s staticTokens) Refresh(context.Context, string) (string, error) { return string(s), nil }

const storedContact = `{"data":{
	"id":9,
	"nome":"Maria S.",
	"fantasia":"Maria Modas",
	"numeroDocumento":"123.456.789-09",
	"telefone":"",
	"tipo":"F",
	"indicadorIe":9,
	"tiposContato":[{"id":14576890123,"descricao":"Cliente"}],
	"endereco":{
		"geral":{"endereco":"Av. Paulista","numero":"1000","bairro":"Bela Vista","cep":"01310100","municipio":"Sao Paulo","uf":"SP"},
		"cobranca":{"endereco":"Rua da Cobranca","numero":"5","bairro":"Se","cep":"01001000","municipio":"Sao Paulo","uf":"SP"}
	}
}}`

func TestEnsureMergeKeepsUnmodelledRemoteFields(t *testing.T) {
	var putBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/contatos":
			_, _ = io.WriteString(w, `{"data":[{"id":9,"nome":"Maria S.","numeroDocumento":"123.456.789-09"}]}`)
		case r.Method == http.MethodGet && r.URL.Path == "/contatos/9":
			_, _ = io.WriteString(w, storedContact)
		case r.Method == http.MethodPut && r.URL.Path == "/contatos/9":
			raw, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			dec := json.NewDecoder(bytes.NewReader(raw))
			dec.UseNumber()
			require.NoError(t, dec.Decode(&putBody))
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected call %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client, err := bling.NewClient(config.BlingConfig{BaseURL: srv.URL, RequestTimeout: 2 * time.Second}, staticTokens("t"), logger.Nop())
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{Client: client, Cache: mapCache{}, Logger: logger.Nop()})
	require.NoError(t, err)

	id, err := svc.Ensure(context.Background(), completeOrder(), Settings{})
	require.NoError(t, err)
	assert.Equal(t, int64(9), id)

	require.NotNil(t, putBody, "expected the merged contact to be written back")
	assert.Equal(t, "11999999999", putBody["telefone"])
	assert.Equal(t, "Maria S.", putBody["nome"])
	assert.Equal(t, "Maria Modas", putBody["fantasia"])
	assert.Equal(t, json.Number("9"), putBody["indicadorIe"])
	assert.Equal(t, []any{map[string]any{"id": json.Number("14576890123"), "descricao": "Cliente"}}, putBody["tiposContato"])

	address := putBody["endereco"].(map[string]any)
	assert.Equal(t, "Av. Paulista", address["geral"].(map[string]any)["endereco"])
	assert.Equal(t, map[string]any{
		"endereco": "Rua da Cobranca", "numero": "5", "bairro": "Se",
		"cep": "01001000", "municipio": "Sao Paulo", "uf": "SP",
	}, address["cobranca"])
	assert.NotContains(t, putBody, "id")
}
