package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kketzal/EVALUACION-DESEMPENO-sub000/internal/models"
	appErrors "github.com/kketzal/EVALUACION-DESEMPENO-sub000/pkg/errors"
)

func TestWorkerRoutes(t *testing.T) {
	env := newLifecycleEnv()

	t.Run("list", func(t *testing.T) {
		resp := env.do(http.MethodGet, "/workers", "")
		require.Equal(t, http.StatusOK, resp.Code)
		var envelope struct {
			Data []models.Worker `json:"data"`
		}
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
		require.Len(t, envelope.Data, 2)
		assert.Equal(t, "Ana Garcia", envelope.Data[0].FullName)
	})

	t.Run("get", func(t *testing.T) {
		resp := env.do(http.MethodGet, "/workers/w-002", "")
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Contains(t, resp.Body.String(), "Luis Perez")
	})

	t.Run("get not found", func(t *testing.T) {
		resp := env.do(http.MethodGet, "/workers/w-404", "")
		require.Equal(t, http.StatusNotFound, resp.Code)
		var envelope struct {
			Error *appErrors.Error `json:"error"`
		}
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
		assert.Equal(t, "NOT_FOUND", envelope.Error.Code)
	})
}

func TestCompetenciesRoute(t *testing.T) {
	env := newLifecycleEnv()

	competencyIDs := func(body []byte) []string {
		var envelope struct {
			Data []models.Competency `json:"data"`
		}
		require.NoError(t, json.Unmarshal(body, &envelope))
		ids := make([]string, 0, len(envelope.Data))
		for _, comp := range envelope.Data {
			ids = append(ids, comp.ID)
		}
		return ids
	}

	t.Run("full catalog", func(t *testing.T) {
		resp := env.do(http.MethodGet, "/competencies", "")
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, []string{"A", "B", "C", "D", "E", "F"}, competencyIDs(resp.Body.Bytes()))
	})

	t.Run("general group hides technical competencies", func(t *testing.T) {
		resp := env.do(http.MethodGet, "/competencies?group=GENERAL", "")
		require.Equal(t, http.StatusOK, resp.Code)
		ids := competencyIDs(resp.Body.Bytes())
		assert.NotContains(t, ids, "C")
		assert.NotContains(t, ids, "D")
		assert.Contains(t, ids, "E")
	})

	t.Run("technical group hides general competencies", func(t *testing.T) {
		resp := env.do(http.MethodGet, "/competencies?group=TECNICO", "")
		require.Equal(t, http.StatusOK, resp.Code)
		ids := competencyIDs(resp.Body.Bytes())
		assert.NotContains(t, ids, "E")
		assert.NotContains(t, ids, "F")
		assert.Contains(t, ids, "C")
	})

	t.Run("invalid group", func(t *testing.T) {
		resp := env.do(http.MethodGet, "/competencies?group=OTRO", "")
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})
}
