package finlife_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/finmate/finmate/internal/config"
	"github.com/finmate/finmate/internal/finlife"
	"github.com/finmate/finmate/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(url string) *finlife.Client {
	return finlife.NewClient(zap.NewNop(), config.FinlifeConfig{
		BaseURL:  url,
		APIKey:   "test-key",
		RetryMax: 0,
	})
}

func TestFetchAllWalksPages(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/depositProductsSearch.json", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("auth"))
		assert.Equal(t, "020000", r.URL.Query().Get("topFinGrpNo"))

		page := r.URL.Query().Get("pageNo")
		code := "P" + page
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"result": map[string]interface{}{
				"err_cd":      "000",
				"err_msg":     "정상",
				"total_count": "2",
				"max_page_no": 2,
				"now_page_no": page,
				"baseList": []map[string]interface{}{
					{"fin_prdt_cd": code, "kor_co_nm": "우리은행", "fin_prdt_nm": "예금" + page, "dcls_month": "202406"},
				},
				"optionList": []map[string]interface{}{
					{"fin_prdt_cd": code, "save_trm": "12", "intr_rate": 3.5, "intr_rate2": nil},
				},
			},
		})
	}))
	defer server.Close()

	batch, err := newTestClient(server.URL).FetchAll(context.Background(), models.KindDeposit)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	require.Len(t, batch.Base, 2)
	require.Len(t, batch.Options, 2)
	assert.Equal(t, "P1", batch.Base[0].FinPrdtCd)
	assert.Equal(t, "P2", batch.Base[1].FinPrdtCd)
	assert.Equal(t, 12, batch.Options[0].SaveTrm.Int())
	assert.Equal(t, 3.5, batch.Options[0].IntrRate.Float())
	assert.Nil(t, batch.Options[0].IntrRate2.Ptr())
}

func TestFetchPageErrors(t *testing.T) {
	t.Run("api error code", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"result":{"err_cd":"010","err_msg":"미등록 인증키"}}`))
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).FetchPage(context.Background(), models.KindSaving, "020000", 1)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "미등록 인증키")
	})

	t.Run("bad status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).FetchPage(context.Background(), models.KindCredit, "050000", 1)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "500")
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := newTestClient("http://127.0.0.1:1").FetchPage(context.Background(), "bond", "020000", 1)
		assert.Error(t, err)
	})
}

func TestNumberUnmarshal(t *testing.T) {
	var v struct {
		A finlife.Number `json:"a"`
		B finlife.Number `json:"b"`
		C finlife.Number `json:"c"`
		D finlife.Number `json:"d"`
		E finlife.Number `json:"e"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"1,200","b":4.25,"c":"","d":null,"e":"-"}`), &v))
	assert.Equal(t, 1200.0, v.A.Float())
	assert.Equal(t, 4.25, v.B.Float())
	assert.Nil(t, v.C.Value)
	assert.Nil(t, v.D.Value)
	assert.Nil(t, v.E.Value)

	var bad struct {
		A finlife.Number `json:"a"`
	}
	assert.Error(t, json.Unmarshal([]byte(`{"a":"abc"}`), &bad))
}
