//go:build unit

package probe

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"gitee.com/flycash/channel-gateway/internal/domain"
	"gitee.com/flycash/channel-gateway/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPProbe(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	p := NewHTTPProber()

	t.Run("探测通过", func(t *testing.T) {
		t.Parallel()
		err := p.Probe(t.Context(), domain.ProviderConfig{},
			`{"endpoint":"`+srv.URL+`","apiKey":"good-key"}`)
		assert.NoError(t, err)
	})

	t.Run("认证被拒", func(t *testing.T) {
		t.Parallel()
		err := p.Probe(t.Context(), domain.ProviderConfig{},
			`{"endpoint":"`+srv.URL+`","apiKey":"bad-key"}`)
		assert.ErrorIs(t, err, errs.ErrCredential)
	})

	t.Run("凭证格式错误", func(t *testing.T) {
		t.Parallel()
		err := p.Probe(t.Context(), domain.ProviderConfig{}, "not json")
		assert.ErrorIs(t, err, errs.ErrCredential)
	})

	t.Run("凭证缺endpoint", func(t *testing.T) {
		t.Parallel()
		err := p.Probe(t.Context(), domain.ProviderConfig{}, `{"apiKey":"k"}`)
		assert.ErrorIs(t, err, errs.ErrCredential)
	})
}

func TestHTTPProbeServerError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	err := NewHTTPProber().Probe(t.Context(), domain.ProviderConfig{},
		`{"endpoint":"`+srv.URL+`","apiKey":"k"}`)
	require.Error(t, err)
	// 供应商侧5xx是普通失败，不能当认证失败熔断
	assert.NotErrorIs(t, err, errs.ErrCredential)
}

func TestSMTPProbeBadCredentialFormat(t *testing.T) {
	t.Parallel()
	p := NewSMTPProber()

	err := p.Probe(t.Context(), domain.ProviderConfig{}, "not json")
	assert.ErrorIs(t, err, errs.ErrCredential)

	err = p.Probe(t.Context(), domain.ProviderConfig{}, `{"host":"","port":0}`)
	assert.ErrorIs(t, err, errs.ErrCredential)
}
