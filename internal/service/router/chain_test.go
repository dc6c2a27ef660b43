//go:build unit

package router

import (
	"testing"

	"gitee.com/flycash/channel-gateway/internal/domain"
	"gitee.com/flycash/channel-gateway/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainFailover(t *testing.T) {
	t.Parallel()
	a := emailConfig(1, "sendgrid", 1, 0)
	b := emailConfig(2, "mailgun", 2, 0)
	c := emailConfig(3, "ses", 3, 0)

	repo := newFakeRepo(a, b, c)
	r, _, v := newTestRouter(t, repo)
	seedCredentials(t, repo, v)

	ch := r.NewChain(domain.ResolveRequest{TenantID: 1, Channel: domain.ChannelEmail})

	res, err := ch.Next(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Config.ID)

	// 失败后同一条链内不再返回这个配置
	require.NoError(t, ch.Report(t.Context(), domain.Outcome{Success: false, Message: "超时"}))

	res, err = ch.Next(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Config.ID)

	require.NoError(t, ch.Report(t.Context(), domain.Outcome{Success: false, Message: "超时"}))

	res, err = ch.Next(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Config.ID)

	require.NoError(t, ch.Report(t.Context(), domain.Outcome{Success: true}))
}

func TestChainAttemptsBounded(t *testing.T) {
	t.Parallel()
	a := emailConfig(1, "sendgrid", 1, 0)
	b := emailConfig(2, "mailgun", 2, 0)

	repo := newFakeRepo(a, b)
	r, _, v := newTestRouter(t, repo)
	seedCredentials(t, repo, v)

	ch := r.NewChain(domain.ResolveRequest{TenantID: 1, Channel: domain.ChannelEmail})

	// 上限是候选数量，两次之后必然收口
	for i := 0; i < 2; i++ {
		_, err := ch.Next(t.Context())
		require.NoError(t, err)
		require.NoError(t, ch.Report(t.Context(), domain.Outcome{Success: false, Message: "超时"}))
	}

	_, err := ch.Next(t.Context())
	assert.ErrorIs(t, err, errs.ErrNoAvailableProvider)
	assert.ErrorIs(t, err, errs.ErrAttemptExhausted)
}

func TestChainReportBeforeNext(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo(emailConfig(1, "sendgrid", 1, 0))
	r, _, v := newTestRouter(t, repo)
	seedCredentials(t, repo, v)

	ch := r.NewChain(domain.ResolveRequest{TenantID: 1, Channel: domain.ChannelEmail})
	err := ch.Report(t.Context(), domain.Outcome{Success: true})
	assert.ErrorIs(t, err, errs.ErrInvalidParameter)
}

func TestChainCandidateSetStable(t *testing.T) {
	t.Parallel()
	a := emailConfig(1, "sendgrid", 1, 0)
	b := emailConfig(2, "mailgun", 2, 0)

	repo := newFakeRepo(a, b)
	r, _, v := newTestRouter(t, repo)
	seedCredentials(t, repo, v)

	ch := r.NewChain(domain.ResolveRequest{TenantID: 1, Channel: domain.ChannelEmail})

	res, err := ch.Next(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Config.ID)
	require.NoError(t, ch.Report(t.Context(), domain.Outcome{Success: false, Message: "超时"}))

	// 链装配之后新加的配置不影响本条链
	_, err = repo.Create(t.Context(), emailConfig(3, "ses", 0, 0))
	require.NoError(t, err)

	res, err = ch.Next(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Config.ID)
}
