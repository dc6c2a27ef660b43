//go:build unit

package vault

import (
	"testing"

	"gitee.com/flycash/channel-gateway/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVaultSealUnseal(t *testing.T) {
	t.Parallel()
	v := NewVault("test-encrypt-key")

	sealed, err := v.Seal(`{"apiKey":"sk_live_123","secret":"whsec_456"}`)
	require.NoError(t, err)
	assert.NotEmpty(t, sealed)
	// 密文不应包含明文片段
	assert.NotContains(t, sealed, "sk_live_123")

	plaintext, err := v.Unseal(sealed)
	require.NoError(t, err)
	assert.Equal(t, `{"apiKey":"sk_live_123","secret":"whsec_456"}`, plaintext)
}

func TestVaultSealRandomNonce(t *testing.T) {
	t.Parallel()
	v := NewVault("test-encrypt-key")

	first, err := v.Seal("same-secret")
	require.NoError(t, err)
	second, err := v.Seal("same-secret")
	require.NoError(t, err)
	// 随机nonce保证同一明文两次加密结果不同
	assert.NotEqual(t, first, second)
}

func TestVaultUnsealCorruptBlob(t *testing.T) {
	t.Parallel()
	v := NewVault("test-encrypt-key")

	_, err := v.Unseal("not-base64!!!")
	assert.ErrorIs(t, err, errs.ErrCredential)

	_, err = v.Unseal("YWJj") // 合法base64但太短
	assert.ErrorIs(t, err, errs.ErrCredential)
}

func TestVaultUnsealRotatedKey(t *testing.T) {
	t.Parallel()
	old := NewVault("old-key")
	sealed, err := old.Seal("secret")
	require.NoError(t, err)

	// 换了密钥之后旧密文解封失败
	rotated := NewVault("rotated-key")
	_, err = rotated.Unseal(sealed)
	assert.ErrorIs(t, err, errs.ErrCredential)
}
