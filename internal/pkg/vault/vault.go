package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"gitee.com/flycash/channel-gateway/internal/errs"
)

const keySize = 32

// Vault 凭证保险柜，供应商凭证只以密文形式落库
// 密文只在分发路径上解封，读取类接口永远不解封
type Vault struct {
	key []byte
}

// NewVault 创建保险柜
// 确保加密密钥长度为32字节
func NewVault(encryptKey string) *Vault {
	key := make([]byte, keySize)
	copy(key, encryptKey)
	return &Vault{key: key}
}

// Seal 使用AES-GCM加密明文凭证
func (v *Vault) Seal(plaintext string) (string, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errs.ErrCredential, err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errs.ErrCredential, err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("%w: %w", errs.ErrCredential, err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Unseal 使用AES-GCM解封密文凭证
// 解封失败（密文损坏、密钥轮换）只影响当前这一个配置
func (v *Vault) Unseal(sealed string) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errs.ErrCredential, err)
	}

	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errs.ErrCredential, err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errs.ErrCredential, err)
	}

	if len(ciphertext) < gcm.NonceSize() {
		return "", fmt.Errorf("%w: ciphertext太短了", errs.ErrCredential)
	}

	nonce := ciphertext[:gcm.NonceSize()]
	ciphertext = ciphertext[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errs.ErrCredential, err)
	}

	return string(plaintext), nil
}
