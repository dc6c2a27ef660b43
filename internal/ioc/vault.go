package ioc

import (
	"gitee.com/flycash/channel-gateway/internal/pkg/vault"
	"github.com/gotomicro/ego/core/econf"
)

func InitVault() *vault.Vault {
	type Config struct {
		EncryptKey string `yaml:"encryptKey"`
	}
	var cfg Config
	if err := econf.UnmarshalKey("vault", &cfg); err != nil {
		panic(err)
	}
	if cfg.EncryptKey == "" {
		panic("加密密钥不能为空")
	}
	return vault.NewVault(cfg.EncryptKey)
}
