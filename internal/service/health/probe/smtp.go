package probe

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"net/smtp"
	"strconv"

	"gitee.com/flycash/channel-gateway/internal/domain"
	"gitee.com/flycash/channel-gateway/internal/errs"
)

// SMTPProber 对邮件供应商做一次EHLO+AUTH+NOOP握手，不发信
type SMTPProber struct{}

func NewSMTPProber() *SMTPProber {
	return &SMTPProber{}
}

type smtpCredentials struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (p *SMTPProber) Probe(ctx context.Context, _ domain.ProviderConfig, credentials string) error {
	var cred smtpCredentials
	if err := json.Unmarshal([]byte(credentials), &cred); err != nil {
		return fmt.Errorf("%w: 凭证格式错误: %w", errs.ErrCredential, err)
	}
	if cred.Host == "" || cred.Port == 0 {
		return fmt.Errorf("%w: 凭证缺少host或port", errs.ErrCredential)
	}

	addr := net.JoinHostPort(cred.Host, strconv.Itoa(cred.Port))
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("连接SMTP失败: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, cred.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("SMTP握手失败: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: cred.Host}); err != nil {
			return fmt.Errorf("STARTTLS失败: %w", err)
		}
	}
	if cred.Username != "" {
		auth := smtp.PlainAuth("", cred.Username, cred.Password, cred.Host)
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("%w: SMTP认证被拒: %w", errs.ErrCredential, err)
		}
	}
	if err := c.Noop(); err != nil {
		return fmt.Errorf("SMTP握手失败: %w", err)
	}
	return nil
}
