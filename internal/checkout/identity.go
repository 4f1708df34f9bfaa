package checkout

import (
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// NewCorrelationID 生成客户端侧关联单号（爱发电等站外渠道使用）
func NewCorrelationID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewSessionID 生成结算会话 ID
func NewSessionID() string {
	return uuid.NewString()
}

// Fingerprint CDK 摘要，日志与台账中只记录摘要
func Fingerprint(cdk string) string {
	cdk = strings.TrimSpace(cdk)
	if cdk == "" {
		return ""
	}
	sum := blake2b.Sum256([]byte(cdk))
	return hex.EncodeToString(sum[:8])
}
