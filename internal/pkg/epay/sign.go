package epay

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"
)

// Sign 生成易支付V1签名
// 过滤空值以及 sign / sign_type 参数，按键名 ASCII 升序拼接为
// key=value&key=value 形式，末尾追加商户密钥后取 MD5 十六进制摘要
func Sign(params map[string]string, key string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if k == "sign" || k == "sign_type" || v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}

	signStr := strings.Join(pairs, "&") + key
	sum := md5.Sum([]byte(signStr))
	return hex.EncodeToString(sum[:])
}

// Verify 验证签名，空签名直接拒绝
func Verify(params map[string]string, key string) bool {
	sign := params["sign"]
	if sign == "" {
		return false
	}
	return Sign(params, key) == sign
}
