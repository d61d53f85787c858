package epay

import (
	"crypto/md5"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSign(t *testing.T) {
	t.Run("Sorted non-empty fields plus key", func(t *testing.T) {
		params := map[string]string{
			"out_trade_no": "EP1",
			"money":        "10.00",
		}
		// 预期签名串: money=10.00&out_trade_no=EP1k
		sum := md5.Sum([]byte("money=10.00&out_trade_no=EP1k"))
		expected := hex.EncodeToString(sum[:])

		assert.Equal(t, expected, Sign(params, "k"))
	})

	t.Run("Empty and sign fields are excluded", func(t *testing.T) {
		base := map[string]string{
			"out_trade_no": "EP1",
			"money":        "10.00",
		}
		withNoise := map[string]string{
			"out_trade_no": "EP1",
			"money":        "10.00",
			"name":         "",
			"sign":         "deadbeef",
			"sign_type":    "MD5",
		}
		assert.Equal(t, Sign(base, "secret"), Sign(withNoise, "secret"))
	})

	t.Run("Key change changes digest", func(t *testing.T) {
		params := map[string]string{"out_trade_no": "EP1"}
		assert.NotEqual(t, Sign(params, "k1"), Sign(params, "k2"))
	})
}

func TestVerify(t *testing.T) {
	key := "merchant-secret"
	params := map[string]string{
		"pid":          "1001",
		"trade_no":     "2024010112345",
		"out_trade_no": "EP1700000000000001",
		"type":         "alipay",
		"name":         "套餐购买",
		"money":        "29.90",
		"trade_status": "TRADE_SUCCESS",
	}

	t.Run("Accepts matching signature", func(t *testing.T) {
		params["sign"] = Sign(params, key)
		assert.True(t, Verify(params, key))
	})

	t.Run("Rejects tampered payload", func(t *testing.T) {
		params["sign"] = Sign(params, key)
		params["money"] = "0.01"
		assert.False(t, Verify(params, key))
	})

	t.Run("Rejects missing signature", func(t *testing.T) {
		delete(params, "sign")
		assert.False(t, Verify(params, key))
	})
}
