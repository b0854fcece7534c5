package internal

import (
	"abcpay/entity"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookupCode(t *testing.T) {
	codes := ErrorCodes()
	assert.Len(t, codes, 18)
	for i, code := range codes {
		assert.True(t, code.Known, code.Code)
		assert.NotEmpty(t, code.Message, code.Code)
		assert.NotEmpty(t, code.MessageEn, code.Code)
		if i > 0 {
			assert.Less(t, codes[i-1].Code, code.Code)
		}
	}

	assert.Equal(t, entity.CategorySuccess, LookupCode("0000").Category)
	assert.Equal(t, entity.CategorySuccess, LookupCode("00").Category)
	assert.Equal(t, entity.CategoryIndeterminate, LookupCode("EUNKWN").Category)
	assert.Equal(t, entity.CategoryBusinessError, LookupCode("E200").Category)
}

func TestLookupCode_UnknownNeverSucceeds(t *testing.T) {
	for _, code := range []string{"", "0", "000", "0001", "SUCCESS", "eunkwn"} {
		entry := LookupCode(code)
		assert.False(t, entry.Known, code)
		assert.Equal(t, entity.CategoryBusinessError, entry.Category, code)
	}
}

func TestFriendlyMessage(t *testing.T) {
	assert.Equal(t, "余额不足 (E200)", FriendlyMessage("E200", "insufficient funds"))
	assert.Equal(t, "通道关闭 (X1)", FriendlyMessage("X1", "通道关闭"))
	assert.Equal(t, "未知错误 (X1)", FriendlyMessage("X1", ""))
}
