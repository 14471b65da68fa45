package api

import (
	"fmt"
	"strings"
)

// Message fragments the platform embeds in billing-related failures.
// The platform reports these in Chinese regardless of client locale.
var billingKeywords = []string{
	"扣费失败",
	"余额不足",
	"蝉豆不足",
	"蝉豆余额",
	"欠费",
}

// BillingHint returns an annotated message when msg indicates a billing
// failure, or the empty string otherwise.
func BillingHint(msg string) string {
	if msg == "" {
		return ""
	}

	for _, keyword := range billingKeywords {
		if strings.Contains(msg, keyword) {
			return fmt.Sprintf(
				"insufficient platform balance: %s (top up at https://www.chanjing.cc)",
				msg,
			)
		}
	}

	return ""
}
