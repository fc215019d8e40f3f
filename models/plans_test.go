package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveTier(t *testing.T) {
	t.Run("should map every known price id to its tier", func(t *testing.T) {
		expectations := map[string]SubscriptionTier{
			"price_basic_monthly_placeholder":   TierBasic,
			"price_basic_yearly_placeholder":    TierBasic,
			"price_pro_monthly_placeholder":     TierPro,
			"price_pro_yearly_placeholder":      TierPro,
			"price_premium_monthly_placeholder": TierPremium,
			"price_premium_yearly_placeholder":  TierPremium,
		}

		for priceID, tier := range expectations {
			assert.Equal(t, tier, ResolveTier(priceID), priceID)
		}
	})

	t.Run("should fall back to free for unknown price ids", func(t *testing.T) {
		assert.Equal(t, TierFree, ResolveTier("price_enterprise_2029"))
		assert.Equal(t, TierFree, ResolveTier(""))
	})
}

func TestResolveQuotas(t *testing.T) {
	t.Run("should return the fixed limits per tier", func(t *testing.T) {
		assert.Equal(t, QuotaLimits{Translation: 10, OCR: 5, Voice: 5}, ResolveQuotas(TierFree))
		assert.Equal(t, QuotaLimits{Translation: 100, OCR: 50, Voice: 50}, ResolveQuotas(TierBasic))
		assert.Equal(t, QuotaLimits{Translation: 500, OCR: 200, Voice: 200}, ResolveQuotas(TierPro))
	})

	t.Run("should return unlimited for every premium counter", func(t *testing.T) {
		limits := ResolveQuotas(TierPremium)

		assert.Equal(t, UnlimitedQuota, limits.Translation)
		assert.Equal(t, UnlimitedQuota, limits.OCR)
		assert.Equal(t, UnlimitedQuota, limits.Voice)
	})

	t.Run("should fall back to the free table for unknown tiers", func(t *testing.T) {
		assert.Equal(t, ResolveQuotas(TierFree), ResolveQuotas(SubscriptionTier("platinum")))
	})
}
