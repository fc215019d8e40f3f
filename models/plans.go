package models

type SubscriptionTier string

const (
	TierFree    SubscriptionTier = "free"
	TierBasic   SubscriptionTier = "basic"
	TierPro     SubscriptionTier = "pro"
	TierPremium SubscriptionTier = "premium"
)

// UnlimitedQuota marks a feature with no daily usage ceiling.
const UnlimitedQuota int = -1

type QuotaLimits struct {
	Translation int
	OCR         int
	Voice       int
}

var tierByPriceID = map[string]SubscriptionTier{
	"price_basic_monthly_placeholder":   TierBasic,
	"price_basic_yearly_placeholder":    TierBasic,
	"price_pro_monthly_placeholder":     TierPro,
	"price_pro_yearly_placeholder":      TierPro,
	"price_premium_monthly_placeholder": TierPremium,
	"price_premium_yearly_placeholder":  TierPremium,
}

var limitsByTier = map[SubscriptionTier]QuotaLimits{
	TierFree:    {Translation: 10, OCR: 5, Voice: 5},
	TierBasic:   {Translation: 100, OCR: 50, Voice: 50},
	TierPro:     {Translation: 500, OCR: 200, Voice: 200},
	TierPremium: {Translation: UnlimitedQuota, OCR: UnlimitedQuota, Voice: UnlimitedQuota},
}

// ResolveTier maps a Stripe price id to its plan tier. Unknown price ids
// resolve to the free tier rather than failing.
func ResolveTier(priceID string) SubscriptionTier {
	tier, ok := tierByPriceID[priceID]
	if !ok {
		return TierFree
	}

	return tier
}

// ResolveQuotas returns the daily usage limits of a tier. Quotas are a pure
// function of the tier and are recomputed on every transition.
func ResolveQuotas(tier SubscriptionTier) QuotaLimits {
	limits, ok := limitsByTier[tier]
	if !ok {
		return limitsByTier[TierFree]
	}

	return limits
}
